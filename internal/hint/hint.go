package hint

import (
	"context"
	"errors"

	"TradeSentinel/internal/model"
)

// ErrUnavailable is returned when no model is loaded.
var ErrUnavailable = errors.New("hint provider unavailable")

// Provider produces an advisory hint from one feature vector.
type Provider interface {
	Predict(ctx context.Context, fv model.FeatureVector) (model.Hint, error)
	Close() error
}

// ProviderFunc adapts a function into a Provider.
type ProviderFunc func(ctx context.Context, fv model.FeatureVector) (model.Hint, error)

func (f ProviderFunc) Predict(ctx context.Context, fv model.FeatureVector) (model.Hint, error) {
	return f(ctx, fv)
}

func (f ProviderFunc) Close() error { return nil }

// Lookup asks p for a hint and returns nil when p is nil or fails.
func Lookup(ctx context.Context, p Provider, fv model.FeatureVector) (*model.Hint, error) {
	if p == nil {
		return nil, nil
	}
	h, err := p.Predict(ctx, fv)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Calibration band.
const (
	calibratedMin = 0.47
	calibratedMax = 0.53
	buyAbove      = 0.52
	sellBelow     = 0.47
)

// Calibrate compresses a raw up-probability into a narrow band around 0.5 and
// nudges it with the indicator context.
func Calibrate(prob float64, fv model.FeatureVector) model.Hint {
	c := 0.5 + (prob-0.5)*0.1
	up := prob > 0.5

	if fv.RSI < 30 && up {
		c += 0.01
	} else if fv.RSI > 70 && !up {
		c -= 0.01
	}

	if fv.MACDDiff > 0 && up {
		c += 0.01
	} else if fv.MACDDiff < 0 && !up {
		c -= 0.01
	}

	if fv.VolumeRatio > 1.2 {
		if up {
			c += 0.005
		} else {
			c -= 0.005
		}
	}

	if c < calibratedMin {
		c = calibratedMin
	}
	if c > calibratedMax {
		c = calibratedMax
	}

	action := model.ActionHold
	switch {
	case c > buyAbove:
		action = model.ActionBuy
	case c < sellBelow:
		action = model.ActionSell
	}
	return model.Hint{Action: action, Confidence: c}
}
