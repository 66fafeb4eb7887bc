package hint

import (
	"context"
	"errors"
	"math"
	"testing"

	"TradeSentinel/internal/model"
)

func TestCalibrate(t *testing.T) {
	cases := []struct {
		name   string
		prob   float64
		fv     model.FeatureVector
		want   float64
		action model.Action
	}{
		{"neutral", 0.5, model.FeatureVector{RSI: 50}, 0.5, model.ActionHold},
		{"mild up", 0.6, model.FeatureVector{RSI: 50}, 0.51, model.ActionHold},
		{"up with context", 0.8, model.FeatureVector{RSI: 25, MACDDiff: 1, VolumeRatio: 1.5}, 0.53, model.ActionBuy},
		{"down with context", 0.2, model.FeatureVector{RSI: 75, MACDDiff: -1, VolumeRatio: 1.5}, 0.47, model.ActionHold},
		{"strong down clamps", 0.0, model.FeatureVector{RSI: 80, MACDDiff: -2, VolumeRatio: 2}, 0.47, model.ActionHold},
		{"up macd and volume", 0.6, model.FeatureVector{RSI: 50, MACDDiff: 0.5, VolumeRatio: 1.3}, 0.525, model.ActionBuy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := Calibrate(tc.prob, tc.fv)
			if math.Abs(h.Confidence-tc.want) > 1e-9 {
				t.Errorf("confidence = %.4f, want %.4f", h.Confidence, tc.want)
			}
			if h.Action != tc.action {
				t.Errorf("action = %s, want %s", h.Action, tc.action)
			}
			if h.Confidence < calibratedMin || h.Confidence > calibratedMax {
				t.Errorf("confidence %.4f outside band", h.Confidence)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	ctx := context.Background()

	h, err := Lookup(ctx, nil, model.FeatureVector{})
	if h != nil || err != nil {
		t.Fatalf("nil provider: got %v, %v", h, err)
	}

	failing := ProviderFunc(func(context.Context, model.FeatureVector) (model.Hint, error) {
		return model.Hint{}, ErrUnavailable
	})
	h, err = Lookup(ctx, failing, model.FeatureVector{})
	if h != nil || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("failing provider: got %v, %v", h, err)
	}

	fixed := ProviderFunc(func(_ context.Context, fv model.FeatureVector) (model.Hint, error) {
		return Calibrate(0.9, fv), nil
	})
	h, err = Lookup(ctx, fixed, model.FeatureVector{RSI: 50})
	if err != nil || h == nil {
		t.Fatalf("unexpected result %v, %v", h, err)
	}
	if h.Confidence <= 0.5 {
		t.Errorf("expected bullish hint, got %.3f", h.Confidence)
	}
}
