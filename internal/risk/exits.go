package risk

import (
	"time"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

const eps = 1e-9

func atLeast(v, threshold float64) bool { return v >= threshold-eps }
func atMost(v, threshold float64) bool  { return v <= threshold+eps }
func above(v, threshold float64) bool   { return v > threshold+eps }

// Evaluate returns the first exit rule that fires for p at price, or
// ExitNone. closes are the cycle's closes for the reversal check; p must
// already carry the updated high-water price.
func (c Config) Evaluate(p model.Position, price float64, closes []float64, now time.Time) model.ExitReason {
	pnl := p.PnLPct(price)
	aged := p.Age(now) > c.AgedAfter

	if c.reversal(closes) && above(pnl, c.ReversalProfit) {
		return model.ExitReversal
	}
	if atLeast(pnl, c.TakeProfit) {
		return model.ExitTakeProfit
	}
	if atMost(pnl, -c.stopLoss(pnl, aged)) {
		return model.ExitStopLoss
	}
	if above(pnl, c.TrailingActivation) {
		if price < p.HighPrice*(1-c.trail(pnl))-eps {
			return model.ExitTrailingStop
		}
	}
	if atMost(pnl, -c.MaxDrawdown) {
		return model.ExitMaxDrawdown
	}
	if aged && pnl < -eps {
		return model.ExitTime
	}
	return model.ExitNone
}

// reversal reports whether the 5-bar average has dropped under the 10-bar one.
func (c Config) reversal(closes []float64) bool {
	short, err := calculator.CalculateSMA(closes, 5)
	if err != nil {
		return false
	}
	medium, err := calculator.CalculateSMA(closes, 10)
	if err != nil {
		return false
	}
	return short < medium
}

func (c Config) stopLoss(pnl float64, aged bool) float64 {
	if !aged {
		return c.StopLoss
	}
	if pnl > c.BreakevenProfit {
		return 0
	}
	return c.StopLoss * c.AgedStopFactor
}

func (c Config) trail(pnl float64) float64 {
	for _, t := range trailingTiers {
		if pnl > t.Above {
			return t.Trail
		}
	}
	return c.TrailingBase
}
