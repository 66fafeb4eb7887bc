package strategy

import (
	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

// Confidence bounds and fixed levels.
const (
	MinConfidence     = 0.3
	MaxConfidence     = 0.7
	SellConfidence    = 0.35
	SellThreshold     = 0.42
	NeutralConfidence = 0.5
)

// Score turns the latest features into a Signal for one symbol. The volume
// and regime gates run first and return hold; the optional hint only nudges
// the confidence of a symbol that passed both gates.
func Score(cfg model.SymbolConfig, s model.Series, f *calculator.Frame, regime model.Regime, hint *model.Hint) model.Signal {
	sig := model.Signal{
		Symbol:     cfg.Symbol,
		Action:     model.ActionHold,
		Confidence: NeutralConfidence,
		Regime:     regime,
		Required:   cfg.RequiredConfirmations,
		Time:       s.Last().Time,
	}
	if s.Len() < MinBars || f.Len() < MinBars {
		sig.Reason = "insufficient history"
		return sig
	}
	fv, _ := f.Latest()

	if fv.VolumeRatio < cfg.VolumeFloor {
		sig.Reason = "volume below floor"
		return sig
	}
	if !cfg.Allows(regime) {
		sig.Reason = "unfavorable regime"
		return sig
	}

	sig.Confirmations = confirmations(cfg, fv)
	sig.Passed = countPassed(sig.Confirmations)

	confidence := NeutralConfidence
	switch {
	case sig.Passed >= cfg.RequiredConfirmations && trendUp(fv):
		confidence = NeutralConfidence + cfg.ConfidenceBoost
		sig.Reason = "confirmations met"
	case profitTaking(fv):
		confidence = SellConfidence
		sig.Reason = "profit taking"
	}

	// Hint confidence is calibrated into [0.47, 0.53], so it moves the score
	// by at most 0.03. That never crosses SellThreshold from neutral and never
	// lifts a profit-taking sell above it, so a hint cannot produce or veto a
	// sell on its own.
	if hint != nil {
		h := *hint
		sig.Hint = &h
		confidence += h.Confidence - NeutralConfidence
	}
	confidence = clamp(confidence, MinConfidence, MaxConfidence)
	sig.Confidence = confidence

	switch {
	case confidence > cfg.BuyThreshold:
		sig.Action = model.ActionBuy
	case confidence < SellThreshold:
		sig.Action = model.ActionSell
	}

	if sig.Action == model.ActionBuy && sig.Passed < cfg.RequiredConfirmations {
		sig.Action = model.ActionHold
		sig.Reason = "buy vetoed: not enough confirmations"
	}
	if sig.Action == model.ActionBuy && fv.RSI > rsiOverbought {
		sig.Action = model.ActionHold
		sig.Reason = "buy vetoed: rsi overbought"
	}
	return sig
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
