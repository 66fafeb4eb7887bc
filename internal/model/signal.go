package model

import "time"

// Action is the discrete trading decision.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Regime labels the current market behaviour of a symbol.
type Regime string

const (
	RegimeBullTrend      Regime = "bull_trend"
	RegimeBearTrend      Regime = "bear_trend"
	RegimeHighVolatility Regime = "high_volatility"
	RegimeRanging        Regime = "ranging"
	RegimeRangingSupport Regime = "ranging_support"
	RegimeBreakout       Regime = "breakout"
	RegimeMixed          Regime = "mixed"
	RegimeUnknown        Regime = "unknown"
)

// Confirmation is one boolean sub-condition of the buy chain.
type Confirmation struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	Commentary string `json:"commentary,omitempty"`
}

// Hint is the advisory output of an ML provider.
type Hint struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// Signal is the per-cycle decision for a symbol.
type Signal struct {
	Symbol        string         `json:"symbol"`
	Action        Action         `json:"action"`
	Confidence    float64        `json:"confidence"`
	Regime        Regime         `json:"regime"`
	Confirmations []Confirmation `json:"confirmations,omitempty"`
	Passed        int            `json:"passed"`
	Required      int            `json:"required"`
	Reason        string         `json:"reason,omitempty"`
	Hint          *Hint          `json:"hint,omitempty"`
	Time          time.Time      `json:"time"`
}

// NeutralSignal is the hold/0.5 answer every gate falls back to.
func NeutralSignal(symbol, reason string) Signal {
	return Signal{
		Symbol:     symbol,
		Action:     ActionHold,
		Confidence: 0.5,
		Regime:     RegimeUnknown,
		Reason:     reason,
		Time:       time.Now(),
	}
}
