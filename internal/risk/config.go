package risk

import "time"

// Config holds the sizing and exit policy.
type Config struct {
	RiskPerTrade     float64 `yaml:"risk_per_trade" json:"risk_per_trade" default:"0.01" validate:"gt=0,lte=1"`
	MaxPositionSize  float64 `yaml:"max_position_size" json:"max_position_size" default:"0.15" validate:"gt=0,lte=1"`
	MinCashBalance   float64 `yaml:"min_cash_balance" json:"min_cash_balance" default:"5" validate:"gte=0"`
	MinPositionValue float64 `yaml:"min_position_value" json:"min_position_value" default:"10" validate:"gte=0"`

	TakeProfit         float64       `yaml:"take_profit" json:"take_profit" default:"0.018" validate:"gt=0"`
	StopLoss           float64       `yaml:"stop_loss" json:"stop_loss" default:"0.006" validate:"gt=0"`
	ReversalProfit     float64       `yaml:"reversal_profit" json:"reversal_profit" default:"0.003" validate:"gte=0"`
	AgedAfter          time.Duration `yaml:"aged_after" json:"aged_after" default:"12h" validate:"gt=0"`
	BreakevenProfit    float64       `yaml:"breakeven_profit" json:"breakeven_profit" default:"0.005" validate:"gte=0"`
	AgedStopFactor     float64       `yaml:"aged_stop_factor" json:"aged_stop_factor" default:"0.7" validate:"gt=0,lte=1"`
	TrailingActivation float64       `yaml:"trailing_activation" json:"trailing_activation" default:"0.008" validate:"gte=0"`
	TrailingBase       float64       `yaml:"trailing_base" json:"trailing_base" default:"0.012" validate:"gt=0"`
	MaxDrawdown        float64       `yaml:"max_drawdown" json:"max_drawdown" default:"0.5" validate:"gt=0,lte=1"`
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		RiskPerTrade:       0.01,
		MaxPositionSize:    0.15,
		MinCashBalance:     5,
		MinPositionValue:   10,
		TakeProfit:         0.018,
		StopLoss:           0.006,
		ReversalProfit:     0.003,
		AgedAfter:          12 * time.Hour,
		BreakevenProfit:    0.005,
		AgedStopFactor:     0.7,
		TrailingActivation: 0.008,
		TrailingBase:       0.012,
		MaxDrawdown:        0.5,
	}
}

// trailingTier is the trail distance used once profit exceeds Above.
type trailingTier struct {
	Above float64
	Trail float64
}

var trailingTiers = []trailingTier{
	{Above: 0.05, Trail: 0.02},
	{Above: 0.02, Trail: 0.015},
	{Above: 0.008, Trail: 0.01},
}

// drawdownMultiplier scales entries down as equity falls below initial capital.
func drawdownMultiplier(equityRatio float64) float64 {
	switch {
	case equityRatio < 0.85:
		return 0.3
	case equityRatio < 0.95:
		return 0.6
	}
	return 1.0
}
