package model

// SymbolConfig carries every per-symbol trading parameter.
type SymbolConfig struct {
	Symbol                string   `yaml:"symbol" json:"symbol" validate:"required"`
	Allocation            float64  `yaml:"allocation" json:"allocation" validate:"gt=0,lte=1"`
	MinVolume             float64  `yaml:"min_volume" json:"min_volume" validate:"gt=0"`
	PriceDecimals         int      `yaml:"price_decimals" json:"price_decimals" validate:"gte=0,lte=12"`
	VolumeFloor           float64  `yaml:"volume_floor" json:"volume_floor" default:"0.3" validate:"gte=0"`
	RequiredConfirmations int      `yaml:"required_confirmations" json:"required_confirmations" default:"5" validate:"gte=1,lte=6"`
	ConfidenceBoost       float64  `yaml:"confidence_boost" json:"confidence_boost" default:"0.15" validate:"gte=0,lte=0.5"`
	BuyThreshold          float64  `yaml:"buy_threshold" json:"buy_threshold" default:"0.64" validate:"gt=0,lt=1"`
	FavorableRegimes      []Regime `yaml:"favorable_regimes" json:"favorable_regimes"`
}

// Allows reports whether new entries are permitted in the given regime.
func (c SymbolConfig) Allows(r Regime) bool {
	regimes := c.FavorableRegimes
	if len(regimes) == 0 {
		regimes = []Regime{RegimeBullTrend}
	}
	for _, fr := range regimes {
		if fr == r {
			return true
		}
	}
	return false
}

var wideRegimes = []Regime{RegimeBullTrend, RegimeRanging, RegimeBreakout, RegimeRangingSupport, RegimeMixed}

// DefaultSymbols is the built-in trading universe.
func DefaultSymbols() []SymbolConfig {
	return []SymbolConfig{
		{Symbol: "SOLUSD", Allocation: 0.20, MinVolume: 0.1, PriceDecimals: 4, VolumeFloor: 0.5,
			RequiredConfirmations: 4, ConfidenceBoost: 0.17, BuyThreshold: 0.62, FavorableRegimes: wideRegimes},
		{Symbol: "AVAXUSD", Allocation: 0.20, MinVolume: 0.1, PriceDecimals: 4, VolumeFloor: 0.5,
			RequiredConfirmations: 4, ConfidenceBoost: 0.17, BuyThreshold: 0.62, FavorableRegimes: wideRegimes},
		{Symbol: "XRPUSD", Allocation: 0.20, MinVolume: 10, PriceDecimals: 5, VolumeFloor: 0.3,
			RequiredConfirmations: 4, ConfidenceBoost: 0.16, BuyThreshold: 0.63,
			FavorableRegimes: []Regime{RegimeBullTrend, RegimeRanging, RegimeRangingSupport, RegimeBreakout}},
		{Symbol: "XDGUSD", Allocation: 0.15, MinVolume: 50, PriceDecimals: 6, VolumeFloor: 0.1,
			RequiredConfirmations: 5, ConfidenceBoost: 0.15, BuyThreshold: 0.64,
			FavorableRegimes: []Regime{RegimeBullTrend, RegimeBreakout, RegimeRangingSupport}},
		{Symbol: "SHIBUSD", Allocation: 0.10, MinVolume: 50000, PriceDecimals: 8, VolumeFloor: 0.01,
			RequiredConfirmations: 5, ConfidenceBoost: 0.14, BuyThreshold: 0.65,
			FavorableRegimes: []Regime{RegimeBullTrend, RegimeBreakout}},
		{Symbol: "PEPEUSD", Allocation: 0.15, MinVolume: 50000, PriceDecimals: 8, VolumeFloor: 0.01,
			RequiredConfirmations: 5, ConfidenceBoost: 0.14, BuyThreshold: 0.65,
			FavorableRegimes: []Regime{RegimeBullTrend, RegimeBreakout}},
	}
}
