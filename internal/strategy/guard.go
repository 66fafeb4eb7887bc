package strategy

import (
	"fmt"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

// MarketGuard rejects execution in disorderly markets.
type MarketGuard struct {
	MaxVolatility float64 `yaml:"max_volatility" json:"max_volatility" default:"0.05" validate:"gte=0"` // std of the last 20 bar returns
	MinBarVolume  float64 `yaml:"min_bar_volume" json:"min_bar_volume" default:"1000" validate:"gte=0"`
	MaxSpread     float64 `yaml:"max_spread" json:"max_spread" default:"0.03" validate:"gte=0"` // (high-low)/low of the last bar
}

// DefaultMarketGuard returns the production thresholds.
func DefaultMarketGuard() MarketGuard {
	return MarketGuard{MaxVolatility: 0.05, MinBarVolume: 1000, MaxSpread: 0.03}
}

// Check returns nil when the latest bar is tradable.
func (g MarketGuard) Check(s model.Series) error {
	n := s.Len()
	if n == 0 {
		return fmt.Errorf("no bars")
	}
	last := s.Last()

	if n > 20 {
		vol := calculator.RollingStd(calculator.PctChange(s.Closes(), 1), 20, 20, 1)[n-1]
		if g.MaxVolatility > 0 && vol > g.MaxVolatility {
			return fmt.Errorf("high volatility %.2f%%", vol*100)
		}
	}
	if last.Volume < g.MinBarVolume {
		return fmt.Errorf("low liquidity: bar volume %.2f", last.Volume)
	}
	if last.Low > 0 && g.MaxSpread > 0 {
		if spread := (last.High - last.Low) / last.Low; spread > g.MaxSpread {
			return fmt.Errorf("excessive spread %.2f%%", spread*100)
		}
	}
	return nil
}
