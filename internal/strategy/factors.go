package strategy

import (
	"fmt"

	"TradeSentinel/internal/model"
)

// Confirmation bounds.
const (
	rsiLow        = 40.0
	rsiHigh       = 65.0
	bbBand        = 0.4
	rsiOverbought = 70.0
	bbUpper       = 0.8
)

// confirmations evaluates the six buy confirmations on the latest features.
func confirmations(cfg model.SymbolConfig, fv model.FeatureVector) []model.Confirmation {
	return []model.Confirmation{
		confirmPriceAboveMAs(fv),
		confirmRSIRange(fv),
		confirmVolume(cfg, fv),
		confirmMACD(fv),
		confirmTrend(fv),
		confirmBollinger(fv),
	}
}

func confirmPriceAboveMAs(fv model.FeatureVector) model.Confirmation {
	return model.Confirmation{
		Name:       "price_above_mas",
		Passed:     fv.Close > fv.SMA20 && fv.Close > fv.SMA50,
		Commentary: fmt.Sprintf("close %.6g sma20 %.6g sma50 %.6g", fv.Close, fv.SMA20, fv.SMA50),
	}
}

func confirmRSIRange(fv model.FeatureVector) model.Confirmation {
	return model.Confirmation{
		Name:       "rsi_range",
		Passed:     fv.RSI > rsiLow && fv.RSI < rsiHigh,
		Commentary: fmt.Sprintf("rsi %.1f", fv.RSI),
	}
}

func confirmVolume(cfg model.SymbolConfig, fv model.FeatureVector) model.Confirmation {
	return model.Confirmation{
		Name:       "volume",
		Passed:     fv.VolumeRatio > cfg.VolumeFloor,
		Commentary: fmt.Sprintf("ratio %.2f floor %.2f", fv.VolumeRatio, cfg.VolumeFloor),
	}
}

func confirmMACD(fv model.FeatureVector) model.Confirmation {
	return model.Confirmation{
		Name:       "macd",
		Passed:     fv.MACD > fv.MACDSignal,
		Commentary: fmt.Sprintf("macd %.6g signal %.6g", fv.MACD, fv.MACDSignal),
	}
}

func confirmTrend(fv model.FeatureVector) model.Confirmation {
	return model.Confirmation{
		Name:   "trend",
		Passed: trendUp(fv),
	}
}

func confirmBollinger(fv model.FeatureVector) model.Confirmation {
	return model.Confirmation{
		Name:       "bollinger",
		Passed:     fv.BBPosition > -bbBand && fv.BBPosition < bbBand,
		Commentary: fmt.Sprintf("position %.2f", fv.BBPosition),
	}
}

func trendUp(fv model.FeatureVector) bool { return fv.SMA20 > fv.SMA50 }

// profitTaking reports whether the latest bar looks like a place to exit.
func profitTaking(fv model.FeatureVector) bool {
	return (!trendUp(fv) && fv.MACD < fv.MACDSignal) ||
		fv.RSI > rsiOverbought ||
		fv.BBPosition > bbUpper
}

func countPassed(cs []model.Confirmation) int {
	n := 0
	for _, c := range cs {
		if c.Passed {
			n++
		}
	}
	return n
}
