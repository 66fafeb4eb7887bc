package strategy

import (
	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

// MinBars is the history required before a regime or signal is produced.
const MinBars = calculator.SMALong

// RegimeMetrics are the tail measurements the classifier decides on.
type RegimeMetrics struct {
	MomentumShort  float64 // 5-bar change
	MomentumMedium float64 // 20-bar change
	Volatility     float64 // std of 20 bar returns
	VolumeTrend    float64 // 5-bar over 20-bar mean volume
	MACross        float64 // SMA20 / SMA50
	Close          float64
	SMA20          float64
	SMA50          float64
	RecentHigh     float64
	RecentLow      float64
}

// Measure computes the regime metrics from the last bar of s.
func Measure(s model.Series, f *calculator.Frame) RegimeMetrics {
	n := s.Len()
	closes := s.Closes()
	volumes := s.Volumes()

	high, low := calculator.RangeHighLow(s.Highs(), s.Lows(), 20)
	m := RegimeMetrics{
		MomentumShort:  calculator.PctChange(closes, 5)[n-1],
		MomentumMedium: calculator.PctChange(closes, 20)[n-1],
		Volatility:     calculator.RollingStd(calculator.PctChange(closes, 1), 20, 20, 1)[n-1],
		VolumeTrend:    calculator.RollingMean(volumes, 5, 5)[n-1] / calculator.RollingMean(volumes, 20, 20)[n-1],
		Close:          closes[n-1],
		SMA20:          f.SMA20[n-1],
		SMA50:          f.SMA50[n-1],
		RecentHigh:     high,
		RecentLow:      low,
	}
	m.MACross = m.SMA20 / m.SMA50
	return m
}

// Classify labels the market from the tail of the series. It is a pure
// function; fewer than MinBars bars yields RegimeUnknown. Rules are
// evaluated in priority order and the first match wins.
func Classify(s model.Series, f *calculator.Frame) model.Regime {
	if s.Len() < MinBars || f.Len() != s.Len() {
		return model.RegimeUnknown
	}
	return classify(Measure(s, f))
}

func classify(m RegimeMetrics) model.Regime {
	switch {
	case m.MomentumShort > 0.01 && m.MomentumMedium > 0.03 &&
		m.MACross > 1.01 && m.VolumeTrend > 1.1 &&
		m.Close > m.SMA50 && m.Volatility < 0.025:
		return model.RegimeBullTrend

	case m.MomentumShort < -0.01 && m.MomentumMedium < -0.03 &&
		m.MACross < 0.99 && m.VolumeTrend > 1.1 &&
		m.Close < m.SMA50:
		return model.RegimeBearTrend

	case m.Volatility > 0.03:
		return model.RegimeHighVolatility

	case abs(m.MomentumMedium) < 0.015 && m.Volatility < 0.02 && abs(m.MACross-1) < 0.01:
		if m.Close < m.SMA20 && m.Close > m.SMA50 {
			return model.RegimeRangingSupport
		}
		return model.RegimeRanging

	// breakout: within 3% of the 20-bar range below the high, on rising volume
	case m.Close > m.RecentHigh-(m.RecentHigh-m.RecentLow)*0.03 && m.VolumeTrend > 1.2:
		return model.RegimeBreakout
	}
	return model.RegimeMixed
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
