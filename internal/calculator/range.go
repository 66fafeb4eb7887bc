package calculator

import "math"

// Bands holds Bollinger band columns.
type Bands struct {
	Mid   []float64
	Upper []float64
	Lower []float64
}

// Bollinger computes bands from a full-window mean and population standard deviation.
func Bollinger(closes []float64, window int, dev float64) Bands {
	mid := RollingMean(closes, window, window)
	std := RollingStd(closes, window, window, 0)
	b := Bands{Mid: mid, Upper: nanSlice(len(closes)), Lower: nanSlice(len(closes))}
	for i := range closes {
		b.Upper[i] = mid[i] + dev*std[i]
		b.Lower[i] = mid[i] - dev*std[i]
	}
	return b
}

// Width is (upper-lower)/mid; a zero mid is treated as missing.
func (b Bands) Width() []float64 {
	out := nanSlice(len(b.Mid))
	for i := range out {
		if b.Mid[i] == 0 {
			continue
		}
		out[i] = (b.Upper[i] - b.Lower[i]) / b.Mid[i]
	}
	return out
}

// Position locates each close inside the bands: 0 at the lower band, 1 at the
// upper. A zero band width is treated as missing.
func (b Bands) Position(closes []float64) []float64 {
	out := nanSlice(len(closes))
	for i, c := range closes {
		w := b.Upper[i] - b.Lower[i]
		if w == 0 {
			continue
		}
		out[i] = (c - b.Lower[i]) / w
	}
	return out
}

// RangeHighLow returns the high and low of the most recent window bars.
// An empty range yields -Inf and +Inf.
func RangeHighLow(highs, lows []float64, window int) (high, low float64) {
	if len(highs) == 0 || len(lows) == 0 || window <= 0 {
		return math.Inf(-1), math.Inf(1)
	}
	hs := RollingMax(highs, window, 1)
	ls := RollingMin(lows, window, 1)
	return hs[len(hs)-1], ls[len(ls)-1]
}
