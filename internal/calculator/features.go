package calculator

import (
	"math"

	"TradeSentinel/internal/model"
)

// Indicator windows.
const (
	RSIPeriod     = 14
	MACDFast      = 12
	MACDSlow      = 26
	MACDSign      = 9
	BBWindow      = 20
	BBDev         = 2.0
	ATRWindow     = 14
	ADXWindow     = 14
	SMAShort      = 20
	SMALong       = 50
	VolumeWindow  = 20
	StdWindowFast = 20
	StdWindowSlow = 50
)

// Frame holds one column per feature, aligned with the input series.
type Frame struct {
	Close         []float64
	Returns       []float64
	LogReturns    []float64
	RollingStd20  []float64
	RollingStd50  []float64
	VolumeRatio   []float64
	RSI           []float64
	RSIDivergence []float64
	Mom14         []float64
	Mom30         []float64
	MACD          []float64
	MACDSignal    []float64
	MACDDiff      []float64
	BBWidth       []float64
	BBPosition    []float64
	SMA20         []float64
	SMA50         []float64
	SMARatio      []float64
	ATR           []float64
	ADX           []float64
	ADXPos        []float64
	ADXNeg        []float64
}

// Compute derives the feature frame for a series. Short series are allowed:
// columns that need a longer window stay missing for the prefix and are then
// filled by the cleanup pass.
func Compute(s model.Series) *Frame {
	closes := s.Closes()
	highs := s.Highs()
	lows := s.Lows()
	volumes := s.Volumes()
	n := len(closes)

	f := &Frame{Close: closes}

	f.SMA20 = SMA(closes, SMAShort)
	f.SMA50 = SMA(closes, SMALong)
	f.SMARatio = divide(f.SMA20, f.SMA50)

	f.Returns = PctChange(closes, 1)
	if n > 0 {
		f.Returns[0] = 0
	}
	f.LogReturns = make([]float64, n)
	for i, r := range f.Returns {
		f.LogReturns[i] = math.Log1p(r)
	}
	f.RollingStd20 = RollingStd(f.Returns, StdWindowFast, 1, 1)
	f.RollingStd50 = RollingStd(f.Returns, StdWindowSlow, 1, 1)

	f.VolumeRatio = divide(volumes, RollingMean(volumes, VolumeWindow, 1))

	f.RSI = RSI(closes, RSIPeriod)
	f.RSIDivergence = Diff(f.RSI)
	f.Mom14 = ROC(closes, 14)
	f.Mom30 = ROC(closes, 30)

	macd := MACD(closes, MACDFast, MACDSlow, MACDSign)
	f.MACD, f.MACDSignal, f.MACDDiff = macd.MACD, macd.Signal, macd.Diff

	bands := Bollinger(closes, BBWindow, BBDev)
	f.BBWidth = bands.Width()
	f.BBPosition = bands.Position(closes)

	f.ATR = ATR(highs, lows, closes, ATRWindow)
	adx := ADX(highs, lows, closes, ADXWindow)
	f.ADX, f.ADXPos, f.ADXNeg = adx.ADX, adx.Pos, adx.Neg

	f.clean()
	return f
}

// divide returns a/b with a zero divisor treated as missing.
func divide(a, b []float64) []float64 {
	out := nanSlice(len(a))
	for i := range a {
		if b[i] == 0 {
			continue
		}
		out[i] = a[i] / b[i]
	}
	return out
}

func (f *Frame) columns() []*[]float64 {
	return []*[]float64{
		&f.Close, &f.Returns, &f.LogReturns, &f.RollingStd20, &f.RollingStd50, &f.VolumeRatio,
		&f.RSI, &f.RSIDivergence, &f.Mom14, &f.Mom30, &f.MACD, &f.MACDSignal, &f.MACDDiff,
		&f.BBWidth, &f.BBPosition, &f.SMA20, &f.SMA50, &f.SMARatio,
		&f.ATR, &f.ADX, &f.ADXPos, &f.ADXNeg,
	}
}

// clean replaces infinities with missing, forward-fills, back-fills and zero-fills,
// in that order.
func (f *Frame) clean() {
	for _, col := range f.columns() {
		Clean(*col)
	}
}

// Clean applies the cleanup sequence to one column in place.
func Clean(x []float64) {
	for i, v := range x {
		if math.IsInf(v, 0) {
			x[i] = math.NaN()
		}
	}
	last := math.NaN()
	for i, v := range x {
		if math.IsNaN(v) {
			x[i] = last
			continue
		}
		last = v
	}
	next := math.NaN()
	for i := len(x) - 1; i >= 0; i-- {
		if math.IsNaN(x[i]) {
			x[i] = next
			continue
		}
		next = x[i]
	}
	for i, v := range x {
		if math.IsNaN(v) {
			x[i] = 0
		}
	}
}

// Len is the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Close)
}

// At returns the feature vector of row i.
func (f *Frame) At(i int) model.FeatureVector {
	return model.FeatureVector{
		Close:         f.Close[i],
		Returns:       f.Returns[i],
		LogReturns:    f.LogReturns[i],
		RollingStd20:  f.RollingStd20[i],
		RollingStd50:  f.RollingStd50[i],
		VolumeRatio:   f.VolumeRatio[i],
		RSI:           f.RSI[i],
		RSIDivergence: f.RSIDivergence[i],
		Mom14:         f.Mom14[i],
		Mom30:         f.Mom30[i],
		MACD:          f.MACD[i],
		MACDSignal:    f.MACDSignal[i],
		MACDDiff:      f.MACDDiff[i],
		BBWidth:       f.BBWidth[i],
		BBPosition:    f.BBPosition[i],
		SMA20:         f.SMA20[i],
		SMA50:         f.SMA50[i],
		SMARatio:      f.SMARatio[i],
		ATR:           f.ATR[i],
		ADX:           f.ADX[i],
		ADXPos:        f.ADXPos[i],
		ADXNeg:        f.ADXNeg[i],
	}
}

// Latest returns the last row. ok is false for an empty frame.
func (f *Frame) Latest() (fv model.FeatureVector, ok bool) {
	if f.Len() == 0 {
		return model.FeatureVector{}, false
	}
	return f.At(f.Len() - 1), true
}
