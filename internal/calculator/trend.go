package calculator

import "math"

// MACDResult holds the MACD line, its signal line and their difference.
type MACDResult struct {
	MACD   []float64
	Signal []float64
	Diff   []float64
}

// MACD computes fast/slow EMA crossover columns. Each EMA is undefined until
// its span worth of observations has been seen.
func MACD(closes []float64, fast, slow, sign int) MACDResult {
	emaFast := EWM(closes, SpanAlpha(fast), fast)
	emaSlow := EWM(closes, SpanAlpha(slow), slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}
	signal := EWM(line, SpanAlpha(sign), sign)
	diff := make([]float64, len(closes))
	for i := range closes {
		diff[i] = line[i] - signal[i]
	}
	return MACDResult{MACD: line, Signal: signal, Diff: diff}
}

// TrueRange uses the previous close; the first bar falls back to high-low.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		hl := highs[i] - lows[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		pc := closes[i-1]
		out[i] = math.Max(hl, math.Max(math.Abs(highs[i]-pc), math.Abs(lows[i]-pc)))
	}
	return out
}

// ATR is Wilder's average true range. Slots before the first full window are zero.
func ATR(highs, lows, closes []float64, window int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if window <= 0 || n < window {
		return out
	}
	tr := TrueRange(highs, lows, closes)
	sum := 0.0
	for _, v := range tr[:window] {
		sum += v
	}
	out[window-1] = sum / float64(window)
	w := float64(window)
	for i := window; i < n; i++ {
		out[i] = (out[i-1]*(w-1) + tr[i]) / w
	}
	return out
}

// ADXResult holds the average directional index and its +DI/-DI components.
type ADXResult struct {
	ADX []float64
	Pos []float64
	Neg []float64
}

// ADX computes the Wilder directional movement system. The layout of the
// output (zero-filled warm-up, smoothing sums that skip the newest bar)
// matches the reference ta implementation so features line up with the
// models trained on it. Fewer than 2*window bars returns all zeros.
func ADX(highs, lows, closes []float64, window int) ADXResult {
	n := len(closes)
	res := ADXResult{ADX: make([]float64, n), Pos: make([]float64, n), Neg: make([]float64, n)}
	if window <= 0 || n < 2*window {
		return res
	}

	tr := make([]float64, n)
	pdm := make([]float64, n)
	ndm := make([]float64, n)
	for i := 1; i < n; i++ {
		tr[i] = math.Max(highs[i], closes[i-1]) - math.Min(lows[i], closes[i-1])
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			pdm[i] = up
		}
		if down > up && down > 0 {
			ndm[i] = down
		}
	}

	w := float64(window)
	m := n - (window - 1)
	smooth := func(x []float64) []float64 {
		s := make([]float64, m)
		for _, v := range x[1 : window+1] {
			s[0] += v
		}
		for i := 1; i < m-1; i++ {
			s[i] = s[i-1] - s[i-1]/w + x[window+i]
		}
		return s
	}
	trs := smooth(tr)
	dip := smooth(pdm)
	din := smooth(ndm)

	dx := make([]float64, m)
	for i := 0; i < m; i++ {
		p := 100 * dip[i] / trs[i]
		q := 100 * din[i] / trs[i]
		dx[i] = 100 * math.Abs((p-q)/(p+q))
	}

	adx := make([]float64, m)
	sum := 0.0
	for _, v := range dx[:window] {
		sum += v
	}
	adx[window] = sum / w
	for i := window + 1; i < m; i++ {
		adx[i] = (adx[i-1]*(w-1) + dx[i-1]) / w
	}
	copy(res.ADX[window-1:], adx)

	for i := 1; i < m-1; i++ {
		res.Pos[i+window] = 100 * dip[i] / trs[i]
		res.Neg[i+window] = 100 * din[i] / trs[i]
	}
	return res
}
