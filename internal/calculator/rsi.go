package calculator

import "math"

// RSI computes the Wilder-smoothed RSI column. Gains and losses are averaged
// with an EWM of alpha=1/period, undefined until period observations exist.
// A zero average loss yields 100.
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	if period <= 0 {
		return nanSlice(n)
	}
	diff := Diff(closes)
	up := make([]float64, n)
	dn := make([]float64, n)
	for i, d := range diff {
		if d > 0 {
			up[i] = d
		}
		if d < 0 {
			dn[i] = -d
		}
	}
	alpha := 1 / float64(period)
	avgUp := EWM(up, alpha, period)
	avgDn := EWM(dn, alpha, period)

	out := nanSlice(n)
	for i := range out {
		if math.IsNaN(avgUp[i]) || math.IsNaN(avgDn[i]) {
			continue
		}
		if avgDn[i] == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+avgUp[i]/avgDn[i])
	}
	return out
}

// ROC is the percentage rate of change over window bars.
func ROC(closes []float64, window int) []float64 {
	out := nanSlice(len(closes))
	for i := window; i < len(closes); i++ {
		prev := closes[i-window]
		out[i] = (closes[i] - prev) / prev * 100
	}
	return out
}
