package calculator

import "math"

// Column primitives follow pandas semantics: NaN marks a missing value and a
// window only produces output once it holds minPeriods non-missing values.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// PctChange returns x[i]/x[i-1]-1 with NaN in the first slot.
func PctChange(x []float64, periods int) []float64 {
	out := nanSlice(len(x))
	for i := periods; i < len(x); i++ {
		out[i] = x[i]/x[i-periods] - 1
	}
	return out
}

// Diff returns x[i]-x[i-1] with NaN in the first slot.
func Diff(x []float64) []float64 {
	out := nanSlice(len(x))
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - x[i-1]
	}
	return out
}

// RollingMean is the trailing mean over window values.
func RollingMean(x []float64, window, minPeriods int) []float64 {
	return rolling(x, window, minPeriods, func(v []float64) float64 {
		sum := 0.0
		for _, f := range v {
			sum += f
		}
		return sum / float64(len(v))
	})
}

// RollingStd is the trailing standard deviation with the given delta degrees of freedom.
func RollingStd(x []float64, window, minPeriods, ddof int) []float64 {
	return rolling(x, window, minPeriods, func(v []float64) float64 {
		return stddev(v, ddof)
	})
}

// RollingMax is the trailing maximum.
func RollingMax(x []float64, window, minPeriods int) []float64 {
	return rolling(x, window, minPeriods, func(v []float64) float64 {
		m := math.Inf(-1)
		for _, f := range v {
			m = math.Max(m, f)
		}
		return m
	})
}

// RollingMin is the trailing minimum.
func RollingMin(x []float64, window, minPeriods int) []float64 {
	return rolling(x, window, minPeriods, func(v []float64) float64 {
		m := math.Inf(1)
		for _, f := range v {
			m = math.Min(m, f)
		}
		return m
	})
}

func rolling(x []float64, window, minPeriods int, agg func([]float64) float64) []float64 {
	out := nanSlice(len(x))
	if window <= 0 {
		return out
	}
	if minPeriods < 1 {
		minPeriods = 1
	}
	buf := make([]float64, 0, window)
	for i := range x {
		buf = buf[:0]
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		for _, f := range x[start : i+1] {
			if !math.IsNaN(f) {
				buf = append(buf, f)
			}
		}
		if len(buf) >= minPeriods {
			out[i] = agg(buf)
		}
	}
	return out
}

func stddev(v []float64, ddof int) float64 {
	n := len(v)
	if n-ddof <= 0 {
		return math.NaN()
	}
	mean := 0.0
	for _, f := range v {
		mean += f
	}
	mean /= float64(n)
	ss := 0.0
	for _, f := range v {
		ss += (f - mean) * (f - mean)
	}
	return math.Sqrt(ss / float64(n-ddof))
}

// EWM is an exponentially weighted mean with adjust=False. Leading missing
// values are skipped; an interior missing value repeats the previous mean.
func EWM(x []float64, alpha float64, minPeriods int) []float64 {
	out := nanSlice(len(x))
	var (
		mean  float64
		count int
	)
	for i, f := range x {
		if math.IsNaN(f) {
			if count >= minPeriods && count > 0 {
				out[i] = mean
			}
			continue
		}
		if count == 0 {
			mean = f
		} else {
			mean = (1-alpha)*mean + alpha*f
		}
		count++
		if count >= minPeriods {
			out[i] = mean
		}
	}
	return out
}

// SpanAlpha converts an EWM span into its smoothing factor.
func SpanAlpha(span int) float64 { return 2 / (float64(span) + 1) }
