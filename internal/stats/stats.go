// Package stats holds the numeric helpers shared by chart construction and
// insight generation. Sample statistics use the n-1 denominator.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func Sum(xs []float64) float64 { return floats.Sum(xs) }

// Mean returns NaN for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// Variance is the sample variance; NaN below two values.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Variance(xs, nil)
}

// StdDev is the sample standard deviation; NaN below two values.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

// Skew is the adjusted Fisher-Pearson skewness. It is undefined below three
// values or for a constant series.
func Skew(xs []float64) (float64, bool) {
	if len(xs) < 3 || StdDev(xs) == 0 {
		return 0, false
	}
	s := stat.Skew(xs, nil)
	return s, !math.IsNaN(s) && !math.IsInf(s, 0)
}

// Correlation is the Pearson coefficient of two equally long series. It is
// undefined below two points or when either series is constant.
func Correlation(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	if StdDev(x) == 0 || StdDev(y) == 0 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

// Trend fits y against its position 0..n-1 and returns the slope and the
// coefficient of determination.
func Trend(ys []float64) (slope, r2 float64, ok bool) {
	if len(ys) < 2 {
		return 0, 0, false
	}
	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 = stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return beta, 0, false
	}
	return beta, r2, true
}

// Quantile interpolates linearly between closest ranks of an ascending
// slice.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Sorted returns an ascending copy.
func Sorted(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	sort.Float64s(out)
	return out
}

// IQROutliers counts values outside [Q1-k*IQR, Q3+k*IQR].
func IQROutliers(xs []float64, k float64) int {
	if len(xs) == 0 {
		return 0
	}
	s := Sorted(xs)
	q1, q3 := Quantile(s, 0.25), Quantile(s, 0.75)
	iqr := q3 - q1
	lo, hi := q1-k*iqr, q3+k*iqr
	n := 0
	for _, v := range xs {
		if v < lo || v > hi {
			n++
		}
	}
	return n
}

// PctChange returns fractional change between consecutive values. The first
// element, and any step from zero, is NaN.
func PctChange(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if i == 0 || xs[i-1] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (xs[i] - xs[i-1]) / xs[i-1]
	}
	return out
}

// Diff returns first differences; the first element is NaN.
func Diff(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = xs[i] - xs[i-1]
	}
	return out
}

// FiniteMean averages the finite values, reporting false if there are none.
func FiniteMean(xs []float64) (float64, bool) {
	var sum float64
	n := 0
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// RollingStdMean is the mean of the sample standard deviation over every
// full window of the given size.
func RollingStdMean(xs []float64, window int) (float64, bool) {
	if window < 2 || len(xs) < window {
		return 0, false
	}
	stds := make([]float64, 0, len(xs)-window+1)
	for i := window; i <= len(xs); i++ {
		stds = append(stds, StdDev(xs[i-window:i]))
	}
	return FiniteMean(stds)
}

// MaxIndex returns the index of the first maximum, or -1.
func MaxIndex(xs []float64) int {
	best := -1
	for i, v := range xs {
		if best < 0 || v > xs[best] {
			best = i
		}
	}
	return best
}

// MinIndex returns the index of the first minimum, or -1.
func MinIndex(xs []float64) int {
	best := -1
	for i, v := range xs {
		if best < 0 || v < xs[best] {
			best = i
		}
	}
	return best
}
