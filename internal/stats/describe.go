package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// StdDev returns the sample standard deviation of xs, or 0 when fewer than
// two values are available.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

// SilvermanBandwidth returns the rule-of-thumb kernel bandwidth
// 1.06 * sigma * n^(-1/5) for xs. Constant-valued samples would yield a
// zero bandwidth, so a floor of 1 is applied.
func SilvermanBandwidth(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 1
	}
	h := 1.06 * StdDev(xs) * math.Pow(float64(n), -0.2)
	if h <= 0 {
		return 1
	}
	return h
}
