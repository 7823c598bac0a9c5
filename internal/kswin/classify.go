package kswin

import (
	"math"
	"math/rand"

	"github.com/adaptml/driftwatch/internal/stats"
)

// simulationSeed fixes the degradation simulation PRNG so repeated
// classifications of the same confirmation buffer agree.
const simulationSeed = 123

// classify determines the drift type from a full confirmation buffer.
//
// A rising trend in the first half of the buffer (estimated by local-linear
// kernel regression) marks the drift as gradual. Otherwise a hypothetical
// abrupt degradation is simulated through a fresh copy of the metric
// collaborator and compared against the buffer: a significant difference
// marks the drift abrupt, agreement marks it incremental.
func (d *Detector) classify() error {
	if d.metricRef == nil {
		return ErrMissingMetric
	}
	size := d.cfg.StatSize

	// Slopes within float noise of zero (scaled to the signal magnitude)
	// must not count as a rising trend.
	firstHalf := d.confirm[:d.cfg.WindowSize/2]
	eps := 0.0
	for _, y := range firstHalf {
		if a := math.Abs(y); a > eps {
			eps = a
		}
	}
	eps *= 1e-9
	for _, slope := range kernelDerivatives(firstHalf) {
		if slope > eps {
			d.driftType = DriftGradual
			return nil
		}
	}

	// Simulate the metric under a sustained 60/40 correct/incorrect regime.
	sim := rand.New(rand.NewSource(simulationSeed))
	m := d.metricRef.Clone()
	trace := make([]float64, 0, size-1)
	for i := 1; i < size; i++ {
		if sim.Float64() < 0.6 {
			m.Update(1, 1)
		} else {
			m.Update(1, 0)
		}
		trace = append(trace, m.Get())
	}
	smoothed := d.smoothConfirmation(trace, size)

	_, p := stats.KS2Samp(d.confirm[size:2*size], smoothed, stats.Greater)
	if p < 0.05 {
		d.driftType = DriftAbrupt
	} else {
		d.driftType = DriftIncremental
	}
	return nil
}

// kernelDerivatives fits a local-linear Gaussian-kernel regression of value
// against index and returns the pointwise slope estimates. The bandwidth
// follows Silverman's rule over the index axis.
func kernelDerivatives(ys []float64) []float64 {
	n := len(ys)
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	h := stats.SilvermanBandwidth(xs)

	// Center the response first: a constant series then contributes exact
	// zeros instead of cancellation noise of order 1e-16.
	mu := stats.Mean(ys)

	for k, x0 := range xs {
		var s0, s1, s2, t0, t1 float64
		for i, xi := range xs {
			u := (xi - x0) / h
			w := math.Exp(-0.5 * u * u)
			dx := xi - x0
			yc := ys[i] - mu
			s0 += w
			s1 += w * dx
			s2 += w * dx * dx
			t0 += w * yc
			t1 += w * dx * yc
		}
		denom := s0*s2 - s1*s1
		if math.Abs(denom) > 1e-12 {
			out[k] = (s0*t1 - s1*t0) / denom
		}
	}
	return out
}
