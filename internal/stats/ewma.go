package stats

// EWMA computes the exponentially weighted moving average of xs with the
// given decay span, returning a smoothed series of equal length.
//
// The smoothing factor is alpha = 2/(span+1). With adjust=false the series
// follows the plain recurrence y[0]=x[0], y[t] = (1-alpha)*y[t-1] +
// alpha*x[t]. With adjust=true the weights are renormalized over the
// available history (bias-corrected weighted average):
//
//	y[t] = sum_{i=0..t} (1-alpha)^i * x[t-i] / sum_{i=0..t} (1-alpha)^i
func EWMA(xs []float64, span float64, adjust bool) []float64 {
	if len(xs) == 0 {
		return nil
	}
	alpha := 2 / (span + 1)
	decay := 1 - alpha
	out := make([]float64, len(xs))

	if adjust {
		var num, den float64
		for i, x := range xs {
			num = num*decay + x
			den = den*decay + 1
			out[i] = num / den
		}
		return out
	}

	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = decay*out[i-1] + alpha*xs[i]
	}
	return out
}

// EWMATail smooths xs and returns only the trailing k values. If k exceeds
// the series length the whole smoothed series is returned.
func EWMATail(xs []float64, span float64, adjust bool, k int) []float64 {
	smoothed := EWMA(xs, span, adjust)
	if k >= len(smoothed) {
		return smoothed
	}
	return smoothed[len(smoothed)-k:]
}
