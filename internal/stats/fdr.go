package stats

import "sort"

// BenjaminiHochberg applies the Benjamini-Hochberg false-discovery-rate
// correction to a battery of raw p-values and returns the adjusted p-values
// in the original order.
//
// adjusted[i] = min over ranks j >= rank(i) of p[j] * n / (j+1), capped at 1.
// Each adjusted value is therefore >= its raw counterpart and the adjusted
// sequence is non-decreasing when sorted by raw p-value.
func BenjaminiHochberg(pvalues []float64) []float64 {
	n := len(pvalues)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return pvalues[order[a]] < pvalues[order[b]]
	})

	adjusted := make([]float64, n)
	running := 1.0
	for rank := n - 1; rank >= 0; rank-- {
		idx := order[rank]
		v := pvalues[idx] * float64(n) / float64(rank+1)
		if v > running {
			v = running
		} else {
			running = v
		}
		if v > 1 {
			v = 1
		}
		adjusted[idx] = v
	}
	return adjusted
}

// AnySignificant reports whether any adjusted p-value is at or below alpha.
func AnySignificant(adjusted []float64, alpha float64) bool {
	for _, p := range adjusted {
		if p <= alpha {
			return true
		}
	}
	return false
}
