package stats

import (
	"math"
	"sort"
)

// Alternative selects the alternative hypothesis of the two-sample KS test.
// Semantics follow the usual convention: "greater" tests whether the CDF of
// the first sample lies above the CDF of the second (first sample
// stochastically smaller), "less" the reverse, "two-sided" either direction.
type Alternative string

const (
	TwoSided Alternative = "two-sided"
	Greater  Alternative = "greater"
	Less     Alternative = "less"
)

// Valid reports whether a is a recognized alternative.
func (a Alternative) Valid() bool {
	switch a {
	case TwoSided, Greater, Less:
		return true
	}
	return false
}

// KS2Samp performs the two-sample Kolmogorov-Smirnov test and returns the
// test statistic D and an asymptotic p-value.
//
// The statistic is the signed supremum of CDF differences evaluated at every
// data point: "greater" uses max(F1-F2), "less" uses max(F2-F1), "two-sided"
// the larger of the two. P-values use the Kolmogorov series for the
// two-sided case and Hodges' approximation for the one-sided cases.
//
// Degenerate inputs (an empty sample) are tolerated: the result is
// (0, 1), i.e. never significant.
func KS2Samp(data1, data2 []float64, alternative Alternative) (float64, float64) {
	n1, n2 := len(data1), len(data2)
	if n1 == 0 || n2 == 0 {
		return 0, 1
	}

	s1 := make([]float64, n1)
	s2 := make([]float64, n2)
	copy(s1, data1)
	copy(s2, data2)
	sort.Float64s(s1)
	sort.Float64s(s2)

	// Walk the merged order statistics and track the signed CDF difference
	// F1(x) - F2(x) after each step.
	var maxPlus, maxMinus float64 // max(F1-F2), max(F2-F1)
	i, j := 0, 0
	for i < n1 || j < n2 {
		var v float64
		switch {
		case i >= n1:
			v = s2[j]
		case j >= n2:
			v = s1[i]
		case s1[i] < s2[j]:
			v = s1[i]
		default:
			v = s2[j]
		}
		for i < n1 && s1[i] <= v {
			i++
		}
		for j < n2 && s2[j] <= v {
			j++
		}
		diff := float64(i)/float64(n1) - float64(j)/float64(n2)
		if diff > maxPlus {
			maxPlus = diff
		}
		if -diff > maxMinus {
			maxMinus = -diff
		}
	}

	var d float64
	switch alternative {
	case Greater:
		d = maxPlus
	case Less:
		d = maxMinus
	default:
		d = math.Max(maxPlus, maxMinus)
	}

	p := ksPValue(d, n1, n2, alternative)
	if math.IsNaN(p) {
		// Degenerate numerics are treated as non-significant.
		return d, 1
	}
	return d, p
}

// ksPValue computes the asymptotic p-value for the KS statistic d.
func ksPValue(d float64, n1, n2 int, alternative Alternative) float64 {
	if d <= 0 {
		return 1
	}
	f1, f2 := float64(n1), float64(n2)
	en := f1 * f2 / (f1 + f2)

	if alternative == TwoSided {
		return kolmogorovSF(math.Sqrt(en) * d)
	}

	// Hodges' one-sided approximation.
	m, n := math.Max(f1, f2), math.Min(f1, f2)
	z := math.Sqrt(en) * d
	expt := -2*z*z - 2*z*(m+2*n)/math.Sqrt(m*n*(m+n))/3.0
	p := math.Exp(expt)
	return clamp01(p)
}

// kolmogorovSF evaluates the Kolmogorov distribution survival function
// P(D > lambda) = 2 * sum_{k>=1} (-1)^{k-1} exp(-2 k^2 lambda^2),
// truncated after the terms become negligible.
func kolmogorovSF(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}
	sum := 0.0
	for k := 1; k <= 100; k++ {
		term := math.Exp(-2 * float64(k*k) * lambda * lambda)
		if k%2 == 0 {
			term = -term
		}
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
	}
	return clamp01(2 * sum)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
