package stats

import (
	"sort"
	"testing"
)

func TestBenjaminiHochberg_Monotone(t *testing.T) {
	raw := []float64{0.01, 0.04, 0.03, 0.005, 0.2, 0.5, 0.8}
	adj := BenjaminiHochberg(raw)

	if len(adj) != len(raw) {
		t.Fatalf("Expected %d adjusted values, got %d", len(raw), len(adj))
	}

	// Each adjusted p-value is at least its raw counterpart.
	for i := range raw {
		if adj[i] < raw[i] {
			t.Errorf("adjusted[%d]=%f below raw %f", i, adj[i], raw[i])
		}
		if adj[i] > 1 {
			t.Errorf("adjusted[%d]=%f exceeds 1", i, adj[i])
		}
	}

	// Sorted by raw value, adjusted values are non-decreasing.
	order := make([]int, len(raw))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return raw[order[a]] < raw[order[b]] })
	for k := 1; k < len(order); k++ {
		if adj[order[k]] < adj[order[k-1]] {
			t.Errorf("adjusted values not monotone in sorted order: %f then %f",
				adj[order[k-1]], adj[order[k]])
		}
	}
}

func TestBenjaminiHochberg_KnownValues(t *testing.T) {
	// Classic worked example: p = {0.01, 0.02, 0.03, 0.04}, n=4.
	// adj = {0.04, 0.04, 0.04, 0.04}.
	raw := []float64{0.01, 0.02, 0.03, 0.04}
	adj := BenjaminiHochberg(raw)
	for i, want := range []float64{0.04, 0.04, 0.04, 0.04} {
		if diff := adj[i] - want; diff > 1e-12 || diff < -1e-12 {
			t.Errorf("adjusted[%d] = %f, want %f", i, adj[i], want)
		}
	}
}

func TestBenjaminiHochberg_Empty(t *testing.T) {
	if adj := BenjaminiHochberg(nil); adj != nil {
		t.Errorf("Expected nil for empty input, got %v", adj)
	}
}

func TestAnySignificant(t *testing.T) {
	if AnySignificant([]float64{0.5, 0.2, 0.09}, 0.05) {
		t.Error("No value at or below alpha, expected false")
	}
	if !AnySignificant([]float64{0.5, 0.05, 0.2}, 0.05) {
		t.Error("Value equal to alpha should count as significant")
	}
}
