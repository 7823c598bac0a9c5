package kswin

import (
	"math/rand"

	"github.com/adaptml/driftwatch/internal/stats"
)

// battery produces the raw p-values of one detection step over a full
// window. Each strategy is resolved once at construction.
type battery interface {
	pvalues(window []float64) []float64
}

func newBattery(cfg Config, rng *rand.Rand) battery {
	switch cfg.Strategy {
	case StrategyBlock:
		return &blockBattery{windowSize: cfg.WindowSize, statSize: cfg.StatSize}
	case StrategyShifted:
		return &shiftedBattery{
			windowSize:  cfg.WindowSize,
			statSize:    cfg.StatSize,
			alternative: cfg.Alternative,
		}
	default:
		return &randomBattery{
			windowSize:  cfg.WindowSize,
			statSize:    cfg.StatSize,
			alternative: cfg.Alternative,
			rng:         rng,
		}
	}
}

// randomBattery tests the window tail against StatSize uniform random
// subsamples (without replacement) of the remaining window.
type randomBattery struct {
	windowSize  int
	statSize    int
	alternative stats.Alternative
	rng         *rand.Rand
}

func (b *randomBattery) pvalues(window []float64) []float64 {
	mostRecent := window[b.windowSize-b.statSize:]
	pvalues := make([]float64, 0, b.statSize)
	sample := make([]float64, b.statSize)

	for i := 0; i < b.statSize; i++ {
		perm := b.rng.Perm(b.windowSize - b.statSize)
		for j := 0; j < b.statSize; j++ {
			sample[j] = window[perm[j]]
		}
		_, p := stats.KS2Samp(mostRecent, sample, b.alternative)
		pvalues = append(pvalues, p)
	}
	return pvalues
}

// blockBattery tests the window tail against contiguous StatSize blocks
// taken from the window start. The alternative is fixed to "greater": drift
// shows up as the tail distribution falling below the historical blocks.
type blockBattery struct {
	windowSize int
	statSize   int
}

func (b *blockBattery) pvalues(window []float64) []float64 {
	mostRecent := window[b.windowSize-b.statSize:]
	blocks := b.windowSize/b.statSize - 1
	pvalues := make([]float64, 0, blocks)

	for i := 0; i < blocks; i++ {
		block := window[i*b.statSize : (i+1)*b.statSize]
		_, p := stats.KS2Samp(mostRecent, block, stats.Greater)
		pvalues = append(pvalues, p)
	}
	return pvalues
}

// shiftedBattery fixes the first WindowSize-StatSize values as the baseline
// and tests equally long windows shifted by 0..StatSize-1 against it.
type shiftedBattery struct {
	windowSize  int
	statSize    int
	alternative stats.Alternative
}

func (b *shiftedBattery) pvalues(window []float64) []float64 {
	baselineLen := b.windowSize - b.statSize
	baseline := window[:baselineLen]
	pvalues := make([]float64, 0, b.statSize)

	for i := 0; i < b.statSize; i++ {
		shifted := window[i : baselineLen+i]
		_, p := stats.KS2Samp(shifted, baseline, b.alternative)
		pvalues = append(pvalues, p)
	}
	return pvalues
}
