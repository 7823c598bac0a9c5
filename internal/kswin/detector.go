// Package kswin implements a streaming concept-drift detector based on
// batteries of two-sample Kolmogorov-Smirnov tests over a sliding window,
// with Benjamini-Hochberg FDR correction, an optional confirmation phase to
// suppress transient spikes, and post-confirmation classification of the
// drift as abrupt, gradual or incremental.
package kswin

import (
	"fmt"
	"math/rand"

	"github.com/adaptml/driftwatch/internal/metric"
	"github.com/adaptml/driftwatch/internal/stats"
)

// Strategy selects how the test battery compares window subsegments.
// Strategies are exclusive: only the shifted strategy owns the confirmation
// machinery, and a detector never mixes strategies within one instance.
type Strategy int

const (
	// StrategyRandom compares the most recent StatSize values against
	// repeated uniform random subsamples of the rest of the window.
	StrategyRandom Strategy = 1
	// StrategyBlock compares the most recent StatSize values against
	// contiguous StatSize blocks from the window start.
	StrategyBlock Strategy = 2
	// StrategyShifted compares shifted copies of the window tail against a
	// fixed baseline and, on significance, enters the confirmation phase.
	StrategyShifted Strategy = 3
)

// State describes the detector's position in a drift episode.
type State string

const (
	StateMonitoring          State = "monitoring"
	StateDetected            State = "detected"
	StateConfirmationPending State = "confirmation_pending"
	StateConfirmed           State = "confirmed"
)

// DriftType classifies a confirmed drift episode.
type DriftType string

const (
	DriftUnknown     DriftType = "unknown"
	DriftGradual     DriftType = "gradual"
	DriftAbrupt      DriftType = "abrupt"
	DriftIncremental DriftType = "incremental"
)

// Config holds the detector construction parameters.
type Config struct {
	// Alpha is the significance threshold applied to FDR-corrected
	// p-values. Must lie in (0, 1).
	Alpha float64
	// WindowSize is the sliding window capacity.
	WindowSize int
	// StatSize is the subsample length used by the test batteries.
	// Must be positive and at most WindowSize/2.
	StatSize int
	// Seed drives the battery subsampling PRNG for deterministic replay.
	Seed int64
	// WindowStart is the warm-up countdown: observations consumed before
	// any window population or drift evaluation happens.
	WindowStart int
	// Alternative is the KS alternative hypothesis for the strategies
	// that honor it (random and shifted detection batteries).
	Alternative stats.Alternative
	// Strategy selects the battery layout, resolved once at construction.
	Strategy Strategy
	// Continuous marks the observations as already-continuous values.
	// When false, raw values are EWMA-smoothed (span=StatSize) through an
	// auxiliary buffer before entering the window.
	Continuous bool
	// Metric is the optional performance-metric collaborator required by
	// drift-type classification. Stored as an independent deep copy.
	Metric metric.Metric
}

// DefaultConfig mirrors the reference operating point.
func DefaultConfig() Config {
	return Config{
		Alpha:       1e-5,
		WindowSize:  3000,
		StatSize:    300,
		WindowStart: 1300,
		Alternative: stats.Greater,
		Strategy:    StrategyRandom,
	}
}

func (c Config) validate() error {
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("%w: alpha must be in (0, 1), got %g", ErrInvalidConfig, c.Alpha)
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidConfig, c.WindowSize)
	}
	if c.StatSize <= 0 || c.StatSize > c.WindowSize/2 {
		return fmt.Errorf("%w: stat size must be in (0, window_size/2], got %d", ErrInvalidConfig, c.StatSize)
	}
	if c.WindowStart < 0 {
		return fmt.Errorf("%w: window start must be non-negative, got %d", ErrInvalidConfig, c.WindowStart)
	}
	if !c.Alternative.Valid() {
		return fmt.Errorf("%w: unknown alternative %q", ErrInvalidConfig, c.Alternative)
	}
	switch c.Strategy {
	case StrategyRandom, StrategyBlock, StrategyShifted:
	default:
		return fmt.Errorf("%w: unknown strategy %d", ErrInvalidConfig, c.Strategy)
	}
	return nil
}

// Stats counts detector activity for external instrumentation. The core
// stays metrics-library-free; the serving layer maps these onto Prometheus.
type Stats struct {
	Batteries          int64 // detection batteries run
	Detections         int64 // batteries that flagged drift
	PrecheckRejections int64 // spike pre-checks that cancelled an episode
	ConfirmRejections  int64 // confirmation batteries that cancelled an episode
	Classifications    int64 // episodes that reached a drift type
}

// Detector is the drift detection engine. It is not safe for concurrent
// use; callers sharing one instance must serialize Update externally.
type Detector struct {
	cfg     Config
	rng     *rand.Rand
	battery battery

	window    *slidingWindow // observations (smoothed when !Continuous)
	smoothBuf *slidingWindow // raw pre-smoothing values
	confirm   []float64      // confirmation buffer, mode 3 only
	warmup    int

	driftFlag       bool // externally observable drift flag
	confirmed       bool // a mode-3 episode is in flight
	precheckPending bool // spike pre-check not yet run for this episode
	typed           bool // drift type already classified this episode
	driftType       DriftType

	// driftValues snapshots the window (or the smoothing buffer in
	// non-continuous mode) at the moment of detection.
	driftValues []float64

	metricRef metric.Metric
	stats     Stats
}

// New constructs a detector after validating cfg.
func New(cfg Config) (*Detector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	d := &Detector{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		window:    newSlidingWindow(cfg.WindowSize),
		smoothBuf: newSlidingWindow(cfg.WindowSize),
		warmup:    cfg.WindowStart,
		driftType: DriftUnknown,
	}
	if cfg.Metric != nil {
		d.metricRef = cfg.Metric.Clone()
	}
	d.battery = newBattery(cfg, d.rng)
	return d, nil
}

// Update processes one batch of observations. A batch longer than the
// window capacity fails with ErrBatchTooLarge and leaves all state
// unchanged. ErrMissingMetric is returned when a full confirmation buffer
// cannot be classified; the episode survives for a retry after SetMetric.
func (d *Detector) Update(batch []float64) error {
	if len(batch) > d.cfg.WindowSize {
		return ErrBatchTooLarge
	}

	// Outside a confirmed episode the flag reflects only the last step.
	if !d.confirmed {
		d.driftFlag = false
	}

	if d.warmup > 0 {
		d.warmup -= len(batch)
	} else {
		vals := batch
		if !d.cfg.Continuous {
			vals = d.smooth(batch)
		}
		d.window.push(vals)

		if d.window.full() {
			d.runDetection()
		}
	}

	if d.driftFlag && d.cfg.Strategy == StrategyShifted {
		return d.advanceConfirmation()
	}
	return nil
}

// runDetection executes the configured battery over the full window. The
// shifted strategy runs at most once per episode.
func (d *Detector) runDetection() {
	if d.cfg.Strategy == StrategyShifted && d.driftFlag {
		return
	}

	d.stats.Batteries++
	pvalues := d.battery.pvalues(d.window.values)
	corrected := stats.BenjaminiHochberg(pvalues)
	if !stats.AnySignificant(corrected, d.cfg.Alpha) {
		return
	}

	d.driftFlag = true
	d.stats.Detections++

	if d.cfg.Strategy == StrategyShifted {
		d.confirmed = true
		d.precheckPending = true
		if d.cfg.Continuous {
			d.driftValues = d.window.snapshot()
		} else {
			d.driftValues = d.smoothBuf.snapshot()
		}
	}
}

// advanceConfirmation runs the spike pre-check, grows the confirmation
// buffer, applies the confirmation battery and finally classifies the
// episode once the buffer is full.
func (d *Detector) advanceConfirmation() error {
	size := d.cfg.StatSize

	if d.precheckPending {
		// A one-step spike that reverts within StatSize values shows up
		// as the last block dominating the one before it.
		w := d.window.values
		most := w[len(w)-size:]
		previous := w[len(w)-2*size : len(w)-size]
		if _, p := stats.KS2Samp(most, previous, stats.Less); p <= d.cfg.Alpha {
			d.stats.PrecheckRejections++
			d.resetEpisode()
			return nil
		}
		d.precheckPending = false
	}

	if !d.confirmed {
		return nil
	}

	if len(d.confirm) < d.cfg.WindowSize {
		d.confirm = append(d.confirm, d.window.last(size)...)
		if len(d.confirm) > d.cfg.WindowSize {
			d.confirm = d.confirm[:d.cfg.WindowSize]
		}

		if len(d.confirm) >= 2*size {
			pvalues := make([]float64, 0, len(d.confirm)/size-1)
			most := d.confirm[len(d.confirm)-size:]
			for i := 0; i < len(d.confirm)/size-1; i++ {
				block := d.confirm[i*size : (i+1)*size]
				_, p := stats.KS2Samp(most, block, stats.Less)
				pvalues = append(pvalues, p)
			}
			corrected := stats.BenjaminiHochberg(pvalues)
			if stats.AnySignificant(corrected, d.cfg.Alpha) {
				// False positive: the signal recovered during confirmation.
				d.stats.ConfirmRejections++
				d.resetEpisode()
			}
		}
		return nil
	}

	if !d.typed {
		if err := d.classify(); err != nil {
			return err
		}
		d.typed = true
		d.stats.Classifications++
	}
	return nil
}

// resetEpisode performs the full per-episode reset applied on every
// rejection path: back to monitoring with a cleared confirmation buffer,
// cleared flag and cleared type.
func (d *Detector) resetEpisode() {
	d.driftFlag = false
	d.confirmed = false
	d.precheckPending = false
	d.typed = false
	d.driftType = DriftUnknown
	d.confirm = nil
	d.driftValues = nil
}

// smooth feeds raw values through the auxiliary buffer and returns the
// smoothed tail corresponding to the batch.
func (d *Detector) smooth(batch []float64) []float64 {
	d.smoothBuf.push(batch)
	return stats.EWMATail(d.smoothBuf.values, float64(d.cfg.StatSize), false, len(batch))
}

// smoothConfirmation smooths an already-complete series without touching
// the auxiliary buffer.
func (d *Detector) smoothConfirmation(series []float64, k int) []float64 {
	return stats.EWMATail(series, float64(d.cfg.StatSize), false, k)
}

// State derives the externally visible episode state.
func (d *Detector) State() State {
	switch {
	case d.typed:
		return StateConfirmed
	case d.confirmed && d.driftFlag:
		return StateConfirmationPending
	case d.driftFlag:
		return StateDetected
	default:
		return StateMonitoring
	}
}

// DriftDetected reports the externally observable drift flag.
func (d *Detector) DriftDetected() bool { return d.driftFlag }

// SetDriftDetected overrides the drift flag, e.g. to acknowledge a
// detection. The boolean-typed signature enforces statically what the
// reference implementation validated at runtime.
func (d *Detector) SetDriftDetected(v bool) { d.driftFlag = v }

// Type returns the classified drift type, DriftUnknown until an episode
// is confirmed and classified.
func (d *Detector) Type() DriftType { return d.driftType }

// Metric returns the detector's metric collaborator, possibly nil.
func (d *Detector) Metric() metric.Metric { return d.metricRef }

// SetMetric stores an independent deep copy of m. A nil metric clears the
// reference; classification then fails with ErrMissingMetric.
func (d *Detector) SetMetric(m metric.Metric) {
	if m == nil {
		d.metricRef = nil
		return
	}
	d.metricRef = m.Clone()
}

// DriftValues returns a copy of the buffer snapshot taken at detection,
// or nil outside an episode.
func (d *Detector) DriftValues() []float64 {
	if d.driftValues == nil {
		return nil
	}
	out := make([]float64, len(d.driftValues))
	copy(out, d.driftValues)
	return out
}

// Stats returns a copy of the activity counters.
func (d *Detector) Stats() Stats { return d.stats }

// WindowLen returns the current window population.
func (d *Detector) WindowLen() int { return d.window.len() }

// WarmupRemaining returns how many observations the warm-up countdown
// will still consume; zero once the detector populates its window.
func (d *Detector) WarmupRemaining() int {
	if d.warmup < 0 {
		return 0
	}
	return d.warmup
}

// Reset restores the detector to its freshly constructed state: empty
// window and buffers, restarted warm-up, re-seeded PRNG.
func (d *Detector) Reset() {
	d.window.reset()
	d.smoothBuf.reset()
	d.resetEpisode()
	d.warmup = d.cfg.WindowStart
	d.rng = rand.New(rand.NewSource(d.cfg.Seed))
	d.battery = newBattery(d.cfg, d.rng)
}
