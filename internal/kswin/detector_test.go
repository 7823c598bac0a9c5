package kswin

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/adaptml/driftwatch/internal/metric"
	"github.com/adaptml/driftwatch/internal/stats"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WindowSize = 120
	cfg.StatSize = 30
	cfg.WindowStart = 0
	cfg.Alpha = 0.01
	cfg.Continuous = true
	return cfg
}

func constantBatch(value float64, n int) []float64 {
	batch := make([]float64, n)
	for i := range batch {
		batch[i] = value
	}
	return batch
}

func TestNew_ConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"alpha_zero", func(c *Config) { c.Alpha = 0 }},
		{"alpha_one", func(c *Config) { c.Alpha = 1 }},
		{"window_zero", func(c *Config) { c.WindowSize = 0 }},
		{"stat_zero", func(c *Config) { c.StatSize = 0 }},
		{"stat_too_large", func(c *Config) { c.StatSize = c.WindowSize/2 + 1 }},
		{"negative_warmup", func(c *Config) { c.WindowStart = -1 }},
		{"bad_alternative", func(c *Config) { c.Alternative = "sideways" }},
		{"bad_strategy", func(c *Config) { c.Strategy = 7 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if _, err := New(testConfig()); err != nil {
		t.Errorf("Valid config rejected: %v", err)
	}
}

func TestUpdate_BatchTooLarge(t *testing.T) {
	d, _ := New(testConfig())
	if err := d.Update(constantBatch(1, 30)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	before := d.WindowLen()

	err := d.Update(constantBatch(1, 121))
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("Expected ErrBatchTooLarge, got %v", err)
	}
	if d.WindowLen() != before {
		t.Errorf("Window mutated by rejected batch: %d -> %d", before, d.WindowLen())
	}
	if d.State() != StateMonitoring {
		t.Errorf("State mutated by rejected batch: %s", d.State())
	}
}

func TestWindow_NeverExceedsCapacity(t *testing.T) {
	cfg := testConfig()
	d, _ := New(cfg)
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 200; step++ {
		n := 1 + rng.Intn(cfg.WindowSize)
		batch := make([]float64, n)
		for i := range batch {
			batch[i] = rng.NormFloat64()
		}
		if err := d.Update(batch); err != nil {
			t.Fatalf("Update failed at step %d: %v", step, err)
		}
		if d.WindowLen() > cfg.WindowSize {
			t.Fatalf("Window grew to %d beyond capacity %d", d.WindowLen(), cfg.WindowSize)
		}
	}
}

func TestWarmup_DropsBatches(t *testing.T) {
	cfg := testConfig()
	cfg.WindowStart = 40
	d, _ := New(cfg)

	// Two 20-value batches are consumed by the warm-up countdown.
	if got := d.WarmupRemaining(); got != 40 {
		t.Errorf("WarmupRemaining = %d before any batch, want 40", got)
	}
	d.Update(constantBatch(1, 20))
	if got := d.WarmupRemaining(); got != 20 {
		t.Errorf("WarmupRemaining = %d after one batch, want 20", got)
	}
	d.Update(constantBatch(1, 20))
	if d.WindowLen() != 0 {
		t.Errorf("Window populated during warm-up: %d values", d.WindowLen())
	}
	if got := d.WarmupRemaining(); got != 0 {
		t.Errorf("WarmupRemaining = %d after countdown, want 0", got)
	}

	d.Update(constantBatch(1, 20))
	if d.WindowLen() != 20 {
		t.Errorf("Expected 20 values after warm-up, got %d", d.WindowLen())
	}
}

// Scenario A: a stationary constant stream never flags drift.
func TestScenarioA_StationaryStream(t *testing.T) {
	cfg := testConfig()
	cfg.WindowSize = 100
	cfg.StatSize = 20
	cfg.Alpha = 1e-5
	cfg.WindowStart = 40
	d, _ := New(cfg)

	for step := 0; step < 30; step++ {
		if err := d.Update(constantBatch(1.0, 20)); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if d.DriftDetected() {
			t.Fatalf("False drift flag on constant stream at step %d", step)
		}
	}
	if d.State() != StateMonitoring {
		t.Errorf("Expected Monitoring, got %s", d.State())
	}
}

// Scenario B: a large downward level shift is flagged within StatSize steps.
func TestScenarioB_LevelShiftDetected(t *testing.T) {
	cfg := testConfig()
	cfg.WindowSize = 100
	cfg.StatSize = 20
	cfg.Alpha = 1e-5
	d, _ := New(cfg)

	for step := 0; step < 5; step++ {
		d.Update(constantBatch(1.0, 20))
	}
	if d.DriftDetected() {
		t.Fatal("Drift flagged before the shift")
	}

	detected := false
	for step := 0; step < cfg.StatSize; step++ {
		d.Update(constantBatch(0.0, 20))
		if d.DriftDetected() {
			detected = true
			break
		}
	}
	if !detected {
		t.Error("Level shift not detected within StatSize steps")
	}
	if d.State() != StateDetected {
		t.Errorf("Expected Detected, got %s", d.State())
	}
}

func TestBlockStrategy_DetectsShift(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = StrategyBlock
	cfg.Alpha = 1e-5
	d, _ := New(cfg)

	for step := 0; step < 4; step++ {
		d.Update(constantBatch(1.0, 30))
	}
	d.Update(constantBatch(0.0, 30))
	if !d.DriftDetected() {
		t.Error("Block battery missed a full-block level shift")
	}

	// Modes without confirmation never self-reset into an episode.
	if d.State() != StateDetected {
		t.Errorf("Expected Detected, got %s", d.State())
	}
}

// Scenario C: a sustained shift under the shifted strategy survives the
// pre-check and the confirmation battery and ends classified.
func TestScenarioC_ShiftedStrategyConfirms(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = StrategyShifted
	cfg.Metric = metric.NewAccuracy()
	d, _ := New(cfg)

	for step := 0; step < 4; step++ {
		d.Update(constantBatch(1.0, 30))
	}

	// Sustained degradation: keep feeding the new regime until the
	// confirmation buffer fills and classification runs.
	for step := 0; step < 12 && d.State() != StateConfirmed; step++ {
		if err := d.Update(constantBatch(0.0, 30)); err != nil {
			t.Fatalf("Update failed at step %d: %v", step, err)
		}
	}

	if d.State() != StateConfirmed {
		t.Fatalf("Expected Confirmed, got %s", d.State())
	}
	if d.Type() == DriftUnknown {
		t.Error("Confirmed episode left the drift type Unknown")
	}
	if d.Type() != DriftAbrupt {
		t.Errorf("Hard level shift should classify Abrupt, got %s", d.Type())
	}
	if d.DriftValues() == nil {
		t.Error("Detection snapshot missing after a confirmed episode")
	}

	s := d.Stats()
	if s.Detections != 1 || s.Classifications != 1 {
		t.Errorf("Stats = %+v, want one detection and one classification", s)
	}
}

// A one-step upward spike is cancelled by the pre-check in the same step.
func TestShiftedStrategy_SpikePrecheck(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = StrategyShifted
	cfg.Alternative = stats.TwoSided
	d, _ := New(cfg)

	for step := 0; step < 3; step++ {
		d.Update(constantBatch(1.0, 30))
	}
	// Spike: the final block jumps while the rest of the window holds.
	if err := d.Update(constantBatch(2.0, 30)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if d.State() != StateMonitoring {
		t.Errorf("Expected pre-check to restore Monitoring, got %s", d.State())
	}
	if d.DriftDetected() {
		t.Error("Drift flag survived the pre-check rejection")
	}
	s := d.Stats()
	if s.Detections != 1 || s.PrecheckRejections != 1 {
		t.Errorf("Stats = %+v, want one detection and one pre-check rejection", s)
	}
}

// A dip that recovers during confirmation is rejected by the battery and
// fully resets the episode, including the type latch.
func TestShiftedStrategy_ConfirmationRejection(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = StrategyShifted
	d, _ := New(cfg)

	for step := 0; step < 3; step++ {
		d.Update(constantBatch(1.0, 30))
	}
	d.Update(constantBatch(0.0, 30)) // dip: detection fires, pre-check passes
	if d.State() != StateConfirmationPending {
		t.Fatalf("Expected ConfirmationPending after dip, got %s", d.State())
	}

	d.Update(constantBatch(1.0, 30)) // recovery
	if d.State() != StateMonitoring {
		t.Errorf("Expected full reset after recovery, got %s", d.State())
	}
	if d.Type() != DriftUnknown {
		t.Errorf("Type latch not cleared on rejection: %s", d.Type())
	}
	if s := d.Stats(); s.ConfirmRejections != 1 {
		t.Errorf("Stats = %+v, want one confirmation rejection", s)
	}
}

// Classification without a metric fails but preserves the episode; setting
// a metric afterwards lets the next step classify.
func TestShiftedStrategy_MissingMetricRetry(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = StrategyShifted
	d, _ := New(cfg)

	for step := 0; step < 4; step++ {
		d.Update(constantBatch(1.0, 30))
	}

	var sawMissing bool
	for step := 0; step < 12 && d.State() != StateConfirmed; step++ {
		err := d.Update(constantBatch(0.0, 30))
		if errors.Is(err, ErrMissingMetric) {
			sawMissing = true
			break
		}
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if !sawMissing {
		t.Fatal("Expected ErrMissingMetric once the confirmation buffer filled")
	}
	if d.State() != StateConfirmationPending {
		t.Fatalf("Episode not preserved for retry, state %s", d.State())
	}

	d.SetMetric(metric.NewAccuracy())
	if err := d.Update(constantBatch(0.0, 30)); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if d.State() != StateConfirmed {
		t.Errorf("Expected Confirmed after retry, got %s", d.State())
	}
}

func TestSetMetric_DeepCopy(t *testing.T) {
	d, _ := New(testConfig())
	m := metric.NewAccuracy()
	m.Update(1, 1)

	d.SetMetric(m)
	m.Update(1, 0)
	m.Update(1, 0)

	if got := d.Metric().Get(); got != 1.0 {
		t.Errorf("Stored metric shares state with the caller's copy: %f", got)
	}

	d.SetMetric(nil)
	if d.Metric() != nil {
		t.Error("SetMetric(nil) did not clear the reference")
	}
}

func TestReset_RestoresInitialState(t *testing.T) {
	cfg := testConfig()
	cfg.WindowStart = 40
	d, _ := New(cfg)

	d.Update(constantBatch(1, 40))
	d.Update(constantBatch(1, 40))
	d.SetDriftDetected(true)

	d.Reset()
	if d.WindowLen() != 0 {
		t.Errorf("Window not cleared on reset: %d", d.WindowLen())
	}
	if d.DriftDetected() || d.State() != StateMonitoring || d.Type() != DriftUnknown {
		t.Errorf("Episode state not cleared: flag=%v state=%s type=%s",
			d.DriftDetected(), d.State(), d.Type())
	}

	// Warm-up runs again after a full reset.
	d.Update(constantBatch(1, 20))
	if d.WindowLen() != 0 {
		t.Error("Warm-up not restarted by reset")
	}
}

// Deterministic replay: identical seeds and inputs walk identical paths.
func TestDeterministicReplay(t *testing.T) {
	run := func() (State, DriftType, Stats) {
		cfg := testConfig()
		cfg.Strategy = StrategyShifted
		cfg.Seed = 99
		cfg.Metric = metric.NewAccuracy()
		d, _ := New(cfg)

		rng := rand.New(rand.NewSource(5))
		for step := 0; step < 4; step++ {
			batch := make([]float64, 30)
			for i := range batch {
				batch[i] = 1 + 0.01*rng.NormFloat64()
			}
			d.Update(batch)
		}
		for step := 0; step < 12; step++ {
			batch := make([]float64, 30)
			for i := range batch {
				batch[i] = 0.01 * rng.NormFloat64()
			}
			d.Update(batch)
		}
		return d.State(), d.Type(), d.Stats()
	}

	s1, t1, st1 := run()
	s2, t2, st2 := run()
	if s1 != s2 || t1 != t2 || st1 != st2 {
		t.Errorf("Replay diverged: (%s,%s,%+v) vs (%s,%s,%+v)", s1, t1, st1, s2, t2, st2)
	}
}

func TestNonContinuous_SmoothsThroughAuxBuffer(t *testing.T) {
	cfg := testConfig()
	cfg.Continuous = false
	d, _ := New(cfg)

	d.Update(constantBatch(0.5, 30))
	if d.WindowLen() != 30 {
		t.Fatalf("Expected 30 smoothed values, got %d", d.WindowLen())
	}
	// Smoothing a constant series is the identity.
	for i, v := range d.window.values {
		if v != 0.5 {
			t.Fatalf("Smoothed value[%d] = %f, want 0.5", i, v)
		}
	}
}
