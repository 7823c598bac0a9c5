package metric

import (
	"math"
	"testing"
)

func TestAccuracy_ZeroWeight(t *testing.T) {
	a := NewAccuracy()
	if got := a.Get(); got != 0.0 {
		t.Errorf("Empty metric should degrade to 0.0, got %f", got)
	}
	if got := a.Smoothed(); got != 0.0 {
		t.Errorf("Empty metric smoothed value should be 0.0, got %f", got)
	}
}

func TestAccuracy_Running(t *testing.T) {
	a := NewAccuracy()
	a.Update(1, 1)
	a.Update(1, 0)
	a.Update(0, 0)
	a.Update(1, 1)

	if got := a.Get(); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("Expected accuracy 0.75, got %f", got)
	}
}

func TestAccuracy_Windowed(t *testing.T) {
	a := NewAccuracy(WithWindow(4))

	// Four wrong predictions, then four right: the window forgets the
	// wrong ones completely.
	for i := 0; i < 4; i++ {
		a.Update(1, 0)
	}
	if got := a.Get(); got != 0.0 {
		t.Errorf("Expected accuracy 0.0 after all-wrong window, got %f", got)
	}
	for i := 0; i < 4; i++ {
		a.Update(1, 1)
	}
	if got := a.Get(); got != 1.0 {
		t.Errorf("Expected accuracy 1.0 after window rollover, got %f", got)
	}
}

func TestAccuracy_WindowPartialEviction(t *testing.T) {
	a := NewAccuracy(WithWindow(3))
	a.Update(1, 1) // evicted below
	a.Update(1, 0)
	a.Update(0, 0)
	a.Update(1, 0) // pushes out the first correct pair

	// Window now holds {wrong, correct, wrong}.
	if got := a.Get(); math.Abs(got-1.0/3.0) > 1e-12 {
		t.Errorf("Expected accuracy 1/3, got %f", got)
	}
}

func TestAccuracy_Smoothed(t *testing.T) {
	a := NewAccuracy(WithSmoothing(3, false))
	a.Update(1, 1) // acc 1.0
	a.Update(1, 0) // acc 0.5

	// span=3 -> alpha=0.5: smoothed = 0.5*1.0 + 0.5*0.5 = 0.75
	if got := a.Smoothed(); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("Expected smoothed accuracy 0.75, got %f", got)
	}
}

func TestAccuracy_CloneIsIndependent(t *testing.T) {
	a := NewAccuracy(WithWindow(10))
	a.Update(1, 1)
	a.Update(1, 1)

	c := a.Clone()
	c.Update(1, 0)
	c.Update(1, 0)

	if got := a.Get(); got != 1.0 {
		t.Errorf("Original metric mutated by clone updates: %f", got)
	}
	if got := c.Get(); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("Clone accuracy = %f, want 0.5", got)
	}
}
