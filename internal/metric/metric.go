// Package metric implements the streaming performance metric consumed by the
// drift-type classifier. Metrics ingest (true, predicted) label pairs and
// expose a current scalar value in [0, 1].
package metric

import (
	"github.com/adaptml/driftwatch/internal/stats"
)

// Metric is the collaborator contract consumed by the detector. Clone must
// return an independent deep copy so a simulation can degrade a metric
// without touching the original.
type Metric interface {
	Update(yTrue, yPred int)
	Get() float64
	Clone() Metric
}

// labelPair keys the confusion matrix by (true, predicted) labels.
type labelPair struct {
	yTrue int
	yPred int
}

// confusionMatrix counts (true, predicted) label pairs. When windowSize > 0
// it holds a FIFO history and forgets the oldest pair on overflow.
type confusionMatrix struct {
	windowSize int
	history    []labelPair // only populated when windowed
	counts     map[labelPair]int
	correct    int
	weight     int
}

func newConfusionMatrix(windowSize int) *confusionMatrix {
	return &confusionMatrix{
		windowSize: windowSize,
		counts:     make(map[labelPair]int),
	}
}

func (cm *confusionMatrix) update(yTrue, yPred int) {
	if cm.windowSize > 0 && len(cm.history) == cm.windowSize {
		old := cm.history[0]
		cm.history = cm.history[1:]
		cm.counts[old]--
		if cm.counts[old] == 0 {
			delete(cm.counts, old)
		}
		if old.yTrue == old.yPred {
			cm.correct--
		}
		cm.weight--
	}

	p := labelPair{yTrue: yTrue, yPred: yPred}
	if cm.windowSize > 0 {
		cm.history = append(cm.history, p)
	}
	cm.counts[p]++
	if yTrue == yPred {
		cm.correct++
	}
	cm.weight++
}

func (cm *confusionMatrix) clone() *confusionMatrix {
	cp := &confusionMatrix{
		windowSize: cm.windowSize,
		counts:     make(map[labelPair]int, len(cm.counts)),
		correct:    cm.correct,
		weight:     cm.weight,
	}
	for k, v := range cm.counts {
		cp.counts[k] = v
	}
	if cm.history != nil {
		cp.history = make([]labelPair, len(cm.history))
		copy(cp.history, cm.history)
	}
	return cp
}

// Accuracy tracks the running classification accuracy, optionally over a
// fixed-size window, with EWMA smoothing of the accuracy history.
type Accuracy struct {
	cm      *confusionMatrix
	history []float64 // accuracy after each update
	maxHist int       // 0 = unbounded
	span    float64
	adjust  bool
}

// AccuracyOption configures an Accuracy metric.
type AccuracyOption func(*Accuracy)

// WithWindow bounds both the confusion matrix and the accuracy history to
// the most recent windowSize observations.
func WithWindow(windowSize int) AccuracyOption {
	return func(a *Accuracy) {
		a.cm = newConfusionMatrix(windowSize)
		a.maxHist = windowSize
	}
}

// WithSmoothing sets the EWMA span and adjust mode used by Smoothed.
func WithSmoothing(span float64, adjust bool) AccuracyOption {
	return func(a *Accuracy) {
		a.span = span
		a.adjust = adjust
	}
}

// NewAccuracy creates an accuracy metric. Without options it accumulates
// over the whole stream and smooths with span=300, adjust=false.
func NewAccuracy(opts ...AccuracyOption) *Accuracy {
	a := &Accuracy{
		cm:   newConfusionMatrix(0),
		span: 300,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Update ingests one (true, predicted) pair and records the resulting
// accuracy in the history buffer.
func (a *Accuracy) Update(yTrue, yPred int) {
	a.cm.update(yTrue, yPred)
	a.history = append(a.history, a.Get())
	if a.maxHist > 0 && len(a.history) > a.maxHist {
		a.history = a.history[1:]
	}
}

// Get returns the current accuracy. Zero weight degrades to 0.0 rather
// than an error.
func (a *Accuracy) Get() float64 {
	if a.cm.weight == 0 {
		return 0.0
	}
	return float64(a.cm.correct) / float64(a.cm.weight)
}

// Smoothed returns the EWMA-smoothed accuracy, i.e. the last value of the
// smoothed history series. Zero history degrades to 0.0.
func (a *Accuracy) Smoothed() float64 {
	if len(a.history) == 0 {
		return 0.0
	}
	smoothed := stats.EWMA(a.history, a.span, a.adjust)
	return smoothed[len(smoothed)-1]
}

// Clone returns an independent deep copy of the metric.
func (a *Accuracy) Clone() Metric {
	cp := &Accuracy{
		cm:      a.cm.clone(),
		maxHist: a.maxHist,
		span:    a.span,
		adjust:  a.adjust,
	}
	if a.history != nil {
		cp.history = make([]float64, len(a.history))
		copy(cp.history, a.history)
	}
	return cp
}
