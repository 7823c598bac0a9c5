// Package metrics registers the Prometheus instruments of the drift
// monitoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the monitor
type Metrics struct {
	BatchesTotal      prometheus.Counter
	ObservationsTotal prometheus.Counter
	BatchesRejected   prometheus.Counter
	WarmupDropped     prometheus.Counter
	WALErrors         prometheus.Counter

	BatteriesTotal     prometheus.Counter
	DetectionsTotal    prometheus.Counter
	PrecheckRejections prometheus.Counter
	ConfirmRejections  prometheus.Counter

	// Confirmed episodes labeled by classified drift type
	ConfirmationsByType *prometheus.CounterVec

	BatchSize prometheus.Histogram
}

// New creates and registers all metrics
func New() *Metrics {
	return &Metrics{
		BatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dw_batches_total",
			Help: "Total number of observation batches received",
		}),
		ObservationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dw_observations_total",
			Help: "Total number of scalar observations ingested",
		}),
		BatchesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dw_batches_rejected",
			Help: "Number of batches rejected (malformed or oversized)",
		}),
		WarmupDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dw_warmup_dropped",
			Help: "Number of batches discarded during detector warm-up",
		}),
		WALErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dw_wal_errors",
			Help: "Number of WAL write errors",
		}),
		BatteriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dw_batteries_total",
			Help: "Number of KS test batteries executed",
		}),
		DetectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dw_detections_total",
			Help: "Number of drift detections raised",
		}),
		PrecheckRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dw_precheck_rejections",
			Help: "Number of detections discarded by the spike pre-check",
		}),
		ConfirmRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dw_confirm_rejections",
			Help: "Number of detections discarded during confirmation",
		}),
		ConfirmationsByType: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dw_confirmations_by_type",
				Help: "Number of confirmed drift episodes per classified type",
			},
			[]string{"drift_type"},
		),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dw_batch_size",
			Help:    "Observations per ingested batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}
