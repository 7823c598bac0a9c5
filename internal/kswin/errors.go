package kswin

import "errors"

var (
	// ErrBatchTooLarge is returned by Update when a batch exceeds the
	// window capacity. No state is mutated.
	ErrBatchTooLarge = errors.New("batch larger than window size")

	// ErrInvalidConfig wraps construction-time parameter validation errors.
	ErrInvalidConfig = errors.New("invalid detector config")

	// ErrMissingMetric is returned when drift-type classification is
	// attempted without a metric collaborator. The episode state is
	// preserved so classification can be retried after SetMetric.
	ErrMissingMetric = errors.New("drift type classification requires a metric")
)
