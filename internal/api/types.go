// Package api defines the wire types of the drift monitoring service.
package api

import "time"

// ObservationBatch is one POST /v1/observations payload: a time-ordered
// slice of scalar performance observations.
type ObservationBatch struct {
	Values []float64 `json:"values"`
	SentAt time.Time `json:"sent_at,omitempty"`
}

// UpdateResult reports the detector state after ingesting one batch.
type UpdateResult struct {
	DriftDetected bool   `json:"drift_detected"`
	State         string `json:"state"`
	DriftType     string `json:"drift_type"`
	WindowLen     int    `json:"window_len"`
	EpisodeID     string `json:"episode_id,omitempty"`
}

// DetectorStatus is the GET /v1/status response.
type DetectorStatus struct {
	DriftDetected bool           `json:"drift_detected"`
	State         string         `json:"state"`
	DriftType     string         `json:"drift_type"`
	WindowLen     int            `json:"window_len"`
	Stats         DetectorCounts `json:"stats"`
}

// DetectorCounts mirrors the engine's activity counters.
type DetectorCounts struct {
	Batteries          int64 `json:"batteries"`
	Detections         int64 `json:"detections"`
	PrecheckRejections int64 `json:"precheck_rejections"`
	ConfirmRejections  int64 `json:"confirm_rejections"`
	Classifications    int64 `json:"classifications"`
}

// DetectorParams carries the engine construction parameters through
// configuration and the status endpoint.
type DetectorParams struct {
	Alpha       float64 `json:"alpha"`
	WindowSize  int     `json:"window_size"`
	StatSize    int     `json:"stat_size"`
	Seed        int64   `json:"seed"`
	WindowStart int     `json:"window_start"`
	Alternative string  `json:"alternative"`
	Strategy    int     `json:"strategy"`
	Continuous  bool    `json:"continuous"`
}

// DefaultDetectorParams returns the reference operating point.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{
		Alpha:       1e-5,
		WindowSize:  3000,
		StatSize:    300,
		WindowStart: 1300,
		Alternative: "greater",
		Strategy:    1,
	}
}
