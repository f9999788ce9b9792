package mission

import "agentric/internal/metrics"

// Result is published once per mission, after it settles.
type Result struct {
	MissionID string                  `json:"mission_id"`
	Objective string                  `json:"objective"`
	State     State                   `json:"state"`
	Steps     int                     `json:"steps"`
	Error     string                  `json:"error,omitempty"`
	Metrics   *metrics.MissionMetrics `json:"metrics,omitempty"`
}
