// Package health reports run progress over HTTP alongside Prometheus metrics.
package health

import "time"

// RunStatus is the state of the current run.
type RunStatus string

const (
	StatusStarting RunStatus = "starting"
	StatusRunning  RunStatus = "running"
	StatusStopping RunStatus = "stopping"
	StatusFinished RunStatus = "finished"
	StatusFailed   RunStatus = "failed"
)

// Report is the /health response body.
type Report struct {
	Status    RunStatus `json:"status"`
	RunID     string    `json:"run_id"`
	Written   int       `json:"written"`
	Total     int       `json:"total"`
	Pending   int       `json:"pending"`
	InFlight  int       `json:"in_flight"`
	StartedAt time.Time `json:"started_at"`
	Resumed   bool      `json:"resumed"`
}
