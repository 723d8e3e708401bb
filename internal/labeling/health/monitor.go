package health

import (
	"sync"
	"time"
)

// ProgressSource exposes the writer's position.
type ProgressSource interface {
	Cursor() int
	Pending() int
}

// InFlightSource exposes requests currently on the wire.
type InFlightSource interface {
	InFlight() int
}

// Monitor aggregates run progress from the writer and the rate limiter.
type Monitor struct {
	mu        sync.RWMutex
	runID     string
	status    RunStatus
	total     int
	resumed   bool
	startedAt time.Time
	progress  ProgressSource
	inFlight  InFlightSource
}

// NewMonitor creates a monitor for one run.
func NewMonitor(runID string) *Monitor {
	return &Monitor{runID: runID, status: StatusStarting, startedAt: time.Now()}
}

// Attach binds the progress sources once the run is planned.
func (m *Monitor) Attach(progress ProgressSource, inFlight InFlightSource, total int, resumed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = progress
	m.inFlight = inFlight
	m.total = total
	m.resumed = resumed
}

// SetStatus records a run state transition.
func (m *Monitor) SetStatus(s RunStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
}

// Report returns a snapshot of the run.
func (m *Monitor) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := Report{
		Status:    m.status,
		RunID:     m.runID,
		Total:     m.total,
		StartedAt: m.startedAt,
		Resumed:   m.resumed,
	}
	if m.progress != nil {
		r.Written = m.progress.Cursor()
		r.Pending = m.progress.Pending()
	}
	if m.inFlight != nil {
		r.InFlight = m.inFlight.InFlight()
	}
	return r
}
