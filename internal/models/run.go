// internal/models/run.go
package models

import (
	"time"
)

// RunStatus represents the current state of a simulation run
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusEnded     RunStatus = "ended"
	RunStatusCompleted RunStatus = "completed"
	RunStatusError     RunStatus = "error"
)

// Terminal reports whether the status admits no further transitions
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusEnded, RunStatusCompleted, RunStatusError:
		return true
	}
	return false
}

// RunState is a point-in-time snapshot of a single simulation run.
// A run is identified by its inspection port, which is unique while
// the run is alive.
type RunState struct {
	Port      int        `json:"port"`
	Status    RunStatus  `json:"status"`
	SimTime   float64    `json:"simtime"`
	WallTime  float64    `json:"walltime"` // seconds
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// SummaryCounts aggregates run statuses for the dashboard. A run in
// error is a distinct terminal bucket: it counts toward neither
// Completed nor Running.
type SummaryCounts struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Running   int `json:"running"`
	Paused    int `json:"paused"`
	Errored   int `json:"errored"`
}

// StatusReport is the summary document served to the dashboard.
// Sims is keyed by the run's inspection port.
type StatusReport struct {
	Summary SummaryCounts       `json:"summary"`
	Sims    map[string]RunState `json:"sims"`
}
