// internal/models/status.go
package models

import (
	"time"
)

// StatusMessage represents a status update message for runs, batches and the controller
type StatusMessage struct {
	Type      string      `json:"type"`      // "controller", "batch", or "run"
	ID        string      `json:"id"`        // unique identifier of the entity (controller id, batch id, or run port)
	Status    string      `json:"status"`    // current status of the entity
	Timestamp time.Time   `json:"timestamp"` // when the status was updated
	Metadata  interface{} `json:"metadata"`  // additional entity-specific information
}

type ControllerEventType string

const (
	ControllerStarted  ControllerEventType = "STARTED"
	ControllerStopping ControllerEventType = "STOPPING"
	ControllerStopped  ControllerEventType = "STOPPED"
	ControllerHealthy  ControllerEventType = "HEALTHY"
)

type ControllerStatus struct {
	ID          string              `json:"id"`
	Event       ControllerEventType `json:"event"`
	Timestamp   time.Time           `json:"timestamp"`
	WorkerCount int                 `json:"workerCount"`
	ActiveRuns  int                 `json:"activeRuns"`
}
