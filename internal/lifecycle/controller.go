// internal/lifecycle/controller.go
package lifecycle

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fawad-mazhar/helios/internal/models"
	"github.com/fawad-mazhar/helios/internal/registry"
	"github.com/google/uuid"
)

// Controller issues start/pause/resume/end commands to individual
// runs or to all runs. Commands on unknown or already-terminal runs
// are no-ops, not errors. It also owns the liveness sweep that moves
// runs with a dead worker to error instead of leaving them running
// forever.
type Controller struct {
	id         string
	registry   *registry.Registry
	workers    int
	interval   time.Duration
	staleAfter time.Duration
	statusFn   StatusFunc
	stopChan   chan struct{}
	stopOnce   sync.Once
	started    atomic.Bool
	done       chan struct{}
}

// StatusFunc observes controller lifecycle events, e.g. to stream
// them to a status publisher.
type StatusFunc func(models.ControllerStatus)

// NewController creates a lifecycle controller over the given
// registry. workers is the size of the run pool, reported in health
// events; interval is the liveness sweep period; staleAfter is how
// long a running run may go without a worker heartbeat before it is
// declared dead.
func NewController(reg *registry.Registry, workers int, interval, staleAfter time.Duration) *Controller {
	return &Controller{
		id:         uuid.New().String(),
		registry:   reg,
		workers:    workers,
		interval:   interval,
		staleAfter: staleAfter,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// ID returns the controller's unique identifier.
func (c *Controller) ID() string {
	return c.id
}

// OnStatus registers an observer for controller lifecycle events.
// Must be called before Start.
func (c *Controller) OnStatus(fn StatusFunc) {
	c.statusFn = fn
}

// Start begins the liveness sweep loop. Each sweep tick also emits a
// health event to the status observer.
func (c *Controller) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.emit(models.ControllerStarted)
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopChan:
				return
			case <-ticker.C:
				c.sweep()
				c.emit(models.ControllerHealthy)
			}
		}
	}()
}

// Stop terminates the liveness sweep loop.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.emit(models.ControllerStopping)
		close(c.stopChan)
		if c.started.Load() {
			<-c.done
		}
		c.emit(models.ControllerStopped)
	})
}

// StartRun resumes a paused run. Unknown ports and runs in any other
// state are silently skipped, matching the state machine's
// skip-if-ineligible rule.
func (c *Controller) StartRun(port int) {
	run, ok := c.registry.Get(port)
	if !ok {
		log.Printf("start: no run on port %d, skipping", port)
		return
	}
	run.Resume()
}

// PauseRun suspends a running run. The worker checkpoints its
// simulated time and parks at its next integration step.
func (c *Controller) PauseRun(port int) {
	run, ok := c.registry.Get(port)
	if !ok {
		log.Printf("pause: no run on port %d, skipping", port)
		return
	}
	run.Pause()
}

// EndRun terminates a run early. The worker unblocks, stops stepping
// and releases its inspection port.
func (c *Controller) EndRun(port int) {
	run, ok := c.registry.Get(port)
	if !ok {
		log.Printf("end: no run on port %d, skipping", port)
		return
	}
	run.End()
}

// StartAll resumes every paused run. Terminal runs are silently
// skipped.
func (c *Controller) StartAll() {
	for _, run := range c.registry.Runs() {
		run.Resume()
	}
}

// PauseAll suspends every running run. Terminal runs are silently
// skipped.
func (c *Controller) PauseAll() {
	for _, run := range c.registry.Runs() {
		run.Pause()
	}
}

// EndAll terminates every non-terminal run and aborts the batch so
// queued jobs that have not claimed a worker slot never start.
func (c *Controller) EndAll() {
	c.registry.Abort()
	for _, run := range c.registry.Runs() {
		run.End()
	}
}

// Status reports the controller's own state for health checks.
func (c *Controller) Status() models.ControllerStatus {
	return c.status(models.ControllerHealthy)
}

func (c *Controller) status(event models.ControllerEventType) models.ControllerStatus {
	report := c.registry.Report()
	return models.ControllerStatus{
		ID:          c.id,
		Event:       event,
		Timestamp:   time.Now(),
		WorkerCount: c.workers,
		ActiveRuns:  report.Summary.Running + report.Summary.Paused,
	}
}

func (c *Controller) emit(event models.ControllerEventType) {
	if c.statusFn == nil {
		return
	}
	c.statusFn(c.status(event))
}

func (c *Controller) sweep() {
	now := time.Now()
	for _, run := range c.registry.Runs() {
		if run.MarkStaleIfDead(c.staleAfter, now) {
			log.Printf("run on port %d lost its worker, marked as %s", run.Port(), models.RunStatusError)
		}
	}
}

// Command names accepted by the status server's one-shot endpoints.
const (
	CommandStart = "start"
	CommandPause = "pause"
	CommandEnd   = "end"
)

// Apply dispatches a named command to a single run.
func (c *Controller) Apply(command string, port int) error {
	switch command {
	case CommandStart:
		c.StartRun(port)
	case CommandPause:
		c.PauseRun(port)
	case CommandEnd:
		c.EndRun(port)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

// ApplyAll dispatches a named command to every eligible run.
func (c *Controller) ApplyAll(command string) error {
	switch command {
	case CommandStart:
		c.StartAll()
	case CommandPause:
		c.PauseAll()
	case CommandEnd:
		c.EndAll()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
