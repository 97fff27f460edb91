// internal/registry/run.go
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/fawad-mazhar/helios/internal/models"
)

// Run is the live registry entry for one simulation worker, keyed by
// its inspection port. Control commands and worker self-reports both
// funnel through its methods; the run's own mutex serializes them.
//
// State machine:
//
//	queued -> running -> {paused <-> running} -> {ended | completed | error}
//
// Commands on a terminal run are silently skipped.
type Run struct {
	port int
	reg  *Registry

	mu        sync.Mutex
	cond      *sync.Cond
	status    models.RunStatus
	simTime   float64
	startedAt time.Time
	endedAt   *time.Time
	lastSeen  time.Time
	errMsg    string
	result    []byte
	payload   []byte
}

func newRun(port int, reg *Registry) *Run {
	r := &Run{
		port:   port,
		reg:    reg,
		status: models.RunStatusQueued,
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Port returns the run's inspection port.
func (r *Run) Port() int {
	return r.port
}

// Status returns the run's current status.
func (r *Run) Status() models.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Begin transitions the run from queued to running. Called by the
// worker once it holds a pool slot.
func (r *Run) Begin() {
	r.mu.Lock()
	if r.status != models.RunStatusQueued {
		r.mu.Unlock()
		return
	}
	now := time.Now()
	r.status = models.RunStatusRunning
	r.startedAt = now
	r.lastSeen = now
	snap := r.snapshotLocked(now)
	r.mu.Unlock()
	r.reg.notify(snap)
}

// Checkpoint records the worker's simulated time and heartbeat, then
// parks the worker while the run is paused. It returns false once the
// run has been ended, telling the worker to stop stepping and return
// whatever partial result it has. Simulated time never goes backwards.
func (r *Run) Checkpoint(simTime float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if simTime > r.simTime {
		r.simTime = simTime
	}
	r.lastSeen = time.Now()

	for r.status == models.RunStatusPaused {
		r.cond.Wait()
	}
	// re-read after waking; a paused run may have been ended
	r.lastSeen = time.Now()
	return !r.status.Terminal()
}

// Pause transitions the run from running to paused. The worker parks
// at its next checkpoint, having recorded simulated time first.
func (r *Run) Pause() {
	r.transition(models.RunStatusRunning, models.RunStatusPaused)
}

// Resume transitions the run from paused back to running.
func (r *Run) Resume() {
	r.transition(models.RunStatusPaused, models.RunStatusRunning)
}

// End terminates the run early. Queued runs end without ever
// starting; paused workers are woken so they can observe the
// terminal state and release their inspection port.
func (r *Run) End() {
	r.mu.Lock()
	if r.status.Terminal() {
		r.mu.Unlock()
		return
	}
	now := time.Now()
	r.status = models.RunStatusEnded
	r.endedAt = &now
	r.cond.Broadcast()
	snap := r.snapshotLocked(now)
	r.mu.Unlock()
	r.reg.notify(snap)
}

// Finish records the worker's outcome. A nil err on a live run means
// natural completion; an err moves the run to error. A run that was
// ended mid-flight stays ended but still keeps the partial result.
func (r *Run) Finish(result []byte, err error) {
	r.mu.Lock()
	now := time.Now()
	switch {
	case err != nil:
		if r.status.Terminal() {
			r.mu.Unlock()
			return
		}
		r.status = models.RunStatusError
		r.errMsg = err.Error()
	case r.status == models.RunStatusEnded:
		r.result = result
	case r.status.Terminal():
		r.mu.Unlock()
		return
	default:
		r.status = models.RunStatusCompleted
		r.result = result
	}
	if r.endedAt == nil {
		r.endedAt = &now
	}
	snap := r.snapshotLocked(now)
	r.mu.Unlock()
	r.reg.notify(snap)
}

// MarkStaleIfDead moves a running run whose worker has not reported a
// heartbeat within staleAfter to error. Paused runs are exempt: their
// workers are parked on purpose.
func (r *Run) MarkStaleIfDead(staleAfter time.Duration, now time.Time) bool {
	r.mu.Lock()
	if r.status != models.RunStatusRunning || now.Sub(r.lastSeen) < staleAfter {
		r.mu.Unlock()
		return false
	}
	r.status = models.RunStatusError
	r.errMsg = fmt.Sprintf("worker heartbeat lost for %s", now.Sub(r.lastSeen).Truncate(time.Millisecond))
	r.endedAt = &now
	r.cond.Broadcast()
	snap := r.snapshotLocked(now)
	r.mu.Unlock()
	r.reg.notify(snap)
	return true
}

// Publish stores the worker's latest opaque simulation snapshot for
// the inspection server to serve.
func (r *Run) Publish(payload []byte) {
	r.mu.Lock()
	r.payload = payload
	r.mu.Unlock()
}

// Payload returns the latest published simulation snapshot, if any.
func (r *Run) Payload() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payload
}

// Result returns the run's final result payload, if any.
func (r *Run) Result() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Snapshot returns a point-in-time view of the run.
func (r *Run) Snapshot() models.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(time.Now())
}

func (r *Run) transition(from, to models.RunStatus) {
	r.mu.Lock()
	if r.status != from {
		r.mu.Unlock()
		return
	}
	r.status = to
	r.cond.Broadcast()
	snap := r.snapshotLocked(time.Now())
	r.mu.Unlock()
	r.reg.notify(snap)
}

func (r *Run) snapshotLocked(now time.Time) models.RunState {
	state := models.RunState{
		Port:      r.port,
		Status:    r.status,
		SimTime:   r.simTime,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
		Error:     r.errMsg,
	}
	if !r.startedAt.IsZero() {
		end := now
		if r.endedAt != nil {
			end = *r.endedAt
		}
		state.WallTime = end.Sub(r.startedAt).Seconds()
	}
	return state
}
