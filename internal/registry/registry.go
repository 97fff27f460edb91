// internal/registry/registry.go
package registry

import (
	"sort"
	"strconv"
	"sync"

	"github.com/fawad-mazhar/helios/internal/models"
)

// TransitionFunc observes run state transitions, e.g. to publish
// status events or archive terminal runs. It must not call back into
// the registry's write paths.
type TransitionFunc func(models.RunState)

// Registry is the shared table of run states, keyed by inspection
// port. It is an explicitly owned object passed to the controller,
// the runner and the status server; one mutex serializes mutation.
type Registry struct {
	mu        sync.RWMutex
	runs      map[int]*Run
	retired   []models.RunState
	expected  int
	aborted   bool
	observers []TransitionFunc
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[int]*Run),
	}
}

// OnTransition registers an observer for run state transitions.
// Observers should be registered before the first batch starts.
func (g *Registry) OnTransition(fn TransitionFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, fn)
}

// BeginBatch resets the registry for a new batch of n jobs. The
// expected count fixes the summary's total before workers have
// registered their ports.
func (g *Registry) BeginBatch(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runs = make(map[int]*Run)
	g.retired = nil
	g.expected = n
	g.aborted = false
}

// Abort flags the current batch so queued jobs that have not started
// yet are never launched.
func (g *Registry) Abort() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.aborted = true
}

// Aborted reports whether the current batch has been aborted.
func (g *Registry) Aborted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.aborted
}

// Create registers a new run on the given port. If a previous run
// still occupies the port (the port window has wrapped), it is ended
// first so a worker parked at a checkpoint wakes and releases its
// pool slot, then its terminal state is retired so summary counts are
// preserved. End must run outside the registry lock: a transition
// notifies observers, which read the registry.
func (g *Registry) Create(port int) *Run {
	run := newRun(port, g)
	for {
		g.mu.Lock()
		prev, ok := g.runs[port]
		if !ok {
			g.runs[port] = run
			g.mu.Unlock()
			return run
		}
		g.mu.Unlock()

		prev.End()

		g.mu.Lock()
		if g.runs[port] == prev {
			g.retired = append(g.retired, prev.Snapshot())
			g.runs[port] = run
			g.mu.Unlock()
			return run
		}
		// the port changed hands while prev was being ended
		g.mu.Unlock()
	}
}

// Get returns the live run on a port.
func (g *Registry) Get(port int) (*Run, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	run, ok := g.runs[port]
	return run, ok
}

// Runs returns all live runs ordered by port.
func (g *Registry) Runs() []*Run {
	g.mu.RLock()
	defer g.mu.RUnlock()

	runs := make([]*Run, 0, len(g.runs))
	for _, run := range g.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].port < runs[j].port })
	return runs
}

// Report derives the dashboard summary from the current run set. It
// is computed on demand and never persisted.
func (g *Registry) Report() models.StatusReport {
	g.mu.RLock()
	runs := make([]*Run, 0, len(g.runs))
	for _, run := range g.runs {
		runs = append(runs, run)
	}
	retired := make([]models.RunState, len(g.retired))
	copy(retired, g.retired)
	expected := g.expected
	g.mu.RUnlock()

	report := models.StatusReport{
		Sims: make(map[string]models.RunState, len(runs)),
	}
	count := func(st models.RunState) {
		switch st.Status {
		case models.RunStatusCompleted:
			report.Summary.Completed++
		case models.RunStatusRunning:
			report.Summary.Running++
		case models.RunStatusPaused:
			report.Summary.Paused++
		case models.RunStatusError:
			report.Summary.Errored++
		}
	}

	for _, run := range runs {
		st := run.Snapshot()
		report.Sims[strconv.Itoa(st.Port)] = st
		count(st)
	}
	for _, st := range retired {
		count(st)
	}

	report.Summary.Total = len(runs) + len(retired)
	if expected > report.Summary.Total {
		report.Summary.Total = expected
	}
	return report
}

func (g *Registry) notify(state models.RunState) {
	g.mu.RLock()
	observers := g.observers
	g.mu.RUnlock()
	for _, fn := range observers {
		fn(state)
	}
}
