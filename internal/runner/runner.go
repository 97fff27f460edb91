// internal/runner/runner.go
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fawad-mazhar/helios/internal/config"
	"github.com/fawad-mazhar/helios/internal/inspect"
	"github.com/fawad-mazhar/helios/internal/models"
	"github.com/fawad-mazhar/helios/internal/ports"
	"github.com/fawad-mazhar/helios/internal/registry"
	"github.com/fawad-mazhar/helios/internal/storage/leveldb"
)

// SimFunc is the user-supplied simulation function. It must call
// run.Checkpoint between integration steps and stop stepping when
// Checkpoint returns false; everything else about the physics is the
// external simulation library's business.
type SimFunc func(ctx context.Context, run *registry.Run, params []float64) (interface{}, error)

// Result is the outcome of one job in a batch. Results preserve the
// batch's input ordering regardless of completion order.
type Result struct {
	Index int         `json:"index"`
	Port  int         `json:"port"`
	Value interface{} `json:"value,omitempty"`
	Err   error       `json:"-"`
}

// ErrBatchEnded marks jobs that were still queued when the batch was
// ended and therefore never ran.
var ErrBatchEnded = fmt.Errorf("batch ended before job started")

// Runner executes a batch of simulation jobs across a bounded worker
// pool. One worker goroutine runs per job; at most Workers run
// concurrently, the remainder stay queued on the pool semaphore.
type Runner struct {
	cfg      config.RunnerConfig
	registry *registry.Registry
	store    *leveldb.Client
	simfunc  SimFunc
}

// NewRunner creates a runner for the given simulation function. store
// may be nil, in which case results are not persisted.
func NewRunner(cfg config.RunnerConfig, reg *registry.Registry, store *leveldb.Client, simfunc SimFunc) *Runner {
	return &Runner{
		cfg:      cfg,
		registry: reg,
		store:    store,
		simfunc:  simfunc,
	}
}

// Run executes every job in the batch and returns results in input
// order. A failing job is isolated: its error lands in its own result
// slot and sibling jobs keep running.
func (r *Runner) Run(ctx context.Context, batch models.Batch) ([]Result, error) {
	if r.simfunc == nil {
		return nil, fmt.Errorf("runner has no simulation function")
	}
	if err := batch.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}

	njobs := batch.Size()

	port0 := r.cfg.Port0
	if port0 == 0 {
		var err error
		port0, err = ports.FirstAvailable()
		if err != nil {
			return nil, fmt.Errorf("failed to pick base port: %w", err)
		}
	}

	assigned, err := ports.Assign(port0, njobs, r.cfg.Workers, r.cfg.PortBuffer)
	if err != nil {
		return nil, fmt.Errorf("failed to assign ports: %w", err)
	}

	r.registry.BeginBatch(njobs)
	log.Printf("Starting batch %s: %d jobs across %d workers", batch.ID, njobs, r.cfg.Workers)

	results := make([]Result, njobs)
	pool := make(chan struct{}, r.cfg.Workers)
	var wg sync.WaitGroup
	var completed int64
	t0 := time.Now()

	abort := func(from int, err error) ([]Result, error) {
		for j := from; j < njobs; j++ {
			results[j] = Result{Index: j, Port: assigned[j], Err: err}
		}
		wg.Wait()
		return results, err
	}

	for i := 0; i < njobs; i++ {
		if err := ctx.Err(); err != nil {
			return abort(i, err)
		}
		select {
		case <-ctx.Done():
			return abort(i, ctx.Err())
		case pool <- struct{}{}:
		}

		wg.Add(1)
		go func(i, port int) {
			defer func() {
				<-pool
				wg.Done()
			}()

			results[i] = r.execute(ctx, i, port, batch)

			done := atomic.AddInt64(&completed, 1)
			if r.cfg.Progress {
				printProgress(int(done), njobs, time.Since(t0))
			}
		}(i, assigned[i])
	}

	wg.Wait()

	if r.cfg.Progress {
		log.Printf("Finished running %d jobs. Walltime: %s", njobs, formatElapsed(time.Since(t0)))
	}
	return results, nil
}

// execute runs a single job on its assigned port. Panics inside the
// simulation function are confined to this job's result slot.
func (r *Runner) execute(ctx context.Context, index, port int, batch models.Batch) (result Result) {
	result = Result{Index: index, Port: port}

	// Late abort check: the batch may have been ended while this job
	// was waiting for a pool slot.
	if r.registry.Aborted() {
		result.Err = ErrBatchEnded
		return result
	}

	run := r.registry.Create(port)

	var insp *inspect.Server
	if r.cfg.Inspect {
		var err error
		insp, err = inspect.Start(run)
		if err != nil {
			log.Printf("Warning: failed to start inspection server on port %d: %v", port, err)
		} else {
			defer insp.Stop()
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("simulation panicked: %v", rec)
			run.Finish(nil, err)
			result.Err = err
		}
	}()

	run.Begin()
	value, err := r.simfunc(ctx, run, batch.Args(index))
	result.Value = value
	result.Err = err

	var payload []byte
	if err == nil && value != nil {
		payload, err = json.Marshal(value)
		if err != nil {
			err = fmt.Errorf("failed to encode result: %w", err)
			result.Err = err
			payload = nil
		}
	}

	run.Finish(payload, err)

	if r.store != nil && payload != nil {
		if serr := r.store.PutResult(port, payload); serr != nil {
			log.Printf("Warning: failed to persist result for port %d: %v", port, serr)
		}
	}
	return result
}
