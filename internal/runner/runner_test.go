// internal/runner/runner_test.go
package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fawad-mazhar/helios/internal/config"
	"github.com/fawad-mazhar/helios/internal/models"
	"github.com/fawad-mazhar/helios/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunnerConfig(workers int) config.RunnerConfig {
	return config.RunnerConfig{
		Workers:    workers,
		PortBuffer: 5,
		Port0:      42000,
	}
}

func TestRunPreservesInputOrder(t *testing.T) {
	reg := registry.NewRegistry()

	// jobs finish out of order: later jobs sleep less
	simfunc := func(ctx context.Context, run *registry.Run, params []float64) (interface{}, error) {
		time.Sleep(time.Duration(50-10*params[0]) * time.Millisecond)
		run.Checkpoint(params[0])
		return params[0] * 2, nil
	}

	r := NewRunner(testRunnerConfig(2), reg, nil, simfunc)
	batch := models.NewBatch([][]float64{{0}, {1}, {2}, {3}, {4}})

	results, err := r.Run(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i, result := range results {
		assert.Equal(t, i, result.Index)
		assert.NoError(t, result.Err)
		assert.Equal(t, float64(i)*2, result.Value)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	reg := registry.NewRegistry()

	var inflight, peak int64
	simfunc := func(ctx context.Context, run *registry.Run, params []float64) (interface{}, error) {
		n := atomic.AddInt64(&inflight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inflight, -1)
		return nil, nil
	}

	r := NewRunner(testRunnerConfig(2), reg, nil, simfunc)
	batch := models.NewBatch([][]float64{{0}, {1}, {2}, {3}, {4}})

	results, err := r.Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestJobFailureIsIsolated(t *testing.T) {
	reg := registry.NewRegistry()

	simfunc := func(ctx context.Context, run *registry.Run, params []float64) (interface{}, error) {
		if params[0] == 2 {
			return nil, fmt.Errorf("integration diverged")
		}
		return params[0], nil
	}

	r := NewRunner(testRunnerConfig(2), reg, nil, simfunc)
	batch := models.NewBatch([][]float64{{0}, {1}, {2}, {3}})

	results, err := r.Run(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Error(t, results[2].Err)
	for _, i := range []int{0, 1, 3} {
		assert.NoError(t, results[i].Err)
		assert.Equal(t, float64(i), results[i].Value)
	}

	report := reg.Report()
	assert.Equal(t, 3, report.Summary.Completed)
	assert.Equal(t, 1, report.Summary.Errored)
}

func TestPanicIsConfinedToItsJob(t *testing.T) {
	reg := registry.NewRegistry()

	simfunc := func(ctx context.Context, run *registry.Run, params []float64) (interface{}, error) {
		if params[0] == 1 {
			panic("bad particle index")
		}
		return params[0], nil
	}

	r := NewRunner(testRunnerConfig(2), reg, nil, simfunc)
	batch := models.NewBatch([][]float64{{0}, {1}, {2}})

	results, err := r.Run(context.Background(), batch)
	require.NoError(t, err)

	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "panicked")
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[2].Err)
}

func TestRepeatBatch(t *testing.T) {
	reg := registry.NewRegistry()

	var calls int64
	simfunc := func(ctx context.Context, run *registry.Run, params []float64) (interface{}, error) {
		assert.Nil(t, params)
		atomic.AddInt64(&calls, 1)
		return nil, nil
	}

	r := NewRunner(testRunnerConfig(2), reg, nil, simfunc)
	results, err := r.Run(context.Background(), models.NewRepeatBatch(3))
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestEndAllAbortsQueuedJobs(t *testing.T) {
	reg := registry.NewRegistry()

	started := make(chan struct{}, 8)
	simfunc := func(ctx context.Context, run *registry.Run, params []float64) (interface{}, error) {
		started <- struct{}{}
		var t float64
		for run.Checkpoint(t) {
			t++
			time.Sleep(5 * time.Millisecond)
		}
		return t, nil
	}

	r := NewRunner(testRunnerConfig(1), reg, nil, simfunc)
	batch := models.NewBatch([][]float64{{0}, {1}, {2}})

	type outcome struct {
		results []Result
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := r.Run(context.Background(), batch)
		done <- outcome{results, err}
	}()

	// wait for the first job to be live, then end everything
	<-started
	reg.Abort()
	for _, run := range reg.Runs() {
		run.End()
	}

	out := <-done
	require.NoError(t, out.err)
	require.Len(t, out.results, 3)

	// queued jobs never started
	ended := 0
	for _, result := range out.results {
		if result.Err == ErrBatchEnded {
			ended++
		}
	}
	assert.GreaterOrEqual(t, ended, 1)

	report := reg.Report()
	assert.Equal(t, 0, report.Summary.Running)
}

func TestRunValidatesInput(t *testing.T) {
	reg := registry.NewRegistry()

	r := NewRunner(testRunnerConfig(2), reg, nil, nil)
	_, err := r.Run(context.Background(), models.NewRepeatBatch(1))
	assert.Error(t, err)

	r = NewRunner(testRunnerConfig(2), reg, nil, func(ctx context.Context, run *registry.Run, params []float64) (interface{}, error) {
		return nil, nil
	})
	_, err = r.Run(context.Background(), models.Batch{})
	assert.Error(t, err)
}

func TestCanceledContextStopsDispatch(t *testing.T) {
	reg := registry.NewRegistry()

	simfunc := func(ctx context.Context, run *registry.Run, params []float64) (interface{}, error) {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(testRunnerConfig(1), reg, nil, simfunc)
	results, err := r.Run(ctx, models.NewRepeatBatch(3))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 3)
}
