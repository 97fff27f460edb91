// internal/models/batch.go
package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Batch is an ordered sequence of parameter vectors submitted for
// parallel execution. A batch either carries explicit parameters or a
// bare repeat count for parameterless jobs, never both.
type Batch struct {
	ID     string      `json:"id"`
	Params [][]float64 `json:"params,omitempty"`
	Repeat int         `json:"repeat,omitempty"`
}

// NewBatch creates a batch from explicit parameter vectors.
func NewBatch(params [][]float64) Batch {
	return Batch{
		ID:     uuid.New().String(),
		Params: params,
	}
}

// NewRepeatBatch creates a batch that runs the same parameterless job
// n times.
func NewRepeatBatch(n int) Batch {
	return Batch{
		ID:     uuid.New().String(),
		Repeat: n,
	}
}

// Size returns the number of jobs in the batch.
func (b Batch) Size() int {
	if len(b.Params) > 0 {
		return len(b.Params)
	}
	return b.Repeat
}

// Args returns the parameter vector for job i, or nil for a repeat
// batch.
func (b Batch) Args(i int) []float64 {
	if i < 0 || i >= len(b.Params) {
		return nil
	}
	return b.Params[i]
}

// Validate checks that the batch describes at least one job.
func (b Batch) Validate() error {
	if len(b.Params) > 0 && b.Repeat > 0 {
		return fmt.Errorf("batch must carry either params or a repeat count, not both")
	}
	if b.Size() <= 0 {
		return fmt.Errorf("batch must contain at least one job")
	}
	return nil
}
