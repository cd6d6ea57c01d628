package framework

import (
	"context"
	"fmt"
	"time"

	"github.com/hodei/pipelines/pkg/client"
	"github.com/hodei/pipelines/pkg/types"
)

// Waiter provides utilities for waiting on conditions with timeouts.
type Waiter struct {
	timeout  time.Duration
	interval time.Duration
}

// NewWaiter creates a new Waiter with the given timeout and polling interval.
func NewWaiter(timeout, interval time.Duration) *Waiter {
	return &Waiter{timeout: timeout, interval: interval}
}

// DefaultWaiter returns a waiter with sensible defaults (30s timeout, 500ms interval).
func DefaultWaiter() *Waiter {
	return NewWaiter(30*time.Second, 500*time.Millisecond)
}

// WaitFor waits for a condition to become true.
func (w *Waiter) WaitFor(ctx context.Context, condition func() bool, description string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if condition() {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for: %s (timeout: %v)", description, w.timeout)
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// WaitForJobPhase waits for a job to reach one of the given phases.
func (w *Waiter) WaitForJobPhase(ctx context.Context, c *client.Client, jobID string, phases ...types.JobPhase) (*types.Job, error) {
	var last *types.Job
	err := w.WaitFor(ctx, func() bool {
		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return false
		}
		last = job
		for _, p := range phases {
			if job.Phase == p {
				return true
			}
		}
		return false
	}, fmt.Sprintf("job %s to reach phase in %v", jobID, phases))
	return last, err
}

// WaitForWorkerCount waits for a pool to have exactly count workers, as
// seen by ListWorkers.
func (w *Waiter) WaitForWorkerCount(ctx context.Context, c *client.Client, poolName string, count int) error {
	return w.WaitFor(ctx, func() bool {
		workers, err := c.ListWorkers(ctx, poolName)
		if err != nil {
			return false
		}
		return len(workers) == count
	}, fmt.Sprintf("pool %s to have %d workers", poolName, count))
}

// WaitForWorkerStatus waits for a specific worker to reach status.
func (w *Waiter) WaitForWorkerStatus(ctx context.Context, c *client.Client, poolName, workerID string, status types.WorkerStatus) error {
	return w.WaitFor(ctx, func() bool {
		workers, err := c.ListWorkers(ctx, poolName)
		if err != nil {
			return false
		}
		for _, wk := range workers {
			if wk.ID == workerID {
				return wk.Status == status
			}
		}
		return false
	}, fmt.Sprintf("worker %s to reach status %s", workerID, status))
}

// WaitForIdleWorker waits until poolName has at least one worker that is
// online and not running a job.
func (w *Waiter) WaitForIdleWorker(ctx context.Context, c *client.Client, poolName string) error {
	return w.WaitFor(ctx, func() bool {
		workers, err := c.ListWorkers(ctx, poolName)
		if err != nil {
			return false
		}
		for _, wk := range workers {
			if wk.Status == types.WorkerOnline && wk.Idle() {
				return true
			}
		}
		return false
	}, fmt.Sprintf("pool %s to have an idle worker", poolName))
}

// PollUntil polls a condition until it returns true or context is cancelled.
func PollUntil(ctx context.Context, interval time.Duration, condition func() bool) error {
	if condition() {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// Retry retries an operation with exponential backoff.
func Retry(ctx context.Context, attempts int, initialDelay time.Duration, operation func() error) error {
	var err error
	delay := initialDelay
	for i := 0; i < attempts; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return fmt.Errorf("operation failed after %d attempts: %w", attempts, err)
}
