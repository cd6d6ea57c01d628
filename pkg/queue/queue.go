package queue

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/types"
)

// Queue is the in-memory priority+FIFO Job Queue: higher Priority jobs are
// dequeued first, jobs of equal priority in SubmittedAt order. It holds only
// pending jobs; once a job leaves the queue (Dequeue or Remove) the caller
// owns persisting its new phase via pkg/storage.
type Queue struct {
	mu     sync.Mutex
	heap   jobHeap
	logger zerolog.Logger
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{
		heap:   newJobHeap(),
		logger: log.WithComponent("queue"),
	}
}

// Enqueue adds job to the queue. Returns an error if a job with the same ID
// is already queued.
func (q *Queue) Enqueue(job *types.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.heap.index[job.ID]; exists {
		return fmt.Errorf("job %s already queued", job.ID)
	}

	heap.Push(&q.heap, job)
	q.logger.Debug().Str("job_id", job.ID).Int("priority", int(job.Priority)).Msg("job queued")
	return nil
}

// Dequeue removes and returns the highest-priority job, or nil if the queue
// is empty.
func (q *Queue) Dequeue() *types.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*types.Job)
}

// Remove removes job by ID, e.g. on cancellation while still queued.
// Reports whether the job was found.
func (q *Queue) Remove(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i, ok := q.heap.index[jobID]
	if !ok {
		return false
	}
	heap.Remove(&q.heap, i)
	return true
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// List returns a snapshot of queued jobs, not in any guaranteed order.
func (q *Queue) List() []*types.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*types.Job, len(q.heap.items))
	copy(out, q.heap.items)
	return out
}

// QueuedJobs implements metrics.Snapshot.
func (q *Queue) QueuedJobs() []*types.Job {
	return q.List()
}

// jobHeap implements container/heap.Interface over a priority-ordered slice
// of Jobs, tracking each job's current index so Queue.Remove can locate and
// heap.Remove an arbitrary queued job in O(log n) instead of a linear scan.
type jobHeap struct {
	items []*types.Job
	index map[string]int // job ID -> position in items
}

func newJobHeap() jobHeap {
	return jobHeap{items: make([]*types.Job, 0), index: make(map[string]int)}
}

func (h jobHeap) Len() int { return len(h.items) }

func (h jobHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority // higher priority first
	}
	return a.SubmittedAt.Before(b.SubmittedAt)
}

func (h jobHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.index[h.items[i].ID] = i
	h.index[h.items[j].ID] = j
}

func (h *jobHeap) Push(x any) {
	job := x.(*types.Job)
	h.index[job.ID] = len(h.items)
	h.items = append(h.items, job)
}

func (h *jobHeap) Pop() any {
	old := h.items
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	delete(h.index, job.ID)
	return job
}
