/*
Package queue implements the Job Queue: an in-memory, mutex-protected
priority heap holding Jobs waiting to be placed onto a Worker.

# Ordering

Dequeue always returns the highest types.Priority job; jobs of equal
priority come out in SubmittedAt order (oldest first). This is a
container/heap.Interface over a slice, not a separate priority-then-FIFO
sort pass, so Enqueue/Dequeue/Remove are all O(log n).

# Cancellation

Remove(jobID) pulls an arbitrary job out of the queue in O(log n) via an
ID->heap-index map maintained by the heap's Push/Swap/Pop, the same role
prunner's waitListByPipeline slice serves for its FIFO-only queue — here
generalized to heap.Remove since priority ordering rules out a simple
"drop from the front" removal.

# What the queue does not do

The queue holds only pending jobs; it does not persist them (pkg/storage
does, keyed by phase) and does not decide placement (pkg/scheduler pops
from here and picks a ResourcePool; pkg/engine then picks a Worker in it).
maxWaitTime eviction is pkg/reconciler's job, operating on the phase stored
for a job, not on queue membership directly.

# Integration points

  - pkg/orchestrator owns one Queue; SubmitJob enqueues, the scheduler loop
    dequeues.
  - pkg/metrics.Collector samples Queue.QueuedJobs() (the Snapshot
    interface) for hodei_jobs_queued_total / hodei_jobs_by_phase.
*/
package queue
