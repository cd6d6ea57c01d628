/*
Package reconciler sweeps stored state on a fixed interval to catch drift
that event-driven code paths miss: workers that stopped heartbeating, and
jobs that sat in the queue longer than they were willing to wait.

# Architecture

	┌──────────────────── every 10s ────────────────────┐
	│                                                    │
	│  reconcileWorkers: LastHeartbeat > 30s ago         │
	│    -> Status = Offline, publish worker.lost        │
	│       per active job                               │
	│                                                    │
	│  reconcileQueue: SubmittedAt + MaxWaitTime elapsed  │
	│    -> Phase = Failed (ReasonSchedulingTimeout)      │
	└────────────────────────────────────────────────────┘

The reconciler only writes the fact (worker offline, job evicted) and emits
the corresponding event; it never reschedules a lost worker's jobs or
retries an evicted one. pkg/engine fails a lost worker's jobs on
EventWorkerLost, and pkg/scheduler drops a queued job whose stored phase is
already Failed, keeping the reconciler itself free of placement logic.

# Usage

	r := reconciler.New(store, broker)
	r.Start()
	defer r.Stop()

# Integration points

  - pkg/orchestrator starts one Reconciler alongside the queue and scheduler.
  - pkg/events.Broker carries worker.lost and job.failed to subscribers
    (pkg/engine, the CLI's `hodei job watch`).
  - pkg/metrics.ReconciliationDuration/ReconciliationCyclesTotal/
    WorkersMarkedOfflineTotal/JobsEvictedTotal track reconciler activity.
*/
package reconciler
