/*
Package scheduler implements the pool-placement half of Job scheduling: it
picks which ResourcePool a queued Job lands in. Picking a Worker within
that pool is pkg/engine's job, run once this package publishes
EventJobScheduled.

# Architecture

	┌─────────────────── every 2s, drain queue ─────────────────────────┐
	│  batch := drain every Queue.Dequeue() until empty                 │
	│  for job := range batch:                                         │
	│    pools  := store.ListPools()                                   │
	│    elig   := filter(pools, ProviderHealthy && LabelExpr.Match)    │
	│    chosen := PoolStrategy.SelectPool(elig, job, registry)         │
	│    store.UpdateJob(AssignedPool), publish job.scheduled           │
	│    on failure: job.Phase = Pending, Queue.Enqueue(job) again      │
	└─────────────────────────────────────────────────────────────────────┘

A job that fails placement is pushed back onto the Queue rather than
dropped, so it is reconsidered on the next tick once a matching pool comes
healthy or is created; pkg/reconciler's maxWaitTime eviction is the
backstop for a job that can never be placed.

# Pool placement strategies

PoolStrategy is pluggable via PoolStrategyByName: RoundRobinPoolStrategy
cycles lexically through eligible pools; LeastLoadedPoolStrategy scores
each by the Resource Pool Registry's cached cpuPct+memPct+activeWorkers/
maxWorkers utilization and picks the lowest; GreedyBestFitPoolStrategy
picks the pool with the fewest free worker slots that still has room;
BinPackingPoolStrategy consolidates onto the most-utilized pool with
headroom. A pool with no recent Utilization sample is treated as fully
loaded rather than favored by a stale zero reading. All four break ties by
pool name so placement is deterministic under test.

# Label expressions

labelexpr.go implements the &&/grouping boolean expression a Job's
WorkerRequirements.PoolLabelSelector is evaluated against a pool's Labels
with: a conjunction of KEY or KEY=VALUE predicates, parenthesized for
grouping. An empty selector matches every pool.

# Worker-level strategies

Strategy (BinPackStrategy, SpreadStrategy, RandomStrategy, resolved via
StrategyByName) is the second-phase building block pkg/engine uses to pick
one idle Worker inside the pool this package already chose; it never runs
here. MatchesLabels is the same worker-capability check, exported for
engine's use.

# Usage

	s := scheduler.New(jobQueue, store, poolRegistry, broker, scheduler.NewRoundRobinPoolStrategy())
	s.Start()
	defer s.Stop()

# Integration points

  - pkg/queue supplies pending jobs and accepts requeues via JobSource.
  - pkg/pool.Registry supplies provider health and utilization snapshots.
  - pkg/storage lists ResourcePools and persists the AssignedPool decision.
  - pkg/engine picks up EventJobScheduled, binds a worker, and dispatches.
  - pkg/metrics.SchedulingLatency/JobQueueWaitSeconds/JobsScheduledTotal/
    JobsFailedTotal record scheduler outcomes.
*/
package scheduler
