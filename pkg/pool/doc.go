/*
Package pool implements the Resource Pool Registry: it owns the set of
named ResourcePools, keeps each pool's worker count between MinWorkers and
MaxWorkers via the pool's bound provider.Provider, and caches a utilization
snapshot per pool for the scheduler's placement strategies to read.

# Provisioning

CreatePool persists a pool and immediately provisions up to MinWorkers.
The periodic loop started by Start re-checks every pool every 5 seconds:
topping up below MinWorkers, sampling utilization, and reclaiming idle
ephemeral workers that have exceeded their pool's IdleTimeout (never below
MinWorkers).

# Utilization sampling

sampleUtilization polls the Worker Registry's live worker records for a
pool rather than querying the provider directly; a provider's Running
check only confirms the instance is alive, not how loaded it is, and
capacity/usage bookkeeping already lives on types.Worker (see pkg/engine,
which increments Used* when it binds a job to a worker).

# Provider health

Each tick probes every distinct provider kind in use (at most once per
tick, regardless of pool count) via provider.Provider.HealthChecker and
updates a cached pkg/health.Status. ensureMinWorkers refuses to provision
into a pool whose provider is currently unhealthy rather than let every
pool on a dead provider retry and fail individually.

# Integration points

  - pkg/provider supplies the Provider implementations this package drives
    and probes for health.
  - pkg/scheduler reads Utilization snapshots when a pool-aware strategy is
    configured.
  - pkg/engine calls Deprovision when releasing an ephemeral worker whose
    job has finished.
*/
package pool
