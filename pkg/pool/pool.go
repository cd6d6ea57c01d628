package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/pkg/health"
	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/metrics"
	"github.com/hodei/pipelines/pkg/provider"
	"github.com/hodei/pipelines/pkg/storage"
	"github.com/hodei/pipelines/pkg/types"
)

const sampleInterval = 5 * time.Second

// healthConfig governs how tolerantly a provider's HealthChecker is probed
// (per-probe Timeout, Retries before it counts as unhealthy, start period).
// Probes run once per sampleInterval tick; Interval is not read here.
// Providers are infrastructure control planes (a containerd socket, a
// hypervisor), not individual workers, so a more forgiving policy than a
// worker heartbeat is appropriate.
var healthConfig = health.Config{
	Interval: 30 * time.Second,
	Timeout:  10 * time.Second,
	Retries:  2,
}

// Utilization is a point-in-time snapshot of a pool's load, cached by the
// Registry and consulted by pkg/scheduler's strategies.
type Utilization struct {
	CPUPercent      float64
	MemPercent      float64
	ActiveInstances int
	Timestamp       time.Time
}

// Registry is the Resource Pool Registry: it tracks named pools, keeps each
// pool's worker count within [MinWorkers, MaxWorkers] via the pool's bound
// Instance Provider, and caches a utilization snapshot per pool.
type Registry struct {
	store     storage.Store
	providers map[types.ProviderKind]provider.Provider
	logger    zerolog.Logger

	mu     sync.RWMutex
	snap   map[string]Utilization
	health map[types.ProviderKind]*health.Status

	stopCh chan struct{}
}

// New creates a Registry. providers maps each ProviderKind a ResourcePool
// may reference to the concrete Provider implementation that serves it.
func New(store storage.Store, providers map[types.ProviderKind]provider.Provider) *Registry {
	statuses := make(map[types.ProviderKind]*health.Status, len(providers))
	for kind := range providers {
		statuses[kind] = health.NewStatus()
	}
	return &Registry{
		store:     store,
		providers: providers,
		logger:    log.WithComponent("pool"),
		snap:      make(map[string]Utilization),
		health:    statuses,
		stopCh:    make(chan struct{}),
	}
}

// ProviderHealthy reports the last-probed health of the Instance Provider
// backing kind. A provider with no cached status yet (no probe has run) is
// reported healthy, matching health.Status's optimistic default.
func (r *Registry) ProviderHealthy(kind types.ProviderKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.health[kind]
	if !ok {
		return true
	}
	return st.Healthy
}

// checkProviderHealth probes kind's provider and updates its cached Status,
// logging a transition from healthy to unhealthy once.
func (r *Registry) checkProviderHealth(ctx context.Context, kind types.ProviderKind) {
	prov, ok := r.providers[kind]
	if !ok {
		return
	}

	r.mu.Lock()
	st, ok := r.health[kind]
	if !ok {
		st = health.NewStatus()
		r.health[kind] = st
	}
	r.mu.Unlock()

	if st.InStartPeriod(healthConfig) {
		return
	}

	wasHealthy := st.Healthy
	result := prov.HealthChecker().Check(ctx)

	r.mu.Lock()
	st.Update(result, healthConfig)
	stillUnhealthy := !st.Healthy
	r.mu.Unlock()

	if wasHealthy && stillUnhealthy {
		r.logger.Warn().Str("provider", string(kind)).Str("detail", result.Message).Msg("instance provider reported unhealthy")
	} else if !wasHealthy && !stillUnhealthy {
		r.logger.Info().Str("provider", string(kind)).Msg("instance provider recovered")
	}
}

// CreatePool registers a new pool and immediately provisions it up to
// MinWorkers.
func (r *Registry) CreatePool(ctx context.Context, p *types.ResourcePool) error {
	if _, ok := r.providers[p.Provider]; !ok {
		return fmt.Errorf("no provider registered for kind %q", p.Provider)
	}
	if err := r.store.CreatePool(p); err != nil {
		return fmt.Errorf("failed to persist pool %s: %w", p.Name, err)
	}
	return r.ensureMinWorkers(ctx, p)
}

// Start begins the periodic utilization-sampling and min-worker reconcile
// loop.
func (r *Registry) Start() { go r.run() }

// Stop halts the sampling loop. It does not deprovision any workers.
func (r *Registry) Stop() { close(r.stopCh) }

func (r *Registry) run() {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Registry) tick() {
	pools, err := r.store.ListPools()
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list pools")
		return
	}

	checked := make(map[types.ProviderKind]bool)
	for _, p := range pools {
		if !checked[p.Provider] {
			hctx, hcancel := context.WithTimeout(context.Background(), healthConfig.Timeout)
			r.checkProviderHealth(hctx, p.Provider)
			hcancel()
			checked[p.Provider] = true
		}

		if err := r.sampleUtilization(p); err != nil {
			r.logger.Warn().Err(err).Str("pool", p.Name).Msg("utilization sample failed")
		}
		ctx, cancel := context.WithTimeout(context.Background(), sampleInterval)
		if err := r.ensureMinWorkers(ctx, p); err != nil {
			r.logger.Warn().Err(err).Str("pool", p.Name).Msg("failed to reconcile min workers")
		}
		cancel()
		r.reclaimIdle(p)
	}
}

// sampleUtilization polls the pool's live workers and caches a Utilization
// snapshot the scheduler's strategies can read via Snapshot.
func (r *Registry) sampleUtilization(p *types.ResourcePool) error {
	workers, err := r.store.ListWorkersByPool(p.Name)
	if err != nil {
		return fmt.Errorf("failed to list workers for pool %s: %w", p.Name, err)
	}

	var totalCPU, usedCPU, totalMem, usedMem int64
	active := 0
	for _, w := range workers {
		if w.Status == types.WorkerOffline {
			continue
		}
		totalCPU += w.Capacity.CPUMillis
		usedCPU += w.Capacity.UsedCPUMillis
		totalMem += w.Capacity.MemoryBytes
		usedMem += w.Capacity.UsedMemoryBytes
		active++
	}

	u := Utilization{ActiveInstances: active, Timestamp: time.Now()}
	if totalCPU > 0 {
		u.CPUPercent = float64(usedCPU) / float64(totalCPU) * 100
	}
	if totalMem > 0 {
		u.MemPercent = float64(usedMem) / float64(totalMem) * 100
	}

	r.mu.Lock()
	r.snap[p.Name] = u
	r.mu.Unlock()
	return nil
}

// Utilization returns the last cached snapshot for pool, or the zero value
// with ok=false if none has been sampled yet.
func (r *Registry) Utilization(poolName string) (Utilization, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.snap[poolName]
	return u, ok
}

// ensureMinWorkers provisions workers until the pool has at least
// MinWorkers non-offline instances, capped at MaxWorkers.
func (r *Registry) ensureMinWorkers(ctx context.Context, p *types.ResourcePool) error {
	workers, err := r.store.ListWorkersByPool(p.Name)
	if err != nil {
		return err
	}

	live := 0
	for _, w := range workers {
		if w.Status != types.WorkerOffline {
			live++
		}
	}

	if live < p.MinWorkers && !r.ProviderHealthy(p.Provider) {
		return fmt.Errorf("provider %q is unhealthy, not provisioning into pool %s", p.Provider, p.Name)
	}

	for live < p.MinWorkers {
		if p.MaxWorkers > 0 && live >= p.MaxWorkers {
			break
		}
		if _, err := r.Provision(ctx, p); err != nil {
			return err
		}
		live++
	}
	return nil
}

// Provision requests a new worker instance from the pool's bound provider
// and persists the resulting Worker record.
func (r *Registry) Provision(ctx context.Context, p *types.ResourcePool) (*types.Worker, error) {
	prov, ok := r.providers[p.Provider]
	if !ok {
		return nil, fmt.Errorf("no provider registered for kind %q", p.Provider)
	}

	timer := metrics.NewTimer()
	worker, err := prov.Provision(ctx, p)
	if err != nil {
		metrics.ProvisioningFailedTotal.WithLabelValues(string(p.Provider)).Inc()
		return nil, fmt.Errorf("failed to provision worker for pool %s: %w", p.Name, err)
	}
	timer.ObserveDurationVec(metrics.ProvisioningDuration, string(p.Provider))

	if err := r.store.CreateWorker(worker); err != nil {
		return nil, fmt.Errorf("failed to persist provisioned worker: %w", err)
	}
	metrics.PoolWorkersProvisioned.WithLabelValues(p.Name).Inc()

	r.logger.Info().Str("pool", p.Name).Str("worker", worker.ID).Msg("provisioned worker")
	return worker, nil
}

// Deprovision tears down a worker instance via its pool's provider and
// removes the Worker record.
func (r *Registry) Deprovision(ctx context.Context, worker *types.Worker) error {
	p, err := r.store.GetPool(worker.PoolName)
	if err != nil {
		return fmt.Errorf("failed to look up pool %s: %w", worker.PoolName, err)
	}
	prov, ok := r.providers[p.Provider]
	if !ok {
		return fmt.Errorf("no provider registered for kind %q", p.Provider)
	}

	if err := prov.Deprovision(ctx, worker.ID); err != nil {
		return fmt.Errorf("failed to deprovision worker %s: %w", worker.ID, err)
	}
	if err := r.store.DeleteWorker(worker.ID); err != nil {
		return fmt.Errorf("failed to remove worker record %s: %w", worker.ID, err)
	}

	r.logger.Info().Str("pool", worker.PoolName).Str("worker", worker.ID).Msg("deprovisioned worker")
	return nil
}

// reclaimIdle deprovisions ephemeral, idle workers that have exceeded the
// pool's IdleTimeout, never dropping below MinWorkers.
func (r *Registry) reclaimIdle(p *types.ResourcePool) {
	if !p.EphemeralWorkers || p.IdleTimeout <= 0 {
		return
	}

	workers, err := r.store.ListWorkersByPool(p.Name)
	if err != nil {
		r.logger.Warn().Err(err).Str("pool", p.Name).Msg("failed to list workers for idle reclaim")
		return
	}

	live := 0
	for _, w := range workers {
		if w.Status != types.WorkerOffline {
			live++
		}
	}

	timeout := time.Duration(p.IdleTimeout) * time.Second
	now := time.Now()
	for _, w := range workers {
		if live <= p.MinWorkers {
			return
		}
		if w.Status != types.WorkerOnline || !w.Idle() {
			continue
		}
		if now.Sub(w.LastHeartbeat) < timeout {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), provider.StopTimeout)
		if err := r.Deprovision(ctx, w); err != nil {
			r.logger.Warn().Err(err).Str("worker", w.ID).Msg("failed to reclaim idle worker")
		} else {
			live--
		}
		cancel()
	}
}
