package pool

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodei/pipelines/pkg/health"
	"github.com/hodei/pipelines/pkg/provider"
	"github.com/hodei/pipelines/pkg/storage"
	"github.com/hodei/pipelines/pkg/types"
)

// fakeProvider is an in-memory stand-in for a real Instance Provider,
// letting tests exercise Registry without a containerd/lima daemon.
type fakeProvider struct {
	kind        types.ProviderKind
	provisioned int32
	fail        bool
	unhealthy   bool
}

type fakeChecker struct{ healthy bool }

func (f fakeChecker) Check(ctx context.Context) health.Result {
	return health.Result{Healthy: f.healthy, CheckedAt: time.Now()}
}

func (f fakeChecker) Type() health.CheckType { return health.CheckTypeExec }

func (f *fakeProvider) HealthChecker() health.Checker { return fakeChecker{healthy: !f.unhealthy} }

func (f *fakeProvider) Kind() types.ProviderKind { return f.kind }

func (f *fakeProvider) Provision(ctx context.Context, p *types.ResourcePool) (*types.Worker, error) {
	if f.fail {
		return nil, assert.AnError
	}
	n := atomic.AddInt32(&f.provisioned, 1)
	return &types.Worker{
		ID:           fmt.Sprintf("fake-worker-%s-%d", p.Name, n),
		PoolName:     p.Name,
		Status:       types.WorkerOnline,
		Capacity:     types.WorkerCapacity{CPUMillis: p.Template.CPUMillis, MemoryBytes: p.Template.MemoryBytes},
		RegisteredAt: time.Now(),
		LastHeartbeat: time.Now(),
		Ephemeral:    p.EphemeralWorkers,
	}, nil
}

func (f *fakeProvider) Deprovision(ctx context.Context, workerID string) error { return nil }

func (f *fakeProvider) Running(ctx context.Context, workerID string) (bool, error) { return true, nil }

func (f *fakeProvider) Close() error { return nil }

func newTestRegistry(t *testing.T) (*Registry, storage.Store, *fakeProvider) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fp := &fakeProvider{kind: types.ProviderContainer}
	r := New(store, map[types.ProviderKind]provider.Provider{types.ProviderContainer: fp})
	return r, store, fp
}

func TestRegistry_CreatePoolProvisionsUpToMin(t *testing.T) {
	r, store, fp := newTestRegistry(t)

	p := &types.ResourcePool{
		Name:     "ci-pool",
		Provider: types.ProviderContainer,
		Template: types.Template{Image: "hodei/worker:latest", CPUMillis: 1000, MemoryBytes: 512 << 20},
		MinWorkers: 3,
		MaxWorkers: 5,
	}

	err := r.CreatePool(context.Background(), p)
	require.NoError(t, err)

	workers, err := store.ListWorkersByPool("ci-pool")
	require.NoError(t, err)
	assert.Len(t, workers, 3)
	assert.EqualValues(t, 3, fp.provisioned)
}

func TestRegistry_CreatePoolRejectsUnknownProvider(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	p := &types.ResourcePool{Name: "vm-pool", Provider: types.ProviderVM, MinWorkers: 1}
	err := r.CreatePool(context.Background(), p)
	assert.Error(t, err)
}

func TestRegistry_SampleUtilizationComputesPercentages(t *testing.T) {
	r, store, _ := newTestRegistry(t)

	p := &types.ResourcePool{Name: "batch", Provider: types.ProviderContainer}
	require.NoError(t, store.CreatePool(p))
	require.NoError(t, store.CreateWorker(&types.Worker{
		ID: "w1", PoolName: "batch", Status: types.WorkerOnline,
		Capacity: types.WorkerCapacity{CPUMillis: 1000, UsedCPUMillis: 500, MemoryBytes: 1000, UsedMemoryBytes: 250},
	}))

	err := r.sampleUtilization(p)
	require.NoError(t, err)

	u, ok := r.Utilization("batch")
	require.True(t, ok)
	assert.Equal(t, 50.0, u.CPUPercent)
	assert.Equal(t, 25.0, u.MemPercent)
	assert.Equal(t, 1, u.ActiveInstances)
}

func TestRegistry_ReclaimIdleRespectsMinWorkers(t *testing.T) {
	r, store, _ := newTestRegistry(t)

	p := &types.ResourcePool{
		Name: "spot", Provider: types.ProviderContainer,
		MinWorkers: 1, EphemeralWorkers: true, IdleTimeout: 1,
	}
	require.NoError(t, store.CreatePool(p))

	stale := time.Now().Add(-time.Hour)
	require.NoError(t, store.CreateWorker(&types.Worker{
		ID: "w1", PoolName: "spot", Status: types.WorkerOnline, LastHeartbeat: stale,
	}))

	r.reclaimIdle(p)

	workers, err := store.ListWorkersByPool("spot")
	require.NoError(t, err)
	assert.Len(t, workers, 1, "reclaim must not drop below MinWorkers")
}

func TestRegistry_ProviderHealthyDefaultsTrueBeforeFirstProbe(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	assert.True(t, r.ProviderHealthy(types.ProviderContainer))
}

func TestRegistry_CheckProviderHealthFlipsAfterRetriesConsecutiveFailures(t *testing.T) {
	r, _, fp := newTestRegistry(t)
	fp.unhealthy = true

	r.checkProviderHealth(context.Background(), types.ProviderContainer)
	assert.True(t, r.ProviderHealthy(types.ProviderContainer), "one failure must not flip Healthy")

	r.checkProviderHealth(context.Background(), types.ProviderContainer)
	assert.False(t, r.ProviderHealthy(types.ProviderContainer), "healthConfig.Retries=2 consecutive failures must flip Healthy")
}

func TestRegistry_EnsureMinWorkersRefusesToProvisionWhenProviderUnhealthy(t *testing.T) {
	r, _, fp := newTestRegistry(t)
	fp.unhealthy = true
	r.checkProviderHealth(context.Background(), types.ProviderContainer)
	r.checkProviderHealth(context.Background(), types.ProviderContainer)
	require.False(t, r.ProviderHealthy(types.ProviderContainer))

	p := &types.ResourcePool{
		Name: "down", Provider: types.ProviderContainer, MinWorkers: 1, MaxWorkers: 1,
	}
	err := r.ensureMinWorkers(context.Background(), p)
	assert.Error(t, err)
	assert.EqualValues(t, 0, fp.provisioned)
}
