package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodei/pipelines/pkg/events"
	"github.com/hodei/pipelines/pkg/storage"
	"github.com/hodei/pipelines/pkg/types"
)

func newTestReconciler(t *testing.T) (*Reconciler, storage.Store, *events.Broker) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	return New(store, broker), store, broker
}

func TestReconciler_MarksStaleWorkerOffline(t *testing.T) {
	r, store, broker := newTestReconciler(t)

	sub := broker.Subscribe("job-1")
	defer broker.Unsubscribe(sub)

	worker := &types.Worker{
		ID:            "w1",
		PoolName:      "pool-a",
		Status:        types.WorkerOnline,
		ActiveJobIDs:  []string{"job-1"},
		RegisteredAt:  time.Now().Add(-time.Hour),
		LastHeartbeat: time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.CreateWorker(worker))

	r.reconcile()

	got, err := store.GetWorker("w1")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerOffline, got.Status)
	assert.Empty(t, got.ActiveJobIDs)

	select {
	case evt := <-sub:
		assert.Equal(t, types.EventWorkerLost, evt.Type)
		assert.Equal(t, "job-1", evt.JobID)
	case <-time.After(time.Second):
		t.Fatal("expected worker.lost event")
	}
}

func TestReconciler_LeavesFreshWorkerAlone(t *testing.T) {
	r, store, _ := newTestReconciler(t)

	worker := &types.Worker{
		ID:            "w2",
		PoolName:      "pool-a",
		Status:        types.WorkerOnline,
		RegisteredAt:  time.Now(),
		LastHeartbeat: time.Now(),
	}
	require.NoError(t, store.CreateWorker(worker))

	r.reconcile()

	got, err := store.GetWorker("w2")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerOnline, got.Status)
}

func TestReconciler_EvictsJobPastMaxWaitTime(t *testing.T) {
	r, store, _ := newTestReconciler(t)

	job := types.NewJob("build", &types.PipelineModel{Name: "p"}, types.WorkerRequirements{}, types.PriorityNormal)
	job.MaxWaitTime = time.Minute
	job.SubmittedAt = time.Now().Add(-2 * time.Minute)
	require.NoError(t, store.CreateJob(job))

	r.reconcile()

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, got.Phase)
	require.NotNil(t, got.Error)
	assert.Equal(t, types.ReasonSchedulingTimeout, got.Error.Reason)
}

func TestReconciler_LeavesJobWithinMaxWaitTime(t *testing.T) {
	r, store, _ := newTestReconciler(t)

	job := types.NewJob("build", &types.PipelineModel{Name: "p"}, types.WorkerRequirements{}, types.PriorityNormal)
	job.MaxWaitTime = time.Hour
	require.NoError(t, store.CreateJob(job))

	r.reconcile()

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobPending, got.Phase)
}
