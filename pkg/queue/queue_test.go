package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodei/pipelines/pkg/types"
)

func newJob(name string, priority types.Priority, age time.Duration) *types.Job {
	j := types.NewJob(name, &types.PipelineModel{Name: "p"}, types.WorkerRequirements{}, priority)
	j.SubmittedAt = time.Now().Add(-age)
	return j
}

func TestQueue_DequeueOrdersByPriorityThenFIFO(t *testing.T) {
	q := New()

	low := newJob("low", types.PriorityLow, 0)
	highOld := newJob("high-old", types.PriorityHigh, 2*time.Second)
	highNew := newJob("high-new", types.PriorityHigh, time.Second)
	critical := newJob("critical", types.PriorityCritical, 0)

	for _, j := range []*types.Job{low, highNew, critical, highOld} {
		require.NoError(t, q.Enqueue(j))
	}

	assert.Equal(t, critical.ID, q.Dequeue().ID)
	assert.Equal(t, highOld.ID, q.Dequeue().ID)
	assert.Equal(t, highNew.ID, q.Dequeue().ID)
	assert.Equal(t, low.ID, q.Dequeue().ID)
	assert.Nil(t, q.Dequeue())
}

func TestQueue_EnqueueRejectsDuplicateID(t *testing.T) {
	q := New()
	job := newJob("j", types.PriorityNormal, 0)

	require.NoError(t, q.Enqueue(job))
	assert.Error(t, q.Enqueue(job))
}

func TestQueue_RemoveByID(t *testing.T) {
	q := New()
	a := newJob("a", types.PriorityNormal, 0)
	b := newJob("b", types.PriorityNormal, 0)
	require.NoError(t, q.Enqueue(a))
	require.NoError(t, q.Enqueue(b))

	assert.True(t, q.Remove(a.ID))
	assert.False(t, q.Remove(a.ID))
	assert.Equal(t, 1, q.Len())

	remaining := q.Dequeue()
	assert.Equal(t, b.ID, remaining.ID)
}

func TestQueue_List(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(newJob("a", types.PriorityNormal, 0)))
	require.NoError(t, q.Enqueue(newJob("b", types.PriorityNormal, 0)))

	assert.Len(t, q.List(), 2)
	assert.Equal(t, 2, q.Len())
}
