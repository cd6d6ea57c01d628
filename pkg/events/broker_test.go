package events

import (
	"testing"
	"time"

	"github.com/hodei/pipelines/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestBroker_SubscribeFiltersByJobID(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	subA := b.Subscribe("job-a")
	defer b.Unsubscribe(subA)
	subAll := b.Subscribe("")
	defer b.Unsubscribe(subAll)

	b.Publish(&types.ExecutionEvent{JobID: "job-a", Type: types.EventJobStarted})
	b.Publish(&types.ExecutionEvent{JobID: "job-b", Type: types.EventJobStarted})

	select {
	case ev := <-subA:
		assert.Equal(t, "job-a", ev.JobID)
	case <-time.After(time.Second):
		t.Fatal("expected event for job-a")
	}

	select {
	case ev := <-subA:
		t.Fatalf("subA should not receive job-b's event, got %v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	received := 0
	for i := 0; i < 2; i++ {
		select {
		case <-subAll:
			received++
		case <-time.After(time.Second):
			t.Fatal("expected both events on wildcard subscriber")
		}
	}
	assert.Equal(t, 2, received)
}

func TestBroker_SubscriberCount(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	assert.Equal(t, 0, b.SubscriberCount())
	sub := b.Subscribe("job-a")
	assert.Equal(t, 1, b.SubscriberCount())
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())
}
