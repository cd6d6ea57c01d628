// Package events implements an in-memory pub/sub broker used to fan
// ExecutionEvents out to server-push subscribers (e.g. a GET
// job/{id}/events stream). The durable per-job event log is kept by
// pkg/storage, not here.
package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hodei/pipelines/pkg/types"
)

// Subscriber is a channel that receives ExecutionEvents for one or more
// jobs, depending on how it was created via Broker.Subscribe.
type Subscriber chan *types.ExecutionEvent

// Broker manages event subscriptions and distribution. Unlike a single
// cluster-wide event stream, subscriptions here are scoped to a JobID so a
// client watching one job's log never sees another job's events.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]string // subscriber -> jobID filter ("" = all jobs)
	eventCh     chan *types.ExecutionEvent
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]string),
		eventCh:     make(chan *types.ExecutionEvent, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a subscription for a single job's events. Pass "" to
// receive every job's events (used by orchestrator-wide tooling).
func (b *Broker) Subscribe(jobID string) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 64)
	b.subscribers[sub] = jobID
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish hands event to the broadcast loop, which fans it out to matching
// subscribers. A fresh ID is assigned if unset; the timestamp is left as
// the caller set it. Publish waits while the 256-event intake buffer is
// full (or until Stop).
func (b *Broker) Publish(event *types.ExecutionEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *types.ExecutionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, jobID := range b.subscribers {
		if jobID != "" && jobID != event.JobID {
			continue
		}
		select {
		case sub <- event:
		default:
			// Subscriber buffer full; drop rather than block publishers.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
