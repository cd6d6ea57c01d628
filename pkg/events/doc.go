/*
Package events implements an in-memory pub/sub broker used to fan
ExecutionEvents out to server-push subscribers. The per-job event log
itself is persisted by pkg/storage.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│  Publisher → Event Channel (buffer: 256)                  │
	│       ↓                                                    │
	│  Broadcast Loop                                            │
	│       ↓                                                    │
	│  Subscriber Channels (buffer: 64 each), filtered by JobID │
	└────────────────────────────────────────────────────────────┘

Unlike a single cluster-wide stream, each Subscriber is created against a
JobID filter so a client watching "GET job/{id}/events" never observes
another job's events. Passing an empty JobID subscribes to every job,
which orchestrator-wide tooling (audit logging, metrics) uses.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe(job.ID)
	defer broker.Unsubscribe(sub)

	go func() {
		for ev := range sub {
			fmt.Printf("[%s] %s: %s\n", ev.Timestamp, ev.Type, ev.Message)
		}
	}()

	broker.Publish(&types.ExecutionEvent{
		JobID:   job.ID,
		Type:    types.EventStepStarted,
		Stage:   "build",
		Step:    "compile",
		Message: "running go build",
	})

# Delivery semantics

Delivery is best-effort: a subscriber with a full buffer silently misses
events rather than stalling the broadcast loop. Publish itself waits only
while the 256-event intake buffer is full. Callers that
need a durable record persist events via pkg/storage's event repository
independently of broker delivery; the broker exists purely for live
streaming, not as the source of truth for a job's history.

# Integration points

  - pkg/engine publishes job/stage/step lifecycle events as the Execution
    Engine drives a job through the interpreter.
  - pkg/reconciler publishes worker.lost for each active job of a worker
    whose heartbeat has gone stale.
  - pkg/client streams a job's events to callers over ControlService's
    SubscribeEvents RPC (see api/proto).
*/
package events
