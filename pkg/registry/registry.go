// Package registry implements the Worker Registry: it accepts the single
// bidi WorkerService stream each worker opens, validates its join token,
// tracks registration/heartbeats/status transitions in storage.Store, and
// satisfies pkg/engine's Dispatcher interface by writing Assignment/Cancel
// envelopes back down the worker's stream.
package registry

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/api/proto"
	"github.com/hodei/pipelines/pkg/engine"
	"github.com/hodei/pipelines/pkg/events"
	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/security"
	"github.com/hodei/pipelines/pkg/storage"
	"github.com/hodei/pipelines/pkg/types"
)

// ResultHandler and EventHandler are the two callbacks pkg/engine exposes;
// declared locally so registry does not need the concrete *engine.Engine
// type for tests that only exercise the stream/connection bookkeeping.
type ResultHandler interface {
	ReportResult(jobID string, result *proto.ExecutionResultMessage)
}

type EventHandler interface {
	ReportEvent(event *types.ExecutionEvent)
}

// connection wraps one worker's open stream. grpc server streams are not
// safe for concurrent Send calls, so every write goes through sendMu.
type connection struct {
	workerID string
	stream   proto.WorkerService_StreamServer
	sendMu   sync.Mutex
}

func (c *connection) send(env *proto.Envelope) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.stream.Send(env)
}

// Registry is the Worker Registry.
type Registry struct {
	store  storage.Store
	broker *events.Broker
	tokens *security.TokenManager
	result ResultHandler
	events EventHandler
	logger zerolog.Logger

	mu    sync.RWMutex
	conns map[string]*connection
}

var _ proto.WorkerServiceServer = (*Registry)(nil)
var _ engine.Dispatcher = (*Registry)(nil)

// New creates a Registry. result and events are invoked as
// ExecutionResult/ExecutionEvent envelopes arrive on each worker's stream;
// in production both are the same *engine.Engine.
func New(store storage.Store, broker *events.Broker, tokens *security.TokenManager, result ResultHandler, events EventHandler) *Registry {
	return &Registry{
		store:  store,
		broker: broker,
		tokens: tokens,
		result: result,
		events: events,
		logger: log.WithComponent("registry"),
		conns:  make(map[string]*connection),
	}
}

func (*Registry) mustEmbedUnimplementedWorkerServiceServer() {}

// Stream implements proto.WorkerServiceServer. It blocks for the life of
// the connection: the first envelope must be a Register, after which it
// relays Heartbeat/ExecutionResult/ExecutionEvent envelopes until the
// worker disconnects or the stream errors.
func (r *Registry) Stream(stream proto.WorkerService_StreamServer) error {
	first, err := stream.Recv()
	if err != nil {
		return err
	}
	if first.Type != proto.MsgRegister || first.Register == nil {
		return fmt.Errorf("expected register envelope, got %s", first.Type)
	}

	worker, err := r.register(first.Register, stream)
	if err != nil {
		_ = stream.Send(&proto.Envelope{Type: proto.MsgRegisterAck, RegisterAck: &proto.RegisterAckMessage{Accepted: false, Reason: err.Error()}})
		return err
	}

	conn := &connection{workerID: worker.ID, stream: stream}
	r.mu.Lock()
	r.conns[worker.ID] = conn
	r.mu.Unlock()

	r.logger.Info().Str("worker_id", worker.ID).Str("pool", worker.PoolName).Msg("worker connected")

	if err := conn.send(&proto.Envelope{Type: proto.MsgRegisterAck, RegisterAck: &proto.RegisterAckMessage{Accepted: true}}); err != nil {
		r.disconnect(worker.ID)
		return err
	}

	for {
		env, err := stream.Recv()
		if err != nil {
			r.disconnect(worker.ID)
			if err == io.EOF {
				return nil
			}
			return err
		}
		r.handle(worker.ID, env)
	}
}

func (r *Registry) register(msg *proto.RegisterMessage, stream proto.WorkerService_StreamServer) (*types.Worker, error) {
	poolName, err := r.tokens.ValidateToken(msg.Token)
	if err != nil {
		return nil, fmt.Errorf("join token rejected: %w", err)
	}
	if msg.PoolName != "" && msg.PoolName != poolName {
		return nil, fmt.Errorf("token is scoped to pool %s, not %s", poolName, msg.PoolName)
	}

	now := time.Now()
	worker, err := r.store.GetWorker(msg.WorkerID)
	if err != nil {
		worker = &types.Worker{
			ID:           msg.WorkerID,
			PoolName:     poolName,
			Labels:       msg.Labels,
			RegisteredAt: now,
		}
	}
	worker.Status = types.WorkerOnline
	worker.Capacity = msg.Capacity
	worker.LastHeartbeat = now
	if worker.PoolName == "" {
		worker.PoolName = poolName
	}

	if err := r.store.CreateWorker(worker); err != nil {
		return nil, fmt.Errorf("failed to persist worker: %w", err)
	}
	return worker, nil
}

func (r *Registry) handle(workerID string, env *proto.Envelope) {
	switch env.Type {
	case proto.MsgHeartbeat:
		r.heartbeat(workerID)
	case proto.MsgExecutionResult:
		if env.ExecutionResult != nil && r.result != nil {
			r.result.ReportResult(env.ExecutionResult.JobID, env.ExecutionResult)
		}
	case proto.MsgExecutionEvent:
		if env.ExecutionEvent != nil && r.events != nil {
			r.events.ReportEvent(env.ExecutionEvent)
		}
	default:
		r.logger.Warn().Str("worker_id", workerID).Str("type", string(env.Type)).Msg("unexpected envelope from worker")
	}
}

func (r *Registry) heartbeat(workerID string) {
	worker, err := r.store.GetWorker(workerID)
	if err != nil {
		return
	}
	worker.LastHeartbeat = time.Now()
	if worker.Status == types.WorkerOffline {
		worker.Status = types.WorkerOnline
	}
	if err := r.store.UpdateWorker(worker); err != nil {
		r.logger.Error().Err(err).Str("worker_id", workerID).Msg("failed to persist heartbeat")
	}
}

// disconnect drops the live connection and marks the worker offline
// immediately; pkg/reconciler's staleness sweep is the fallback for
// workers that vanish without a clean stream close.
func (r *Registry) disconnect(workerID string) {
	r.mu.Lock()
	delete(r.conns, workerID)
	r.mu.Unlock()

	r.logger.Warn().Str("worker_id", workerID).Msg("worker disconnected")

	worker, err := r.store.GetWorker(workerID)
	if err != nil {
		return
	}
	lostJobs := worker.ActiveJobIDs
	worker.Status = types.WorkerOffline
	worker.ActiveJobIDs = nil
	if err := r.store.UpdateWorker(worker); err != nil {
		r.logger.Error().Err(err).Str("worker_id", workerID).Msg("failed to mark worker offline")
		return
	}

	for _, jobID := range lostJobs {
		r.publish(&types.ExecutionEvent{
			JobID:     jobID,
			Type:      types.EventWorkerLost,
			Timestamp: time.Now(),
			Message:   "worker " + workerID + " disconnected",
			Metadata:  map[string]string{"workerId": workerID},
		})
	}
}

// publish assigns event an ID, appends it to the durable per-job log,
// then fans it out, matching pkg/reconciler's and pkg/scheduler's helper.
func (r *Registry) publish(event *types.ExecutionEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := r.store.AppendEvent(event); err != nil {
		r.logger.Error().Err(err).Str("job_id", event.JobID).Msg("failed to persist event")
	}
	r.broker.Publish(event)
}

// Dispatch implements engine.Dispatcher: it sends an Assignment envelope
// down workerID's open stream.
func (r *Registry) Dispatch(ctx context.Context, workerID string, assignment *proto.AssignmentMessage) error {
	conn, err := r.conn(workerID)
	if err != nil {
		return err
	}
	return conn.send(&proto.Envelope{Type: proto.MsgAssignment, Assignment: assignment})
}

// Cancel implements engine.Dispatcher: it sends a Cancel envelope down
// workerID's open stream.
func (r *Registry) Cancel(ctx context.Context, workerID, jobID string) error {
	conn, err := r.conn(workerID)
	if err != nil {
		return err
	}
	return conn.send(&proto.Envelope{Type: proto.MsgCancel, Cancel: &proto.CancelMessage{JobID: jobID}})
}

func (r *Registry) conn(workerID string) (*connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[workerID]
	if !ok {
		return nil, fmt.Errorf("worker %s has no open stream", workerID)
	}
	return conn, nil
}

// Connected reports whether workerID currently has a live stream.
func (r *Registry) Connected(workerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[workerID]
	return ok
}

// ConnectedCount returns the number of workers with a live stream.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
