package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/api/proto"
	"github.com/hodei/pipelines/pkg/events"
	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/metrics"
	"github.com/hodei/pipelines/pkg/pool"
	"github.com/hodei/pipelines/pkg/scheduler"
	"github.com/hodei/pipelines/pkg/security"
	"github.com/hodei/pipelines/pkg/storage"
	"github.com/hodei/pipelines/pkg/types"
)

// ProvisionTimeout bounds how long the engine waits for an on-demand
// worker to finish provisioning before failing the job with
// ReasonWorkerProvisionTimeout.
const ProvisionTimeout = 2 * time.Minute

// Dispatcher sends an assignment down a worker's open stream and can
// request cancellation of a running job. pkg/registry implements it; the
// engine never talks to a transport directly.
type Dispatcher interface {
	Dispatch(ctx context.Context, workerID string, assignment *proto.AssignmentMessage) error
	Cancel(ctx context.Context, workerID, jobID string) error
}

// Engine owns the per-job lifecycle from Scheduled through a terminal
// phase: acquiring/binding a worker, dispatching the pipeline, relaying
// execution events, and finalizing the job on ExecutionResult or worker
// loss.
type Engine struct {
	store          storage.Store
	broker         *events.Broker
	pools          *pool.Registry
	dispatcher     Dispatcher
	secrets        *security.SecretsManager
	workerStrategy scheduler.Strategy
	logger         zerolog.Logger

	mu     sync.Mutex
	sub    events.Subscriber
	stopCh chan struct{}
}

// New creates an Engine. secrets may be nil if no job in this deployment
// ever references Step.Secrets. workerStrategy picks one worker among the
// idle candidates in a job's assigned pool; a nil workerStrategy defaults
// to scheduler.SpreadStrategy{}.
func New(store storage.Store, broker *events.Broker, pools *pool.Registry, dispatcher Dispatcher, secrets *security.SecretsManager, workerStrategy scheduler.Strategy) *Engine {
	if workerStrategy == nil {
		workerStrategy = scheduler.SpreadStrategy{}
	}
	return &Engine{
		store:          store,
		broker:         broker,
		pools:          pools,
		dispatcher:     dispatcher,
		secrets:        secrets,
		workerStrategy: workerStrategy,
		logger:         log.WithComponent("engine"),
		stopCh:         make(chan struct{}),
	}
}

// Start subscribes to every job's events and begins handling job.scheduled
// and worker.lost in a background goroutine.
func (e *Engine) Start() {
	e.mu.Lock()
	e.sub = e.broker.Subscribe("")
	e.mu.Unlock()
	go e.run()
}

// Stop unsubscribes from the event broker and halts the handling loop.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.mu.Lock()
	if e.sub != nil {
		e.broker.Unsubscribe(e.sub)
	}
	e.mu.Unlock()
}

func (e *Engine) run() {
	e.logger.Info().Msg("engine started")
	for {
		select {
		case <-e.stopCh:
			e.logger.Info().Msg("engine stopped")
			return
		case event, ok := <-e.sub:
			if !ok {
				return
			}
			e.handle(event)
		}
	}
}

func (e *Engine) handle(event *types.ExecutionEvent) {
	switch event.Type {
	case types.EventJobScheduled:
		e.onScheduled(event.JobID)
	case types.EventWorkerLost:
		e.onWorkerLost(event.JobID, event.Metadata["workerId"])
	}
}

// onScheduled binds job to a worker in the pool pkg/scheduler already
// chose: it prefers an existing idle worker that fits the job's
// requirements and labels, and only provisions a fresh one on demand when
// no such worker exists. Requirements.Ephemeral plays no part in this
// choice; teardown once a worker goes idle again is decided by
// Worker.Ephemeral in releaseWorker.
func (e *Engine) onScheduled(jobID string) {
	job, err := e.store.GetJob(jobID)
	if err != nil {
		e.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to load scheduled job")
		return
	}
	if job.Phase != types.JobScheduled {
		return
	}

	worker, err := e.pickIdleWorker(job)
	if err != nil {
		e.logger.Error().Err(err).Str("job_id", job.ID).Str("pool", job.AssignedPool).Msg("failed to list workers in assigned pool")
		return
	}
	if worker == nil {
		e.provisionAndDispatch(job)
		return
	}

	e.bind(job, worker)
	e.dispatch(job, worker)
}

// pickIdleWorker looks for an online, capacity-fitting, label-matching
// worker already registered in job's assigned pool. It returns nil, nil
// (not an error) when no such worker currently exists.
func (e *Engine) pickIdleWorker(job *types.Job) (*types.Worker, error) {
	workers, err := e.store.ListWorkersByPool(job.AssignedPool)
	if err != nil {
		return nil, err
	}

	fitting := make([]*types.Worker, 0, len(workers))
	for _, w := range workers {
		if w.Status == types.WorkerOnline && w.Capacity.Fits(job.Requirements) && scheduler.MatchesLabels(w.Labels, job.Requirements.Labels) {
			fitting = append(fitting, w)
		}
	}
	if len(fitting) == 0 {
		return nil, nil
	}
	return e.workerStrategy.Select(fitting), nil
}

// bind reserves worker's capacity for job and marks it Busy, then emits
// WorkerAssigned. This is the Execution Engine's half of two-phase
// placement: pkg/scheduler already chose the pool, bind picks and commits
// to the worker within it.
func (e *Engine) bind(job *types.Job, worker *types.Worker) {
	worker.ActiveJobIDs = append(worker.ActiveJobIDs, job.ID)
	worker.Capacity.UsedCPUMillis += job.Requirements.CPUMillis
	worker.Capacity.UsedMemoryBytes += job.Requirements.MemoryBytes
	worker.Status = types.WorkerBusy
	if err := e.store.UpdateWorker(worker); err != nil {
		e.logger.Error().Err(err).Str("worker_id", worker.ID).Msg("failed to persist bound worker")
	}

	job.AssignedWorker = worker.ID
	if err := e.store.UpdateJob(job); err != nil {
		e.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist bound job")
	}

	e.emitWorkerAssigned(job, worker)
}

func (e *Engine) emitWorkerAssigned(job *types.Job, worker *types.Worker) {
	e.publish(&types.ExecutionEvent{
		JobID:     job.ID,
		Type:      types.EventWorkerAssigned,
		Timestamp: time.Now(),
		Metadata:  map[string]string{"workerId": worker.ID, "pool": worker.PoolName},
	})
}

// provisionAndDispatch requests a fresh worker from the job's assigned
// pool, bounded by ProvisionTimeout, then dispatches onto it.
func (e *Engine) provisionAndDispatch(job *types.Job) {
	now := time.Now()
	job.Phase = types.JobProvisioning
	if err := e.store.UpdateJob(job); err != nil {
		e.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job provisioning")
		return
	}
	e.publish(&types.ExecutionEvent{JobID: job.ID, Type: types.EventJobProvisioning, Timestamp: now})

	p, err := e.store.GetPool(job.AssignedPool)
	if err != nil {
		e.failJob(job, types.ReasonProvisioningFailed, fmt.Sprintf("pool %s not found: %v", job.AssignedPool, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ProvisionTimeout)
	defer cancel()

	worker, err := e.pools.Provision(ctx, p)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			e.failJob(job, types.ReasonWorkerProvisionTimeout, "worker provisioning timed out")
		} else {
			e.failJob(job, types.ReasonProvisioningFailed, err.Error())
		}
		return
	}

	worker.Status = types.WorkerOnline
	worker.ActiveJobIDs = []string{job.ID}
	worker.Capacity.UsedCPUMillis += job.Requirements.CPUMillis
	worker.Capacity.UsedMemoryBytes += job.Requirements.MemoryBytes
	if err := e.store.UpdateWorker(worker); err != nil {
		e.logger.Error().Err(err).Str("worker_id", worker.ID).Msg("failed to persist provisioned worker")
	}

	job.AssignedWorker = worker.ID
	e.emitWorkerAssigned(job, worker)
	e.dispatch(job, worker)
}

// dispatch sends the assignment (with resolved secrets) to the worker job
// is already bound to, and transitions the job to Running.
func (e *Engine) dispatch(job *types.Job, worker *types.Worker) {
	secrets, err := e.resolveSecrets(job)
	if err != nil {
		e.failJob(job, types.ReasonInternal, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.dispatcher.Dispatch(ctx, worker.ID, &proto.AssignmentMessage{
		JobID:    job.ID,
		Pipeline: job.Pipeline,
		Secrets:  secrets,
	}); err != nil {
		e.failJob(job, types.ReasonProvisioningFailed, fmt.Sprintf("dispatch failed: %v", err))
		return
	}

	now := time.Now()
	job.Phase = types.JobRunning
	job.StartedAt = &now
	if err := e.store.UpdateJob(job); err != nil {
		e.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist running job")
	}

	e.publish(&types.ExecutionEvent{JobID: job.ID, Type: types.EventJobStarted, Timestamp: now, Metadata: map[string]string{"workerId": worker.ID}})
	e.logger.Info().Str("job_id", job.ID).Str("worker_id", worker.ID).Msg("job dispatched")
}

// resolveSecrets decrypts every secret named across the pipeline's steps.
func (e *Engine) resolveSecrets(job *types.Job) (map[string][]byte, error) {
	names := map[string]struct{}{}
	if job.Pipeline != nil {
		for _, stage := range job.Pipeline.Stages {
			for _, step := range stage.Steps {
				for _, name := range step.Secrets {
					names[name] = struct{}{}
				}
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	if e.secrets == nil {
		return nil, fmt.Errorf("pipeline references secrets but no SecretsManager is configured")
	}

	out := make(map[string][]byte, len(names))
	for name := range names {
		secret, err := e.store.GetSecret(name)
		if err != nil {
			return nil, fmt.Errorf("secret %s: %w", name, err)
		}
		data, err := e.secrets.GetSecretData(secret)
		if err != nil {
			return nil, fmt.Errorf("secret %s: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}

// ReportResult finalizes job upon an ExecutionResult from the worker,
// releasing its worker's reserved capacity and, if the worker is marked
// Ephemeral (its pool's EphemeralWorkers policy) and now idle, requesting
// its deprovisioning.
func (e *Engine) ReportResult(jobID string, result *proto.ExecutionResultMessage) {
	job, err := e.store.GetJob(jobID)
	if err != nil {
		e.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to load job for result")
		return
	}
	if job.Phase.Terminal() {
		return
	}

	now := time.Now()
	job.FinishedAt = &now

	switch {
	case job.Error != nil && job.Error.Reason == types.ReasonCancelled:
		job.Phase = types.JobCancelled
	case result.Phase == types.JobSucceeded:
		job.Phase = types.JobSucceeded
		job.Error = nil
	default:
		job.Phase = types.JobFailed
		job.Error = result.Error
		if job.Error == nil {
			job.Error = types.NewJobError(types.ReasonStepFailure, "execution failed")
		}
	}

	if err := e.store.UpdateJob(job); err != nil {
		e.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist finished job")
	}

	e.releaseWorker(job)

	eventType := types.EventJobSucceeded
	message := ""
	switch job.Phase {
	case types.JobFailed:
		eventType = types.EventJobFailed
		message = job.Error.Error()
	case types.JobCancelled:
		eventType = types.EventJobCancelled
	}
	if job.Phase == types.JobFailed {
		metrics.JobsFailedTotal.WithLabelValues(string(job.Error.Reason)).Inc()
	}
	e.publish(&types.ExecutionEvent{JobID: job.ID, Type: eventType, Timestamp: now, Message: message})
}

// ReportEvent relays a stage/step event from the worker's stream into the
// durable log and live subscribers.
func (e *Engine) ReportEvent(event *types.ExecutionEvent) {
	e.publish(event)
}

func (e *Engine) releaseWorker(job *types.Job) {
	if job.AssignedWorker == "" {
		return
	}
	worker, err := e.store.GetWorker(job.AssignedWorker)
	if err != nil {
		return
	}

	worker.ActiveJobIDs = removeID(worker.ActiveJobIDs, job.ID)
	worker.Capacity.UsedCPUMillis -= job.Requirements.CPUMillis
	worker.Capacity.UsedMemoryBytes -= job.Requirements.MemoryBytes
	if worker.Capacity.UsedCPUMillis < 0 {
		worker.Capacity.UsedCPUMillis = 0
	}
	if worker.Capacity.UsedMemoryBytes < 0 {
		worker.Capacity.UsedMemoryBytes = 0
	}
	if worker.Status != types.WorkerOffline {
		worker.Status = types.WorkerOnline
	}

	if err := e.store.UpdateWorker(worker); err != nil {
		e.logger.Error().Err(err).Str("worker_id", worker.ID).Msg("failed to persist released worker")
		return
	}

	if worker.Ephemeral && worker.Idle() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.pools.Deprovision(ctx, worker); err != nil {
			e.logger.Warn().Err(err).Str("worker_id", worker.ID).Msg("failed to deprovision ephemeral worker")
		}
	}
}

// CancelJob requests cancellation of job. A job not yet dispatched is
// cancelled immediately; a running job has its worker asked to stop, and
// is finalized Cancelled once the ExecutionResult arrives. A failure to
// signal the worker is logged; the job's phase is left unchanged.
func (e *Engine) CancelJob(ctx context.Context, jobID string) error {
	job, err := e.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Phase.Terminal() {
		return nil
	}

	job.Error = types.NewJobError(types.ReasonCancelled, "cancellation requested")

	if job.Phase == types.JobPending || job.Phase == types.JobScheduled {
		now := time.Now()
		job.Phase = types.JobCancelled
		job.FinishedAt = &now
		if err := e.store.UpdateJob(job); err != nil {
			return err
		}
		e.publish(&types.ExecutionEvent{JobID: job.ID, Type: types.EventJobCancelled, Timestamp: now})
		return nil
	}

	if err := e.store.UpdateJob(job); err != nil {
		return err
	}
	if job.AssignedWorker != "" {
		if err := e.dispatcher.Cancel(ctx, job.AssignedWorker, job.ID); err != nil {
			e.logger.Warn().Err(err).Str("job_id", job.ID).Msg("failed to signal worker to cancel")
		}
	}
	return nil
}

// onWorkerLost fails jobID with ReasonWorkerLost; per spec there is no
// automatic re-dispatch.
func (e *Engine) onWorkerLost(jobID, workerID string) {
	job, err := e.store.GetJob(jobID)
	if err != nil || job.Phase.Terminal() {
		return
	}
	e.failJob(job, types.ReasonWorkerLost, fmt.Sprintf("worker %s lost while job was %s", workerID, job.Phase))
}

func (e *Engine) failJob(job *types.Job, reason types.Reason, message string) {
	now := time.Now()
	job.Phase = types.JobFailed
	job.FinishedAt = &now
	job.Error = types.NewJobError(reason, message)
	if err := e.store.UpdateJob(job); err != nil {
		e.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist failed job")
	}
	metrics.JobsFailedTotal.WithLabelValues(string(reason)).Inc()
	e.publish(&types.ExecutionEvent{JobID: job.ID, Type: types.EventJobFailed, Timestamp: now, Message: message})
}

// publish assigns event an ID (Broker.Publish would otherwise do this too
// late for AppendEvent's composite key), appends it to the durable per-job
// log, then fans it out.
func (e *Engine) publish(event *types.ExecutionEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := e.store.AppendEvent(event); err != nil {
		e.logger.Error().Err(err).Str("job_id", event.JobID).Msg("failed to persist event")
	}
	e.broker.Publish(event)
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
