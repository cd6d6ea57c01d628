package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/api/proto"
	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/types"
)

// controlServer implements proto.ControlServiceServer against an
// Orchestrator's assembled components. It is the single entry point for
// every client-facing RPC: submitting jobs, inspecting state, and managing
// pools and join tokens.
type controlServer struct {
	proto.UnimplementedControlServiceServer
	o      *Orchestrator
	logger zerolog.Logger
}

func newControlServer(o *Orchestrator) *controlServer {
	return &controlServer{o: o, logger: log.WithComponent("control-server")}
}

func (s *controlServer) SubmitJob(ctx context.Context, req *proto.SubmitJobRequest) (*proto.SubmitJobResponse, error) {
	if req.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}

	job := types.NewJob(req.Name, req.Pipeline, req.Requirements, req.Priority)
	if req.MaxWaitTime > 0 {
		job.MaxWaitTime = time.Duration(req.MaxWaitTime) * time.Second
	}

	if err := s.o.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}
	if err := s.o.queue.Enqueue(job); err != nil {
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	s.publish(&types.ExecutionEvent{JobID: job.ID, Type: types.EventJobSubmitted, Timestamp: time.Now()})

	s.logger.Info().Str("job_id", job.ID).Str("name", job.Name).Msg("job submitted")
	return &proto.SubmitJobResponse{Job: job}, nil
}

func (s *controlServer) GetJob(ctx context.Context, req *proto.GetJobRequest) (*proto.GetJobResponse, error) {
	job, err := s.o.store.GetJob(req.JobID)
	if err != nil {
		return nil, fmt.Errorf("job %s not found: %w", req.JobID, err)
	}
	return &proto.GetJobResponse{Job: job}, nil
}

func (s *controlServer) ListJobs(ctx context.Context, req *proto.ListJobsRequest) (*proto.ListJobsResponse, error) {
	var jobs []*types.Job
	var err error
	if req.Phase != "" {
		jobs, err = s.o.store.ListJobsByPhase(types.JobPhase(req.Phase))
	} else {
		jobs, err = s.o.store.ListJobs()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return &proto.ListJobsResponse{Jobs: jobs}, nil
}

func (s *controlServer) CancelJob(ctx context.Context, req *proto.CancelJobRequest) (*proto.CancelJobResponse, error) {
	s.o.queue.Remove(req.JobID)
	if err := s.o.engine.CancelJob(ctx, req.JobID); err != nil {
		return nil, fmt.Errorf("failed to cancel job %s: %w", req.JobID, err)
	}
	job, err := s.o.store.GetJob(req.JobID)
	if err != nil {
		return nil, fmt.Errorf("job %s not found: %w", req.JobID, err)
	}
	return &proto.CancelJobResponse{Job: job}, nil
}

func (s *controlServer) ListWorkers(ctx context.Context, req *proto.ListWorkersRequest) (*proto.ListWorkersResponse, error) {
	var workers []*types.Worker
	var err error
	if req.Pool != "" {
		workers, err = s.o.store.ListWorkersByPool(req.Pool)
	} else {
		workers, err = s.o.store.ListWorkers()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	return &proto.ListWorkersResponse{Workers: workers}, nil
}

func (s *controlServer) CreatePool(ctx context.Context, req *proto.CreatePoolRequest) (*proto.CreatePoolResponse, error) {
	if req.Pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if err := s.o.pools.CreatePool(ctx, req.Pool); err != nil {
		return nil, err
	}
	return &proto.CreatePoolResponse{Pool: req.Pool}, nil
}

func (s *controlServer) ListPools(ctx context.Context, req *proto.ListPoolsRequest) (*proto.ListPoolsResponse, error) {
	pools, err := s.o.store.ListPools()
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	return &proto.ListPoolsResponse{Pools: pools}, nil
}

func (s *controlServer) GenerateJoinToken(ctx context.Context, req *proto.GenerateJoinTokenRequest) (*proto.GenerateJoinTokenResponse, error) {
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	token, err := s.o.tokens.GenerateToken(req.PoolName, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate join token: %w", err)
	}
	return &proto.GenerateJoinTokenResponse{Token: token.Token, ExpiresAt: token.ExpiresAt.Unix()}, nil
}

// SubscribeEvents streams req.JobID's ExecutionEvents as they are
// published, replaying its existing log first so a client that subscribes
// after a job already made progress still sees the full history. The
// stream ends once the job reaches a terminal phase.
func (s *controlServer) SubscribeEvents(req *proto.SubscribeEventsRequest, stream proto.ControlService_SubscribeEventsServer) error {
	history, err := s.o.store.ListEventsByJob(req.JobID)
	if err != nil {
		return fmt.Errorf("failed to load event history for job %s: %w", req.JobID, err)
	}
	for _, event := range history {
		if err := stream.Send(event); err != nil {
			return err
		}
		if isTerminalEvent(event.Type) {
			return nil
		}
	}

	sub := s.o.broker.Subscribe(req.JobID)
	defer s.o.broker.Unsubscribe(sub)

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case event, ok := <-sub:
			if !ok {
				return nil
			}
			if err := stream.Send(event); err != nil {
				return err
			}
			if isTerminalEvent(event.Type) {
				return nil
			}
		}
	}
}

// publish assigns event an ID (Broker.Publish would otherwise do this too
// late for AppendEvent's composite key), appends it to the durable per-job
// log, then fans it out; a persistence failure is logged but never blocks
// live subscribers.
func (s *controlServer) publish(event *types.ExecutionEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := s.o.store.AppendEvent(event); err != nil {
		s.logger.Error().Err(err).Str("job_id", event.JobID).Msg("failed to persist event")
	}
	s.o.broker.Publish(event)
}

func isTerminalEvent(t types.EventType) bool {
	switch t {
	case types.EventJobSucceeded, types.EventJobFailed, types.EventJobCancelled:
		return true
	default:
		return false
	}
}
