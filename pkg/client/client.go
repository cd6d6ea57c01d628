package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/hodei/pipelines/api/proto"
	"github.com/hodei/pipelines/pkg/security"
	"github.com/hodei/pipelines/pkg/types"
)

const defaultCallTimeout = 10 * time.Second

// Client wraps a ControlService connection for easy CLI and programmatic
// usage.
type Client struct {
	conn   *grpc.ClientConn
	client proto.ControlServiceClient
}

// NewClient dials addr with mTLS using the certificate and CA staged at
// certDir (see pkg/security.SaveCertToFile/SaveCACertToFile).
func NewClient(addr, certDir string) (*Client, error) {
	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("no certificate found at %s; provision one before connecting", certDir)
	}

	conn, err := connectWithMTLS(addr, certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to orchestrator: %w", err)
	}

	return &Client{conn: conn, client: proto.NewControlServiceClient(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SubmitJob submits a new pipeline job for scheduling. maxWaitTime bounds
// how long the job may sit in the queue before the reconciler fails it with
// ReasonSchedulingTimeout; zero means no bound.
func (c *Client) SubmitJob(ctx context.Context, name string, pipeline *types.PipelineModel, requirements types.WorkerRequirements, priority types.Priority, maxWaitTime time.Duration) (*types.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	resp, err := c.client.SubmitJob(ctx, &proto.SubmitJobRequest{
		Name:         name,
		Pipeline:     pipeline,
		Requirements: requirements,
		Priority:     priority,
		MaxWaitTime:  int64(maxWaitTime.Seconds()),
	})
	if err != nil {
		return nil, err
	}
	return resp.Job, nil
}

// GetJob fetches a job by ID.
func (c *Client) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	resp, err := c.client.GetJob(ctx, &proto.GetJobRequest{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return resp.Job, nil
}

// ListJobs lists all jobs, optionally filtered by phase. An empty phase
// lists every job regardless of phase.
func (c *Client) ListJobs(ctx context.Context, phase types.JobPhase) ([]*types.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	resp, err := c.client.ListJobs(ctx, &proto.ListJobsRequest{Phase: string(phase)})
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// CancelJob cancels a pending, scheduled, or running job.
func (c *Client) CancelJob(ctx context.Context, jobID string) (*types.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	resp, err := c.client.CancelJob(ctx, &proto.CancelJobRequest{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return resp.Job, nil
}

// ListWorkers lists all workers, optionally filtered by pool name. An
// empty pool lists every worker regardless of pool.
func (c *Client) ListWorkers(ctx context.Context, pool string) ([]*types.Worker, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	resp, err := c.client.ListWorkers(ctx, &proto.ListWorkersRequest{Pool: pool})
	if err != nil {
		return nil, err
	}
	return resp.Workers, nil
}

// CreatePool registers a new resource pool for worker provisioning.
func (c *Client) CreatePool(ctx context.Context, pool *types.ResourcePool) (*types.ResourcePool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	resp, err := c.client.CreatePool(ctx, &proto.CreatePoolRequest{Pool: pool})
	if err != nil {
		return nil, err
	}
	return resp.Pool, nil
}

// ListPools lists all registered resource pools.
func (c *Client) ListPools(ctx context.Context) ([]*types.ResourcePool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	resp, err := c.client.ListPools(ctx, &proto.ListPoolsRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Pools, nil
}

// GenerateJoinToken requests a join token scoped to pool, valid for ttl.
func (c *Client) GenerateJoinToken(ctx context.Context, pool string, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	resp, err := c.client.GenerateJoinToken(ctx, &proto.GenerateJoinTokenRequest{
		PoolName:   pool,
		TTLSeconds: int64(ttl.Seconds()),
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return resp.Token, time.Unix(resp.ExpiresAt, 0), nil
}

// SubscribeEvents streams jobID's ExecutionEvents, replaying history first,
// until the job reaches a terminal phase or ctx is canceled. The returned
// channel is closed when the stream ends; the error channel receives at
// most one value (nil on a clean end), is sent to before the event channel
// closes, and is never closed itself.
func (c *Client) SubscribeEvents(ctx context.Context, jobID string) (<-chan *types.ExecutionEvent, <-chan error) {
	events := make(chan *types.ExecutionEvent)
	errc := make(chan error, 1)

	go func() {
		defer close(events)

		stream, err := c.client.SubscribeEvents(ctx, &proto.SubscribeEventsRequest{JobID: jobID})
		if err != nil {
			errc <- err
			return
		}
		for {
			event, err := stream.Recv()
			if err == io.EOF {
				errc <- nil
				return
			}
			if err != nil {
				errc <- err
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return events, errc
}

// connectWithMTLS establishes a gRPC connection to addr authenticated with
// the certificate and CA staged at certDir.
func connectWithMTLS(addr, certDir string) (*grpc.ClientConn, error) {
	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA certificate: %w", err)
	}

	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	creds := credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      certPool,
		MinVersion:   tls.VersionTLS13,
	})

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to dial orchestrator: %w", err)
	}
	return conn, nil
}
