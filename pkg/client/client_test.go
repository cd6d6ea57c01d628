package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hodei/pipelines/api/proto"
	"github.com/hodei/pipelines/pkg/types"
)

// fakeControlServer implements proto.ControlServiceServer with canned
// responses, letting client tests exercise real gRPC marshaling without an
// Orchestrator or mTLS certificates.
type fakeControlServer struct {
	proto.UnimplementedControlServiceServer
	job    *types.Job
	pools  []*types.ResourcePool
	events []*types.ExecutionEvent
}

func (f *fakeControlServer) SubmitJob(ctx context.Context, req *proto.SubmitJobRequest) (*proto.SubmitJobResponse, error) {
	job := types.NewJob(req.Name, req.Pipeline, req.Requirements, req.Priority)
	f.job = job
	return &proto.SubmitJobResponse{Job: job}, nil
}

func (f *fakeControlServer) GetJob(ctx context.Context, req *proto.GetJobRequest) (*proto.GetJobResponse, error) {
	return &proto.GetJobResponse{Job: f.job}, nil
}

func (f *fakeControlServer) ListJobs(ctx context.Context, req *proto.ListJobsRequest) (*proto.ListJobsResponse, error) {
	return &proto.ListJobsResponse{Jobs: []*types.Job{f.job}}, nil
}

func (f *fakeControlServer) CreatePool(ctx context.Context, req *proto.CreatePoolRequest) (*proto.CreatePoolResponse, error) {
	f.pools = append(f.pools, req.Pool)
	return &proto.CreatePoolResponse{Pool: req.Pool}, nil
}

func (f *fakeControlServer) ListPools(ctx context.Context, req *proto.ListPoolsRequest) (*proto.ListPoolsResponse, error) {
	return &proto.ListPoolsResponse{Pools: f.pools}, nil
}

func (f *fakeControlServer) GenerateJoinToken(ctx context.Context, req *proto.GenerateJoinTokenRequest) (*proto.GenerateJoinTokenResponse, error) {
	return &proto.GenerateJoinTokenResponse{Token: "tok-" + req.PoolName, ExpiresAt: time.Now().Add(time.Duration(req.TTLSeconds) * time.Second).Unix()}, nil
}

func (f *fakeControlServer) SubscribeEvents(req *proto.SubscribeEventsRequest, stream proto.ControlService_SubscribeEventsServer) error {
	for _, event := range f.events {
		if err := stream.Send(event); err != nil {
			return err
		}
	}
	return nil
}

// newTestClient starts fake in a real insecure gRPC server and returns a
// Client dialed against it, bypassing NewClient's mTLS certificate
// requirement.
func newTestClient(t *testing.T, fake *fakeControlServer) *Client {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	srv.RegisterService(&proto.ControlService_ServiceDesc, fake)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &Client{conn: conn, client: proto.NewControlServiceClient(conn)}
}

func samplePipeline() *types.PipelineModel {
	return &types.PipelineModel{
		Name:   "build",
		Stages: []types.Stage{{Name: "build", Steps: []types.Step{{Name: "compile", Command: "true"}}}},
	}
}

func TestClient_SubmitAndGetJob(t *testing.T) {
	c := newTestClient(t, &fakeControlServer{})

	job, err := c.SubmitJob(context.Background(), "build", samplePipeline(), types.WorkerRequirements{CPUMillis: 100}, types.PriorityNormal, 0)
	require.NoError(t, err)
	assert.Equal(t, "build", job.Name)

	got, err := c.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestClient_ListJobs(t *testing.T) {
	c := newTestClient(t, &fakeControlServer{job: types.NewJob("a", samplePipeline(), types.WorkerRequirements{}, types.PriorityNormal)})

	jobs, err := c.ListJobs(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestClient_CreateAndListPools(t *testing.T) {
	c := newTestClient(t, &fakeControlServer{})

	pool, err := c.CreatePool(context.Background(), &types.ResourcePool{Name: "default", Provider: types.ProviderContainer})
	require.NoError(t, err)
	assert.Equal(t, "default", pool.Name)

	pools, err := c.ListPools(context.Background())
	require.NoError(t, err)
	assert.Len(t, pools, 1)
}

func TestClient_GenerateJoinToken(t *testing.T) {
	c := newTestClient(t, &fakeControlServer{})

	token, expiresAt, err := c.GenerateJoinToken(context.Background(), "default", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "tok-default", token)
	assert.True(t, expiresAt.After(time.Now()))
}

func TestClient_SubscribeEvents(t *testing.T) {
	fake := &fakeControlServer{events: []*types.ExecutionEvent{
		{JobID: "job-1", Type: types.EventJobSubmitted},
		{JobID: "job-1", Type: types.EventJobSucceeded},
	}}
	c := newTestClient(t, fake)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, errc := c.SubscribeEvents(ctx, "job-1")

	var received []*types.ExecutionEvent
	for event := range events {
		received = append(received, event)
	}
	require.NoError(t, <-errc)
	require.Len(t, received, 2)
	assert.Equal(t, types.EventJobSucceeded, received[1].Type)
}
