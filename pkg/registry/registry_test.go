package registry

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/hodei/pipelines/api/proto"
	"github.com/hodei/pipelines/pkg/events"
	"github.com/hodei/pipelines/pkg/security"
	"github.com/hodei/pipelines/pkg/storage"
	"github.com/hodei/pipelines/pkg/types"
)

// fakeStream implements proto.WorkerService_StreamServer over an in-memory
// channel, standing in for a real grpc.ServerStream in tests.
type fakeStream struct {
	recvCh chan *proto.Envelope
	sendMu sync.Mutex
	sent   []*proto.Envelope
}

func newFakeStream() *fakeStream {
	return &fakeStream{recvCh: make(chan *proto.Envelope, 16)}
}

func (f *fakeStream) push(env *proto.Envelope) { f.recvCh <- env }
func (f *fakeStream) closeRecv()               { close(f.recvCh) }

func (f *fakeStream) Recv() (*proto.Envelope, error) {
	env, ok := <-f.recvCh
	if !ok {
		return nil, io.EOF
	}
	return env, nil
}

func (f *fakeStream) Send(env *proto.Envelope) error {
	f.sendMu.Lock()
	defer f.sendMu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeStream) lastSent() *proto.Envelope {
	f.sendMu.Lock()
	defer f.sendMu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeStream) SetHeader(metadata.MD) error { return nil }
func (f *fakeStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeStream) SetTrailer(metadata.MD)       {}
func (f *fakeStream) Context() context.Context     { return context.Background() }
func (f *fakeStream) SendMsg(m interface{}) error  { return errors.New("unused in tests") }
func (f *fakeStream) RecvMsg(m interface{}) error  { return errors.New("unused in tests") }

var _ proto.WorkerService_StreamServer = (*fakeStream)(nil)

type fakeHandlers struct {
	mu      sync.Mutex
	results []*proto.ExecutionResultMessage
	events  []*types.ExecutionEvent
}

func (f *fakeHandlers) ReportResult(jobID string, result *proto.ExecutionResultMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

func (f *fakeHandlers) ReportEvent(event *types.ExecutionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func newTestRegistry(t *testing.T) (*Registry, storage.Store, *security.TokenManager) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	tokens := security.NewTokenManager()
	r := New(store, broker, tokens, nil, nil)
	return r, store, tokens
}

func waitForConn(t *testing.T, r *Registry, workerID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Connected(workerID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("worker %s never connected", workerID)
}

func TestRegistry_RegisterAcceptsValidToken(t *testing.T) {
	r, store, tokens := newTestRegistry(t)
	jt, err := tokens.GenerateToken("default", time.Hour)
	require.NoError(t, err)

	stream := newFakeStream()
	stream.push(&proto.Envelope{Type: proto.MsgRegister, Register: &proto.RegisterMessage{
		WorkerID: "w1", PoolName: "default", Token: jt.Token,
		Capacity: types.WorkerCapacity{CPUMillis: 1000, MemoryBytes: 1 << 30},
	}})

	done := make(chan error, 1)
	go func() { done <- r.Stream(stream) }()
	waitForConn(t, r, "w1")

	ack := stream.lastSent()
	require.NotNil(t, ack)
	assert.Equal(t, proto.MsgRegisterAck, ack.Type)
	assert.True(t, ack.RegisterAck.Accepted)

	worker, err := store.GetWorker("w1")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerOnline, worker.Status)
	assert.Equal(t, "default", worker.PoolName)

	stream.closeRecv()
	require.NoError(t, <-done)

	worker, err = store.GetWorker("w1")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerOffline, worker.Status)
}

func TestRegistry_RegisterRejectsInvalidToken(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	stream := newFakeStream()
	stream.push(&proto.Envelope{Type: proto.MsgRegister, Register: &proto.RegisterMessage{WorkerID: "w1", Token: "bogus"}})

	err := r.Stream(stream)
	require.Error(t, err)

	ack := stream.lastSent()
	require.NotNil(t, ack)
	assert.False(t, ack.RegisterAck.Accepted)
}

func TestRegistry_RelaysExecutionResultAndEvent(t *testing.T) {
	r, _, tokens := newTestRegistry(t)
	handlers := &fakeHandlers{}
	r.result = handlers
	r.events = handlers

	jt, err := tokens.GenerateToken("default", time.Hour)
	require.NoError(t, err)

	stream := newFakeStream()
	stream.push(&proto.Envelope{Type: proto.MsgRegister, Register: &proto.RegisterMessage{WorkerID: "w1", Token: jt.Token}})
	done := make(chan error, 1)
	go func() { done <- r.Stream(stream) }()
	waitForConn(t, r, "w1")

	stream.push(&proto.Envelope{Type: proto.MsgExecutionResult, ExecutionResult: &proto.ExecutionResultMessage{JobID: "j1", Phase: types.JobSucceeded}})
	stream.push(&proto.Envelope{Type: proto.MsgExecutionEvent, ExecutionEvent: &types.ExecutionEvent{JobID: "j1", Type: types.EventStepStarted}})
	stream.closeRecv()
	require.NoError(t, <-done)

	handlers.mu.Lock()
	defer handlers.mu.Unlock()
	require.Len(t, handlers.results, 1)
	assert.Equal(t, "j1", handlers.results[0].JobID)
	require.Len(t, handlers.events, 1)
	assert.Equal(t, types.EventStepStarted, handlers.events[0].Type)
}

func TestRegistry_DispatchRequiresOpenStream(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	err := r.Dispatch(context.Background(), "ghost", &proto.AssignmentMessage{JobID: "j1"})
	assert.Error(t, err)
}

func TestRegistry_DispatchSendsAssignment(t *testing.T) {
	r, _, tokens := newTestRegistry(t)
	jt, err := tokens.GenerateToken("default", time.Hour)
	require.NoError(t, err)

	stream := newFakeStream()
	stream.push(&proto.Envelope{Type: proto.MsgRegister, Register: &proto.RegisterMessage{WorkerID: "w1", Token: jt.Token}})
	done := make(chan error, 1)
	go func() { done <- r.Stream(stream) }()
	waitForConn(t, r, "w1")

	require.NoError(t, r.Dispatch(context.Background(), "w1", &proto.AssignmentMessage{JobID: "j1"}))

	sent := stream.lastSent()
	require.NotNil(t, sent)
	assert.Equal(t, proto.MsgAssignment, sent.Type)
	assert.Equal(t, "j1", sent.Assignment.JobID)

	stream.closeRecv()
	require.NoError(t, <-done)
}

func TestRegistry_DisconnectPublishesWorkerLost(t *testing.T) {
	r, store, tokens := newTestRegistry(t)
	require.NoError(t, store.CreateWorker(&types.Worker{ID: "w1", PoolName: "default", Status: types.WorkerOnline, ActiveJobIDs: []string{"j1"}}))

	jt, err := tokens.GenerateToken("default", time.Hour)
	require.NoError(t, err)

	sub := r.broker.Subscribe("j1")
	defer r.broker.Unsubscribe(sub)

	stream := newFakeStream()
	stream.push(&proto.Envelope{Type: proto.MsgRegister, Register: &proto.RegisterMessage{WorkerID: "w1", PoolName: "default", Token: jt.Token}})
	done := make(chan error, 1)
	go func() { done <- r.Stream(stream) }()
	waitForConn(t, r, "w1")

	stream.closeRecv()
	require.NoError(t, <-done)

	select {
	case evt := <-sub:
		assert.Equal(t, types.EventWorkerLost, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("expected worker.lost event")
	}

	w, err := store.GetWorker("w1")
	require.NoError(t, err)
	assert.Equal(t, types.WorkerOffline, w.Status)
}
