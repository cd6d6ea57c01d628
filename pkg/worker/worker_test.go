package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/hodei/pipelines/api/proto"
	"github.com/hodei/pipelines/pkg/types"
)

// fakeClientStream implements proto.WorkerService_StreamClient over an
// in-memory channel, standing in for a dialed grpc.ClientStream in tests.
type fakeClientStream struct {
	recvCh   chan *proto.Envelope
	closeOnce sync.Once
	sendMu   sync.Mutex
	sent     []*proto.Envelope
}

func newFakeClientStream() *fakeClientStream {
	return &fakeClientStream{recvCh: make(chan *proto.Envelope, 16)}
}

func (f *fakeClientStream) push(env *proto.Envelope) { f.recvCh <- env }
func (f *fakeClientStream) close()                   { f.closeOnce.Do(func() { close(f.recvCh) }) }

func (f *fakeClientStream) Recv() (*proto.Envelope, error) {
	env, ok := <-f.recvCh
	if !ok {
		return nil, errors.New("stream closed")
	}
	return env, nil
}

func (f *fakeClientStream) Send(env *proto.Envelope) error {
	f.sendMu.Lock()
	defer f.sendMu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeClientStream) sentOfType(t proto.MessageType) []*proto.Envelope {
	f.sendMu.Lock()
	defer f.sendMu.Unlock()
	var out []*proto.Envelope
	for _, env := range f.sent {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeClientStream) Header() (metadata.MD, error) { return nil, nil }
func (f *fakeClientStream) Trailer() metadata.MD          { return nil }
func (f *fakeClientStream) CloseSend() error              { return nil }
func (f *fakeClientStream) Context() context.Context       { return context.Background() }
func (f *fakeClientStream) SendMsg(m interface{}) error    { return errors.New("unused in tests") }
func (f *fakeClientStream) RecvMsg(m interface{}) error     { return errors.New("unused in tests") }

var _ proto.WorkerService_StreamClient = (*fakeClientStream)(nil)

func newTestWorker(t *testing.T) (*Worker, *fakeClientStream) {
	t.Helper()
	w, err := New(Config{WorkerID: "worker-1", PoolName: "default", DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { w.localStore.Close() })

	stream := newFakeClientStream()
	w.stream = stream
	return w, stream
}

func TestWorker_RunJobSucceedsAndReportsResult(t *testing.T) {
	w, stream := newTestWorker(t)

	assignment := &proto.AssignmentMessage{
		JobID: "job-1",
		Pipeline: &types.PipelineModel{
			Stages: []types.Stage{
				{Name: "build", Steps: []types.Step{{Kind: types.StepShell, Name: "ok", Command: "true"}}},
			},
		},
	}

	w.runJob(assignment)

	results := stream.sentOfType(proto.MsgExecutionResult)
	require.Len(t, results, 1)
	assert.Equal(t, types.JobSucceeded, results[0].ExecutionResult.Phase)
	assert.Nil(t, results[0].ExecutionResult.Error)

	events := stream.sentOfType(proto.MsgExecutionEvent)
	assert.NotEmpty(t, events)
}

func TestWorker_RunJobFailureReportsJobError(t *testing.T) {
	w, stream := newTestWorker(t)

	assignment := &proto.AssignmentMessage{
		JobID: "job-2",
		Pipeline: &types.PipelineModel{
			Stages: []types.Stage{
				{Name: "build", Steps: []types.Step{{Kind: types.StepShell, Name: "bad", Command: "false"}}},
			},
		},
	}

	w.runJob(assignment)

	results := stream.sentOfType(proto.MsgExecutionResult)
	require.Len(t, results, 1)
	assert.Equal(t, types.JobFailed, results[0].ExecutionResult.Phase)
	require.NotNil(t, results[0].ExecutionResult.Error)
	assert.Equal(t, types.ReasonStepFailure, results[0].ExecutionResult.Error.Reason)
}

func TestWorker_CancelJobStopsRunningStep(t *testing.T) {
	w, stream := newTestWorker(t)

	assignment := &proto.AssignmentMessage{
		JobID: "job-3",
		Pipeline: &types.PipelineModel{
			Stages: []types.Stage{
				{Name: "build", Steps: []types.Step{{Kind: types.StepShell, Name: "slow", Command: "sleep", Args: []string{"5"}}}},
			},
		},
	}

	done := make(chan struct{})
	go func() {
		w.runJob(assignment)
		close(done)
	}()

	require.Eventually(t, func() bool {
		w.activeMu.Lock()
		defer w.activeMu.Unlock()
		_, ok := w.active["job-3"]
		return ok
	}, time.Second, 10*time.Millisecond)

	w.cancelJob("job-3")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runJob did not return after cancel")
	}

	results := stream.sentOfType(proto.MsgExecutionResult)
	require.Len(t, results, 1)
	assert.Equal(t, types.JobFailed, results[0].ExecutionResult.Phase)
	require.NotNil(t, results[0].ExecutionResult.Error)
}

func TestWorker_RecvLoopDispatchesAssignment(t *testing.T) {
	w, stream := newTestWorker(t)
	w.wg.Add(1)
	go w.recvLoop()

	stream.push(&proto.Envelope{
		Type: proto.MsgAssignment,
		Assignment: &proto.AssignmentMessage{
			JobID: "job-4",
			Pipeline: &types.PipelineModel{
				Stages: []types.Stage{{Name: "s", Steps: []types.Step{{Kind: types.StepShell, Name: "ok", Command: "true"}}}},
			},
		},
	})

	require.Eventually(t, func() bool {
		return len(stream.sentOfType(proto.MsgExecutionResult)) == 1
	}, time.Second, 10*time.Millisecond)

	stream.close()
	w.wg.Wait()
}
