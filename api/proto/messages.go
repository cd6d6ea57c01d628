// Package proto defines the wire protocol between the orchestrator and its
// clients/workers. Unlike the teacher's protoc-generated api/proto package,
// messages here are plain JSON-tagged Go structs carried through a small
// grpc.Codec (see codec.go) rather than protobuf-generated bindings; every
// other wire-level idiom (gRPC transport, mTLS dial options, hand-registered
// grpc.ServiceDesc, stream wrapper types) mirrors protoc-gen-go-grpc output.
package proto

import "github.com/hodei/pipelines/pkg/types"

// --- Control service: unary RPCs a client issues against the orchestrator ---

type SubmitJobRequest struct {
	Name         string                   `json:"name"`
	Pipeline     *types.PipelineModel     `json:"pipeline"`
	Requirements types.WorkerRequirements `json:"requirements"`
	Priority     types.Priority           `json:"priority"`
	MaxWaitTime  int64                    `json:"maxWaitTimeSeconds,omitempty"`
}

type SubmitJobResponse struct {
	Job *types.Job `json:"job"`
}

type GetJobRequest struct {
	JobID string `json:"jobId"`
}

type GetJobResponse struct {
	Job *types.Job `json:"job"`
}

type ListJobsRequest struct {
	Phase string `json:"phase,omitempty"`
}

type ListJobsResponse struct {
	Jobs []*types.Job `json:"jobs"`
}

type CancelJobRequest struct {
	JobID string `json:"jobId"`
}

type CancelJobResponse struct {
	Job *types.Job `json:"job"`
}

type ListWorkersRequest struct {
	Pool string `json:"pool,omitempty"`
}

type ListWorkersResponse struct {
	Workers []*types.Worker `json:"workers"`
}

type CreatePoolRequest struct {
	Pool *types.ResourcePool `json:"pool"`
}

type CreatePoolResponse struct {
	Pool *types.ResourcePool `json:"pool"`
}

type ListPoolsRequest struct{}

type ListPoolsResponse struct {
	Pools []*types.ResourcePool `json:"pools"`
}

type GenerateJoinTokenRequest struct {
	PoolName string `json:"poolName"`
	TTLSeconds int64 `json:"ttlSeconds"`
}

type GenerateJoinTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

type SubscribeEventsRequest struct {
	JobID string `json:"jobId"`
}

// --- Worker service: the worker's long-lived bidirectional stream ---

// MessageType discriminates the Envelope's payload for the worker stream.
type MessageType string

const (
	MsgRegister         MessageType = "register"
	MsgRegisterAck      MessageType = "register_ack"
	MsgHeartbeat        MessageType = "heartbeat"
	MsgAssignment       MessageType = "assignment"
	MsgExecutionEvent   MessageType = "execution_event"
	MsgExecutionResult  MessageType = "execution_result"
	MsgCancel           MessageType = "cancel"
)

// Envelope is the single message type exchanged over the worker stream; the
// Type field says which of the pointer fields is populated. This keeps a
// single StreamDesc instead of one per message kind, mirroring the teacher's
// WatchTasks/StreamEvents server-stream idiom generalized to bidi.
type Envelope struct {
	Type MessageType `json:"type"`

	Register        *RegisterMessage        `json:"register,omitempty"`
	RegisterAck     *RegisterAckMessage      `json:"registerAck,omitempty"`
	Heartbeat       *HeartbeatMessage        `json:"heartbeat,omitempty"`
	Assignment      *AssignmentMessage       `json:"assignment,omitempty"`
	ExecutionEvent  *types.ExecutionEvent    `json:"executionEvent,omitempty"`
	ExecutionResult *ExecutionResultMessage  `json:"executionResult,omitempty"`
	Cancel          *CancelMessage           `json:"cancel,omitempty"`
}

type RegisterMessage struct {
	WorkerID string            `json:"workerId"`
	PoolName string            `json:"poolName"`
	Labels   map[string]string `json:"labels,omitempty"`
	Capacity types.WorkerCapacity `json:"capacity"`
	Token    string            `json:"token"`
}

type RegisterAckMessage struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type HeartbeatMessage struct {
	WorkerID string `json:"workerId"`
}

// AssignmentMessage dispatches a job to the worker holding the stream.
type AssignmentMessage struct {
	JobID    string               `json:"jobId"`
	Pipeline *types.PipelineModel `json:"pipeline"`
	Secrets  map[string][]byte    `json:"secrets,omitempty"`
}

type ExecutionResultMessage struct {
	JobID    string         `json:"jobId"`
	Phase    types.JobPhase `json:"phase"`
	ExitCode int            `json:"exitCode"`
	Error    *types.JobError `json:"error,omitempty"`
}

type CancelMessage struct {
	JobID string `json:"jobId"`
}
