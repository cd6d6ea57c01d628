/*
Package proto defines the gRPC wire protocol between hodei clients, the
orchestrator, and workers.

Two services: ControlService (unary RPCs a client issues — SubmitJob,
GetJob, ListJobs, CancelJob, ListWorkers, CreatePool, ListPools,
GenerateJoinToken — plus a server-streaming SubscribeEvents) and
WorkerService (a single bidirectional Stream RPC a worker opens once at
startup and holds for its lifetime, carrying Envelope messages both ways:
Register/Heartbeat/ExecutionEvent/ExecutionResult from the worker,
RegisterAck/Assignment/Cancel from the orchestrator).

Every message is a plain JSON-tagged Go struct rather than a protoc-compiled
type. They travel over a real gRPC transport (TLS, HTTP/2 framing, service
discovery by method name) through jsonCodec, registered with
google.golang.org/grpc/encoding and selected per call via
grpc.CallContentSubtype. The ServiceDesc/MethodDesc/StreamDesc values in
control_grpc.go and worker_grpc.go are hand-written in the exact shape
protoc-gen-go-grpc emits, so pkg/orchestrator and pkg/worker consume this
package exactly as they would a generated one: grpc.RegisterService,
NewXClient, and typed Send/Recv stream wrappers.
*/
package proto
