package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const workerServiceName = "hodei.WorkerService"

// WorkerServiceClient is the client API for WorkerService, dialed by every
// worker process (see pkg/worker) to open its single long-lived stream.
type WorkerServiceClient interface {
	Stream(ctx context.Context, opts ...grpc.CallOption) (WorkerService_StreamClient, error)
}

type workerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewWorkerServiceClient(cc grpc.ClientConnInterface) WorkerServiceClient {
	return &workerServiceClient{cc}
}

func (c *workerServiceClient) Stream(ctx context.Context, opts ...grpc.CallOption) (WorkerService_StreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &WorkerService_ServiceDesc.Streams[0], "/"+workerServiceName+"/Stream", callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	return &workerServiceStreamClient{stream}, nil
}

// WorkerService_StreamClient is the worker side of the bidi stream: it sends
// Register/Heartbeat/ExecutionEvent/ExecutionResult envelopes and receives
// RegisterAck/Assignment/Cancel envelopes.
type WorkerService_StreamClient interface {
	Send(*Envelope) error
	Recv() (*Envelope, error)
	grpc.ClientStream
}

type workerServiceStreamClient struct {
	grpc.ClientStream
}

func (x *workerServiceStreamClient) Send(m *Envelope) error { return x.ClientStream.SendMsg(m) }

func (x *workerServiceStreamClient) Recv() (*Envelope, error) {
	m := new(Envelope)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// WorkerServiceServer is the server API for WorkerService, implemented by
// pkg/registry's stream handler: one goroutine per connected worker.
type WorkerServiceServer interface {
	Stream(WorkerService_StreamServer) error
	mustEmbedUnimplementedWorkerServiceServer()
}

type UnimplementedWorkerServiceServer struct{}

func (UnimplementedWorkerServiceServer) Stream(WorkerService_StreamServer) error {
	return status.Errorf(codes.Unimplemented, "method Stream not implemented")
}
func (UnimplementedWorkerServiceServer) mustEmbedUnimplementedWorkerServiceServer() {}

// WorkerService_StreamServer is the orchestrator side of the bidi stream.
type WorkerService_StreamServer interface {
	Send(*Envelope) error
	Recv() (*Envelope, error)
	grpc.ServerStream
}

type workerServiceStreamServer struct {
	grpc.ServerStream
}

func (x *workerServiceStreamServer) Send(m *Envelope) error { return x.ServerStream.SendMsg(m) }

func (x *workerServiceStreamServer) Recv() (*Envelope, error) {
	m := new(Envelope)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _WorkerService_Stream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(WorkerServiceServer).Stream(&workerServiceStreamServer{stream})
}

// WorkerService_ServiceDesc is registered against a *grpc.Server the same
// way a protoc-gen-go-grpc _ServiceDesc variable would be.
var WorkerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: workerServiceName,
	HandlerType: (*WorkerServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       _WorkerService_Stream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "worker.proto",
}
