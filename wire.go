package orca

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype both sides of the Orca wire surface use.
// Clients must dial with grpc.CallContentSubtype(codecName); servers force it
// with grpc.ForceServerCodec(jsonCodec{}).
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals Orca messages as JSON. The wire types are plain structs
// with JSON tags, so no generated protobuf code is involved.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }

// processorServiceDesc describes the OrcaProcessor service: a server-streaming
// ExecuteDagPart and a unary HealthCheck.
var processorServiceDesc = grpc.ServiceDesc{
	ServiceName: ProcessorServiceName,
	HandlerType: (*ProcessorService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "HealthCheck",
			Handler:    processorHealthCheckHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ExecuteDagPart",
			Handler:       processorExecuteDagPartHandler,
			ServerStreams: true,
		},
	},
	Metadata: "orca/v1/processor.proto",
}

// coreServiceDesc describes the OrcaCore service: unary RegisterProcessor and
// EmitWindow.
var coreServiceDesc = grpc.ServiceDesc{
	ServiceName: CoreServiceName,
	HandlerType: (*CoreService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RegisterProcessor",
			Handler:    coreRegisterProcessorHandler,
		},
		{
			MethodName: "EmitWindow",
			Handler:    coreEmitWindowHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orca/v1/core.proto",
}

// CoreService is the server-side contract of Orca Core. The SDK ships the
// client; the service interface is exported so tests and core implementations
// can register against the same descriptor.
type CoreService interface {
	RegisterProcessor(ctx context.Context, reg ProcessorRegistration) (RegistrationAck, error)
	EmitWindow(ctx context.Context, window Window) (EmitWindowAck, error)
}

// RegisterProcessorServer registers a ProcessorService implementation on a
// gRPC server.
func RegisterProcessorServer(s grpc.ServiceRegistrar, svc ProcessorService) {
	s.RegisterService(&processorServiceDesc, svc)
}

// RegisterCoreServer registers a CoreService implementation on a gRPC server.
func RegisterCoreServer(s grpc.ServiceRegistrar, svc CoreService) {
	s.RegisterService(&coreServiceDesc, svc)
}

func processorHealthCheckHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HealthCheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProcessorService).HealthCheck(ctx, *in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodProcessorHealthCheck,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProcessorService).HealthCheck(ctx, *req.(*HealthCheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func processorExecuteDagPartHandler(srv any, stream grpc.ServerStream) error {
	in := new(ExecutionRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ProcessorService).ExecuteDagPart(*in, &executeDagPartServerStream{stream})
}

// executeDagPartServerStream adapts a grpc.ServerStream to the typed
// ExecutionResultStream the service implements.
type executeDagPartServerStream struct {
	grpc.ServerStream
}

func (s *executeDagPartServerStream) Send(res ExecutionResult) error {
	return s.ServerStream.SendMsg(&res)
}

func coreRegisterProcessorHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ProcessorRegistration)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoreService).RegisterProcessor(ctx, *in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodCoreRegisterProcessor,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoreService).RegisterProcessor(ctx, *req.(*ProcessorRegistration))
	}
	return interceptor(ctx, in, info, handler)
}

func coreEmitWindowHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Window)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoreService).EmitWindow(ctx, *in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodCoreEmitWindow,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CoreService).EmitWindow(ctx, *req.(*Window))
	}
	return interceptor(ctx, in, info, handler)
}

// ProcessorClient calls a remote processor over a gRPC connection. The
// connection must use the json content subtype; NewProcessorClient does not
// inject call options of its own.
type ProcessorClient struct {
	cc grpc.ClientConnInterface
}

// NewProcessorClient wraps a client connection with the processor stubs.
func NewProcessorClient(cc grpc.ClientConnInterface) *ProcessorClient {
	return &ProcessorClient{cc: cc}
}

// HealthCheck queries the remote processor's serving status.
func (c *ProcessorClient) HealthCheck(ctx context.Context, req HealthCheckRequest, opts ...grpc.CallOption) (HealthCheckResponse, error) {
	out := new(HealthCheckResponse)
	if err := c.cc.Invoke(ctx, methodProcessorHealthCheck, &req, out, opts...); err != nil {
		return HealthCheckResponse{}, fmt.Errorf("health check failed: %w", err)
	}
	return *out, nil
}

// ExecuteDagPart opens the server-streaming execution call and returns a
// receiver for the streamed results.
func (c *ProcessorClient) ExecuteDagPart(ctx context.Context, req ExecutionRequest, opts ...grpc.CallOption) (ExecutionResultReceiver, error) {
	stream, err := c.cc.NewStream(ctx, &processorServiceDesc.Streams[0], methodProcessorExecuteDagPart, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open execution stream: %w", err)
	}
	if err := stream.SendMsg(&req); err != nil {
		return nil, fmt.Errorf("failed to send execution request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("failed to close send side: %w", err)
	}
	return &executeDagPartClientStream{stream}, nil
}

type executeDagPartClientStream struct {
	grpc.ClientStream
}

func (s *executeDagPartClientStream) Recv() (ExecutionResult, error) {
	res := new(ExecutionResult)
	if err := s.ClientStream.RecvMsg(res); err != nil {
		return ExecutionResult{}, err
	}
	return *res, nil
}
