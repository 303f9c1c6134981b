package control

import (
	"context"

	"google.golang.org/grpc"
)

// Service is the control-plane surface a Server implements and a Client
// calls: configuration hot-swap, agent heartbeat/join/leave, and status
// (the "handler/name lookup surface" extended to process-level
// control rather than per-element handlers, which pkg/handler already
// covers).
type Service interface {
	Configure(ctx context.Context, req *ConfigureRequest) (*ConfigureResponse, error)
	Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error)
	Join(ctx context.Context, req *JoinRequest) (*JoinResponse, error)
	Leave(ctx context.Context, req *LeaveRequest) (*LeaveResponse, error)
	Status(ctx context.Context, req *StatusRequest) (*StatusResponse, error)
}

// serviceName is used both as the gRPC service path component and as a
// log field.
const serviceName = "clickcore.control.Control"

// ServiceDesc is a hand-registered grpc.ServiceDesc standing in for a
// protoc-generated one: no .proto/generated package was available to
// ground a real one on, so each method's Handler decodes its request via
// the codec-provided dec function and dispatches directly to the Service
// interface, matching the shape of a generated _Control_serviceDesc.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Configure", Handler: configureHandler},
		{MethodName: "Heartbeat", Handler: heartbeatHandler},
		{MethodName: "Join", Handler: joinHandler},
		{MethodName: "Leave", Handler: leaveHandler},
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "control.proto",
}

func configureHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ConfigureRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Configure(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Configure"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Service).Configure(ctx, req.(*ConfigureRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func heartbeatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(HeartbeatRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Heartbeat(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Heartbeat"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Service).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func joinHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(JoinRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Join(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Join"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Service).Join(ctx, req.(*JoinRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func leaveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(LeaveRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Leave(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Leave"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Service).Leave(ctx, req.(*LeaveRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(StatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Status(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Status"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Service).Status(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, req, info, handler)
}
