package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/worker"
)

const (
	ServiceName = "revsim.Worker"

	// DefaultMaxMessageBytes bounds requests and replies in both directions.
	DefaultMaxMessageBytes = 50 << 20

	resetMethod    = "/" + ServiceName + "/ResetState"
	forwardMethod  = "/" + ServiceName + "/ForwardMode"
	backwardMethod = "/" + ServiceName + "/BackwardMode"
)

// WorkerServer is the server side of revsim.Worker.
type WorkerServer interface {
	ResetState(context.Context, *worker.Empty) (*worker.Empty, error)
	ForwardMode(context.Context, *worker.ForwardRequest) (*worker.ForwardReply, error)
	BackwardMode(context.Context, *worker.BackwardRequest) (*worker.BackwardReply, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResetState", Handler: unary(resetMethod, WorkerServer.ResetState)},
		{MethodName: "ForwardMode", Handler: unary(forwardMethod, WorkerServer.ForwardMode)},
		{MethodName: "BackwardMode", Handler: unary(backwardMethod, WorkerServer.BackwardMode)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "revsim/worker.json",
}

func unary[Req, Reply any](method string, call func(WorkerServer, context.Context, *Req) (*Reply, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(WorkerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(WorkerServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Server adapts a worker.Service to WorkerServer, translating domain
// errors to gRPC status codes.
type Server struct {
	svc *worker.Service
}

func NewServer(svc *worker.Service) *Server {
	return &Server{svc: svc}
}

func (s *Server) ResetState(ctx context.Context, _ *worker.Empty) (*worker.Empty, error) {
	if err := s.svc.Reset(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &worker.Empty{}, nil
}

func (s *Server) ForwardMode(ctx context.Context, req *worker.ForwardRequest) (*worker.ForwardReply, error) {
	reply, err := s.svc.Forward(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply, nil
}

func (s *Server) BackwardMode(ctx context.Context, req *worker.BackwardRequest) (*worker.BackwardReply, error) {
	reply, err := s.svc.Backward(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply, nil
}

// Register attaches srv to g.
func Register(g *grpc.Server, srv WorkerServer) {
	g.RegisterService(&serviceDesc, srv)
}

// NewGRPCServer builds a grpc.Server serving svc with message limits of
// maxBytes in both directions. maxBytes <= 0 selects the default.
func NewGRPCServer(svc *worker.Service, maxBytes int, opts ...grpc.ServerOption) *grpc.Server {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxBytes),
		grpc.MaxSendMsgSize(maxBytes),
	}, opts...)
	g := grpc.NewServer(opts...)
	Register(g, NewServer(svc))
	return g
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, dynamo.ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case dynamo.IsConfigError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
