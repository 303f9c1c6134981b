package control

import (
	"fmt"
	"net"

	"github.com/cuemby/clickcore/pkg/log"
	"google.golang.org/grpc"
)

// Server wraps a Service implementation in a grpc.Server configured with
// this package's hand-rolled JSON codec and the logging/recovery
// interceptor chain.
type Server struct {
	grpc *grpc.Server
}

// NewServer returns a Server dispatching to svc.
func NewServer(svc Service) *Server {
	s := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.UnaryInterceptor(Chain(RecoveryInterceptor(), LoggingInterceptor())),
	)
	s.RegisterService(&ServiceDesc, svc)
	return &Server{grpc: s}
}

// Start listens on addr and serves until Stop is called; it blocks, so
// callers typically run it in a goroutine.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("control: listen on %s: %w", addr, err)
	}
	log.WithComponent("control").Info().Str("addr", addr).Msg("control server listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the server.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}
