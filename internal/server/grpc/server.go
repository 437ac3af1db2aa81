package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/confideapp/confide/internal/logging"
	"github.com/confideapp/confide/internal/server/gate"
)

// healthMethods bypass the gate so load balancers can probe without a token.
var healthMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

// Server is the gRPC front of the credential core. Every unary call passes
// through the authentication interceptor; the health service is exempt.
type Server struct {
	address string
	gate    *gate.Gate
	logger  logging.Logger
}

func NewServer(address string, g *gate.Gate, l logging.Logger) *Server {
	return &Server{
		address: address,
		gate:    g,
		logger:  l.With("module", "grpc_server"),
	}
}

// Run serves until ctx is cancelled, then drains in-flight calls.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryAuthInterceptor(s.gate, healthMethods)))

	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		healthSrv.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
