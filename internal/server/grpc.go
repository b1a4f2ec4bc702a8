package server

import (
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/lotusgame/duel-server-go/internal/config"
)

// GRPCServer bundles the grpc.Server with its health service.
type GRPCServer struct {
	*grpc.Server
	Health *health.Server
}

// NewGRPCServer creates a gRPC server serving DuelService and the standard
// health service. The DuelService status starts as SERVING.
func NewGRPCServer(cfg config.GRPCConfig, matches Matches, logger *zap.Logger) *GRPCServer {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			IdentityInterceptor(),
			LoggingInterceptor(logger),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	}
	if cfg.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.MaxConcurrentStreams)))
	}

	srv := grpc.NewServer(opts...)
	RegisterDuelServiceServer(srv, NewDuelServer(matches, logger))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &GRPCServer{Server: srv, Health: healthSrv}
}

// Stop marks every service NOT_SERVING and stops gracefully.
func (s *GRPCServer) Stop() {
	s.Health.Shutdown()
	s.GracefulStop()
}
