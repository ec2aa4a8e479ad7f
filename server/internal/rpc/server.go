package rpc

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/claimdesk/claimdesk/server/internal/auth"
)

// Health service names.
const (
	ServicePipeline = "claimdesk.Pipeline"
	ServiceAgentic  = "claimdesk.Pipeline.Agentic"
)

// Options configures a Server.
type Options struct {
	AuthMode   string
	AuthHeader string
	AuthKey    string
	Logger     *zap.Logger
}

// Server wraps a grpc.Server with the health service registered.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// New creates a Server. All services start SERVING except the agentic one,
// which waits for SetAgentic.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{health: health.NewServer(), log: log}
	s.srv = grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			auth.APIKeyInterceptor(opts.AuthMode, opts.AuthHeader, opts.AuthKey),
			s.logUnary,
		),
		grpc.ChainStreamInterceptor(
			auth.StreamAPIKeyInterceptor(opts.AuthMode, opts.AuthHeader, opts.AuthKey),
		),
	)
	healthpb.RegisterHealthServer(s.srv, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServicePipeline, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceAgentic, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetAgentic reports whether the LLM pipeline is available.
func (s *Server) SetAgentic(available bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if available {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceAgentic, st)
}

// Serve accepts connections on lis until Stop. It returns nil after a
// graceful stop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC health server listening", zap.String("addr", lis.Addr().String()))
	if err := s.srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop marks every service NOT_SERVING and stops gracefully, waiting at
// most until ctx is done before forcing the stop.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
		<-done
	}
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug("grpc call",
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("took", time.Since(start)),
	)
	return resp, err
}
