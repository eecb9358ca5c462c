package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"messenger-service/internal/observability"
)

// ServiceName is the health service key reported for this process.
const ServiceName = "messenger.Messenger"

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server is the internal gRPC endpoint exposing grpc.health.v1.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger logrus.FieldLogger
}

// NewServer builds the gRPC server with metrics and tracing on every call.
func NewServer(logger logrus.FieldLogger) *Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{grpc: srv, health: hs, logger: logger}
}

// Serve blocks serving on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.WithField("addr", lis.Addr().String()).Info("grpc server listening")
	return s.grpc.Serve(lis)
}

// Stop drains in-flight calls and marks every service as not serving.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) setServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
}

// WatchDatabase pings db every interval and mirrors the result into the
// health status until ctx is done.
func (s *Server) WatchDatabase(ctx context.Context, db Pinger, clock clockwork.Clock, interval time.Duration) {
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, interval/2)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			s.logger.WithError(err).Warn("database ping failed")
			s.setServing(false)
			return
		}
		s.setServing(true)
	}

	check()
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			check()
		}
	}
}
