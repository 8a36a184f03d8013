package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	healthsvc "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer mirrors the aggregate health status for gRPC probes.
type GRPCServer struct {
	monitor *Monitor
	port    int
	server  *grpc.Server
	status  *healthsvc.Server
}

// NewGRPCServer creates a gRPC server exposing the standard health
// service.
func NewGRPCServer(monitor *Monitor, port int) *GRPCServer {
	srv := grpc.NewServer()
	status := healthsvc.NewServer()
	healthpb.RegisterHealthServer(srv, status)
	return &GRPCServer{
		monitor: monitor,
		port:    port,
		server:  srv,
		status:  status,
	}
}

// Start serves until ctx ends. The serving status tracks the monitor.
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen for grpc health: %w", err)
	}

	go s.refresh(ctx)
	go func() {
		<-ctx.Done()
		s.server.GracefulStop()
	}()

	return s.server.Serve(lis)
}

func (s *GRPCServer) refresh(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	s.update(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.update(ctx)
		}
	}
}

func (s *GRPCServer) update(ctx context.Context) {
	report := s.monitor.CheckHealth(ctx)
	serving := healthpb.HealthCheckResponse_SERVING
	if report.SystemStatus == StatusCritical {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.status.SetServingStatus("", serving)
}
