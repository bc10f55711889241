package health

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service names reported by the gRPC health service.
const (
	ServiceChannels     = "vitality.channels"
	ServiceReachability = "vitality.reachability"
)

// GRPCServer mirrors the monitor through the standard gRPC health service.
// A critical loop is NOT_SERVING; the empty service name follows the
// overall status.
type GRPCServer struct {
	monitor *Monitor
	health  *grpchealth.Server
	server  *grpc.Server
	port    int
}

// NewGRPCServer registers a health service kept in sync with monitor.
func NewGRPCServer(monitor *Monitor, port int) *GRPCServer {
	g := &GRPCServer{
		monitor: monitor,
		health:  grpchealth.NewServer(),
		server:  grpc.NewServer(),
		port:    port,
	}
	healthpb.RegisterHealthServer(g.server, g.health)

	for _, loop := range monitor.Loops() {
		ls, _ := monitor.Loop(loop)
		g.update(loop, ls.Status)
	}
	g.sync()
	monitor.OnChange(func(loop string, status SystemStatus) {
		g.update(loop, status)
		g.sync()
	})
	return g
}

func (g *GRPCServer) update(loop string, status SystemStatus) {
	g.health.SetServingStatus(serviceName(loop), servingStatus(status))
}

func (g *GRPCServer) sync() {
	g.health.SetServingStatus("", servingStatus(g.monitor.loopsStatus()))
}

// Serve accepts connections on lis until Stop.
func (g *GRPCServer) Serve(lis net.Listener) error {
	return g.server.Serve(lis)
}

// Start listens on the configured port.
func (g *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	return g.Serve(lis)
}

// Stop shuts the server down gracefully.
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}

func serviceName(loop string) string {
	return "vitality." + loop
}

func servingStatus(s SystemStatus) healthpb.HealthCheckResponse_ServingStatus {
	if s == StatusCritical {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
