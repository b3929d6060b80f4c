package connectivity

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Checker reports whether the remote side is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// HealthChecker asks the standard gRPC health service for the overall server status.
type HealthChecker struct {
	client healthpb.HealthClient
}

// NewHealthChecker uses conn for health checks.
func NewHealthChecker(conn grpc.ClientConnInterface) *HealthChecker {
	return &HealthChecker{client: healthpb.NewHealthClient(conn)}
}

func (h *HealthChecker) Check(ctx context.Context) error {
	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return &NotServingError{Status: resp.GetStatus().String()}
	}
	return nil
}

// NotServingError is returned when the server answers but is not SERVING.
type NotServingError struct{ Status string }

func (e *NotServingError) Error() string { return "remote not serving: " + e.Status }

// Prober polls a Checker and feeds the result into a Monitor.
type Prober struct {
	Checker  Checker
	Monitor  *Monitor
	Interval time.Duration
	Timeout  time.Duration
	Log      *zap.Logger
}

// Run probes immediately and then every Interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		p.ProbeOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// ProbeOnce performs a single check and updates the monitor.
func (p *Prober) ProbeOnce(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.Checker.Check(cctx)
	online := err == nil
	if p.Monitor.Set(online) && p.Log != nil {
		if online {
			p.Log.Info("remote reachable")
		} else {
			p.Log.Warn("remote unreachable", zap.Error(err))
		}
	}
	return online
}
