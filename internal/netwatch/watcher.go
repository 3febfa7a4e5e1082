// Package netwatch detects when the auth backend becomes reachable again.
package netwatch

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dtroode/gophdate-session/internal/logger"
)

// Prober reports whether the backend is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// TCPProber dials addr.
type TCPProber struct {
	addr   string
	dialer net.Dialer
}

func NewTCPProber(addr string) *TCPProber {
	return &TCPProber{addr: addr}
}

func (p *TCPProber) Probe(ctx context.Context) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// GRPCProber calls the standard health service.
type GRPCProber struct {
	client  healthpb.HealthClient
	service string
}

func NewGRPCProber(conn grpc.ClientConnInterface, service string) *GRPCProber {
	return &GRPCProber{client: healthpb.NewHealthClient(conn), service: service}
}

func (p *GRPCProber) Probe(ctx context.Context) error {
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("backend is %s", resp.GetStatus())
	}
	return nil
}

// Watcher probes the backend periodically and calls onOnline on every
// offline to online transition.
type Watcher struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	onOnline func()
	online   atomic.Bool
	probed   bool
	logger   *logger.Logger
}

func NewWatcher(prober Prober, interval, timeout time.Duration, onOnline func(), logger *logger.Logger) *Watcher {
	return &Watcher{
		prober:   prober,
		interval: interval,
		timeout:  timeout,
		onOnline: onOnline,
		logger:   logger,
	}
}

// Online reports the result of the last probe.
func (w *Watcher) Online() bool {
	return w.online.Load()
}

// Run probes until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one probe. It is not safe for concurrent use.
func (w *Watcher) Tick(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.prober.Probe(probeCtx)
	cancel()

	online := err == nil
	was := w.online.Swap(online)
	first := !w.probed
	w.probed = true

	switch {
	case online && !was && !first:
		w.logger.Info("Netwatch: backend reachable again")
		w.onOnline()
	case !online && (was || first):
		w.logger.Warn("Netwatch: backend unreachable",
			"error", err.Error())
	}
}
