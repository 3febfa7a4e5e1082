package service

import (
	"context"
	"time"

	"github.com/dtroode/gophdate-session/internal/credential"
	"github.com/dtroode/gophdate-session/internal/logger"
	"github.com/dtroode/gophdate-session/internal/metrics"
)

// DefaultReconcileInterval is how often backings are brought back in sync.
const DefaultReconcileInterval = 30 * time.Second

type reconcilingStore interface {
	Reconcile(ctx context.Context) (credential.Repair, error)
}

// Reconciler periodically repairs divergence between the durable and the
// cookie backing. Repairs are silent apart from logs and metrics.
type Reconciler struct {
	store    reconcilingStore
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func NewReconciler(store reconcilingStore, interval time.Duration, metrics *metrics.Metrics, logger *logger.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &Reconciler{
		store:    store,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run reconciles once, then on every tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single reconciliation pass.
func (r *Reconciler) RunOnce(ctx context.Context) credential.Repair {
	repair, err := r.store.Reconcile(ctx)
	if err != nil {
		r.metrics.ObserveReconcileError()
		r.logger.Warn("Reconciler: reconciliation failed",
			"error", err.Error())
		return repair
	}

	if repair != credential.RepairNone {
		r.metrics.ObserveRepair(repair.String())
		r.logger.Info("Reconciler: repaired diverged backing",
			"direction", repair.String())
	}
	return repair
}
