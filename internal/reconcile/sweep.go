package reconcile

import (
	"context"
	"log/slog"
	"time"

	"mailroom/internal/repo"
)

const sweepTimeout = 30 * time.Second

// Sweeper repairs records whose status lags behind their attempt history,
// which can happen on data written before attempt recording became a single
// transaction. Queued records with a successful latest attempt are promoted
// to sent.
type Sweeper struct {
	store repo.EmailStore
	log   *slog.Logger
}

func NewSweeper(store repo.EmailStore, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{store: store, log: log}
}

// Sweep is the Runner tick function.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	repaired, err := s.store.ReconcileStatuses(ctx)
	if err != nil {
		s.log.Error("status reconciliation failed", "error", err)
		return
	}
	if repaired > 0 {
		s.log.Warn("reconciled records with divergent status", "count", repaired)
	}
}
