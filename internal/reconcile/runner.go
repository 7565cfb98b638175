package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Runner drives a sweep function on a fixed interval, with an immediate first
// run on Start. Sweeps run one at a time; a panic in one sweep does not kill
// the loop.
type Runner struct {
	interval time.Duration
	sweepFn  func(context.Context)

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(interval time.Duration, sweepFn func(context.Context)) (*Runner, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if sweepFn == nil {
		return nil, errors.New("sweepFn must not be nil")
	}
	return &Runner{
		interval: interval,
		sweepFn:  sweepFn,
		done:     make(chan struct{}),
	}, nil
}

func (r *Runner) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running.Store(true)

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		slog.Info("reconcile runner started", "interval", r.interval.String())

		r.safeSweep(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("reconcile runner stopping")
				return
			case <-ticker.C:
				r.safeSweep(ctx)
			}
		}
	}()

	return true
}

func (r *Runner) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Load() {
		return false
	}

	r.cancel()
	<-r.done
	r.running.Store(false)

	slog.Info("reconcile runner stopped")
	return true
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) safeSweep(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("reconcile sweep panic recovered", "panic", rec)
		}
	}()

	start := time.Now()
	r.sweepFn(ctx)
	slog.Info("reconcile sweep completed", "duration_ms", time.Since(start).Milliseconds())
}
