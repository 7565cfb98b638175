package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	defaultTimeout = 5 * time.Second
)

// CheckFunc probes one dependency. A nil return means reachable.
type CheckFunc func(ctx context.Context) error

// Checks maps a dependency name to its probe.
type Checks map[string]CheckFunc

type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Response struct {
	Status string           `json:"status"`
	Checks map[string]Check `json:"checks,omitempty"`
}

// Aggregator probes all registered dependencies in parallel under a shared
// timeout, so one unreachable dependency cannot stall the whole report.
type Aggregator struct {
	checks  Checks
	timeout time.Duration
	log     *slog.Logger
}

func NewAggregator(checks Checks, timeout time.Duration, log *slog.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		checks:  checks,
		timeout: timeout,
		log:     log,
	}
}

// Check runs every probe and aggregates: healthy only if all dependencies
// are healthy, else unhealthy with the failing subset named.
func (a *Aggregator) Check(ctx context.Context) *Response {
	if len(a.checks) == 0 {
		return &Response{Status: StatusHealthy}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]Check, len(a.checks))
		failed  bool
	)

	for name, probe := range a.checks {
		wg.Add(1)
		go func(name string, probe CheckFunc) {
			defer wg.Done()

			result := Check{Status: StatusHealthy}
			if err := probe(ctx); err != nil {
				result.Status = StatusUnhealthy
				result.Error = err.Error()
				a.log.Warn("health check failed", "check", name, "error", err.Error())
			}

			mu.Lock()
			if result.Status == StatusUnhealthy {
				failed = true
			}
			results[name] = result
			mu.Unlock()
		}(name, probe)
	}

	wg.Wait()

	status := StatusHealthy
	if failed {
		status = StatusUnhealthy
	}
	return &Response{Status: status, Checks: results}
}

// Handler serves the aggregate as JSON: 200 when healthy, 503 otherwise.
func (a *Aggregator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := a.Check(r.Context())

		status := http.StatusOK
		if resp.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
