package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAggregator_AllHealthy(t *testing.T) {
	t.Parallel()

	a := NewAggregator(Checks{
		"database": func(ctx context.Context) error { return nil },
		"queue":    func(ctx context.Context) error { return nil },
		"guard":    func(ctx context.Context) error { return nil },
	}, time.Second, nil)

	resp := a.Check(context.Background())

	if resp.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %q", resp.Status)
	}
	if len(resp.Checks) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(resp.Checks))
	}
	for name, c := range resp.Checks {
		if c.Status != StatusHealthy {
			t.Fatalf("expected check %q healthy, got %+v", name, c)
		}
	}
}

func TestAggregator_OneFailing_NamesTheFailure(t *testing.T) {
	t.Parallel()

	a := NewAggregator(Checks{
		"database": func(ctx context.Context) error { return nil },
		"guard":    func(ctx context.Context) error { return errors.New("connection refused") },
	}, time.Second, nil)

	resp := a.Check(context.Background())

	if resp.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %q", resp.Status)
	}
	if resp.Checks["database"].Status != StatusHealthy {
		t.Fatalf("expected database healthy, got %+v", resp.Checks["database"])
	}
	got := resp.Checks["guard"]
	if got.Status != StatusUnhealthy || got.Error != "connection refused" {
		t.Fatalf("expected failing guard check with error, got %+v", got)
	}
}

func TestAggregator_SlowProbeIsTimeBounded(t *testing.T) {
	t.Parallel()

	a := NewAggregator(Checks{
		"queue": func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		},
	}, 50*time.Millisecond, nil)

	start := time.Now()
	resp := a.Check(context.Background())
	elapsed := time.Since(start)

	if resp.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy on timeout, got %q", resp.Status)
	}
	if elapsed > time.Second {
		t.Fatalf("expected bounded probe, took %v", elapsed)
	}
}

func TestAggregator_NoChecks(t *testing.T) {
	t.Parallel()

	resp := NewAggregator(nil, time.Second, nil).Check(context.Background())
	if resp.Status != StatusHealthy {
		t.Fatalf("expected healthy with no checks, got %q", resp.Status)
	}
}

func TestHandler_StatusCodes(t *testing.T) {
	t.Parallel()

	t.Run("healthy 200", func(t *testing.T) {
		t.Parallel()

		a := NewAggregator(Checks{
			"database": func(ctx context.Context) error { return nil },
		}, time.Second, nil)

		rr := httptest.NewRecorder()
		a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var resp Response
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
		}
		if resp.Status != StatusHealthy {
			t.Fatalf("expected healthy body, got %+v", resp)
		}
	})

	t.Run("unhealthy 503", func(t *testing.T) {
		t.Parallel()

		a := NewAggregator(Checks{
			"queue": func(ctx context.Context) error { return errors.New("down") },
		}, time.Second, nil)

		rr := httptest.NewRecorder()
		a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}
	})
}
