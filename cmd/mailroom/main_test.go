package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"mailroom/internal/config"
	"mailroom/internal/dedup"
	"mailroom/internal/queue"
	"mailroom/internal/repo"
)

func TestLoggingMiddleware_PassesThroughAndCapturesStatus(t *testing.T) {
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}

	if body := rr.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestHealthChecks_Names(t *testing.T) {
	store := repo.NewPostgresEmailStore(nil)
	q := &queue.RiverQueue{}

	t.Run("with guard", func(t *testing.T) {
		checks := healthChecks(store, q, dedup.NewRedisGuard(nil))
		for _, name := range []string{"database", "queue", "guard"} {
			if _, ok := checks[name]; !ok {
				t.Fatalf("expected check named %q, got %d checks", name, len(checks))
			}
		}
		if len(checks) != 3 {
			t.Fatalf("expected 3 checks, got %d", len(checks))
		}
	})

	t.Run("without guard", func(t *testing.T) {
		checks := healthChecks(store, q, nil)
		if _, ok := checks["guard"]; ok {
			t.Fatalf("expected no guard check when dedup is disabled")
		}
		if len(checks) != 2 {
			t.Fatalf("expected 2 checks, got %d", len(checks))
		}
	})
}

func TestBuildSender(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.MailerConfig
		wantErr bool
	}{
		{"smtp", config.MailerConfig{Driver: "smtp", SMTPAddr: "localhost:25"}, false},
		{"resend", config.MailerConfig{Driver: "resend", ResendAPIKey: "re_123"}, false},
		{"webhook", config.MailerConfig{Driver: "webhook", WebhookURL: "https://example.com/send"}, false},
		{"unknown", config.MailerConfig{Driver: "pigeon"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snd, err := buildSender(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if snd == nil {
				t.Fatalf("expected a sender, got nil")
			}
		})
	}
}
