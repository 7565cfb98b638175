package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"mailroom/internal/api"
	"mailroom/internal/config"
	"mailroom/internal/dedup"
	"mailroom/internal/health"
	"mailroom/internal/metrics"
	"mailroom/internal/queue"
	"mailroom/internal/reconcile"
	"mailroom/internal/repo"
	"mailroom/internal/sender"
	"mailroom/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := repo.NewPostgresEmailStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal(err)
	}

	var guard dedup.Guard = dedup.NoopGuard{}
	var redisGuard *dedup.RedisGuard
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		redisGuard = dedup.NewRedisGuard(rdb)
		guard = redisGuard
	}

	snd, err := buildSender(cfg.Mailer)
	if err != nil {
		log.Fatal(err)
	}

	sink := metrics.NewCounters()

	consumer := service.NewConsumer(store, snd, sink, service.ConsumerConfig{
		MaxAttempts: cfg.Queue.MaxAttempts,
		SendTimeout: cfg.Queue.SendTimeout,
	}, slog.Default())

	q, err := queue.NewRiverQueue(pool, consumer, queue.Config{
		Workers:     cfg.Queue.Workers,
		MaxAttempts: cfg.Queue.MaxAttempts,
	}, slog.Default())
	if err != nil {
		log.Fatal(err)
	}

	if err := q.Start(ctx); err != nil {
		log.Fatal(err)
	}

	submission := service.NewSubmission(store, guard, q, service.SubmissionConfig{
		ClaimTTL:   cfg.Redis.ClaimTTL,
		SubjectMax: cfg.Mailer.SubjectMax,
		BodyMax:    cfg.Mailer.BodyMax,
	})

	sweeper := reconcile.NewSweeper(store, slog.Default())
	runner, err := reconcile.NewRunner(cfg.Reconcile.Interval, sweeper.Sweep)
	if err != nil {
		log.Fatal(err)
	}
	runner.Start()

	aggregator := health.NewAggregator(healthChecks(store, q, redisGuard), 0, slog.Default())
	handler := api.NewHandler(submission, aggregator.Handler(), cfg.Mailer.DefaultFrom)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(handler)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mailroom listening",
			"addr", cfg.Server.Address,
			"driver", cfg.Mailer.Driver,
			"workers", cfg.Queue.Workers,
			"dedup", cfg.Redis.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	runner.Stop()
	if err := q.Stop(shutdownCtx); err != nil {
		slog.Error("queue shutdown failed", "error", err)
	}

	slog.Info("mailroom stopped",
		"processed", sink.Processed(),
		"failed", sink.Failed(),
		"duplicates", sink.Duplicates(),
	)
}

// healthChecks names the dependency probes as the health endpoint reports
// them: database, queue, and guard when dedup is enabled.
func healthChecks(store *repo.PostgresEmailStore, q *queue.RiverQueue, guard *dedup.RedisGuard) health.Checks {
	checks := health.Checks{
		"database": store.Healthcheck(),
		"queue":    q.Healthcheck(),
	}
	if guard != nil {
		checks["guard"] = guard.Healthcheck()
	}
	return checks
}

func buildSender(cfg config.MailerConfig) (sender.Sender, error) {
	switch cfg.Driver {
	case "smtp":
		return sender.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword), nil
	case "resend":
		return sender.NewResendSender(cfg.ResendAPIKey), nil
	case "webhook":
		return sender.NewWebhookSender(cfg.WebhookURL), nil
	default:
		return nil, errors.New("unsupported mailer driver: " + cfg.Driver)
	}
}

// statusRecorder captures the response code for the request log line.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
