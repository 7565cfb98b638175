package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

type Config struct {
	// Workers is the number of concurrent consumer slots.
	Workers int
	// MaxAttempts bounds redeliveries per message; the consumer uses the same
	// cutoff to dead-letter a record.
	MaxAttempts int
}

// RiverQueue is the durable queue implementation backed by River jobs in
// Postgres. It shares the store's pool, which is what makes transactional
// publish possible.
type RiverQueue struct {
	client      *river.Client[pgx.Tx]
	pool        *pgxpool.Pool
	maxAttempts int
}

func NewRiverQueue(pool *pgxpool.Pool, proc Processor, cfg Config, logger *slog.Logger) (*RiverQueue, error) {
	if pool == nil {
		return nil, errors.New("queue: pool must not be nil")
	}
	if cfg.Workers <= 0 {
		return nil, errors.New("queue: workers must be > 0")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("queue: max attempts must be > 0")
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &deliveryWorker{processor: proc})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.Workers},
		},
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("queue: create client: %w", err)
	}

	return &RiverQueue{
		client:      client,
		pool:        pool,
		maxAttempts: cfg.MaxAttempts,
	}, nil
}

func (q *RiverQueue) PublishTx(ctx context.Context, tx pgx.Tx, args EmailDeliveryArgs) error {
	_, err := q.client.InsertTx(ctx, tx, args, &river.InsertOpts{
		MaxAttempts: q.maxAttempts,
	})
	if err != nil {
		return fmt.Errorf("queue: publish: %w", err)
	}
	return nil
}

// Start begins consuming delivery messages.
func (q *RiverQueue) Start(ctx context.Context) error {
	if err := q.client.Start(ctx); err != nil {
		return fmt.Errorf("queue: start: %w", err)
	}
	return nil
}

// Stop waits for in-flight messages to finish their attempt write before
// returning, so a shutdown never splits an attempt and its status update.
func (q *RiverQueue) Stop(ctx context.Context) error {
	if err := q.client.Stop(ctx); err != nil {
		return fmt.Errorf("queue: stop: %w", err)
	}
	return nil
}

// Healthcheck returns a probe validating queue reachability. River stores
// jobs in the same database, so pool connectivity covers it.
func (q *RiverQueue) Healthcheck() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := q.pool.Ping(ctx); err != nil {
			return fmt.Errorf("queue: ping: %w", err)
		}
		return nil
	}
}

// deliveryWorker adapts a Processor to River's worker interface, translating
// the ErrNoRetry convention into a job cancellation.
type deliveryWorker struct {
	river.WorkerDefaults[EmailDeliveryArgs]
	processor Processor
}

func (w *deliveryWorker) Work(ctx context.Context, job *river.Job[EmailDeliveryArgs]) error {
	err := w.processor.Process(ctx, job.Args)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoRetry) {
		return river.JobCancel(err)
	}
	return err
}
