package repo

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailroom/internal/model"
)

//go:embed schema.sql
var schemaSQL string

type PostgresEmailStore struct {
	pool *pgxpool.Pool
}

func NewPostgresEmailStore(pool *pgxpool.Pool) *PostgresEmailStore {
	return &PostgresEmailStore{pool: pool}
}

// EnsureSchema creates the emails and delivery_attempts tables if missing.
func (s *PostgresEmailStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("repo: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresEmailStore) Create(ctx context.Context, rec *model.EmailRequest, publish func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var key *string
	if rec.IdempotencyKey != "" {
		key = &rec.IdempotencyKey
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO emails (id, sender, recipient, subject, body, idempotency_key, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.From, rec.To, rec.Subject, rec.Body, key, string(rec.Status), rec.CreatedAt); err != nil {
		return fmt.Errorf("repo: insert email: %w", err)
	}

	if publish != nil {
		if err := publish(ctx, tx); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresEmailStore) Get(ctx context.Context, id uuid.UUID) (*model.EmailRequest, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, sender, recipient, subject, body, idempotency_key, status, created_at, sent_at
		FROM emails
		WHERE id = $1
	`, id)

	var rec model.EmailRequest
	var key *string
	var status string
	if err := row.Scan(
		&rec.ID,
		&rec.From,
		&rec.To,
		&rec.Subject,
		&rec.Body,
		&key,
		&status,
		&rec.CreatedAt,
		&rec.SentAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repo: get email: %w", err)
	}

	rec.Status = model.Status(status)
	if key != nil {
		rec.IdempotencyKey = *key
	}
	return &rec, nil
}

func (s *PostgresEmailStore) ListAttempts(ctx context.Context, id uuid.UUID) ([]model.DeliveryAttempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT email_id, attempt_number, success, error, created_at
		FROM delivery_attempts
		WHERE email_id = $1
		ORDER BY attempt_number ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("repo: list attempts: %w", err)
	}
	defer rows.Close()

	var out []model.DeliveryAttempt
	for rows.Next() {
		var a model.DeliveryAttempt
		if err := rows.Scan(&a.EmailID, &a.AttemptNumber, &a.Success, &a.Error, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("repo: scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresEmailStore) FindIDByIdempotencyKey(ctx context.Context, key string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT id
		FROM emails
		WHERE idempotency_key = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("repo: find by idempotency key: %w", err)
	}
	return id, nil
}

func (s *PostgresEmailStore) RecordAttempt(ctx context.Context, id uuid.UUID, res model.AttemptResult, maxAttempts int) (int, model.Status, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("repo: begin record attempt: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row lock serializes attempt numbering per email.
	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM emails WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("repo: lock email: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM delivery_attempts WHERE email_id = $1
	`, id).Scan(&count); err != nil {
		return 0, "", fmt.Errorf("repo: count attempts: %w", err)
	}
	attemptNumber := count + 1

	var errMsg *string
	if !res.Success && res.Error != "" {
		errMsg = &res.Error
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO delivery_attempts (email_id, attempt_number, success, error, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, attemptNumber, res.Success, errMsg, res.Timestamp.UTC()); err != nil {
		return 0, "", fmt.Errorf("repo: insert attempt: %w", err)
	}

	status := model.Status(current)
	if !status.Terminal() {
		switch {
		case res.Success:
			status = model.Sent
		case res.Permanent:
			status = model.Failed
		case attemptNumber >= maxAttempts:
			status = model.DeadLettered
		}
	}

	if status != model.Status(current) {
		var sentAt *time.Time
		if status == model.Sent {
			t := res.Timestamp.UTC()
			sentAt = &t
		}
		if _, err := tx.Exec(ctx, `
			UPDATE emails SET status = $2, sent_at = $3 WHERE id = $1
		`, id, string(status), sentAt); err != nil {
			return 0, "", fmt.Errorf("repo: update status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, "", fmt.Errorf("repo: commit attempt: %w", err)
	}
	return attemptNumber, status, nil
}

func (s *PostgresEmailStore) ReconcileStatuses(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (email_id) email_id, success, created_at
			FROM delivery_attempts
			ORDER BY email_id, attempt_number DESC
		)
		UPDATE emails e
		SET status = 'sent', sent_at = l.created_at
		FROM latest l
		WHERE e.id = l.email_id
		  AND e.status = 'queued'
		  AND l.success
	`)
	if err != nil {
		return 0, fmt.Errorf("repo: reconcile statuses: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Healthcheck returns a probe validating database connectivity.
func (s *PostgresEmailStore) Healthcheck() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return s.pool.Ping(ctx)
	}
}
