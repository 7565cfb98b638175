package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mailroom/internal/model"
)

// ErrNotFound is returned when no email exists for the given identifier or
// idempotency key.
var ErrNotFound = errors.New("repo: email not found")

// EmailStore is the single owner of email records and their attempt history.
// All status transitions go through it; callers never mutate a record they
// hold across a processing step.
type EmailStore interface {
	// Create persists a new record with status queued and invokes publish
	// inside the same transaction, so the queue message becomes visible only
	// if the record commits too.
	Create(ctx context.Context, rec *model.EmailRequest, publish func(ctx context.Context, tx pgx.Tx) error) error

	Get(ctx context.Context, id uuid.UUID) (*model.EmailRequest, error)

	// ListAttempts returns the full attempt history ordered by attempt number
	// ascending.
	ListAttempts(ctx context.Context, id uuid.UUID) ([]model.DeliveryAttempt, error)

	// FindIDByIdempotencyKey returns the most recent record admitted with the
	// given key, or ErrNotFound.
	FindIDByIdempotencyKey(ctx context.Context, key string) (uuid.UUID, error)

	// RecordAttempt appends one delivery attempt and applies the matching
	// status transition in a single transaction. The attempt number is
	// assigned as count+1 under a row lock on the email, so numbers are dense
	// and strictly increasing even with racing consumers. A record already in
	// a terminal state keeps its status; the attempt is still recorded.
	RecordAttempt(ctx context.Context, id uuid.UUID, res model.AttemptResult, maxAttempts int) (attemptNumber int, status model.Status, err error)

	// ReconcileStatuses promotes queued records whose latest attempt succeeded
	// to sent. Recovery pass for a crash between an attempt write and its
	// status update on older data; returns the number of repaired rows.
	ReconcileStatuses(ctx context.Context) (int, error)
}
