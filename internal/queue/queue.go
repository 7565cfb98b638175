package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNoRetry marks a processing outcome as terminal: the message must be
// acknowledged and never redelivered, even though processing did not succeed.
var ErrNoRetry = errors.New("queue: terminal outcome")

// EmailDeliveryArgs is the queue message contract between the submission
// service and the delivery consumer. Published once per admitted request,
// delivered at least once.
type EmailDeliveryArgs struct {
	ID             uuid.UUID `json:"id"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	IdempotencyKey string    `json:"idempotencyKey"`
	CreatedAtUTC   time.Time `json:"createdAtUtc"`
}

func (EmailDeliveryArgs) Kind() string { return "email.delivery" }

// Publisher enqueues a delivery message inside the caller's transaction, so
// the message becomes visible to consumers only after the transaction commits.
type Publisher interface {
	PublishTx(ctx context.Context, tx pgx.Tx, args EmailDeliveryArgs) error
}

// Processor handles one dequeued delivery message. A nil return acknowledges
// the message. An error wrapping ErrNoRetry acknowledges it as permanently
// done; any other error leaves it unacknowledged for redelivery.
type Processor interface {
	Process(ctx context.Context, msg EmailDeliveryArgs) error
}
