package model

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	Queued       Status = "queued"
	Sent         Status = "sent"
	Failed       Status = "failed"
	DeadLettered Status = "dead_lettered"
)

// Terminal reports whether no further automatic transition occurs from s.
func (s Status) Terminal() bool {
	switch s {
	case Sent, Failed, DeadLettered:
		return true
	}
	return false
}

// EmailRequest is the unit of work: one accepted request to deliver an email.
// Content fields are immutable once created; only Status and SentAt change,
// and only through the store.
type EmailRequest struct {
	ID             uuid.UUID
	From           string
	To             string
	Subject        string
	Body           string
	IdempotencyKey string
	Status         Status
	CreatedAt      time.Time
	SentAt         *time.Time
}

// AttemptResult is the outcome of a single sender invocation, as reported by
// the delivery consumer. Permanent marks a failure that must not be retried.
type AttemptResult struct {
	Success   bool
	Error     string
	Permanent bool
	Timestamp time.Time
}

// DeliveryAttempt is one concrete try to hand the email to the sender.
// Attempts are append-only: AttemptNumber is 1-based and strictly increasing
// per email, with no gaps even under concurrent redeliveries.
type DeliveryAttempt struct {
	EmailID       uuid.UUID
	AttemptNumber int
	Success       bool
	Error         *string
	Timestamp     time.Time
}
