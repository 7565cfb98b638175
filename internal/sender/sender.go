package sender

import (
	"context"
	"errors"
)

// Message is one fully-formed email handed to a sender for a single
// delivery attempt.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender attempts one delivery of a message and reports success or a
// diagnostic error. Implementations are pluggable: SMTP today, anything
// tomorrow.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a delivery error as non-retryable: redelivering the same
// message can never succeed (rejected recipient, invalid content).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
