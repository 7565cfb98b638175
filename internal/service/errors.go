package service

import "errors"

var (
	// ErrInvalidRequest means the submission failed validation; the caller
	// must fix the payload, retrying is pointless.
	ErrInvalidRequest = errors.New("service: invalid request")

	// ErrDuplicateRequest means a live idempotency claim already exists for
	// the submitted key. The request was already accepted once.
	ErrDuplicateRequest = errors.New("service: duplicate request")

	// ErrUnavailable means a dependency could not be reached; the admission
	// failed fast and the caller may safely retry.
	ErrUnavailable = errors.New("service: dependency unavailable")

	// ErrNotFound means no email exists for the requested identifier.
	ErrNotFound = errors.New("service: email not found")
)
