package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mailroom/internal/dedup"
	"mailroom/internal/model"
	"mailroom/internal/queue"
	"mailroom/internal/repo"
)

// SubmitRequest is one caller request to deliver an email.
type SubmitRequest struct {
	From           string
	To             string
	Subject        string
	Body           string
	IdempotencyKey string
}

type SubmissionConfig struct {
	// ClaimTTL is how long an idempotency claim stays live.
	ClaimTTL   time.Duration
	SubjectMax int
	BodyMax    int
}

// Submission admits email requests: validate, claim idempotency, persist the
// record, and publish the delivery message in the same transaction. The
// returned acknowledgement is not a delivery guarantee.
type Submission struct {
	store repo.EmailStore
	guard dedup.Guard
	pub   queue.Publisher
	cfg   SubmissionConfig
	now   func() time.Time
}

func NewSubmission(store repo.EmailStore, guard dedup.Guard, pub queue.Publisher, cfg SubmissionConfig) *Submission {
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = time.Hour
	}
	if cfg.SubjectMax <= 0 {
		cfg.SubjectMax = 200
	}
	if cfg.BodyMax <= 0 {
		cfg.BodyMax = 65536
	}
	return &Submission{
		store: store,
		guard: guard,
		pub:   pub,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *Submission) Submit(ctx context.Context, req SubmitRequest) (*model.EmailRequest, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		ok, err := s.guard.TryClaim(ctx, req.IdempotencyKey, s.cfg.ClaimTTL)
		if err != nil {
			return nil, errors.Join(ErrUnavailable, err)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}
	}

	now := s.now().UTC()
	rec := &model.EmailRequest{
		ID:             uuid.New(),
		From:           req.From,
		To:             req.To,
		Subject:        req.Subject,
		Body:           req.Body,
		IdempotencyKey: req.IdempotencyKey,
		Status:         model.Queued,
		CreatedAt:      now,
	}

	err := s.store.Create(ctx, rec, func(ctx context.Context, tx pgx.Tx) error {
		return s.pub.PublishTx(ctx, tx, queue.EmailDeliveryArgs{
			ID:             rec.ID,
			From:           rec.From,
			To:             rec.To,
			Subject:        rec.Subject,
			Body:           rec.Body,
			IdempotencyKey: rec.IdempotencyKey,
			CreatedAtUTC:   rec.CreatedAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", rec.ID, err)
	}

	return rec, nil
}

// GetEmail returns the record and its full attempt history, ordered by
// attempt number ascending.
func (s *Submission) GetEmail(ctx context.Context, id uuid.UUID) (*model.EmailRequest, []model.DeliveryAttempt, error) {
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	attempts, err := s.store.ListAttempts(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, attempts, nil
}

// PriorID resolves the record previously admitted with the given idempotency
// key. Best effort: a duplicate rejection stands even when the prior record
// cannot be found.
func (s *Submission) PriorID(ctx context.Context, key string) (uuid.UUID, bool) {
	id, err := s.store.FindIDByIdempotencyKey(ctx, key)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *Submission) validate(req SubmitRequest) error {
	if strings.TrimSpace(req.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidRequest)
	}
	if strings.Count(req.To, "@") != 1 {
		return fmt.Errorf("%w: recipient %q is not an email address", ErrInvalidRequest, req.To)
	}
	if strings.TrimSpace(req.From) == "" {
		return fmt.Errorf("%w: sender identity is required", ErrInvalidRequest)
	}
	if n := utf8.RuneCountInString(req.Subject); n > s.cfg.SubjectMax {
		return fmt.Errorf("%w: subject exceeds %d chars", ErrInvalidRequest, s.cfg.SubjectMax)
	}
	// Line breaks in a subject would splice extra headers into the SMTP
	// message body.
	if strings.ContainsAny(req.Subject, "\r\n") {
		return fmt.Errorf("%w: subject must not contain line breaks", ErrInvalidRequest)
	}
	if req.Body == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidRequest)
	}
	if n := utf8.RuneCountInString(req.Body); n > s.cfg.BodyMax {
		return fmt.Errorf("%w: body exceeds %d chars", ErrInvalidRequest, s.cfg.BodyMax)
	}
	return nil
}
