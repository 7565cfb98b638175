package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mailroom/internal/dedup"
	"mailroom/internal/model"
	"mailroom/internal/queue"
	"mailroom/internal/repo"
	"mailroom/internal/sender"
)

// fakeStore mimics the real store's attempt numbering and transition rules
// in memory, so consumer tests exercise the same state machine.
type fakeStore struct {
	rec      *model.EmailRequest
	attempts []model.DeliveryAttempt

	createErr  error
	getErr     error
	recordErr  error
	listErr    error
	findID     uuid.UUID
	findErr    error
	reconciled int

	created      []*model.EmailRequest
	publishCalls int
}

var _ repo.EmailStore = (*fakeStore)(nil)

func (f *fakeStore) Create(ctx context.Context, rec *model.EmailRequest, publish func(ctx context.Context, tx pgx.Tx) error) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, rec)
	if publish != nil {
		if err := publish(ctx, nil); err != nil {
			return err
		}
		f.publishCalls++
	}
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (*model.EmailRequest, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.rec == nil || f.rec.ID != id {
		return nil, repo.ErrNotFound
	}
	cp := *f.rec
	return &cp, nil
}

func (f *fakeStore) ListAttempts(ctx context.Context, id uuid.UUID) ([]model.DeliveryAttempt, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.attempts, nil
}

func (f *fakeStore) FindIDByIdempotencyKey(ctx context.Context, key string) (uuid.UUID, error) {
	if f.findErr != nil {
		return uuid.Nil, f.findErr
	}
	return f.findID, nil
}

func (f *fakeStore) RecordAttempt(ctx context.Context, id uuid.UUID, res model.AttemptResult, maxAttempts int) (int, model.Status, error) {
	if f.recordErr != nil {
		return 0, "", f.recordErr
	}

	n := len(f.attempts) + 1
	var errMsg *string
	if !res.Success && res.Error != "" {
		e := res.Error
		errMsg = &e
	}
	f.attempts = append(f.attempts, model.DeliveryAttempt{
		EmailID:       id,
		AttemptNumber: n,
		Success:       res.Success,
		Error:         errMsg,
		Timestamp:     res.Timestamp,
	})

	status := f.rec.Status
	if !status.Terminal() {
		switch {
		case res.Success:
			status = model.Sent
			t := res.Timestamp
			f.rec.SentAt = &t
		case res.Permanent:
			status = model.Failed
		case n >= maxAttempts:
			status = model.DeadLettered
		}
	}
	f.rec.Status = status
	return n, status, nil
}

func (f *fakeStore) ReconcileStatuses(ctx context.Context) (int, error) {
	return f.reconciled, nil
}

type fakeGuard struct {
	ok  bool
	err error

	gotKey string
	gotTTL time.Duration
	calls  int
}

var _ dedup.Guard = (*fakeGuard)(nil)

func (f *fakeGuard) TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.calls++
	f.gotKey = key
	f.gotTTL = ttl
	return f.ok, f.err
}

type fakePublisher struct {
	err   error
	calls int
	last  queue.EmailDeliveryArgs
}

var _ queue.Publisher = (*fakePublisher)(nil)

func (f *fakePublisher) PublishTx(ctx context.Context, tx pgx.Tx, args queue.EmailDeliveryArgs) error {
	if f.err != nil {
		return f.err
	}
	f.calls++
	f.last = args
	return nil
}

type fakeSender struct {
	err   error
	calls int
	last  sender.Message

	hadDeadline bool
}

var _ sender.Sender = (*fakeSender)(nil)

func (f *fakeSender) Send(ctx context.Context, msg sender.Message) error {
	f.calls++
	f.last = msg
	_, f.hadDeadline = ctx.Deadline()
	return f.err
}

type fakeSink struct {
	processed  int
	failed     int
	duplicates int
	anomalies  int
}

func (f *fakeSink) EmailProcessed()    { f.processed++ }
func (f *fakeSink) EmailFailed()       { f.failed++ }
func (f *fakeSink) DuplicateDelivery() { f.duplicates++ }
func (f *fakeSink) IntegrityAnomaly()  { f.anomalies++ }
