package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

type stubProcessor struct {
	err  error
	got  EmailDeliveryArgs
	seen int
}

func (p *stubProcessor) Process(_ context.Context, msg EmailDeliveryArgs) error {
	p.got = msg
	p.seen++
	return p.err
}

func TestDeliveryWorker_Success(t *testing.T) {
	t.Parallel()

	proc := &stubProcessor{}
	w := &deliveryWorker{processor: proc}

	args := EmailDeliveryArgs{ID: uuid.New(), To: "a@b.com"}
	err := w.Work(context.Background(), &river.Job[EmailDeliveryArgs]{Args: args})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proc.seen != 1 {
		t.Fatalf("expected 1 process call, got %d", proc.seen)
	}
	if proc.got.ID != args.ID || proc.got.To != args.To {
		t.Fatalf("processor received wrong message: %+v", proc.got)
	}
}

func TestDeliveryWorker_RetryableErrorPassesThrough(t *testing.T) {
	t.Parallel()

	procErr := errors.New("store unreachable")
	w := &deliveryWorker{processor: &stubProcessor{err: procErr}}

	err := w.Work(context.Background(), &river.Job[EmailDeliveryArgs]{Args: EmailDeliveryArgs{}})
	if !errors.Is(err, procErr) {
		t.Fatalf("expected the processor error to pass through, got: %v", err)
	}
	if errors.Is(err, ErrNoRetry) {
		t.Fatalf("retryable error must not be terminal")
	}
}

func TestDeliveryWorker_NoRetryCancelsJob(t *testing.T) {
	t.Parallel()

	procErr := fmt.Errorf("attempts exhausted: %w", ErrNoRetry)
	w := &deliveryWorker{processor: &stubProcessor{err: procErr}}

	err := w.Work(context.Background(), &river.Job[EmailDeliveryArgs]{Args: EmailDeliveryArgs{}})
	if err == nil {
		t.Fatalf("expected an error, got nil")
	}
	if !errors.Is(err, ErrNoRetry) {
		t.Fatalf("expected cancellation to keep the terminal marker, got: %v", err)
	}
}

func TestNewRiverQueue_InvalidArgs(t *testing.T) {
	t.Parallel()

	if _, err := NewRiverQueue(nil, &stubProcessor{}, Config{Workers: 1, MaxAttempts: 1}, nil); err == nil {
		t.Fatalf("expected error for nil pool")
	}
}
