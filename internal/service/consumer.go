package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mailroom/internal/metrics"
	"mailroom/internal/model"
	"mailroom/internal/queue"
	"mailroom/internal/repo"
	"mailroom/internal/sender"
)

type ConsumerConfig struct {
	// MaxAttempts dead-letters a record once its attempt count reaches this
	// bound. Must match the queue's redelivery cutoff.
	MaxAttempts int
	// SendTimeout bounds a single sender invocation.
	SendTimeout time.Duration
}

// Consumer processes dequeued delivery messages: load the record, invoke the
// sender once, append the attempt and apply the status transition atomically.
// Built for at-least-once delivery: a redelivered message for a record
// already in a terminal state is logged and acknowledged without re-sending.
type Consumer struct {
	store  repo.EmailStore
	sender sender.Sender
	sink   metrics.Sink
	cfg    ConsumerConfig
	log    *slog.Logger
	now    func() time.Time
}

func NewConsumer(store repo.EmailStore, snd sender.Sender, sink metrics.Sink, cfg ConsumerConfig, log *slog.Logger) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		store:  store,
		sender: snd,
		sink:   sink,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

func (c *Consumer) Process(ctx context.Context, msg queue.EmailDeliveryArgs) error {
	rec, err := c.store.Get(ctx, msg.ID)
	if errors.Is(err, repo.ErrNotFound) {
		// The record is written before the message is published, so a missing
		// record is a data-integrity anomaly. Retrying cannot fix it: drop.
		c.log.Error("delivery message without record, dropping",
			"email_id", msg.ID, "to", msg.To)
		c.sink.IntegrityAnomaly()
		return nil
	}
	if err != nil {
		// Store unreachable: leave the message unacknowledged so the queue
		// redelivers once the dependency recovers.
		return fmt.Errorf("consumer: load %s: %w", msg.ID, err)
	}

	if rec.Status.Terminal() {
		c.log.Warn("duplicate delivery for terminal record, skipping send",
			"email_id", rec.ID, "status", string(rec.Status))
		c.sink.DuplicateDelivery()
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	sendErr := c.sender.Send(sendCtx, sender.Message{
		From:    rec.From,
		To:      rec.To,
		Subject: rec.Subject,
		Body:    rec.Body,
	})
	cancel()

	res := model.AttemptResult{
		Success:   sendErr == nil,
		Permanent: sender.IsPermanent(sendErr),
		Timestamp: c.now().UTC(),
	}
	if sendErr != nil {
		res.Error = sendErr.Error()
	}

	attempt, status, err := c.store.RecordAttempt(ctx, rec.ID, res, c.cfg.MaxAttempts)
	if err != nil {
		// The attempt could not be recorded; redeliver rather than lose the
		// audit entry. A duplicate send is the documented worst case here.
		return fmt.Errorf("consumer: record attempt for %s: %w", rec.ID, err)
	}

	switch {
	case sendErr == nil:
		c.log.Info("email sent",
			"email_id", rec.ID, "attempt", attempt)
		c.sink.EmailProcessed()
		return nil

	case status == model.Failed:
		c.log.Error("email permanently failed",
			"email_id", rec.ID, "attempt", attempt, "error", sendErr.Error())
		c.sink.EmailFailed()
		return fmt.Errorf("consumer: permanent failure on attempt %d: %w: %w", attempt, sendErr, queue.ErrNoRetry)

	case status == model.DeadLettered:
		c.log.Error("email dead-lettered after max attempts",
			"email_id", rec.ID, "attempt", attempt, "error", sendErr.Error())
		c.sink.EmailFailed()
		return fmt.Errorf("consumer: attempts exhausted at %d: %w: %w", attempt, sendErr, queue.ErrNoRetry)

	default:
		// Still queued: let the queue's redelivery policy govern retry timing.
		c.log.Warn("delivery attempt failed, awaiting redelivery",
			"email_id", rec.ID, "attempt", attempt, "error", sendErr.Error())
		c.sink.EmailFailed()
		return fmt.Errorf("consumer: attempt %d failed: %w", attempt, sendErr)
	}
}
