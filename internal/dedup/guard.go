package dedup

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable means the backing store could not be reached; the caller
// must fail the admission rather than silently bypass dedup.
var ErrUnavailable = errors.New("dedup: guard unavailable")

// Guard provides a one-shot claim for an idempotency token. TryClaim
// atomically tests-and-sets a marker for key with the given expiry and
// reports whether this call created it. An empty key is a no-op that always
// succeeds: dedup is opt-in.
type Guard interface {
	TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// NoopGuard is used when dedup is disabled by configuration. Every claim
// succeeds.
type NoopGuard struct{}

func (NoopGuard) TryClaim(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
