package port

import (
	"context"
	"time"
)

// LoginAttemptStore persists per (identity, source address) failure counters
// with a TTL-bound lockout window.
type LoginAttemptStore interface {
	// Count returns the current failure count and the moment the window resets.
	Count(ctx context.Context, identity, ip string) (int, time.Time, error)
	// RecordFailure increments the counter, creating it with the supplied
	// window TTL on first failure, and returns the new count.
	RecordFailure(ctx context.Context, identity, ip string, window time.Duration) (int, error)
	// Clear removes the counter, typically after a successful authentication.
	Clear(ctx context.Context, identity, ip string) error
}
