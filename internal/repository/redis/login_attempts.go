package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
)

const loginAttemptsKeyPrefix = "login_attempts"

// LoginAttemptRepository persists per (identity, source address) failure
// counters with a TTL-bound lockout window.
type LoginAttemptRepository struct {
	client *red.Client
	now    func() time.Time
}

// NewLoginAttemptRepository wires a Redis client into an attempt repository.
func NewLoginAttemptRepository(client *red.Client) *LoginAttemptRepository {
	return &LoginAttemptRepository{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (r *LoginAttemptRepository) WithClock(now func() time.Time) *LoginAttemptRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// Count returns the current failure count and the moment the lockout window resets.
func (r *LoginAttemptRepository) Count(ctx context.Context, identity, ip string) (int, time.Time, error) {
	key, err := r.key(identity, ip)
	if err != nil {
		return 0, time.Time{}, err
	}

	count, err := r.client.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return 0, time.Time{}, nil
		}
		return 0, time.Time{}, fmt.Errorf("redis get login attempts: %w", err)
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis ttl login attempts: %w", err)
	}

	resetAt := time.Time{}
	if ttl > 0 {
		resetAt = r.now().Add(ttl)
	}

	return count, resetAt, nil
}

// RecordFailure increments the counter, creating it with the supplied window
// TTL on first failure, and returns the new count.
func (r *LoginAttemptRepository) RecordFailure(ctx context.Context, identity, ip string, window time.Duration) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	key, err := r.key(identity, ip)
	if err != nil {
		return 0, err
	}

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr login attempts: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("redis expire login attempts: %w", err)
		}
	}

	return int(count), nil
}

// Clear removes the counter after a successful authentication.
func (r *LoginAttemptRepository) Clear(ctx context.Context, identity, ip string) error {
	key, err := r.key(identity, ip)
	if err != nil {
		return err
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del login attempts: %w", err)
	}

	return nil
}

func (r *LoginAttemptRepository) key(identity, ip string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", errors.New("identity must not be empty")
	}
	if ip == "" {
		ip = "unknown"
	}
	return fmt.Sprintf("%s:%s:%s", loginAttemptsKeyPrefix, identity, ip), nil
}

var _ port.LoginAttemptStore = (*LoginAttemptRepository)(nil)
