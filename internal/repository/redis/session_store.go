package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
	"github.com/yuanzhaoK/admin-platform-auth/internal/repository"
)

// Key prefixes for the session authority keyspace.
const (
	sessionKeyPrefix      = "session"
	userSessionsKeyPrefix = "user_sessions"
	refreshTokenKeyPrefix = "refresh_token"
	blacklistKeyPrefix    = "token_blacklist"
	deviceKeyPrefix       = "device"
	userDevicesKeyPrefix  = "user_devices"
)

// SessionStore persists sessions, indexes, the revocation blacklist, and
// device fingerprints in Redis. Records are JSON values under TTL-bound keys;
// the per-user session index is a plain set so membership updates stay atomic
// under concurrent logins.
type SessionStore struct {
	client *red.Client
}

// NewSessionStore wires a Redis client into a session store.
func NewSessionStore(client *red.Client) *SessionStore {
	return &SessionStore{client: client}
}

// SaveSession stores the session record under its own TTL.
func (s *SessionStore) SaveSession(ctx context.Context, session domain.Session, ttl time.Duration) error {
	if session.ID == "" {
		return errors.New("session id must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	key := fmt.Sprintf("%s:%s", sessionKeyPrefix, session.ID)
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}

	return nil
}

// GetSession loads a session record. Expired or never-written sessions
// resolve to repository.ErrNotFound.
func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	key := fmt.Sprintf("%s:%s", sessionKeyPrefix, sessionID)

	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return &session, nil
}

// DeleteSession removes the session record. Deleting a missing record is not an error.
func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf("%s:%s", sessionKeyPrefix, sessionID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// AddUserSession adds the session id to the user's session index.
func (s *SessionStore) AddUserSession(ctx context.Context, userID, sessionID string) error {
	key := fmt.Sprintf("%s:%s", userSessionsKeyPrefix, userID)
	if err := s.client.SAdd(ctx, key, sessionID).Err(); err != nil {
		return fmt.Errorf("redis sadd user session: %w", err)
	}
	return nil
}

// RemoveUserSession drops the session id from the user's session index.
func (s *SessionStore) RemoveUserSession(ctx context.Context, userID, sessionID string) error {
	key := fmt.Sprintf("%s:%s", userSessionsKeyPrefix, userID)
	if err := s.client.SRem(ctx, key, sessionID).Err(); err != nil {
		return fmt.Errorf("redis srem user session: %w", err)
	}
	return nil
}

// ListUserSessions returns the session ids currently indexed for the user.
// Entries may point at sessions that have already expired; callers resolve
// each id and treat misses as "not found".
func (s *SessionStore) ListUserSessions(ctx context.Context, userID string) ([]string, error) {
	key := fmt.Sprintf("%s:%s", userSessionsKeyPrefix, userID)

	ids, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers user sessions: %w", err)
	}

	return ids, nil
}

// MapRefreshToken indexes the refresh-token hash to its session.
func (s *SessionStore) MapRefreshToken(ctx context.Context, tokenHash, sessionID string, ttl time.Duration) error {
	if tokenHash == "" {
		return errors.New("token hash must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	key := fmt.Sprintf("%s:%s", refreshTokenKeyPrefix, tokenHash)
	if err := s.client.Set(ctx, key, sessionID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set refresh token: %w", err)
	}

	return nil
}

// ResolveRefreshToken returns the session id the token hash maps to.
func (s *SessionStore) ResolveRefreshToken(ctx context.Context, tokenHash string) (string, error) {
	key := fmt.Sprintf("%s:%s", refreshTokenKeyPrefix, tokenHash)

	sessionID, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis get refresh token: %w", err)
	}

	return sessionID, nil
}

// DeleteRefreshToken drops the refresh-token mapping.
func (s *SessionStore) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	key := fmt.Sprintf("%s:%s", refreshTokenKeyPrefix, tokenHash)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del refresh token: %w", err)
	}
	return nil
}

// Blacklist records the session as revoked with the supplied reason. The TTL
// should cover the longest-lived token minted against the session.
func (s *SessionStore) Blacklist(ctx context.Context, sessionID, reason string, ttl time.Duration) error {
	if sessionID == "" {
		return errors.New("session id must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	key := fmt.Sprintf("%s:%s", blacklistKeyPrefix, sessionID)
	if err := s.client.Set(ctx, key, reason, ttl).Err(); err != nil {
		return fmt.Errorf("redis set blacklist: %w", err)
	}

	return nil
}

// IsBlacklisted reports whether the session has been revoked and the stored reason.
func (s *SessionStore) IsBlacklisted(ctx context.Context, sessionID string) (bool, string, error) {
	key := fmt.Sprintf("%s:%s", blacklistKeyPrefix, sessionID)

	reason, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("redis get blacklist: %w", err)
	}

	return true, reason, nil
}

// SaveDevice upserts a device fingerprint and tracks it in the user's device
// index, scored by last-seen time so pruning can drop the oldest first.
func (s *SessionStore) SaveDevice(ctx context.Context, device domain.DeviceFingerprint, ttl time.Duration) error {
	if device.DeviceID == "" {
		return errors.New("device id must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	payload, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("marshal device: %w", err)
	}

	key := fmt.Sprintf("%s:%s", deviceKeyPrefix, device.DeviceID)
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set device: %w", err)
	}

	indexKey := fmt.Sprintf("%s:%s", userDevicesKeyPrefix, device.UserID)
	member := red.Z{Score: float64(device.LastSeen.UnixNano()), Member: device.DeviceID}
	if err := s.client.ZAdd(ctx, indexKey, member).Err(); err != nil {
		return fmt.Errorf("redis zadd user device: %w", err)
	}
	if err := s.client.Expire(ctx, indexKey, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire user devices: %w", err)
	}

	return nil
}

// GetDevice loads a device fingerprint.
func (s *SessionStore) GetDevice(ctx context.Context, deviceID string) (*domain.DeviceFingerprint, error) {
	key := fmt.Sprintf("%s:%s", deviceKeyPrefix, deviceID)

	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get device: %w", err)
	}

	var device domain.DeviceFingerprint
	if err := json.Unmarshal(payload, &device); err != nil {
		return nil, fmt.Errorf("unmarshal device: %w", err)
	}

	return &device, nil
}

// PruneDevices removes the oldest device fingerprints beyond the retention
// count and returns how many were dropped.
func (s *SessionStore) PruneDevices(ctx context.Context, userID string, keep int) (int, error) {
	if keep < 0 {
		return 0, errors.New("keep must not be negative")
	}

	indexKey := fmt.Sprintf("%s:%s", userDevicesKeyPrefix, userID)

	total, err := s.client.ZCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard user devices: %w", err)
	}
	if total <= int64(keep) {
		return 0, nil
	}

	excess := total - int64(keep)
	oldest, err := s.client.ZRange(ctx, indexKey, 0, excess-1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zrange user devices: %w", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	deviceKeys := make([]string, 0, len(oldest))
	for _, id := range oldest {
		deviceKeys = append(deviceKeys, fmt.Sprintf("%s:%s", deviceKeyPrefix, id))
	}
	if err := s.client.Del(ctx, deviceKeys...).Err(); err != nil {
		return 0, fmt.Errorf("redis del devices: %w", err)
	}

	members := make([]interface{}, 0, len(oldest))
	for _, id := range oldest {
		members = append(members, id)
	}
	if err := s.client.ZRem(ctx, indexKey, members...).Err(); err != nil {
		return 0, fmt.Errorf("redis zrem user devices: %w", err)
	}

	return len(oldest), nil
}

var _ port.SessionStore = (*SessionStore)(nil)
