package port

import (
	"context"
	"time"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
)

// SessionStore is the durable mapping behind the session authority: session
// records, the per-user session index, the refresh-token index, the
// revocation blacklist, and device fingerprints. Every entry carries a TTL
// enforced by the backing store; callers never garbage-collect explicitly.
//
// Writes are independent: a crash between them can leave a refresh-token
// index pointing at a session that was never persisted. Consumers must treat
// a dangling index entry as "not found", never as a failure.
type SessionStore interface {
	SaveSession(ctx context.Context, session domain.Session, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	AddUserSession(ctx context.Context, userID, sessionID string) error
	RemoveUserSession(ctx context.Context, userID, sessionID string) error
	ListUserSessions(ctx context.Context, userID string) ([]string, error)

	MapRefreshToken(ctx context.Context, tokenHash, sessionID string, ttl time.Duration) error
	ResolveRefreshToken(ctx context.Context, tokenHash string) (string, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) error

	Blacklist(ctx context.Context, sessionID, reason string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, sessionID string) (bool, string, error)

	SaveDevice(ctx context.Context, device domain.DeviceFingerprint, ttl time.Duration) error
	GetDevice(ctx context.Context, deviceID string) (*domain.DeviceFingerprint, error)
	PruneDevices(ctx context.Context, userID string, keep int) (int, error)
}
