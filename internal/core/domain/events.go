package domain

import "time"

// SessionEvent captures lifecycle changes for sessions, persisted to the
// audit log on a best-effort basis.
type SessionEvent struct {
	ID        string
	SessionID string
	UserID    string
	Kind      string
	At        time.Time
	IP        *string
	UserAgent *string
	Details   map[string]any
}

// Session event kinds.
const (
	SessionEventCreated      = "session.created"
	SessionEventRevoked      = "session.revoked"
	SessionEventEvicted      = "session.evicted"
	SessionEventImpersonated = "session.impersonated"
)

// LoginSucceededEvent is published after a successful login.
type LoginSucceededEvent struct {
	EventID   string
	UserID    string
	Identity  string
	Role      string
	SessionID string
	DeviceID  string
	IP        string
	At        time.Time
}

// LoginFailedEvent is published after a failed login attempt.
type LoginFailedEvent struct {
	EventID  string
	Identity string
	Role     string
	Reason   string
	IP       string
	Attempts int
	At       time.Time
}

// SessionRevokedEvent is published when a session is terminated, whether by
// the user, an operator, or the session-limit eviction policy.
type SessionRevokedEvent struct {
	EventID   string
	SessionID string
	UserID    string
	Reason    string
	RevokedBy string
	RevokedAt time.Time
}
