package domain

import "time"

// Session represents one authenticated device login persisted in the session store.
// The record owns its own lifetime independent of any access token minted against it.
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Device       DeviceInfo `json:"device"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
	ExpiresAt    time.Time  `json:"expires_at"`
	IsActive     bool       `json:"is_active"`
	RefreshToken string     `json:"refresh_token"`
	Impersonated bool       `json:"impersonated,omitempty"`
	ActorID      string     `json:"actor_id,omitempty"`
}

// Active reports whether the session is trusted at the supplied moment.
// A session is active iff it has not been deactivated and has not expired;
// every other state is equivalent to "not found" for trust decisions.
func (s Session) Active(at time.Time) bool {
	if !s.IsActive {
		return false
	}
	return !s.ExpiresAt.Before(at)
}

// Touch records activity on the session.
func (s *Session) Touch(at time.Time) {
	s.LastActivity = at
}

// Deactivate marks the session terminated. Returns true when the state changed.
func (s *Session) Deactivate() bool {
	if !s.IsActive {
		return false
	}
	s.IsActive = false
	return true
}

// DeviceInfo captures the client device a session was established from.
// Immutable once attached to a session.
type DeviceInfo struct {
	DeviceID   string  `json:"device_id"`
	DeviceType string  `json:"device_type"`
	IP         string  `json:"ip"`
	UserAgent  string  `json:"user_agent"`
	Location   *string `json:"location,omitempty"`
}

// DeviceFingerprint is a long-retention record of a device, independent of any
// single session, used for recognition across logins.
type DeviceFingerprint struct {
	DeviceID   string    `json:"device_id"`
	UserID     string    `json:"user_id"`
	DeviceType string    `json:"device_type"`
	UserAgent  string    `json:"user_agent"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// AuthResult is the credential pair handed back to a client after a
// successful login, refresh, or impersonation grant.
type AuthResult struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresIn    int64    `json:"expires_in"`
	Session      *Session `json:"session,omitempty"`
	User         *User    `json:"user,omitempty"`
}
