package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserPayload describes the authenticated principal in API responses.
type UserPayload struct {
	ID          string            `json:"id"`
	Identity    string            `json:"identity"`
	Name        string            `json:"name,omitempty"`
	Role        string            `json:"role"`
	Status      domain.UserStatus `json:"status"`
	AvatarURL   *string           `json:"avatar_url,omitempty"`
	Permissions []string          `json:"permissions,omitempty"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Identity string `json:"identity" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
	DeviceID string `json:"device_id"`
}

// SessionPayload describes a session view in API responses.
type SessionPayload struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	DeviceID     string    `json:"device_id,omitempty"`
	DeviceType   string    `json:"device_type,omitempty"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	Impersonated bool      `json:"impersonated,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	IsCurrent    bool      `json:"is_current,omitempty"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	User         UserPayload    `json:"user"`
	Session      SessionPayload `json:"session"`
}

// TokenRefreshRequest represents the payload to refresh an access token.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenRefreshResponse contains tokens issued by the refresh endpoint. The
// refresh token is returned unchanged; it is bound to the session, not the
// access token.
type TokenRefreshResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *UserPayload `json:"user,omitempty"`
}

// SessionListResponse wraps a list of sessions for a user.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// LogoutAllResponse summarises a bulk logout operation.
type LogoutAllResponse struct {
	RevokedCount int `json:"revoked_count"`
}

// ImpersonateRequest defines the payload for issuing an impersonation credential.
type ImpersonateRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// ImpersonateResponse contains the time-boxed impersonation credential. No
// refresh token is ever issued for impersonation.
type ImpersonateResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	User        UserPayload    `json:"user"`
	Session     SessionPayload `json:"session"`
}

// SessionEventPayload describes an audit trail entry.
type SessionEventPayload struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	Kind      string         `json:"kind"`
	At        time.Time      `json:"at"`
	IP        *string        `json:"ip,omitempty"`
	UserAgent *string        `json:"user_agent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// SessionEventListResponse wraps the audit trail for a session.
type SessionEventListResponse struct {
	Events []SessionEventPayload `json:"events"`
	Total  int                   `json:"total"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// newUserPayload converts a domain user to an API payload.
func newUserPayload(user domain.User, permissions []string) UserPayload {
	payload := UserPayload{
		ID:        user.ID,
		Identity:  user.Identity,
		Name:      user.Name,
		Role:      user.Role,
		Status:    user.Status,
		AvatarURL: user.AvatarURL,
	}

	if len(permissions) > 0 {
		perms := make([]string, len(permissions))
		copy(perms, permissions)
		payload.Permissions = perms
	}

	return payload
}

// newSessionPayload converts a domain session to an API session payload. The
// refresh token never leaves the session store through this path.
func newSessionPayload(session domain.Session) SessionPayload {
	return SessionPayload{
		ID:           session.ID,
		UserID:       session.UserID,
		DeviceID:     session.Device.DeviceID,
		DeviceType:   session.Device.DeviceType,
		IP:           session.Device.IP,
		UserAgent:    session.Device.UserAgent,
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
		ExpiresAt:    session.ExpiresAt,
		Impersonated: session.Impersonated,
		ActorID:      session.ActorID,
	}
}

// newSessionEventPayload converts an audit event to an API payload.
func newSessionEventPayload(event domain.SessionEvent) SessionEventPayload {
	return SessionEventPayload{
		ID:        event.ID,
		SessionID: event.SessionID,
		UserID:    event.UserID,
		Kind:      event.Kind,
		At:        event.At,
		IP:        event.IP,
		UserAgent: event.UserAgent,
		Details:   event.Details,
	}
}
