package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
	"github.com/yuanzhaoK/admin-platform-auth/internal/transport/http/middleware"
	"github.com/yuanzhaoK/admin-platform-auth/internal/usecase"
)

// SessionHandler exposes endpoints for session management, impersonation, and
// the audit trail.
type SessionHandler struct {
	sessions *usecase.SessionManager
	audit    port.AuditStore
}

// NewSessionHandler constructs a session handler. The audit store is optional;
// without it the events endpoint reports the trail as unavailable.
func NewSessionHandler(sessions *usecase.SessionManager, audit port.AuditStore) *SessionHandler {
	return &SessionHandler{sessions: sessions, audit: audit}
}

// RegisterRoutes binds self-service session routes. The group must already
// require authentication.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("", h.ListSessions)
	r.DELETE("/:session_id", h.RevokeOwnSession)
}

// RegisterAdminRoutes binds operator-only routes. The group must already
// require the administrative role.
func (h *SessionHandler) RegisterAdminRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.DELETE("/sessions/:session_id", h.ForceLogout)
	r.GET("/sessions/:session_id/events", h.ListSessionEvents)
	r.POST("/impersonate", h.Impersonate)
}

// ListSessions returns the caller's active sessions, marking the current one.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	auth := middleware.GetAuthContext(c)
	if !auth.Authenticated || auth.User == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), auth.User.ID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	currentSessionID := ""
	if auth.Session != nil {
		currentSessionID = auth.Session.ID
	}

	response := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payload := newSessionPayload(session)
		if currentSessionID != "" && session.ID == currentSessionID {
			payload.IsCurrent = true
		}
		response = append(response, payload)
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: response, Total: len(response)})
}

// RevokeOwnSession terminates one of the caller's sessions.
func (h *SessionHandler) RevokeOwnSession(c *gin.Context) {
	auth := middleware.GetAuthContext(c)
	if !auth.Authenticated || auth.User == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_id is required"))
		return
	}

	owned, err := h.ownsSession(c, auth.User.ID, sessionID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to revoke session")
		return
	}
	if !owned {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			c.Status(http.StatusNoContent)
			return
		}
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	c.Status(http.StatusNoContent)
}

// ForceLogout terminates any user's session with an operator-supplied reason.
func (h *SessionHandler) ForceLogout(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_id is required"))
		return
	}

	reason := strings.TrimSpace(c.Query("reason"))

	if err := h.sessions.ForceLogout(c.Request.Context(), sessionID, reason); err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
			{Err: usecase.ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "session store unavailable"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	c.Status(http.StatusNoContent)
}

// Impersonate issues a time-boxed credential acting as the target account.
func (h *SessionHandler) Impersonate(c *gin.Context) {
	auth := middleware.GetAuthContext(c)
	if !auth.Authenticated || auth.User == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ImpersonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_id is required"))
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second

	result, err := h.sessions.Impersonate(c.Request.Context(), *auth.User, req.UserID, ttl)
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrImpersonationForbidden, Status: http.StatusForbidden, Message: "impersonation not permitted"},
			{Err: port.ErrDirectoryNotFound, Status: http.StatusNotFound, Message: "user not found"},
			{Err: port.ErrDirectoryUnavailable, Status: http.StatusServiceUnavailable, Message: "directory unavailable"},
			{Err: usecase.ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "session store unavailable"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to impersonate user")
		return
	}

	session := SessionPayload{}
	if result.Session != nil {
		session = newSessionPayload(*result.Session)
	}

	user := UserPayload{}
	if result.User != nil {
		user = newUserPayload(*result.User, nil)
	}

	c.JSON(http.StatusOK, ImpersonateResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   result.ExpiresIn,
		User:        user,
		Session:     session,
	})
}

// ListSessionEvents returns the audit trail for a session, newest first.
func (h *SessionHandler) ListSessionEvents(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "audit trail unavailable"))
		return
	}

	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_id is required"))
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	events, err := h.audit.ListBySession(c.Request.Context(), sessionID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list session events"))
		return
	}

	response := make([]SessionEventPayload, 0, len(events))
	for _, event := range events {
		response = append(response, newSessionEventPayload(event))
	}

	c.JSON(http.StatusOK, SessionEventListResponse{Events: response, Total: len(response)})
}

func (h *SessionHandler) ownsSession(c *gin.Context, userID, sessionID string) (bool, error) {
	sessions, err := h.sessions.ListSessions(c.Request.Context(), userID)
	if err != nil {
		return false, err
	}

	for _, session := range sessions {
		if session.ID == sessionID {
			return true, nil
		}
	}
	return false, nil
}
