package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
	"github.com/yuanzhaoK/admin-platform-auth/internal/transport/http/middleware"
	"github.com/yuanzhaoK/admin-platform-auth/internal/usecase"
)

const (
	lockoutProblemType  = "https://auth.admin-platform.example.com/errors/login-locked"
	lockoutProblemTitle = "Too Many Login Attempts"
)

// ipHeaders are consulted in order before falling back to the socket address.
var ipHeaders = []string{"CF-Connecting-IP", "X-Real-IP", "X-Forwarded-For"}

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}

	r.POST("/refresh", h.refresh)
	r.POST("/logout", middleware.RequireAuthenticated(), h.logout)
	r.POST("/logout-all", middleware.RequireAuthenticated(), h.logoutAll)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.RoleMember
	}

	device := deviceFromRequest(c, strings.TrimSpace(req.DeviceID))

	result, err := h.auth.Login(c.Request.Context(), req.Identity, req.Password, role, device)
	if err != nil {
		h.respondLoginError(c, err)
		return
	}

	session := SessionPayload{}
	if result.Session != nil {
		session = newSessionPayload(*result.Session)
		session.IsCurrent = true
	}

	user := UserPayload{}
	if result.User != nil {
		user = newUserPayload(*result.User, domain.PermissionsFor(*result.User))
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
		User:         user,
		Session:      session,
	})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrRefreshTokenInvalid):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid refresh token"))
		case errors.Is(err, usecase.ErrSessionExpired):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "session expired"))
		case errors.Is(err, usecase.ErrSessionRevoked):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "session revoked"))
		case errors.Is(err, usecase.ErrStoreUnavailable):
			c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "session store unavailable"))
		case errors.Is(err, port.ErrDirectoryUnavailable):
			c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "directory unavailable"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to refresh token"))
		}
		return
	}

	response := TokenRefreshResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
	}

	rawInclude := c.DefaultQuery("include_user", "false")
	includeUser := strings.EqualFold(rawInclude, "true") || rawInclude == "1"
	if includeUser && result.User != nil {
		user := newUserPayload(*result.User, domain.PermissionsFor(*result.User))
		response.User = &user
	}

	c.JSON(http.StatusOK, response)
}

func (h *AuthHandler) logout(c *gin.Context) {
	auth := middleware.GetAuthContext(c)
	if !auth.Authenticated || auth.Session == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), auth.Session.ID); err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke session"))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) logoutAll(c *gin.Context) {
	auth := middleware.GetAuthContext(c)
	if !auth.Authenticated || auth.User == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	count, err := h.auth.LogoutAllDevices(c.Request.Context(), auth.User.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke sessions"))
		return
	}

	c.JSON(http.StatusOK, LogoutAllResponse{RevokedCount: count})
}

func (h *AuthHandler) respondLoginError(c *gin.Context, err error) {
	var lockErr *usecase.TooManyAttemptsError
	if errors.As(err, &lockErr) {
		respondLoginLocked(c, lockErr)
		return
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credentials"))
	case errors.Is(err, usecase.ErrAccountSuspended):
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "account suspended"))
	case errors.Is(err, usecase.ErrUnsupportedRole):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unsupported role"))
	case errors.Is(err, usecase.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "session store unavailable"))
	case errors.Is(err, port.ErrDirectoryUnavailable):
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "directory unavailable"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication failed"))
	}
}

// respondLoginLocked renders the lockout as an RFC 9457 problem with the
// window reset surfaced both in the body and the Retry-After header.
func respondLoginLocked(c *gin.Context, lockErr *usecase.TooManyAttemptsError) {
	retryAfter := int(time.Until(lockErr.ResetAt).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.JSON(http.StatusTooManyRequests, middleware.ProblemDetails{
		Type:       lockoutProblemType,
		Title:      lockoutProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many failed login attempts. Try again in %d seconds.", retryAfter),
		Instance:   instance,
		RetryAfter: retryAfter,
		TraceID:    middleware.GetTraceID(c),
		Extensions: map[string]any{"reset_at": lockErr.ResetAt.UTC().Format(time.RFC3339)},
	})
}

// deviceFromRequest assembles the device descriptor from proxy-aware headers.
func deviceFromRequest(c *gin.Context, deviceID string) domain.DeviceInfo {
	return domain.DeviceInfo{
		DeviceID:  deviceID,
		IP:        clientIP(c),
		UserAgent: strings.TrimSpace(c.Request.UserAgent()),
	}
}

// clientIP prefers CDN and reverse-proxy headers over the socket address.
func clientIP(c *gin.Context) string {
	for _, header := range ipHeaders {
		value := strings.TrimSpace(c.GetHeader(header))
		if value == "" {
			continue
		}
		if comma := strings.IndexByte(value, ','); comma >= 0 {
			value = strings.TrimSpace(value[:comma])
		}
		if value != "" {
			return value
		}
	}
	return c.ClientIP()
}
