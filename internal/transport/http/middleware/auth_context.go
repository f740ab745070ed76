package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/config"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/security"
	"github.com/yuanzhaoK/admin-platform-auth/internal/usecase"
)

const authContextKey = "auth_context"

const proactiveRefreshTimeout = 10 * time.Second

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// AuthContext carries the resolved authentication state for a request. It is
// always present after the ContextBuilder middleware runs; requests without a
// usable token simply carry an unauthenticated context.
type AuthContext struct {
	Authenticated bool
	User          *domain.User
	Session       *domain.Session
	Claims        *security.AccessTokenClaims
	Permissions   []string
}

// ContextBuilder resolves bearer tokens into an AuthContext for every request.
// Token problems never abort the request here; route guards decide whether an
// unauthenticated context is acceptable.
type ContextBuilder struct {
	sessions      *usecase.SessionManager
	dir           port.Directory
	refreshLeeway time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewContextBuilder wires the middleware against the session manager and directory.
func NewContextBuilder(sessions *usecase.SessionManager, dir port.Directory, cfg config.AuthSettings, log *zap.Logger) *ContextBuilder {
	if log == nil {
		log = zap.NewNop()
	}

	leeway := cfg.RefreshLeeway
	if leeway <= 0 {
		leeway = 5 * time.Minute
	}

	return &ContextBuilder{
		sessions:      sessions,
		dir:           dir,
		refreshLeeway: leeway,
		logger:        log,
		now:           time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (b *ContextBuilder) WithClock(now func() time.Time) *ContextBuilder {
	if now != nil {
		b.now = now
	}
	return b
}

// Handler returns the Gin middleware that builds the AuthContext.
func (b *ContextBuilder) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := b.resolve(c)
		c.Set(authContextKey, auth)

		if auth.Authenticated {
			if reqCtx := GetRequestContext(c); reqCtx != nil {
				reqCtx.UserID = auth.User.ID
			}
		}

		c.Next()
	}
}

func (b *ContextBuilder) resolve(c *gin.Context) *AuthContext {
	unauthenticated := &AuthContext{}

	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		return unauthenticated
	}

	ctx := c.Request.Context()

	result, err := b.sessions.VerifyAccessToken(ctx, token)
	if err != nil {
		b.logger.Warn("token verification failed", zap.String("trace_id", GetTraceID(c)), zap.Error(err))
		return unauthenticated
	}

	if !result.Valid {
		b.logger.Debug("rejected access token", zap.String("trace_id", GetTraceID(c)), zap.String("reason", result.Reason))
		return unauthenticated
	}

	user, err := b.dir.GetByID(ctx, result.Claims.UserID)
	if err != nil {
		if !errors.Is(err, port.ErrDirectoryNotFound) {
			b.logger.Warn("directory lookup failed", zap.String("trace_id", GetTraceID(c)), zap.Error(err))
		}
		return unauthenticated
	}

	if !user.IsActive() {
		b.revokeSuspended(ctx, result.Session)
		return unauthenticated
	}

	b.maybeRefresh(result)

	return &AuthContext{
		Authenticated: true,
		User:          user,
		Session:       result.Session,
		Claims:        result.Claims,
		Permissions:   result.Claims.Permissions,
	}
}

// revokeSuspended tears down the session behind a token whose account has been
// suspended since issuance. The request proceeds unauthenticated either way.
func (b *ContextBuilder) revokeSuspended(ctx context.Context, session *domain.Session) {
	if session == nil {
		return
	}

	if err := b.sessions.ForceLogout(ctx, session.ID, usecase.ReasonAccountSuspended); err != nil {
		b.logger.Warn("failed to revoke session for suspended account",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return
	}

	b.logger.Info("revoked session for suspended account",
		zap.String("session_id", session.ID),
		zap.String("user_id", session.UserID))
}

// maybeRefresh kicks off a background token refresh when the presented token
// is close to expiry. The refreshed credentials land in the session store; the
// client picks them up on its next refresh call. Impersonation credentials
// carry no refresh token and are never renewed.
func (b *ContextBuilder) maybeRefresh(result *usecase.VerificationResult) {
	session := result.Session
	if session == nil || session.Impersonated || session.RefreshToken == "" {
		return
	}

	if result.Claims.RemainingLifetime(b.now()) > b.refreshLeeway {
		return
	}

	refreshToken := session.RefreshToken
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), proactiveRefreshTimeout)
		defer cancel()

		if _, err := b.sessions.RefreshAccessToken(ctx, refreshToken); err != nil {
			b.logger.Debug("proactive token refresh failed",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}()
}

// GetAuthContext returns the AuthContext for the request. A request that has
// not passed through the ContextBuilder yields an unauthenticated context.
func GetAuthContext(c *gin.Context) *AuthContext {
	if val, exists := c.Get(authContextKey); exists {
		if auth, ok := val.(*AuthContext); ok {
			return auth
		}
	}
	return &AuthContext{}
}

// RequireAuthenticated aborts with 401 unless the request carries a valid session.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetAuthContext(c).Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}
		c.Next()
	}
}

// RequireRoles aborts with 403 unless the authenticated user holds one of the roles.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := GetAuthContext(c)
		if !auth.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		for _, role := range roles {
			if auth.User.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden,
			newErrorResponse(c, "insufficient role"))
	}
}

// RequirePermissions aborts with 403 unless the session grants at least one of
// the permissions. Wildcards in the granted set are honoured.
func RequirePermissions(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := GetAuthContext(c)
		if !auth.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		if !domain.HasAnyPermission(auth.Permissions, permissions...) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}
