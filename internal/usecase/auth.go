package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/config"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/logger"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/telemetry"
)

var (
	// ErrInvalidCredentials indicates the provided identity or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountSuspended indicates the account may not hold sessions.
	ErrAccountSuspended = errors.New("account is not active")
	// ErrTooManyAttempts indicates the identity/address pair is locked out.
	ErrTooManyAttempts = errors.New("too many login attempts")
	// ErrUnsupportedRole indicates the requested role has no directory namespace.
	ErrUnsupportedRole = errors.New("unsupported role")
)

// TooManyAttemptsError carries the moment the lockout window resets.
type TooManyAttemptsError struct {
	ResetAt time.Time
}

func (e *TooManyAttemptsError) Error() string {
	if e.ResetAt.IsZero() {
		return ErrTooManyAttempts.Error()
	}
	return fmt.Sprintf("too many login attempts, retry after %s", e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *TooManyAttemptsError) Unwrap() error { return ErrTooManyAttempts }

// AuthService coordinates the login flow: lockout checks, directory
// authentication, session creation, and attempt bookkeeping.
type AuthService struct {
	sessions   *SessionManager
	dir        port.Directory
	events     port.EventPublisher
	metrics    *telemetry.Provider
	dirTimeout time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(sessions *SessionManager, dir port.Directory, cfg config.DirectorySettings, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AuthService{
		sessions:   sessions,
		dir:        dir,
		dirTimeout: timeout,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithEvents injects the security-event publisher.
func (s *AuthService) WithEvents(events port.EventPublisher) *AuthService {
	s.events = events
	return s
}

// WithMetrics injects the telemetry provider.
func (s *AuthService) WithMetrics(metrics *telemetry.Provider) *AuthService {
	s.metrics = metrics
	return s
}

// Login authenticates the identity against the role's directory namespace and
// establishes a session. Exactly one attempt outcome is recorded per call:
// the counter is cleared on successful authentication and incremented once on
// any failure, including directory timeouts.
func (s *AuthService) Login(ctx context.Context, identity, password, role string, device domain.DeviceInfo) (*domain.AuthResult, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	namespace, err := namespaceForRole(role)
	if err != nil {
		return nil, err
	}

	allowed, resetAt, err := s.sessions.CheckLoginAttempts(ctx, identity, device.IP)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.metrics.LoginAttempt("locked_out")
		return nil, &TooManyAttemptsError{ResetAt: resetAt}
	}

	authCtx, cancel := context.WithTimeout(ctx, s.dirTimeout)
	defer cancel()

	user, err := s.dir.AuthenticateWithPassword(authCtx, identity, password, namespace)
	if err != nil {
		reason := "directory_unavailable"
		outcome := err
		switch {
		case errors.Is(err, port.ErrDirectoryAuthFailed):
			reason = "invalid_credentials"
			outcome = ErrInvalidCredentials
		case errors.Is(err, context.DeadlineExceeded):
			outcome = fmt.Errorf("%w: %v", port.ErrDirectoryUnavailable, err)
		}
		s.recordFailure(ctx, identity, role, reason, device.IP)
		return nil, outcome
	}

	if !user.IsActive() {
		s.recordFailure(ctx, identity, role, "account_suspended", device.IP)
		return nil, ErrAccountSuspended
	}

	// Authentication succeeded: reset the failure counter before session
	// creation so a store hiccup there cannot leave the user locked out.
	if err := s.sessions.RecordLoginAttempt(ctx, identity, device.IP, true); err != nil {
		s.logger.Warn("failed to clear login attempt counter",
			zap.String("identity", logger.MaskEmail(identity)),
			zap.Error(err),
		)
	}

	enrichDevice(&device)

	result, err := s.sessions.CreateSession(ctx, *user, device)
	if err != nil {
		return nil, err
	}

	s.metrics.LoginAttempt("success")

	if s.events != nil {
		event := domain.LoginSucceededEvent{
			EventID:   uuid.NewString(),
			UserID:    user.ID,
			Identity:  identity,
			Role:      user.Role,
			SessionID: result.Session.ID,
			DeviceID:  device.DeviceID,
			IP:        device.IP,
			At:        s.now(),
		}
		if err := s.events.PublishLoginSucceeded(ctx, event); err != nil {
			s.logger.Warn("failed to publish login succeeded event",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
		}
	}

	if pruned, err := s.sessions.PruneDeviceHistory(ctx, user.ID); err != nil {
		s.logger.Warn("failed to prune device history",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	} else if pruned > 0 {
		s.logger.Debug("pruned device fingerprints",
			zap.String("user_id", user.ID),
			zap.Int("pruned", pruned),
		)
	}

	return result, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is never rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	return s.sessions.RefreshAccessToken(ctx, refreshToken)
}

// Logout terminates the session at the owner's request.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Logout(ctx, sessionID)
}

// LogoutAllDevices terminates every session of the user.
func (s *AuthService) LogoutAllDevices(ctx context.Context, userID string) (int, error) {
	return s.sessions.LogoutAllDevices(ctx, userID)
}

func (s *AuthService) recordFailure(ctx context.Context, identity, role, reason, ip string) {
	s.metrics.LoginAttempt("failure")

	if err := s.sessions.RecordLoginAttempt(ctx, identity, ip, false); err != nil {
		s.logger.Warn("failed to record login failure",
			zap.String("identity", logger.MaskEmail(identity)),
			zap.Error(err),
		)
	}

	if s.events == nil {
		return
	}

	count, _, err := s.sessions.attempts.Count(ctx, identity, ip)
	if err != nil {
		count = 0
	}

	event := domain.LoginFailedEvent{
		EventID:  uuid.NewString(),
		Identity: identity,
		Role:     role,
		Reason:   reason,
		IP:       ip,
		Attempts: count,
		At:       s.now(),
	}
	if err := s.events.PublishLoginFailed(ctx, event); err != nil {
		s.logger.Warn("failed to publish login failed event",
			zap.String("identity", logger.MaskEmail(identity)),
			zap.Error(err),
		)
	}
}

func namespaceForRole(role string) (string, error) {
	switch role {
	case domain.RoleAdmin:
		return domain.NamespaceAdmins, nil
	case domain.RoleMember:
		return domain.NamespaceMembers, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRole, role)
	}
}

// enrichDevice fills in derivable device attributes before the session is
// created. Geo lookup would slot in here.
func enrichDevice(device *domain.DeviceInfo) {
	if device.DeviceType != "" {
		return
	}

	ua := strings.ToLower(device.UserAgent)
	switch {
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		device.DeviceType = "mobile"
	case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
		device.DeviceType = "tablet"
	case ua == "":
		device.DeviceType = "unknown"
	default:
		device.DeviceType = "desktop"
	}
}
