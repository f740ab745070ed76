package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/config"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/logger"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/security"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/telemetry"
	"github.com/yuanzhaoK/admin-platform-auth/internal/repository"
)

var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session expired before validation.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRevoked indicates the session was revoked ahead of validation.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrRefreshTokenInvalid indicates the refresh token does not resolve to an active session.
	ErrRefreshTokenInvalid = errors.New("invalid refresh token")
	// ErrImpersonationForbidden indicates the actor may not assume another identity.
	ErrImpersonationForbidden = errors.New("impersonation requires an administrative actor")
	// ErrStoreUnavailable indicates the session store could not be reached.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Revocation reasons recorded on the blacklist and in the audit trail.
const (
	ReasonUserLogout       = "user_logout"
	ReasonForcedLogout     = "forced_logout"
	ReasonSessionLimit     = "evicted_session_limit"
	ReasonAccountSuspended = "account_suspended"
)

// terminatedRecordTTL keeps deactivated session records around briefly so
// operators can still inspect them after logout.
const terminatedRecordTTL = time.Hour

// VerificationResult is the outcome of an access-token check. Expected
// failures (bad signature, expiry, revocation) yield Valid=false rather than
// an error so request handling degrades to "unauthenticated".
type VerificationResult struct {
	Valid   bool
	Reason  string
	Claims  *security.AccessTokenClaims
	Session *domain.Session
}

// SessionManager owns the session lifecycle: creation with the concurrent
// session cap, token verification and refresh, revocation, and login-attempt
// bookkeeping.
type SessionManager struct {
	store    port.SessionStore
	attempts port.LoginAttemptStore
	dir      port.Directory
	codec    *security.TokenCodec
	events   port.EventPublisher
	audit    port.AuditStore
	metrics  *telemetry.Provider
	cfg      config.AuthSettings
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(
	store port.SessionStore,
	attempts port.LoginAttemptStore,
	dir port.Directory,
	codec *security.TokenCodec,
	cfg config.AuthSettings,
	log *zap.Logger,
) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		store:    store,
		attempts: attempts,
		dir:      dir,
		codec:    codec,
		cfg:      cfg,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (m *SessionManager) WithClock(clock func() time.Time) *SessionManager {
	if clock != nil {
		m.now = clock
		m.codec.WithClock(clock)
	}
	return m
}

// WithEvents injects the security-event publisher.
func (m *SessionManager) WithEvents(events port.EventPublisher) *SessionManager {
	m.events = events
	return m
}

// WithAudit injects the durable audit trail.
func (m *SessionManager) WithAudit(audit port.AuditStore) *SessionManager {
	m.audit = audit
	return m
}

// WithMetrics injects the telemetry provider.
func (m *SessionManager) WithMetrics(metrics *telemetry.Provider) *SessionManager {
	m.metrics = metrics
	return m
}

// CreateSession establishes a new session for the user, evicting the oldest
// active session when the concurrent-session cap is reached, and returns the
// freshly minted token pair.
func (m *SessionManager) CreateSession(ctx context.Context, user domain.User, device domain.DeviceInfo) (*domain.AuthResult, error) {
	now := m.now()

	active, err := m.activeSessions(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}

	if limit := m.cfg.MaxConcurrentSessions; limit > 0 && len(active) >= limit {
		// Evict oldest-first until the new session fits under the cap.
		for len(active) >= limit {
			oldest := active[0]
			for _, candidate := range active[1:] {
				if candidate.CreatedAt.Before(oldest.CreatedAt) {
					oldest = candidate
				}
			}

			if err := m.terminate(ctx, &oldest, ReasonSessionLimit, "system"); err != nil {
				return nil, err
			}

			m.logger.Info("evicted oldest session at concurrency limit",
				zap.String("user_id", user.ID),
				zap.String("session_id", oldest.ID),
				zap.Int("limit", limit),
			)

			remaining := active[:0]
			for _, s := range active {
				if s.ID != oldest.ID {
					remaining = append(remaining, s)
				}
			}
			active = remaining
		}
	}

	refreshToken, err := security.GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	session := domain.Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Device:       device,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.cfg.SessionTTL),
		IsActive:     true,
		RefreshToken: refreshToken,
	}

	if err := m.store.SaveSession(ctx, session, m.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := m.store.AddUserSession(ctx, user.ID, session.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := m.store.MapRefreshToken(ctx, security.HashToken(refreshToken), session.ID, m.cfg.RefreshTokenTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	accessToken, _, err := m.codec.Sign(security.TokenParams{
		UserID:      user.ID,
		SessionID:   session.ID,
		Role:        user.Role,
		Permissions: domain.PermissionsFor(user),
		DeviceID:    device.DeviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	m.rememberDevice(ctx, user.ID, device, now)
	m.recordAudit(ctx, domain.SessionEvent{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		UserID:    user.ID,
		Kind:      domain.SessionEventCreated,
		At:        now,
		IP:        optional(device.IP),
		UserAgent: optional(device.UserAgent),
		Details:   map[string]any{"device_type": device.DeviceType},
	})
	m.metrics.SessionIssued()

	return &domain.AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(m.codec.AccessTokenTTL().Seconds()),
		Session:      &session,
		User:         &user,
	}, nil
}

// VerifyAccessToken checks a bearer token against the signature, the
// revocation blacklist, and the live session record. The blacklist is
// consulted before signature verification so a revoked session is reported
// as such even for tokens this process cannot validate.
func (m *SessionManager) VerifyAccessToken(ctx context.Context, token string) (*VerificationResult, error) {
	unverified, err := m.codec.DecodeUnverified(token)
	if err != nil {
		return &VerificationResult{Valid: false, Reason: "malformed_token"}, nil
	}

	if unverified.SessionID != "" {
		listed, reason, err := m.store.IsBlacklisted(ctx, unverified.SessionID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if listed {
			if reason == "" {
				reason = "revoked"
			}
			return &VerificationResult{Valid: false, Reason: reason}, nil
		}
	}

	claims, err := m.codec.Verify(token)
	if err != nil {
		reason := "invalid_token"
		if errors.Is(err, security.ErrExpiredAccessToken) {
			reason = "token_expired"
		}
		return &VerificationResult{Valid: false, Reason: reason}, nil
	}

	session, err := m.store.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &VerificationResult{Valid: false, Reason: "session_not_found"}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !session.IsActive {
		return &VerificationResult{Valid: false, Reason: "session_revoked"}, nil
	}

	now := m.now()
	if session.ExpiresAt.Before(now) {
		m.expireSession(ctx, session)
		return &VerificationResult{Valid: false, Reason: "session_expired"}, nil
	}

	session.Touch(now)
	if err := m.store.SaveSession(ctx, *session, session.ExpiresAt.Sub(now)); err != nil {
		m.logger.Warn("failed to persist session activity",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}

	return &VerificationResult{Valid: true, Claims: claims, Session: session}, nil
}

// RefreshAccessToken mints a new access token for the session behind the
// refresh token. The refresh token itself is not rotated; the user record is
// re-fetched from the directory so the new token carries a fresh
// role/permission snapshot.
func (m *SessionManager) RefreshAccessToken(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrRefreshTokenInvalid
	}

	tokenHash := security.HashToken(refreshToken)
	sessionID, err := m.store.ResolveRefreshToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Dangling index entry: the session vanished while the mapping
			// survived. Treat as an invalid token and drop the mapping.
			if delErr := m.store.DeleteRefreshToken(ctx, tokenHash); delErr != nil {
				m.logger.Warn("failed to drop dangling refresh token", zap.Error(delErr))
			}
			return nil, ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !session.IsActive {
		return nil, ErrSessionRevoked
	}

	now := m.now()
	if session.ExpiresAt.Before(now) {
		m.expireSession(ctx, session)
		return nil, ErrSessionExpired
	}

	user, err := m.dir.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, port.ErrDirectoryNotFound) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, err
	}
	if !user.IsActive() {
		if err := m.terminate(ctx, session, ReasonAccountSuspended, "system"); err != nil {
			m.logger.Warn("failed to terminate session for suspended account",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
		return nil, ErrSessionRevoked
	}

	accessToken, _, err := m.codec.Sign(security.TokenParams{
		UserID:      user.ID,
		SessionID:   session.ID,
		Role:        user.Role,
		Permissions: domain.PermissionsFor(*user),
		DeviceID:    session.Device.DeviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	session.Touch(now)
	if err := m.store.SaveSession(ctx, *session, session.ExpiresAt.Sub(now)); err != nil {
		m.logger.Warn("failed to persist session activity",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}

	m.metrics.TokenRefreshed()

	return &domain.AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(m.codec.AccessTokenTTL().Seconds()),
		Session:      session,
		User:         user,
	}, nil
}

// Logout terminates a session at the owner's request.
func (m *SessionManager) Logout(ctx context.Context, sessionID string) error {
	session, err := m.fetchSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return m.terminate(ctx, session, ReasonUserLogout, session.UserID)
}

// ForceLogout terminates a session on behalf of an operator or policy.
func (m *SessionManager) ForceLogout(ctx context.Context, sessionID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = ReasonForcedLogout
	}
	session, err := m.fetchSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return m.terminate(ctx, session, reason, "system")
}

// LogoutAllDevices terminates every session of the user concurrently.
// Individual failures are isolated and logged; the count of successfully
// terminated sessions is returned.
func (m *SessionManager) LogoutAllDevices(ctx context.Context, userID string) (int, error) {
	ids, err := m.store.ListUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		count int
	)

	for _, id := range ids {
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()

			session, err := m.fetchSession(ctx, sessionID)
			if err != nil {
				if !errors.Is(err, ErrSessionNotFound) {
					m.logger.Warn("failed to load session during logout-all",
						zap.String("session_id", sessionID),
						zap.Error(err),
					)
				}
				// Drop stale index entries.
				if remErr := m.store.RemoveUserSession(ctx, userID, sessionID); remErr != nil {
					m.logger.Warn("failed to drop stale session index entry", zap.Error(remErr))
				}
				return
			}

			if err := m.terminate(ctx, session, ReasonUserLogout, userID); err != nil {
				m.logger.Warn("failed to terminate session during logout-all",
					zap.String("session_id", sessionID),
					zap.Error(err),
				)
				return
			}

			mu.Lock()
			count++
			mu.Unlock()
		}(id)
	}

	wg.Wait()
	return count, nil
}

// Impersonate issues a separate, time-boxed credential acting as the target
// account, derived from an authenticated administrative session. The grant is
// its own session record with no refresh token and does not count toward the
// target's concurrent-session cap.
func (m *SessionManager) Impersonate(ctx context.Context, actor domain.User, targetUserID string, ttl time.Duration) (*domain.AuthResult, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrImpersonationForbidden
	}
	if strings.TrimSpace(targetUserID) == "" {
		return nil, fmt.Errorf("target user id is required")
	}

	maxTTL := m.cfg.ImpersonationMaxTTL
	if maxTTL <= 0 {
		maxTTL = time.Hour
	}
	if ttl <= 0 || ttl > maxTTL {
		ttl = maxTTL
	}

	target, err := m.dir.GetByID(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive() {
		return nil, ErrImpersonationForbidden
	}

	now := m.now()
	session := domain.Session{
		ID:           uuid.NewString(),
		UserID:       target.ID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(ttl),
		IsActive:     true,
		Impersonated: true,
		ActorID:      actor.ID,
	}

	if err := m.store.SaveSession(ctx, session, ttl); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	accessToken, _, err := m.codec.Sign(security.TokenParams{
		UserID:      target.ID,
		SessionID:   session.ID,
		Role:        target.Role,
		Permissions: domain.PermissionsFor(*target),
		Actor:       actor.ID,
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("sign impersonation token: %w", err)
	}

	m.recordAudit(ctx, domain.SessionEvent{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		UserID:    target.ID,
		Kind:      domain.SessionEventImpersonated,
		At:        now,
		Details:   map[string]any{"actor_id": actor.ID, "ttl_seconds": int64(ttl.Seconds())},
	})

	m.logger.Info("impersonation credential issued",
		zap.String("actor_id", actor.ID),
		zap.String("target_id", logger.MaskString(target.ID)),
		zap.Duration("ttl", ttl),
	)

	return &domain.AuthResult{
		AccessToken: accessToken,
		ExpiresIn:   int64(ttl.Seconds()),
		Session:     &session,
		User:        target,
	}, nil
}

// ListSessions returns the user's live sessions, purging stale index entries
// on the way.
func (m *SessionManager) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return m.activeSessions(ctx, userID, m.now())
}

// CheckLoginAttempts reports whether logins for the identity/address pair are
// currently allowed and, when locked out, the moment the window resets.
func (m *SessionManager) CheckLoginAttempts(ctx context.Context, identity, ip string) (bool, time.Time, error) {
	count, resetAt, err := m.attempts.Count(ctx, identity, ip)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	threshold := m.cfg.LockoutThreshold
	if threshold <= 0 {
		threshold = 5
	}
	if count >= threshold {
		return false, resetAt, nil
	}
	return true, time.Time{}, nil
}

// RecordLoginAttempt records exactly one outcome for a login call: success
// clears the failure counter, failure increments it.
func (m *SessionManager) RecordLoginAttempt(ctx context.Context, identity, ip string, success bool) error {
	if success {
		if err := m.attempts.Clear(ctx, identity, ip); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}

	count, err := m.attempts.RecordFailure(ctx, identity, ip, m.cfg.LockoutWindow)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if count >= m.cfg.LockoutThreshold {
		m.logger.Warn("login lockout threshold reached",
			zap.String("identity", logger.MaskEmail(identity)),
			zap.String("ip", logger.MaskIP(ip)),
			zap.Int("failures", count),
		)
	}
	return nil
}

// PruneDeviceHistory drops the oldest device fingerprints beyond the
// configured retention count.
func (m *SessionManager) PruneDeviceHistory(ctx context.Context, userID string) (int, error) {
	keep := m.cfg.DeviceHistoryLimit
	if keep <= 0 {
		keep = 5
	}
	return m.store.PruneDevices(ctx, userID, keep)
}

// activeSessions resolves the user's session index to live records, removing
// entries that point at expired, revoked, or missing sessions.
func (m *SessionManager) activeSessions(ctx context.Context, userID string, now time.Time) ([]domain.Session, error) {
	ids, err := m.store.ListUserSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	active := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		session, err := m.store.GetSession(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				if remErr := m.store.RemoveUserSession(ctx, userID, id); remErr != nil {
					m.logger.Warn("failed to drop stale session index entry", zap.Error(remErr))
				}
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		if !session.Active(now) {
			if remErr := m.store.RemoveUserSession(ctx, userID, id); remErr != nil {
				m.logger.Warn("failed to drop inactive session index entry", zap.Error(remErr))
			}
			continue
		}

		active = append(active, *session)
	}

	return active, nil
}

func (m *SessionManager) fetchSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return session, nil
}

// terminate revokes a session. The blacklist write is the hard gate: if it
// fails the session stays live and the caller sees the error. Everything
// after it is cleanup that degrades to warnings.
func (m *SessionManager) terminate(ctx context.Context, session *domain.Session, reason, revokedBy string) error {
	if err := m.store.Blacklist(ctx, session.ID, reason, m.cfg.RefreshTokenTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if session.RefreshToken != "" {
		if err := m.store.DeleteRefreshToken(ctx, security.HashToken(session.RefreshToken)); err != nil {
			m.logger.Warn("failed to drop refresh token mapping",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
	}

	if session.Deactivate() {
		if err := m.store.SaveSession(ctx, *session, terminatedRecordTTL); err != nil {
			m.logger.Warn("failed to persist deactivated session",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
	}

	if err := m.store.RemoveUserSession(ctx, session.UserID, session.ID); err != nil {
		m.logger.Warn("failed to drop session index entry",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}

	now := m.now()
	if m.events != nil {
		event := domain.SessionRevokedEvent{
			EventID:   uuid.NewString(),
			SessionID: session.ID,
			UserID:    session.UserID,
			Reason:    reason,
			RevokedBy: revokedBy,
			RevokedAt: now,
		}
		if err := m.events.PublishSessionRevoked(ctx, event); err != nil {
			m.logger.Warn("failed to publish session revoked event",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
	}

	kind := domain.SessionEventRevoked
	if reason == ReasonSessionLimit {
		kind = domain.SessionEventEvicted
	}
	m.recordAudit(ctx, domain.SessionEvent{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		UserID:    session.UserID,
		Kind:      kind,
		At:        now,
		Details:   map[string]any{"reason": reason, "revoked_by": revokedBy},
	})

	m.metrics.SessionEnded(reason)
	return nil
}

// expireSession lazily deactivates a session found past its expiry.
func (m *SessionManager) expireSession(ctx context.Context, session *domain.Session) {
	if session.Deactivate() {
		if err := m.store.SaveSession(ctx, *session, terminatedRecordTTL); err != nil {
			m.logger.Warn("failed to persist expired session",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
		}
	}
	if err := m.store.RemoveUserSession(ctx, session.UserID, session.ID); err != nil {
		m.logger.Warn("failed to drop expired session index entry",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}
}

func (m *SessionManager) rememberDevice(ctx context.Context, userID string, device domain.DeviceInfo, now time.Time) {
	if device.DeviceID == "" {
		return
	}

	fingerprint := domain.DeviceFingerprint{
		DeviceID:   device.DeviceID,
		UserID:     userID,
		DeviceType: device.DeviceType,
		UserAgent:  device.UserAgent,
		FirstSeen:  now,
		LastSeen:   now,
	}

	if existing, err := m.store.GetDevice(ctx, device.DeviceID); err == nil {
		fingerprint.FirstSeen = existing.FirstSeen
	}

	retention := m.cfg.DeviceRetention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	if err := m.store.SaveDevice(ctx, fingerprint, retention); err != nil {
		m.logger.Warn("failed to persist device fingerprint",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
	}
}

func (m *SessionManager) recordAudit(ctx context.Context, event domain.SessionEvent) {
	if m.audit == nil {
		return
	}
	if err := m.audit.StoreEvent(ctx, event); err != nil {
		m.logger.Warn("failed to store audit event",
			zap.String("session_id", event.SessionID),
			zap.String("kind", event.Kind),
			zap.Error(err),
		)
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
