package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishLoginSucceeded logs auth.login.succeeded events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"identity":   event.Identity,
		"role":       event.Role,
		"session_id": event.SessionID,
		"device_id":  event.DeviceID,
		"ip_address": event.IP,
		"logged_at":  event.At,
	}
	p.logEvent("auth.login.succeeded", event.UserID, event.At, payload)
	return nil
}

// PublishLoginFailed logs auth.login.failed events.
func (p *StubPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	payload := map[string]any{
		"identity":   event.Identity,
		"role":       event.Role,
		"reason":     event.Reason,
		"ip_address": event.IP,
		"attempts":   event.Attempts,
		"failed_at":  event.At,
	}
	p.logEvent("auth.login.failed", "", event.At, payload)
	return nil
}

// PublishSessionRevoked logs auth.session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"user_id":    event.UserID,
		"reason":     event.Reason,
		"revoked_by": event.RevokedBy,
		"revoked_at": event.RevokedAt,
	}
	p.logEvent("auth.session.revoked", event.UserID, event.RevokedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
