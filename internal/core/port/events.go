package port

import (
	"context"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
)

// EventPublisher emits security events to downstream consumers. Publication
// is advisory: callers log failures and continue.
type EventPublisher interface {
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
}
