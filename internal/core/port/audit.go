package port

import (
	"context"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
)

// AuditStore persists session lifecycle events for operator review.
type AuditStore interface {
	StoreEvent(ctx context.Context, event domain.SessionEvent) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.SessionEvent, error)
}
