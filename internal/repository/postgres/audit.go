package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AuditRepository persists session lifecycle events in PostgreSQL for
// operator review. The session store itself is Redis; this table is the
// durable trail that survives key expiry.
type AuditRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAuditRepository(exec pgExecutor) *AuditRepository {
	return &AuditRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// StoreEvent persists a session event record.
func (r *AuditRepository) StoreEvent(ctx context.Context, event domain.SessionEvent) error {
	details, err := marshalEventDetails(event.Details)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Insert("auth.session_events").
		Columns(
			"id",
			"session_id",
			"user_id",
			"kind",
			"at",
			"ip",
			"user_agent",
			"details",
		).
		Values(
			event.ID,
			event.SessionID,
			event.UserID,
			event.Kind,
			event.At,
			event.IP,
			event.UserAgent,
			details,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session event sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}

	return nil
}

// ListBySession returns the newest events recorded for a session.
func (r *AuditRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.SessionEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	sql, args, err := r.builder.
		Select(
			"id",
			"session_id",
			"user_id",
			"kind",
			"at",
			"ip",
			"user_agent",
			"details",
		).
		From("auth.session_events").
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list session events sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.SessionEvent, 0)
	for rows.Next() {
		var (
			event   domain.SessionEvent
			details []byte
		)
		if err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.UserID,
			&event.Kind,
			&event.At,
			&event.IP,
			&event.UserAgent,
			&details,
		); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}

		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal session event details: %w", err)
			}
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}

	return events, nil
}

func marshalEventDetails(details map[string]any) ([]byte, error) {
	if len(details) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal session event details: %w", err)
	}
	return payload, nil
}

var _ port.AuditStore = (*AuditRepository)(nil)
