package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
)

func TestAuditRepository_StoreEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAuditRepository(mock)

	ip := "203.0.113.10"
	ua := "GoTest/1.0"
	event := domain.SessionEvent{
		ID:        "event-1",
		SessionID: "session-1",
		UserID:    "user-1",
		Kind:      domain.SessionEventCreated,
		At:        time.Now().UTC(),
		IP:        &ip,
		UserAgent: &ua,
		Details: map[string]any{
			"device_type": "desktop",
		},
	}

	mock.ExpectExec(`INSERT INTO auth\.session_events`).
		WithArgs(
			event.ID,
			event.SessionID,
			event.UserID,
			event.Kind,
			event.At,
			&ip,
			&ua,
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.StoreEvent(context.Background(), event); err != nil {
		t.Fatalf("StoreEvent returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditRepository_StoreEventNoDetails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAuditRepository(mock)

	event := domain.SessionEvent{
		ID:        "event-2",
		SessionID: "session-1",
		UserID:    "user-1",
		Kind:      domain.SessionEventRevoked,
		At:        time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO auth\.session_events`).
		WithArgs(
			event.ID,
			event.SessionID,
			event.UserID,
			event.Kind,
			event.At,
			nil,
			nil,
			nil,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.StoreEvent(context.Background(), event); err != nil {
		t.Fatalf("StoreEvent returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditRepository_ListBySession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAuditRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "session_id", "user_id", "kind", "at", "ip", "user_agent", "details",
	}).AddRow(
		"event-2", "session-1", "user-1", domain.SessionEventRevoked, now, nil, nil, []byte(`{"reason":"user_logout"}`),
	).AddRow(
		"event-1", "session-1", "user-1", domain.SessionEventCreated, now.Add(-time.Hour), nil, nil, nil,
	)

	mock.ExpectQuery(`SELECT .*FROM auth\.session_events`).
		WithArgs("session-1").
		WillReturnRows(rows)

	events, err := repo.ListBySession(context.Background(), "session-1", 50)
	if err != nil {
		t.Fatalf("ListBySession returned error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	if events[0].Kind != domain.SessionEventRevoked {
		t.Fatalf("expected newest event first, got %s", events[0].Kind)
	}
	if events[0].Details["reason"] != "user_logout" {
		t.Fatalf("expected details to round-trip, got %v", events[0].Details)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
