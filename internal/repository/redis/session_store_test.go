package redis

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/repository"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func testSession(id, userID string) domain.Session {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Session{
		ID:     id,
		UserID: userID,
		Device: domain.DeviceInfo{
			DeviceID:   "device-1",
			DeviceType: "desktop",
			IP:         "203.0.113.10",
			UserAgent:  "test-agent",
		},
		CreatedAt:    created,
		LastActivity: created,
		ExpiresAt:    created.Add(24 * time.Hour),
		IsActive:     true,
		RefreshToken: "refresh-raw",
	}
}

func TestSessionStoreSaveGetDelete(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := testSession("session-1", "user-1")
	if err := store.SaveSession(ctx, session, time.Hour); err != nil {
		t.Fatalf("SaveSession returned error: %v", err)
	}

	loaded, err := store.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if loaded.ID != session.ID || loaded.UserID != session.UserID {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}
	if !loaded.IsActive || loaded.RefreshToken != "refresh-raw" {
		t.Fatalf("session fields did not round-trip: %+v", loaded)
	}
	if loaded.Device.DeviceID != "device-1" {
		t.Fatalf("device info did not round-trip: %+v", loaded.Device)
	}

	remaining := server.TTL("session:session-1")
	if remaining <= 0 || remaining > time.Hour {
		t.Fatalf("expected ttl within (0, 1h], got %v", remaining)
	}

	if err := store.DeleteSession(ctx, "session-1"); err != nil {
		t.Fatalf("DeleteSession returned error: %v", err)
	}
	if _, err := store.GetSession(ctx, "session-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSessionStoreGetMissing(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewSessionStore(client)

	if _, err := store.GetSession(context.Background(), "absent"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionStoreInvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	if err := store.SaveSession(ctx, domain.Session{}, time.Hour); err == nil {
		t.Fatal("expected error for empty session id")
	}
	if err := store.SaveSession(ctx, testSession("s", "u"), 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
	if err := store.Blacklist(ctx, "", "reason", time.Hour); err == nil {
		t.Fatal("expected error for empty session id in Blacklist")
	}
	if err := store.MapRefreshToken(ctx, "", "session-1", time.Hour); err == nil {
		t.Fatal("expected error for empty token hash")
	}
}

func TestUserSessionIndex(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	for _, id := range []string{"session-1", "session-2", "session-3"} {
		if err := store.AddUserSession(ctx, "user-1", id); err != nil {
			t.Fatalf("AddUserSession returned error: %v", err)
		}
	}

	// Duplicate adds must not grow the index.
	if err := store.AddUserSession(ctx, "user-1", "session-2"); err != nil {
		t.Fatalf("AddUserSession returned error: %v", err)
	}

	ids, err := store.ListUserSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListUserSessions returned error: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 3 {
		t.Fatalf("expected 3 indexed sessions, got %v", ids)
	}

	if err := store.RemoveUserSession(ctx, "user-1", "session-2"); err != nil {
		t.Fatalf("RemoveUserSession returned error: %v", err)
	}

	ids, err = store.ListUserSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListUserSessions returned error: %v", err)
	}
	for _, id := range ids {
		if id == "session-2" {
			t.Fatal("expected session-2 removed from index")
		}
	}
}

func TestRefreshTokenMapping(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	if err := store.MapRefreshToken(ctx, "hash-1", "session-1", time.Hour); err != nil {
		t.Fatalf("MapRefreshToken returned error: %v", err)
	}

	sessionID, err := store.ResolveRefreshToken(ctx, "hash-1")
	if err != nil {
		t.Fatalf("ResolveRefreshToken returned error: %v", err)
	}
	if sessionID != "session-1" {
		t.Fatalf("expected session-1, got %s", sessionID)
	}

	if err := store.DeleteRefreshToken(ctx, "hash-1"); err != nil {
		t.Fatalf("DeleteRefreshToken returned error: %v", err)
	}
	if _, err := store.ResolveRefreshToken(ctx, "hash-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBlacklist(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	if err := store.Blacklist(ctx, "session-1", "user_logout", time.Hour); err != nil {
		t.Fatalf("Blacklist returned error: %v", err)
	}

	listed, reason, err := store.IsBlacklisted(ctx, "session-1")
	if err != nil {
		t.Fatalf("IsBlacklisted returned error: %v", err)
	}
	if !listed {
		t.Fatal("expected session to be blacklisted")
	}
	if reason != "user_logout" {
		t.Fatalf("expected reason user_logout, got %s", reason)
	}

	listed, _, err = store.IsBlacklisted(ctx, "session-2")
	if err != nil {
		t.Fatalf("IsBlacklisted returned error: %v", err)
	}
	if listed {
		t.Fatal("expected miss for unrevoked session")
	}

	// Revocation records disappear once the window lapses.
	server.FastForward(2 * time.Hour)
	listed, _, err = store.IsBlacklisted(ctx, "session-1")
	if err != nil {
		t.Fatalf("IsBlacklisted returned error: %v", err)
	}
	if listed {
		t.Fatal("expected blacklist entry to expire")
	}
}

func TestDeviceFingerprints(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"device-a", "device-b", "device-c"} {
		device := domain.DeviceFingerprint{
			DeviceID:   id,
			UserID:     "user-1",
			DeviceType: "desktop",
			UserAgent:  "test-agent",
			FirstSeen:  base,
			LastSeen:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.SaveDevice(ctx, device, 24*time.Hour); err != nil {
			t.Fatalf("SaveDevice returned error: %v", err)
		}
	}

	device, err := store.GetDevice(ctx, "device-b")
	if err != nil {
		t.Fatalf("GetDevice returned error: %v", err)
	}
	if device.UserID != "user-1" {
		t.Fatalf("unexpected device record: %+v", device)
	}

	pruned, err := store.PruneDevices(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("PruneDevices returned error: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned device, got %d", pruned)
	}

	// device-a has the oldest last-seen score and must be the one dropped.
	if _, err := store.GetDevice(ctx, "device-a"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected oldest device pruned, got %v", err)
	}
	if _, err := store.GetDevice(ctx, "device-c"); err != nil {
		t.Fatalf("expected newest device kept, got %v", err)
	}

	pruned, err = store.PruneDevices(ctx, "user-1", 5)
	if err != nil {
		t.Fatalf("PruneDevices returned error: %v", err)
	}
	if pruned != 0 {
		t.Fatalf("expected nothing pruned under the limit, got %d", pruned)
	}
}
