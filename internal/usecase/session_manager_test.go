package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/config"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/security"
	"github.com/yuanzhaoK/admin-platform-auth/internal/repository"
)

const testSigningSecret = "0123456789abcdef0123456789abcdef"

type fakeSessionStore struct {
	mu           sync.Mutex
	sessions     map[string]domain.Session
	userSessions map[string]map[string]struct{}
	refresh      map[string]string
	blacklist    map[string]string
	devices      map[string]domain.DeviceFingerprint

	saveErr      error
	blacklistErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions:     make(map[string]domain.Session),
		userSessions: make(map[string]map[string]struct{}),
		refresh:      make(map[string]string),
		blacklist:    make(map[string]string),
		devices:      make(map[string]domain.DeviceFingerprint),
	}
}

func (f *fakeSessionStore) SaveSession(_ context.Context, session domain.Session, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := session
	return &copied, nil
}

func (f *fakeSessionStore) DeleteSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeSessionStore) AddUserSession(_ context.Context, userID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userSessions[userID] == nil {
		f.userSessions[userID] = make(map[string]struct{})
	}
	f.userSessions[userID][sessionID] = struct{}{}
	return nil
}

func (f *fakeSessionStore) RemoveUserSession(_ context.Context, userID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.userSessions[userID], sessionID)
	return nil
}

func (f *fakeSessionStore) ListUserSessions(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.userSessions[userID]))
	for id := range f.userSessions[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeSessionStore) MapRefreshToken(_ context.Context, tokenHash, sessionID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = sessionID
	return nil
}

func (f *fakeSessionStore) ResolveRefreshToken(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sessionID, ok := f.refresh[tokenHash]
	if !ok {
		return "", repository.ErrNotFound
	}
	return sessionID, nil
}

func (f *fakeSessionStore) DeleteRefreshToken(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeSessionStore) Blacklist(_ context.Context, sessionID, reason string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blacklistErr != nil {
		return f.blacklistErr
	}
	f.blacklist[sessionID] = reason
	return nil
}

func (f *fakeSessionStore) IsBlacklisted(_ context.Context, sessionID string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reason, ok := f.blacklist[sessionID]
	return ok, reason, nil
}

func (f *fakeSessionStore) SaveDevice(_ context.Context, device domain.DeviceFingerprint, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[device.DeviceID] = device
	return nil
}

func (f *fakeSessionStore) GetDevice(_ context.Context, deviceID string) (*domain.DeviceFingerprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.devices[deviceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := device
	return &copied, nil
}

func (f *fakeSessionStore) PruneDevices(_ context.Context, userID string, keep int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	owned := make([]domain.DeviceFingerprint, 0)
	for _, device := range f.devices {
		if device.UserID == userID {
			owned = append(owned, device)
		}
	}
	if len(owned) <= keep {
		return 0, nil
	}

	sort.Slice(owned, func(i, j int) bool { return owned[i].LastSeen.Before(owned[j].LastSeen) })
	pruned := 0
	for _, device := range owned[:len(owned)-keep] {
		delete(f.devices, device.DeviceID)
		pruned++
	}
	return pruned, nil
}

var _ port.SessionStore = (*fakeSessionStore)(nil)

type fakeAttemptStore struct {
	mu      sync.Mutex
	counts  map[string]int
	resets  map[string]time.Time
	now     func() time.Time
	failErr error
}

func newFakeAttemptStore(now func() time.Time) *fakeAttemptStore {
	return &fakeAttemptStore{
		counts: make(map[string]int),
		resets: make(map[string]time.Time),
		now:    now,
	}
}

func (f *fakeAttemptStore) key(identity, ip string) string { return identity + "|" + ip }

func (f *fakeAttemptStore) Count(_ context.Context, identity, ip string) (int, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(identity, ip)
	reset, ok := f.resets[key]
	if ok && reset.Before(f.now()) {
		delete(f.counts, key)
		delete(f.resets, key)
		return 0, time.Time{}, nil
	}
	return f.counts[key], reset, nil
}

func (f *fakeAttemptStore) RecordFailure(_ context.Context, identity, ip string, window time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return 0, f.failErr
	}
	key := f.key(identity, ip)
	f.counts[key]++
	if f.counts[key] == 1 {
		f.resets[key] = f.now().Add(window)
	}
	return f.counts[key], nil
}

func (f *fakeAttemptStore) Clear(_ context.Context, identity, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(identity, ip)
	delete(f.counts, key)
	delete(f.resets, key)
	return nil
}

var _ port.LoginAttemptStore = (*fakeAttemptStore)(nil)

type fakeDirectory struct {
	mu       sync.Mutex
	byID     map[string]domain.User
	password string
	authErr  error
	getErr   error
}

func newFakeDirectory(users ...domain.User) *fakeDirectory {
	dir := &fakeDirectory{
		byID:     make(map[string]domain.User),
		password: "correct-horse",
	}
	for _, user := range users {
		dir.byID[user.ID] = user
	}
	return dir
}

func (f *fakeDirectory) AuthenticateWithPassword(_ context.Context, identity, password, namespace string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.authErr != nil {
		return nil, f.authErr
	}
	if password != f.password {
		return nil, port.ErrDirectoryAuthFailed
	}
	for _, user := range f.byID {
		if user.Identity != identity {
			continue
		}
		wantNamespace := domain.NamespaceMembers
		if user.Role == domain.RoleAdmin {
			wantNamespace = domain.NamespaceAdmins
		}
		if namespace != wantNamespace {
			continue
		}
		copied := user
		return &copied, nil
	}
	return nil, port.ErrDirectoryAuthFailed
}

func (f *fakeDirectory) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	user, ok := f.byID[id]
	if !ok {
		return nil, port.ErrDirectoryNotFound
	}
	copied := user
	return &copied, nil
}

var _ port.Directory = (*fakeDirectory)(nil)

type managerFixture struct {
	manager   *SessionManager
	store     *fakeSessionStore
	attempts  *fakeAttemptStore
	directory *fakeDirectory
	clock     *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testAuthSettings() config.AuthSettings {
	return config.AuthSettings{
		SigningSecret:         testSigningSecret,
		AccessTokenTTL:        15 * time.Minute,
		RefreshTokenTTL:       168 * time.Hour,
		SessionTTL:            24 * time.Hour,
		MaxConcurrentSessions: 3,
		LockoutThreshold:      5,
		LockoutWindow:         15 * time.Minute,
		RefreshLeeway:         5 * time.Minute,
		DeviceRetention:       720 * time.Hour,
		DeviceHistoryLimit:    5,
		ImpersonationMaxTTL:   time.Hour,
	}
}

func newManagerFixture(t *testing.T, users ...domain.User) *managerFixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := testAuthSettings()

	codec, err := security.NewTokenCodec(cfg.SigningSecret, "admin-platform-auth", cfg.AccessTokenTTL)
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}

	store := newFakeSessionStore()
	attempts := newFakeAttemptStore(clock.Now)
	directory := newFakeDirectory(users...)

	manager := NewSessionManager(store, attempts, directory, codec, cfg, zaptest.NewLogger(t))
	manager.WithClock(clock.Now)

	return &managerFixture{
		manager:   manager,
		store:     store,
		attempts:  attempts,
		directory: directory,
		clock:     clock,
	}
}

func testMember() domain.User {
	return domain.User{
		ID:       "user-1",
		Identity: "member@example.com",
		Name:     "Member One",
		Role:     domain.RoleMember,
		Status:   domain.UserStatusActive,
	}
}

func testDevice() domain.DeviceInfo {
	return domain.DeviceInfo{
		DeviceID:   "device-1",
		DeviceType: "desktop",
		IP:         "203.0.113.10",
		UserAgent:  "test-agent",
	}
}

func TestCreateSessionVerifyRoundTrip(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	result, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", result)
	}

	verification, err := fx.manager.VerifyAccessToken(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if !verification.Valid {
		t.Fatalf("expected valid token, got reason %q", verification.Reason)
	}
	if verification.Claims.UserID != "user-1" {
		t.Fatalf("unexpected user id claim: %s", verification.Claims.UserID)
	}
	if verification.Claims.SessionID != result.Session.ID {
		t.Fatalf("session id mismatch: claims %s vs session %s", verification.Claims.SessionID, result.Session.ID)
	}
}

func TestVerifyTouchesLastActivity(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	result, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	fx.clock.Advance(10 * time.Minute)

	verification, err := fx.manager.VerifyAccessToken(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if !verification.Valid {
		t.Fatalf("expected valid token, got reason %q", verification.Reason)
	}

	stored, err := fx.store.GetSession(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if !stored.LastActivity.Equal(fx.clock.Now()) {
		t.Fatalf("expected last activity updated to %v, got %v", fx.clock.Now(), stored.LastActivity)
	}
}

func TestSessionEvictionAtLimit(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	var first *domain.AuthResult
	for i := 0; i < 3; i++ {
		result, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
		if err != nil {
			t.Fatalf("CreateSession %d returned error: %v", i, err)
		}
		if i == 0 {
			first = result
		}
		fx.clock.Advance(time.Minute)
	}

	fourth, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	active, err := fx.manager.ListSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected exactly 3 active sessions, got %d", len(active))
	}

	// The evicted session is the one with the smallest CreatedAt.
	for _, session := range active {
		if session.ID == first.Session.ID {
			t.Fatal("expected oldest session evicted")
		}
	}

	verification, err := fx.manager.VerifyAccessToken(ctx, first.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if verification.Valid {
		t.Fatal("expected evicted session's token to fail verification")
	}
	if verification.Reason != ReasonSessionLimit {
		t.Fatalf("expected eviction reason, got %q", verification.Reason)
	}

	if _, err := fx.manager.RefreshAccessToken(ctx, fourth.RefreshToken); err != nil {
		t.Fatalf("newest session refresh should work, got %v", err)
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	result, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	if err := fx.manager.Logout(ctx, result.Session.ID); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	verification, err := fx.manager.VerifyAccessToken(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if verification.Valid {
		t.Fatal("expected token invalid after logout")
	}
	if verification.Reason != ReasonUserLogout {
		t.Fatalf("expected logout reason, got %q", verification.Reason)
	}

	if _, err := fx.manager.RefreshAccessToken(ctx, result.RefreshToken); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected ErrRefreshTokenInvalid after logout, got %v", err)
	}

	active, err := fx.manager.ListSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active sessions, got %d", len(active))
	}
}

func TestLogoutBlacklistFailureKeepsSession(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	result, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	fx.store.blacklistErr = errors.New("connection refused")
	if err := fx.manager.Logout(ctx, result.Session.ID); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	fx.store.blacklistErr = nil

	verification, err := fx.manager.VerifyAccessToken(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if !verification.Valid {
		t.Fatal("session must stay live when the blacklist write fails")
	}
}

func TestRefreshStability(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	result, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	fx.clock.Advance(time.Minute)

	refreshed, err := fx.manager.RefreshAccessToken(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshAccessToken returned error: %v", err)
	}
	if refreshed.RefreshToken != result.RefreshToken {
		t.Fatal("refresh token must not rotate")
	}
	if refreshed.Session.ID != result.Session.ID {
		t.Fatalf("session id changed across refresh: %s vs %s", refreshed.Session.ID, result.Session.ID)
	}
	if refreshed.AccessToken == result.AccessToken {
		t.Fatal("expected a newly minted access token")
	}

	verification, err := fx.manager.VerifyAccessToken(ctx, refreshed.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if !verification.Valid || verification.Claims.SessionID != result.Session.ID {
		t.Fatalf("expected refreshed token bound to original session, got %+v", verification)
	}
}

func TestRefreshPicksUpDirectoryChanges(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	result, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	// Grant an extra permission in the directory after login.
	updated := testMember()
	updated.ExtraPermissions = []string{"billing.read"}
	fx.directory.byID[updated.ID] = updated

	refreshed, err := fx.manager.RefreshAccessToken(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshAccessToken returned error: %v", err)
	}

	verification, err := fx.manager.VerifyAccessToken(ctx, refreshed.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if !domain.HasPermission(verification.Claims.Permissions, "billing.read") {
		t.Fatalf("expected refreshed token to carry new permission, got %v", verification.Claims.Permissions)
	}
}

func TestRefreshDanglingIndex(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	result, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	// Simulate the session record vanishing while the refresh mapping survives.
	if err := fx.store.DeleteSession(ctx, result.Session.ID); err != nil {
		t.Fatalf("DeleteSession returned error: %v", err)
	}

	if _, err := fx.manager.RefreshAccessToken(ctx, result.RefreshToken); !errors.Is(err, ErrRefreshTokenInvalid) {
		t.Fatalf("expected ErrRefreshTokenInvalid for dangling index, got %v", err)
	}

	// The dangling mapping is dropped so the next call misses immediately.
	if _, err := fx.store.ResolveRefreshToken(ctx, security.HashToken(result.RefreshToken)); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected mapping removed, got %v", err)
	}
}

func TestRefreshSuspendedAccountTerminatesSession(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	result, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	suspended := testMember()
	suspended.Status = domain.UserStatusSuspended
	fx.directory.byID[suspended.ID] = suspended

	if _, err := fx.manager.RefreshAccessToken(ctx, result.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked for suspended account, got %v", err)
	}

	listed, reason, err := fx.store.IsBlacklisted(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("IsBlacklisted returned error: %v", err)
	}
	if !listed || reason != ReasonAccountSuspended {
		t.Fatalf("expected session blacklisted as suspended, got listed=%v reason=%q", listed, reason)
	}
}

func TestVerifyExpiredSessionLazyDeactivation(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	result, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	// Past the session TTL but re-sign a token so the signature check passes.
	fx.clock.Advance(25 * time.Hour)
	token, _, err := fx.manager.codec.Sign(security.TokenParams{
		UserID:    "user-1",
		SessionID: result.Session.ID,
		Role:      domain.RoleMember,
	})
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	verification, err := fx.manager.VerifyAccessToken(ctx, token)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if verification.Valid {
		t.Fatal("expected expired session to fail verification")
	}
	if verification.Reason != "session_expired" {
		t.Fatalf("unexpected reason %q", verification.Reason)
	}

	stored, err := fx.store.GetSession(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if stored.IsActive {
		t.Fatal("expected session lazily deactivated")
	}

	ids, err := fx.store.ListUserSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListUserSessions returned error: %v", err)
	}
	for _, id := range ids {
		if id == result.Session.ID {
			t.Fatal("expected expired session removed from the user index")
		}
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	fx := newManagerFixture(t, testMember())

	verification, err := fx.manager.VerifyAccessToken(context.Background(), "not-a-token")
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if verification.Valid {
		t.Fatal("expected malformed token to be invalid")
	}
	if verification.Reason != "malformed_token" {
		t.Fatalf("unexpected reason %q", verification.Reason)
	}
}

func TestLogoutAllDevices(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	results := make([]*domain.AuthResult, 0, 3)
	for i := 0; i < 3; i++ {
		result, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
		if err != nil {
			t.Fatalf("CreateSession returned error: %v", err)
		}
		results = append(results, result)
		fx.clock.Advance(time.Minute)
	}

	count, err := fx.manager.LogoutAllDevices(ctx, "user-1")
	if err != nil {
		t.Fatalf("LogoutAllDevices returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 terminated sessions, got %d", count)
	}

	for _, result := range results {
		verification, err := fx.manager.VerifyAccessToken(ctx, result.AccessToken)
		if err != nil {
			t.Fatalf("VerifyAccessToken returned error: %v", err)
		}
		if verification.Valid {
			t.Fatalf("expected session %s terminated", result.Session.ID)
		}
	}
}

func TestSingleSessionLimitInvalidatesPrevious(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	fx.manager.cfg.MaxConcurrentSessions = 1
	ctx := context.Background()

	first, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	fx.clock.Advance(time.Minute)

	second, err := fx.manager.CreateSession(ctx, testMember(), testDevice())
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	verification, err := fx.manager.VerifyAccessToken(ctx, first.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if verification.Valid {
		t.Fatal("expected first session's token to fail after second login")
	}

	verification, err = fx.manager.VerifyAccessToken(ctx, second.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if !verification.Valid {
		t.Fatalf("expected second session valid, got reason %q", verification.Reason)
	}
}

func TestLockoutAndReset(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := fx.manager.RecordLoginAttempt(ctx, "member@example.com", "203.0.113.10", false); err != nil {
			t.Fatalf("RecordLoginAttempt returned error: %v", err)
		}
	}

	allowed, resetAt, err := fx.manager.CheckLoginAttempts(ctx, "member@example.com", "203.0.113.10")
	if err != nil {
		t.Fatalf("CheckLoginAttempts returned error: %v", err)
	}
	if allowed {
		t.Fatal("expected lockout after threshold failures")
	}
	if resetAt.IsZero() {
		t.Fatal("expected a reset time with the lockout")
	}

	if err := fx.manager.RecordLoginAttempt(ctx, "member@example.com", "203.0.113.10", true); err != nil {
		t.Fatalf("RecordLoginAttempt returned error: %v", err)
	}

	allowed, _, err = fx.manager.CheckLoginAttempts(ctx, "member@example.com", "203.0.113.10")
	if err != nil {
		t.Fatalf("CheckLoginAttempts returned error: %v", err)
	}
	if !allowed {
		t.Fatal("expected counter reset after success")
	}
}

func TestImpersonation(t *testing.T) {
	admin := domain.User{
		ID:       "admin-1",
		Identity: "root@example.com",
		Role:     domain.RoleAdmin,
		Status:   domain.UserStatusActive,
	}
	fx := newManagerFixture(t, admin, testMember())
	ctx := context.Background()

	result, err := fx.manager.Impersonate(ctx, admin, "user-1", 2*time.Hour)
	if err != nil {
		t.Fatalf("Impersonate returned error: %v", err)
	}

	// Requested TTL exceeds the cap and must be clamped.
	if result.ExpiresIn != int64(time.Hour.Seconds()) {
		t.Fatalf("expected ttl capped at 1h, got %d seconds", result.ExpiresIn)
	}
	if result.RefreshToken != "" {
		t.Fatal("impersonation grants must not carry a refresh token")
	}
	if !result.Session.Impersonated || result.Session.ActorID != "admin-1" {
		t.Fatalf("expected impersonated session with actor, got %+v", result.Session)
	}

	verification, err := fx.manager.VerifyAccessToken(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if !verification.Valid {
		t.Fatalf("expected valid impersonation token, got reason %q", verification.Reason)
	}
	if verification.Claims.UserID != "user-1" || verification.Claims.Actor != "admin-1" {
		t.Fatalf("unexpected impersonation claims: %+v", verification.Claims)
	}

	// The grant must not occupy the target's session index.
	active, err := fx.manager.ListSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected impersonation grant outside the user index, got %d sessions", len(active))
	}
}

func TestImpersonationRequiresAdmin(t *testing.T) {
	fx := newManagerFixture(t, testMember())

	if _, err := fx.manager.Impersonate(context.Background(), testMember(), "user-1", time.Minute); !errors.Is(err, ErrImpersonationForbidden) {
		t.Fatalf("expected ErrImpersonationForbidden, got %v", err)
	}
}

func TestDeviceFingerprintFirstSeenPreserved(t *testing.T) {
	fx := newManagerFixture(t, testMember())
	ctx := context.Background()

	if _, err := fx.manager.CreateSession(ctx, testMember(), testDevice()); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	firstSeen := fx.clock.Now()

	fx.clock.Advance(48 * time.Hour)
	if _, err := fx.manager.CreateSession(ctx, testMember(), testDevice()); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	device, err := fx.store.GetDevice(ctx, "device-1")
	if err != nil {
		t.Fatalf("GetDevice returned error: %v", err)
	}
	if !device.FirstSeen.Equal(firstSeen) {
		t.Fatalf("expected first seen preserved at %v, got %v", firstSeen, device.FirstSeen)
	}
	if !device.LastSeen.Equal(fx.clock.Now()) {
		t.Fatalf("expected last seen updated to %v, got %v", fx.clock.Now(), device.LastSeen)
	}
}
