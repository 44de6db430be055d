package loginguard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
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

// mockBackend implements Authenticator and TokenRefresher with scripted
// outcomes and call counters.
type mockBackend struct {
	mu sync.Mutex

	authErr     error
	authCalls   atomic.Int64
	loginResp   LoginResponse
	refreshErr  error
	refreshResp LoginResponse

	refreshCalls atomic.Int64
	refreshDelay time.Duration
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		loginResp: LoginResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresAt:    time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
		},
		refreshResp: LoginResponse{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			ExpiresAt:    time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC),
		},
	}
}

func (m *mockBackend) setAuthErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authErr = err
}

func (m *mockBackend) setRefreshErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshErr = err
}

func (m *mockBackend) Authenticate(_ context.Context, _ Credentials) (LoginResponse, error) {
	m.authCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authErr != nil {
		return LoginResponse{}, m.authErr
	}
	return m.loginResp, nil
}

func (m *mockBackend) Refresh(_ context.Context, _ string) (LoginResponse, error) {
	m.refreshCalls.Add(1)
	m.mu.Lock()
	delay := m.refreshDelay
	err := m.refreshErr
	resp := m.refreshResp
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

type countingStateStore struct {
	clears atomic.Int64
}

func (s *countingStateStore) Clear(context.Context) error {
	s.clears.Add(1)
	return nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Lockout.MaxAttempts = 5
	cfg.Lockout.BlockDuration = 5 * time.Minute
	cfg.Lockout.CaptchaThreshold = 3
	cfg.Token.ParseJWTExpiry = false
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, backend *mockBackend, clock *fakeClock) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithAuthenticator(backend).
		WithRefresher(backend).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
