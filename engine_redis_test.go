package loginguard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newRedisEngine(t *testing.T, backend *mockBackend, clock *fakeClock) (*Engine, func(time.Duration)) {
	t.Helper()

	mr, client := newTestRedis(t)
	t.Cleanup(mr.Close)
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	cfg.Offline.Enabled = true

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithRedisPrefix("lgtest").
		WithAuthenticator(backend).
		WithRefresher(backend).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	// Redis TTLs and the engine clock have to advance together.
	advance := func(d time.Duration) {
		clock.Advance(d)
		mr.FastForward(d)
	}
	return engine, advance
}

func TestRedisEngineLockoutLifecycle(t *testing.T) {
	backend := newMockBackend()
	clock := newFakeClock()
	engine, advance := newRedisEngine(t, backend, clock)
	ctx := context.Background()

	failTimes(t, engine, backend, 5)

	locked, err := engine.IsAccountLocked(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("IsAccountLocked failed: %v", err)
	}
	if !locked {
		t.Fatal("expected locked after 5 failures")
	}

	backend.setAuthErr(nil)
	if _, err := engine.Login(ctx, validCreds()); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected blocked login, got %v", err)
	}

	advance(5*time.Minute + time.Second)

	session, err := engine.Login(ctx, validCreds())
	if err != nil {
		t.Fatalf("Login after expiry failed: %v", err)
	}
	if session.Principal != "alice@example.com" {
		t.Fatalf("unexpected principal %q", session.Principal)
	}
}

func TestRedisEngineTokenPersistsAcrossEngines(t *testing.T) {
	backend := newMockBackend()
	clock := newFakeClock()

	mr, client := newTestRedis(t)
	t.Cleanup(mr.Close)
	t.Cleanup(func() { _ = client.Close() })

	build := func() *Engine {
		engine, err := New().
			WithConfig(testConfig()).
			WithRedis(client).
			WithRedisPrefix("lgtest").
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

	first := build()
	if _, err := first.Login(context.Background(), validCreds()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// A second engine over the same Redis resumes the session.
	second := build()
	tok, err := second.RefreshToken(context.Background())
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if tok.AccessToken != "access-2" {
		t.Fatalf("unexpected token %+v", tok)
	}
}

func TestRedisEngineGlobalLogoutClearsEverything(t *testing.T) {
	backend := newMockBackend()
	backend.setAuthErr(ErrNoConnectivity)
	clock := newFakeClock()
	engine, _ := newRedisEngine(t, backend, clock)
	ctx := context.Background()

	_, _ = engine.Login(ctx, validCreds())

	if err := engine.GlobalLogout(ctx); err != nil {
		t.Fatalf("GlobalLogout failed: %v", err)
	}

	attempts, err := engine.GetAttempts(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetAttempts failed: %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected ledger cleared, got %d", attempts)
	}

	pending, err := engine.offline.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected offline store cleared, got %+v", pending)
	}

	stored, err := engine.tokenStore.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if stored != nil {
		t.Fatal("expected token store cleared")
	}
}

func TestRedisEngineLedgerOutageFailsClosed(t *testing.T) {
	backend := newMockBackend()
	clock := newFakeClock()

	mr, client := newTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(client).
		WithAuthenticator(backend).
		WithRefresher(backend).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	mr.Close()

	calls := backend.authCalls.Load()
	_, err = engine.Login(context.Background(), validCreds())
	if !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
	if backend.authCalls.Load() != calls {
		t.Fatal("login must not reach the backend when the ledger is down")
	}
}
