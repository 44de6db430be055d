package loginguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func loginFirst(t *testing.T, engine *Engine) {
	t.Helper()
	if _, err := engine.Login(context.Background(), validCreds()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}

func TestRefreshRotatesStoredToken(t *testing.T) {
	backend := newMockBackend()
	clock := newFakeClock()
	engine := newTestEngine(t, testConfig(), backend, clock)
	ctx := context.Background()

	loginFirst(t, engine)

	tok, err := engine.RefreshToken(ctx)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if tok.AccessToken != "access-2" || tok.RefreshToken != "refresh-2" {
		t.Fatalf("unexpected token %+v", tok)
	}

	stored, err := engine.tokenStore.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if stored == nil || stored.AccessToken != "access-2" {
		t.Fatalf("rotated token not persisted: %+v", stored)
	}
}

func TestRefreshKeepsOldRefreshTokenWhenBackendDoesNotRotate(t *testing.T) {
	backend := newMockBackend()
	backend.refreshResp.RefreshToken = ""
	clock := newFakeClock()
	engine := newTestEngine(t, testConfig(), backend, clock)
	ctx := context.Background()

	loginFirst(t, engine)

	tok, err := engine.RefreshToken(ctx)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if tok.RefreshToken != "refresh-1" {
		t.Fatalf("expected old refresh token kept, got %q", tok.RefreshToken)
	}
}

func TestRefreshConcurrentCallersShareOneFlight(t *testing.T) {
	backend := newMockBackend()
	backend.refreshDelay = 50 * time.Millisecond
	clock := newFakeClock()
	engine := newTestEngine(t, testConfig(), backend, clock)
	ctx := context.Background()

	loginFirst(t, engine)

	const callers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []Token
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := engine.RefreshToken(ctx)
			if err != nil {
				t.Errorf("RefreshToken failed: %v", err)
				return
			}
			mu.Lock()
			results = append(results, tok)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if n := backend.refreshCalls.Load(); n != 1 {
		t.Fatalf("expected 1 backend refresh call, got %d", n)
	}
	if len(results) != callers {
		t.Fatalf("expected %d results, got %d", callers, len(results))
	}
	for _, tok := range results {
		if tok.AccessToken != results[0].AccessToken {
			t.Fatal("concurrent callers received different tokens")
		}
	}
}

func TestRefreshNetworkFailureLeavesSessionIntact(t *testing.T) {
	backend := newMockBackend()
	backend.setRefreshErr(ErrNetwork)
	clock := newFakeClock()
	engine := newTestEngine(t, testConfig(), backend, clock)
	ctx := context.Background()

	loginFirst(t, engine)

	_, err := engine.RefreshToken(ctx)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if errors.Is(err, ErrTokenRefreshFailed) {
		t.Fatal("network failure must not be terminal")
	}

	stored, loadErr := engine.tokenStore.Load(ctx)
	if loadErr != nil {
		t.Fatalf("Load failed: %v", loadErr)
	}
	if stored == nil || stored.RefreshToken != "refresh-1" {
		t.Fatal("session must survive a network refresh failure")
	}

	// Retry succeeds once connectivity returns.
	backend.setRefreshErr(nil)
	if _, err := engine.RefreshToken(ctx); err != nil {
		t.Fatalf("retry after network failure failed: %v", err)
	}
}

func TestRefreshTerminalFailureCascadesGlobalLogout(t *testing.T) {
	backend := newMockBackend()
	backend.setRefreshErr(errors.New("refresh token revoked"))
	clock := newFakeClock()

	stateStore := &countingStateStore{}
	cfg := testConfig()
	cfg.Offline.Enabled = true

	engine, err := New().
		WithConfig(cfg).
		WithAuthenticator(backend).
		WithRefresher(backend).
		WithSessionState(stateStore).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	ctx := context.Background()

	loginFirst(t, engine)
	if err := engine.offline.Save(ctx, validCreds()); err != nil {
		t.Fatalf("offline save failed: %v", err)
	}

	_, err = engine.RefreshToken(ctx)
	if !errors.Is(err, ErrTokenRefreshFailed) {
		t.Fatalf("expected ErrTokenRefreshFailed, got %v", err)
	}

	stored, loadErr := engine.tokenStore.Load(ctx)
	if loadErr != nil {
		t.Fatalf("Load failed: %v", loadErr)
	}
	if stored != nil {
		t.Fatal("token store must be cleared after terminal refresh failure")
	}

	pending, loadErr := engine.offline.LoadAll(ctx)
	if loadErr != nil {
		t.Fatalf("LoadAll failed: %v", loadErr)
	}
	if len(pending) != 0 {
		t.Fatal("offline store must be cleared after terminal refresh failure")
	}

	if n := stateStore.clears.Load(); n != 1 {
		t.Fatalf("expected session state cleared exactly once, got %d", n)
	}
}

func TestRefreshWithoutStoredTokenIsTerminal(t *testing.T) {
	backend := newMockBackend()
	clock := newFakeClock()
	engine := newTestEngine(t, testConfig(), backend, clock)

	_, err := engine.RefreshToken(context.Background())
	if !errors.Is(err, ErrTokenRefreshFailed) {
		t.Fatalf("expected ErrTokenRefreshFailed, got %v", err)
	}
	if n := backend.refreshCalls.Load(); n != 0 {
		t.Fatalf("expected no backend call without a stored token, got %d", n)
	}
}

func TestGlobalLogoutClearsLedger(t *testing.T) {
	backend := newMockBackend()
	clock := newFakeClock()
	engine := newTestEngine(t, testConfig(), backend, clock)
	ctx := context.Background()

	backend.setAuthErr(ErrInvalidCredentials)
	for i := 0; i < 3; i++ {
		_, _ = engine.Login(ctx, validCreds())
	}

	if err := engine.GlobalLogout(ctx); err != nil {
		t.Fatalf("GlobalLogout failed: %v", err)
	}

	attempts, err := engine.GetAttempts(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetAttempts failed: %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected ledger cleared, got %d attempts", attempts)
	}
}
