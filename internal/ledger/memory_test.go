package ledger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryIncrementAndGet(t *testing.T) {
	clock := newStubClock()
	m := NewMemory(5*time.Minute, clock.Now)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, err := m.IncrementAttempts(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("IncrementAttempts failed: %v", err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}

	count, err := m.GetAttempts(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetAttempts failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}

	last, ok, err := m.LastAttemptTime(ctx, "alice@example.com")
	if err != nil || !ok {
		t.Fatalf("LastAttemptTime failed: ok=%v err=%v", ok, err)
	}
	if !last.Equal(clock.Now()) {
		t.Fatalf("unexpected last attempt time %v", last)
	}
}

func TestMemoryWindowExpiryRestartsCount(t *testing.T) {
	clock := newStubClock()
	m := NewMemory(5*time.Minute, clock.Now)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := m.IncrementAttempts(ctx, "alice@example.com"); err != nil {
			t.Fatalf("IncrementAttempts failed: %v", err)
		}
	}

	clock.Advance(5*time.Minute + time.Second)

	count, err := m.GetAttempts(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetAttempts failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected expired window to read 0, got %d", count)
	}

	count, err = m.IncrementAttempts(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("IncrementAttempts failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected fresh count 1, got %d", count)
	}
}

func TestMemoryWindowSlidesWithEachFailure(t *testing.T) {
	clock := newStubClock()
	m := NewMemory(5*time.Minute, clock.Now)
	ctx := context.Background()

	if _, err := m.IncrementAttempts(ctx, "alice@example.com"); err != nil {
		t.Fatalf("IncrementAttempts failed: %v", err)
	}
	clock.Advance(4 * time.Minute)
	if _, err := m.IncrementAttempts(ctx, "alice@example.com"); err != nil {
		t.Fatalf("IncrementAttempts failed: %v", err)
	}
	clock.Advance(4 * time.Minute)

	// 8 minutes since the first failure, 4 since the last. Still live.
	count, err := m.GetAttempts(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetAttempts failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}

func TestMemoryResetAndClear(t *testing.T) {
	clock := newStubClock()
	m := NewMemory(0, clock.Now)
	ctx := context.Background()

	_, _ = m.IncrementAttempts(ctx, "alice@example.com")
	_, _ = m.IncrementAttempts(ctx, "bob@example.com")

	if err := m.ResetAttempts(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ResetAttempts failed: %v", err)
	}
	count, _ := m.GetAttempts(ctx, "alice@example.com")
	if count != 0 {
		t.Fatalf("expected 0 after reset, got %d", count)
	}
	count, _ = m.GetAttempts(ctx, "bob@example.com")
	if count != 1 {
		t.Fatalf("reset must not touch other principals, got %d", count)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	count, _ = m.GetAttempts(ctx, "bob@example.com")
	if count != 0 {
		t.Fatalf("expected 0 after clear, got %d", count)
	}
}

func TestMemoryConcurrentIncrements(t *testing.T) {
	clock := newStubClock()
	m := NewMemory(time.Hour, clock.Now)
	ctx := context.Background()

	const goroutines = 10
	const perGoroutine = 10

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if _, err := m.IncrementAttempts(ctx, "alice@example.com"); err != nil {
					t.Errorf("IncrementAttempts failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	count, err := m.GetAttempts(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetAttempts failed: %v", err)
	}
	if count != goroutines*perGoroutine {
		t.Fatalf("expected %d, got %d", goroutines*perGoroutine, count)
	}
}

func TestCanonicalPrincipal(t *testing.T) {
	cases := map[string]string{
		"  Alice@Example.COM ": "alice@example.com",
		"bob@example.com":      "bob@example.com",
		"  ":                   "",
	}
	for in, want := range cases {
		if got := CanonicalPrincipal(in); got != want {
			t.Fatalf("CanonicalPrincipal(%q) = %q, want %q", in, got, want)
		}
	}
}
