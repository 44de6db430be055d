package loginguard

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricLoginLatency, time.Millisecond)

	if v := m.Value(MetricLoginSuccess); v != 0 {
		t.Fatalf("expected 0, got %d", v)
	}
	snapshot := m.Snapshot()
	if len(snapshot.Counters) != 0 || len(snapshot.Histograms) != 0 {
		t.Fatal("disabled metrics must snapshot empty")
	}
}

func TestMetricsCountersConcurrent(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Inc(MetricLoginSuccess)
			}
		}()
	}
	wg.Wait()

	if v := m.Value(MetricLoginSuccess); v != goroutines*perGoroutine {
		t.Fatalf("expected %d, got %d", goroutines*perGoroutine, v)
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []struct {
		d      time.Duration
		bucket int
	}{
		{time.Millisecond, 0},
		{8 * time.Millisecond, 1},
		{20 * time.Millisecond, 2},
		{40 * time.Millisecond, 3},
		{80 * time.Millisecond, 4},
		{200 * time.Millisecond, 5},
		{400 * time.Millisecond, 6},
		{2 * time.Second, 7},
	}
	for _, s := range samples {
		m.Observe(MetricLoginLatency, s.d)
	}

	buckets := m.Snapshot().Histograms[MetricLoginLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for _, s := range samples {
		if buckets[s.bucket] != 1 {
			t.Fatalf("bucket %d: expected 1, got %d (%v)", s.bucket, buckets[s.bucket], s.d)
		}
	}
}

func TestEngineCountsLoginOutcomes(t *testing.T) {
	backend := newMockBackend()
	clock := newFakeClock()

	engine, err := New().
		WithConfig(testConfig()).
		WithAuthenticator(backend).
		WithRefresher(backend).
		WithMetricsEnabled(true).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	ctx := context.Background()

	if _, err := engine.Login(ctx, validCreds()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	backend.setAuthErr(ErrInvalidCredentials)
	for i := 0; i < 5; i++ {
		_, _ = engine.Login(ctx, validCreds())
	}
	_, _ = engine.Login(ctx, validCreds()) // blocked

	snapshot := engine.MetricsSnapshot()
	if snapshot.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected 1 success, got %d", snapshot.Counters[MetricLoginSuccess])
	}
	if snapshot.Counters[MetricLoginFailure] != 5 {
		t.Fatalf("expected 5 failures, got %d", snapshot.Counters[MetricLoginFailure])
	}
	if snapshot.Counters[MetricLockoutTriggered] != 1 {
		t.Fatalf("expected 1 lockout, got %d", snapshot.Counters[MetricLockoutTriggered])
	}
	if snapshot.Counters[MetricLoginBlocked] != 1 {
		t.Fatalf("expected 1 blocked, got %d", snapshot.Counters[MetricLoginBlocked])
	}
}
