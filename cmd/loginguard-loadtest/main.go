package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	loginguard "github.com/loginguard/loginguard"
)

type stubBackend struct {
	failEvery int
	calls     atomic.Int64
}

func (b *stubBackend) Authenticate(_ context.Context, creds loginguard.Credentials) (loginguard.LoginResponse, error) {
	n := b.calls.Add(1)
	if b.failEvery > 0 && n%int64(b.failEvery) == 0 {
		return loginguard.LoginResponse{}, loginguard.ErrInvalidCredentials
	}
	return loginguard.LoginResponse{
		AccessToken:  "access-" + creds.Principal,
		RefreshToken: "refresh-" + creds.Principal,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (b *stubBackend) Refresh(_ context.Context, refreshToken string) (loginguard.LoginResponse, error) {
	return loginguard.LoginResponse{
		AccessToken:  "access-rotated",
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func main() {
	var (
		principals  = flag.Int("principals", 10000, "number of distinct principals")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (login + refresh)")
		failEvery   = flag.Int("fail-every", 10, "every Nth authentication fails; 0 disables failures")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lg", "redis key prefix")
	)
	flag.Parse()

	if *principals <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "principals, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backend := &stubBackend{failEvery: *failEvery}

	builder := loginguard.New()
	engine, err := builder.
		WithRedis(client).
		WithRedisPrefix(*prefix).
		WithAuthenticator(backend).
		WithRefresher(backend).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	loginStats := runLoginPhase(ctx, engine, *principals, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("refresh", refreshStats)

	snapshot := engine.MetricsSnapshot()
	fmt.Printf("success=%d failure=%d blocked=%d lockouts=%d refresh_started=%d refresh_joined=%d\n",
		snapshot.Counters[loginguard.MetricLoginSuccess],
		snapshot.Counters[loginguard.MetricLoginFailure],
		snapshot.Counters[loginguard.MetricLoginBlocked],
		snapshot.Counters[loginguard.MetricLockoutTriggered],
		snapshot.Counters[loginguard.MetricRefreshStarted],
		snapshot.Counters[loginguard.MetricRefreshJoined],
	)
}

func runLoginPhase(ctx context.Context, engine *loginguard.Engine, principals, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(principals)
				creds := loginguard.Credentials{
					Principal: fmt.Sprintf("user%d@example.com", idx),
					Secret:    "correct-horse-battery",
				}
				t0 := time.Now()
				_, err := engine.Login(ctx, creds)
				d := time.Since(t0)
				if err != nil && !errors.Is(err, loginguard.ErrInvalidCredentials) && !errors.Is(err, loginguard.ErrAccountLocked) {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runRefreshPhase(ctx context.Context, engine *loginguard.Engine, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := engine.RefreshToken(ctx)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
