package loginguard

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loginguard/loginguard/internal/ledger"
	"github.com/loginguard/loginguard/internal/policy"
	"github.com/loginguard/loginguard/internal/refresh"
)

// Builder assembles an [Engine]. Builders are single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	prefix string

	auth         Authenticator
	refresher    TokenRefresher
	tokenStore   TokenStore
	offline      OfflineCredentialStore
	sessionState SessionStateStore
	notify       NotificationSink
	auditSink    AuditSink

	clock func() time.Time

	built bool
}

// New creates a [Builder] with default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis backs the attempt ledger, token store, offline store, and session
// state with Redis. Components already supplied explicitly keep their
// implementation.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRedisPrefix sets the key prefix for Redis-backed components.
func (b *Builder) WithRedisPrefix(prefix string) *Builder {
	b.prefix = prefix
	return b
}

// WithAuthenticator sets the credential-validation capability. Required.
func (b *Builder) WithAuthenticator(auth Authenticator) *Builder {
	b.auth = auth
	return b
}

// WithRefresher sets the token refresh capability. Required.
func (b *Builder) WithRefresher(r TokenRefresher) *Builder {
	b.refresher = r
	return b
}

// WithTokenStore overrides the token store.
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.tokenStore = store
	return b
}

// WithOfflineStore overrides the offline credential store.
func (b *Builder) WithOfflineStore(store OfflineCredentialStore) *Builder {
	b.offline = store
	return b
}

// WithSessionState sets the session-scoped state store cleared on global logout.
func (b *Builder) WithSessionState(store SessionStateStore) *Builder {
	b.sessionState = store
	return b
}

// WithNotificationSink sets the sink for terminal login outcomes.
func (b *Builder) WithNotificationSink(sink NotificationSink) *Builder {
	b.notify = sink
	return b
}

// WithAuditSink sets the audit sink and enables the audit dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the login latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the engine's time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the engine. Without Redis the
// attempt ledger, token store, and offline store fall back to in-process
// implementations suitable for a single process only.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.auth == nil {
		return nil, errors.New("authenticator required")
	}
	if b.refresher == nil {
		return nil, errors.New("token refresher required")
	}

	// The ledger window is the longest span a failure streak can matter:
	// the capped backoff delay when backoff is on, the block duration
	// otherwise.
	window := cfg.Lockout.BlockDuration
	if cfg.Backoff.Enabled && cfg.Backoff.MaxDelay > window {
		window = cfg.Backoff.MaxDelay
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	var ledgerStore ledger.Store
	if b.redis != nil {
		ledgerStore = ledger.NewRedis(b.redis, b.prefix, window, clock)
	} else {
		ledgerStore = ledger.NewMemory(window, clock)
	}

	tokenStore := b.tokenStore
	if tokenStore == nil {
		if b.redis != nil {
			tokenStore = NewRedisTokenStore(b.redis, b.prefix)
		} else {
			tokenStore = newMemoryTokenStore()
		}
	}

	offline := b.offline
	if offline == nil && cfg.Offline.Enabled {
		if b.redis != nil {
			offline = NewRedisOfflineStore(b.redis, b.prefix)
		} else {
			offline = newMemoryOfflineStore()
		}
	}

	sessionState := b.sessionState
	if sessionState == nil && b.redis != nil {
		sessionState = NewRedisSessionState(b.redis, b.prefix)
	}

	notify := b.notify
	if notify == nil {
		notify = NoOpNotificationSink{}
	}

	engine := &Engine{
		config: cfg,
		policyCfg: policy.Config{
			MaxAttempts:      cfg.Lockout.MaxAttempts,
			BlockDuration:    cfg.Lockout.BlockDuration,
			CaptchaThreshold: cfg.Lockout.CaptchaThreshold,
		},
		backoff: policy.Backoff{
			Enabled:   cfg.Backoff.Enabled,
			BaseDelay: cfg.Backoff.BaseDelay,
			Factor:    cfg.Backoff.Factor,
			MaxDelay:  cfg.Backoff.MaxDelay,
		},
		ledger:       ledgerStore,
		auth:         b.auth,
		refresher:    b.refresher,
		tokenStore:   tokenStore,
		offline:      offline,
		sessionState: sessionState,
		notify:       notify,
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		refreshGroup: refresh.NewCoordinator[Token](),
		clock:        clock,
		ready:        true,
	}

	return engine, nil
}
