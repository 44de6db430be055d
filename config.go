package loginguard

import (
	"errors"
	"time"
)

// Config groups all engine tuning. Instances are supplied once through
// [Builder.WithConfig] and treated as immutable after Build.
type Config struct {
	Lockout    LockoutConfig
	Backoff    BackoffConfig
	Validation ValidationConfig
	Token      TokenConfig
	Offline    OfflineConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// LockoutConfig controls the fixed-window account lockout policy.
type LockoutConfig struct {
	// MaxAttempts is the failure count at which a principal becomes locked.
	MaxAttempts int
	// BlockDuration is how long a locked principal stays locked, measured
	// from the last failed attempt.
	BlockDuration time.Duration
	// CaptchaThreshold is the failure count at which CAPTCHA becomes
	// required. Must be <= MaxAttempts. 0 disables CAPTCHA escalation.
	CaptchaThreshold int
}

// BackoffConfig enables exponential growth of the lockout duration for
// failures past the threshold: min(BaseDelay * Factor^(n-1), MaxDelay).
type BackoffConfig struct {
	Enabled   bool
	BaseDelay time.Duration
	Factor    float64
	MaxDelay  time.Duration
}

// ValidationConfig controls local credential validation performed before any
// network or ledger activity.
type ValidationConfig struct {
	// RequireEmailPrincipal rejects principals that do not parse as an
	// email address. When false, any non-empty trimmed principal passes.
	RequireEmailPrincipal bool
	// MinSecretLength rejects secrets shorter than this. Empty secrets are
	// always rejected.
	MinSecretLength int
}

// TokenConfig controls how the engine derives token expiry.
type TokenConfig struct {
	// ParseJWTExpiry reads the exp claim from the access token (without
	// signature verification) when the backend response omits ExpiresAt.
	ParseJWTExpiry bool
	// DefaultTTL is the fallback lifetime when no expiry can be derived.
	DefaultTTL time.Duration
}

// OfflineConfig controls the connectivity-failure side channel.
type OfflineConfig struct {
	// Enabled saves credentials to the offline store when login fails for
	// connectivity reasons, for later replay via RetryPendingLogins.
	Enabled bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			MaxAttempts:      5,
			BlockDuration:    5 * time.Minute,
			CaptchaThreshold: 3,
		},
		Backoff: BackoffConfig{
			Enabled:   false,
			BaseDelay: 5 * time.Minute,
			Factor:    2,
			MaxDelay:  2 * time.Hour,
		},
		Validation: ValidationConfig{
			RequireEmailPrincipal: true,
			MinSecretLength:       8,
		},
		Token: TokenConfig{
			ParseJWTExpiry: true,
			DefaultTTL:     time.Hour,
		},
		Offline: OfflineConfig{
			Enabled: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.BlockDuration <= 0 {
		return errors.New("Lockout BlockDuration must be > 0")
	}
	if c.Lockout.CaptchaThreshold < 0 {
		return errors.New("Lockout CaptchaThreshold must be >= 0")
	}
	if c.Lockout.CaptchaThreshold > c.Lockout.MaxAttempts {
		return errors.New("Lockout CaptchaThreshold must be <= MaxAttempts")
	}

	if c.Backoff.Enabled {
		if c.Backoff.BaseDelay <= 0 {
			return errors.New("Backoff BaseDelay must be > 0 when backoff is enabled")
		}
		if c.Backoff.Factor < 1 {
			return errors.New("Backoff Factor must be >= 1")
		}
		if c.Backoff.MaxDelay < c.Backoff.BaseDelay {
			return errors.New("Backoff MaxDelay must be >= BaseDelay")
		}
	}

	if c.Validation.MinSecretLength < 0 {
		return errors.New("Validation MinSecretLength must be >= 0")
	}

	if c.Token.DefaultTTL <= 0 {
		return errors.New("Token DefaultTTL must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
