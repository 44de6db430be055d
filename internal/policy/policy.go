// Package policy derives lockout decisions from raw attempt counts. It is
// pure: no I/O, no clocks of its own, no stored state.
package policy

import (
	"math"
	"time"
)

// Config is the fixed-window lockout policy.
type Config struct {
	MaxAttempts      int
	BlockDuration    time.Duration
	CaptchaThreshold int // 0 disables CAPTCHA escalation
}

// Backoff grows the block duration for failures past the threshold.
type Backoff struct {
	Enabled   bool
	BaseDelay time.Duration
	Factor    float64
	MaxDelay  time.Duration
}

// State is the derived lockout view for one principal at one instant.
type State struct {
	Locked          bool
	Remaining       time.Duration
	RequiresCaptcha bool
}

// Evaluate computes the lockout state for a principal with the given attempt
// count whose last failure was at lastFailure. A zero lastFailure with a
// nonzero count is treated as just-failed.
func Evaluate(cfg Config, b Backoff, attempts int, lastFailure, now time.Time) State {
	s := State{
		RequiresCaptcha: cfg.CaptchaThreshold > 0 && attempts >= cfg.CaptchaThreshold,
	}

	if cfg.MaxAttempts <= 0 || attempts < cfg.MaxAttempts {
		return s
	}

	if lastFailure.IsZero() {
		lastFailure = now
	}

	block := EffectiveBlockDuration(cfg, b, attempts)
	until := lastFailure.Add(block)
	if now.Before(until) {
		s.Locked = true
		s.Remaining = until.Sub(now)
	}

	return s
}

// EffectiveBlockDuration returns the block duration for the given attempt
// count, applying exponential backoff for counts past MaxAttempts when
// enabled.
func EffectiveBlockDuration(cfg Config, b Backoff, attempts int) time.Duration {
	if !b.Enabled {
		return cfg.BlockDuration
	}
	over := attempts - cfg.MaxAttempts
	if over < 0 {
		over = 0
	}
	return BackoffDuration(b, over)
}

// BackoffDuration returns min(BaseDelay * Factor^n, MaxDelay). The exponent is
// capped so the float math cannot overflow.
func BackoffDuration(b Backoff, n int) time.Duration {
	if !b.Enabled || b.BaseDelay <= 0 {
		return b.BaseDelay
	}
	if n <= 0 {
		return b.BaseDelay
	}
	if n > 32 {
		n = 32
	}

	d := time.Duration(float64(b.BaseDelay) * math.Pow(b.Factor, float64(n)))
	if d <= 0 || (b.MaxDelay > 0 && d > b.MaxDelay) {
		return b.MaxDelay
	}
	return d
}
