package loginguard

import (
	"context"
	"time"

	"github.com/loginguard/loginguard/internal/ledger"
	"github.com/loginguard/loginguard/internal/policy"
	"github.com/loginguard/loginguard/internal/refresh"
)

// Engine is the login security core. Construct it with [NewBuilder]; the zero
// value returns [ErrEngineNotReady] from every operation.
//
// All methods are safe for concurrent use.
type Engine struct {
	config Config

	policyCfg policy.Config
	backoff   policy.Backoff

	ledger       ledger.Store
	auth         Authenticator
	refresher    TokenRefresher
	tokenStore   TokenStore
	offline      OfflineCredentialStore
	sessionState SessionStateStore
	notify       NotificationSink

	audit   *auditDispatcher
	metrics *Metrics

	refreshGroup *refresh.Coordinator[Token]

	clock func() time.Time
	ready bool
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// Close stops background workers. The audit dispatcher drains buffered events
// before returning.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return e.metrics.Snapshot()
}

// lockoutState derives the current lockout view for a canonical principal.
// Ledger failures propagate; callers decide whether to fail closed.
func (e *Engine) lockoutState(ctx context.Context, principal string) (LockoutState, error) {
	attempts, err := e.ledger.GetAttempts(ctx, principal)
	if err != nil {
		return LockoutState{}, err
	}

	lastFailure, _, err := e.ledger.LastAttemptTime(ctx, principal)
	if err != nil {
		return LockoutState{}, err
	}

	s := e.evaluateAt(attempts, lastFailure)
	return LockoutState{
		Locked:          s.Locked,
		Remaining:       s.Remaining,
		RequiresCaptcha: s.RequiresCaptcha,
		FailedAttempts:  attempts,
	}, nil
}

func (e *Engine) evaluateAt(attempts int, lastFailure time.Time) policy.State {
	return policy.Evaluate(e.policyCfg, e.backoff, attempts, lastFailure, e.now())
}

// LockoutState returns the derived lockout view for principal. The read never
// mutates the ledger.
func (e *Engine) LockoutState(ctx context.Context, principal string) (LockoutState, error) {
	if e == nil || !e.ready {
		return LockoutState{}, ErrEngineNotReady
	}

	state, err := e.lockoutState(ctx, ledger.CanonicalPrincipal(principal))
	if err != nil {
		e.metricInc(MetricLedgerUnavailable)
		return LockoutState{}, wrapLedgerErr(err)
	}
	return state, nil
}

// IsAccountLocked reports whether principal is inside an active lockout window.
func (e *Engine) IsAccountLocked(ctx context.Context, principal string) (bool, error) {
	state, err := e.LockoutState(ctx, principal)
	if err != nil {
		return false, err
	}
	return state.Locked, nil
}

// RemainingBlockTime returns how long principal stays locked, or zero when it
// is not locked.
func (e *Engine) RemainingBlockTime(ctx context.Context, principal string) (time.Duration, error) {
	state, err := e.LockoutState(ctx, principal)
	if err != nil {
		return 0, err
	}
	return state.Remaining, nil
}

// RequiresCaptcha reports whether principal has crossed the CAPTCHA threshold.
func (e *Engine) RequiresCaptcha(ctx context.Context, principal string) (bool, error) {
	state, err := e.LockoutState(ctx, principal)
	if err != nil {
		return false, err
	}
	return state.RequiresCaptcha, nil
}

// GetAttempts returns the recorded failure count for principal.
func (e *Engine) GetAttempts(ctx context.Context, principal string) (int, error) {
	if e == nil || !e.ready {
		return 0, ErrEngineNotReady
	}

	attempts, err := e.ledger.GetAttempts(ctx, ledger.CanonicalPrincipal(principal))
	if err != nil {
		e.metricInc(MetricLedgerUnavailable)
		return 0, wrapLedgerErr(err)
	}
	return attempts, nil
}

// ResetAttempts clears the failure record for principal.
func (e *Engine) ResetAttempts(ctx context.Context, principal string) error {
	if e == nil || !e.ready {
		return ErrEngineNotReady
	}

	canonical := ledger.CanonicalPrincipal(principal)
	if err := e.ledger.ResetAttempts(ctx, canonical); err != nil {
		e.metricInc(MetricLedgerUnavailable)
		return wrapLedgerErr(err)
	}

	e.emitAudit(ctx, auditEventAttemptsReset, true, canonical, "", nil, nil)
	return nil
}
