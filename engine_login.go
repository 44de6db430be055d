package loginguard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/loginguard/loginguard/internal/ledger"
	"github.com/loginguard/loginguard/internal/token"
)

// Login runs the full login sequence for creds: lockout check, local
// validation, backend authentication, then the success or failure side
// effects. On success the returned session's token pair is already persisted
// in the token store.
//
// Failure contract:
//   - locked principal: [*LockoutError] matching [ErrAccountLocked], the
//     authenticator is never called
//   - malformed input: [ErrInvalidEmailFormat] or [ErrInvalidPasswordFormat],
//     no ledger mutation
//   - rejected credentials: [ErrInvalidCredentials], ledger incremented
//   - connectivity failure: [ErrNetwork]/[ErrNoConnectivity], ledger
//     incremented, credentials queued for offline replay when enabled
//   - ledger unreachable during the lock check: [ErrLedgerUnavailable],
//     the attempt is refused
func (e *Engine) Login(ctx context.Context, creds Credentials) (*Session, error) {
	if e == nil || !e.ready {
		return nil, ErrEngineNotReady
	}

	start := e.now()
	session, err := e.login(ctx, creds)
	e.metricObserve(MetricLoginLatency, e.now().Sub(start))

	if err != nil {
		e.notify.NotifyFailure(ctx, err)
		return nil, err
	}

	e.notify.NotifySuccess(ctx, *session)
	return session, nil
}

func (e *Engine) login(ctx context.Context, creds Credentials) (*Session, error) {
	principal := ledger.CanonicalPrincipal(creds.Principal)

	// Lock check precedes validation so a locked principal learns nothing
	// about input handling. Ledger failures refuse the attempt.
	state, err := e.lockoutState(ctx, principal)
	if err != nil {
		e.metricInc(MetricLedgerUnavailable)
		e.emitAudit(ctx, auditEventLedgerUnavailable, false, principal, "", ErrLedgerUnavailable, nil)
		return nil, wrapLedgerErr(err)
	}
	if state.Locked {
		e.metricInc(MetricLoginBlocked)
		e.emitAudit(ctx, auditEventLoginBlocked, false, principal, "", ErrAccountLocked,
			remainingMetadata(state.Remaining))
		return nil, &LockoutError{Remaining: state.Remaining}
	}
	if state.RequiresCaptcha {
		e.metricInc(MetricCaptchaRequired)
		e.emitAudit(ctx, auditEventCaptchaRequired, false, principal, "", nil, nil)
	}

	if err := e.validateCredentials(creds); err != nil {
		e.metricInc(MetricLoginInvalidInput)
		e.emitAudit(ctx, auditEventLoginInvalidInput, false, principal, "", err, nil)
		return nil, err
	}

	resp, err := e.auth.Authenticate(ctx, Credentials{Principal: principal, Secret: creds.Secret})
	if err != nil {
		return nil, e.loginFailure(ctx, principal, creds.Secret, err)
	}

	return e.loginSuccess(ctx, principal, resp)
}

func (e *Engine) loginSuccess(ctx context.Context, principal string, resp LoginResponse) (*Session, error) {
	// Best effort: a stale count only shortens the runway to the next lockout.
	if err := e.ledger.ResetAttempts(ctx, principal); err != nil {
		e.metricInc(MetricLedgerUnavailable)
		log.Printf("loginguard: attempt reset failed for %s: %v", principal, err)
	}

	now := e.now()
	tok := Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Expiry:       e.resolveExpiry(resp, now),
	}

	if err := e.tokenStore.Save(ctx, tok); err != nil {
		e.metricInc(MetricTokenStorageFailure)
		e.emitAudit(ctx, auditEventTokenStorageFailure, false, principal, "", ErrTokenStorageFailed, nil)
		return nil, fmt.Errorf("%w: %v", ErrTokenStorageFailed, err)
	}

	session := &Session{
		ID:        uuid.NewString(),
		Principal: principal,
		Token:     tok,
		CreatedAt: now,
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, principal, session.ID, nil, nil)

	return session, nil
}

func (e *Engine) loginFailure(ctx context.Context, principal, secret string, authErr error) error {
	count, incErr := e.ledger.IncrementAttempts(ctx, principal)
	if incErr != nil {
		e.metricInc(MetricLedgerUnavailable)
		e.emitAudit(ctx, auditEventLedgerUnavailable, false, principal, "", ErrLedgerUnavailable, nil)
	}

	e.metricInc(MetricLoginFailure)

	// The failure that just landed may have tipped the principal into
	// lockout; report that instead of the raw rejection.
	if incErr == nil && count >= e.policyCfg.MaxAttempts {
		lastFailure, ok, err := e.ledger.LastAttemptTime(ctx, principal)
		if err != nil || !ok {
			lastFailure = e.now()
		}
		remaining := e.remainingAfterFailure(count, lastFailure)

		e.metricInc(MetricLockoutTriggered)
		e.emitAudit(ctx, auditEventLockoutTriggered, false, principal, "", ErrAccountLocked,
			remainingMetadata(remaining))
		return &LockoutError{Remaining: remaining}
	}

	classified := classifyAuthErr(authErr)
	e.emitAudit(ctx, auditEventLoginFailure, false, principal, "", classified, nil)

	if isConnectivityErr(classified) && e.config.Offline.Enabled && e.offline != nil {
		saveErr := e.offline.Save(ctx, Credentials{Principal: principal, Secret: secret})
		if saveErr != nil {
			e.emitAudit(ctx, auditEventTokenStorageFailure, false, principal, "", ErrOfflineStoreFailed, nil)
			classified = errors.Join(fmt.Errorf("%w: %v", ErrOfflineStoreFailed, saveErr), classified)
		} else {
			e.metricInc(MetricOfflineSaved)
			e.emitAudit(ctx, auditEventOfflineSaved, true, principal, "", nil, nil)
		}
	}

	if incErr != nil {
		return errors.Join(classified, wrapLedgerErr(incErr))
	}
	return classified
}

func (e *Engine) validateCredentials(creds Credentials) error {
	principal := ledger.CanonicalPrincipal(creds.Principal)
	if principal == "" {
		return ErrInvalidEmailFormat
	}
	if e.config.Validation.RequireEmailPrincipal {
		if _, err := mail.ParseAddress(principal); err != nil {
			return ErrInvalidEmailFormat
		}
	}

	if creds.Secret == "" || len(creds.Secret) < e.config.Validation.MinSecretLength {
		return ErrInvalidPasswordFormat
	}
	return nil
}

// resolveExpiry picks the token expiry: explicit backend value, then the JWT
// exp claim, then the configured default TTL.
func (e *Engine) resolveExpiry(resp LoginResponse, now time.Time) time.Time {
	if !resp.ExpiresAt.IsZero() {
		return resp.ExpiresAt
	}
	if e.config.Token.ParseJWTExpiry {
		if expiry, err := token.ExpiryFromAccessToken(resp.AccessToken); err == nil {
			return expiry
		}
	}
	return now.Add(e.config.Token.DefaultTTL)
}

func (e *Engine) remainingAfterFailure(count int, lastFailure time.Time) time.Duration {
	s := e.evaluateAt(count, lastFailure)
	return s.Remaining
}

func wrapLedgerErr(err error) error {
	if errors.Is(err, ErrLedgerUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
}

// classifyAuthErr maps an authenticator failure onto the package taxonomy.
// Already-classified errors pass through; unwrapped transport errors are
// treated as network-class; everything else is hidden behind [ErrUnknown].
func classifyAuthErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrNetwork),
		errors.Is(err, ErrNoConnectivity):
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	return fmt.Errorf("%w: %v", ErrUnknown, err)
}

func isConnectivityErr(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrNoConnectivity)
}
