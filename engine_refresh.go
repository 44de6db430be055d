package loginguard

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// RefreshToken exchanges the stored refresh token for a new token pair.
// Concurrent callers share a single in-flight refresh and all receive the same
// result.
//
// Network-class failures propagate without touching the session so the caller
// can retry. Any other failure is terminal: the engine runs the cascading
// global logout and returns [ErrTokenRefreshFailed].
func (e *Engine) RefreshToken(ctx context.Context) (Token, error) {
	if e == nil || !e.ready {
		return Token{}, ErrEngineNotReady
	}

	tok, shared, err := e.refreshGroup.Do(ctx, e.doRefresh)
	if shared {
		e.metricInc(MetricRefreshJoined)
	}
	return tok, err
}

func (e *Engine) doRefresh(ctx context.Context) (Token, error) {
	e.metricInc(MetricRefreshStarted)

	stored, err := e.tokenStore.Load(ctx)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", "", ErrTokenStorageFailed, nil)
		return Token{}, fmt.Errorf("%w: %v", ErrTokenStorageFailed, err)
	}
	if stored == nil || stored.RefreshToken == "" {
		// Nothing to refresh. The session, if any, is unrecoverable.
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", "", ErrNoRefreshToken, nil)
		if logoutErr := e.GlobalLogout(ctx); logoutErr != nil {
			log.Printf("loginguard: global logout after missing refresh token: %v", logoutErr)
		}
		return Token{}, fmt.Errorf("%w: %v", ErrTokenRefreshFailed, ErrNoRefreshToken)
	}

	resp, err := e.refresher.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		classified := classifyAuthErr(err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", "", classified, nil)

		// Connectivity failures leave the session intact for a later retry.
		if isConnectivityErr(classified) {
			return Token{}, classified
		}

		if logoutErr := e.GlobalLogout(ctx); logoutErr != nil {
			log.Printf("loginguard: global logout after refresh rejection: %v", logoutErr)
		}
		return Token{}, fmt.Errorf("%w: %v", ErrTokenRefreshFailed, classified)
	}

	now := e.now()
	tok := Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Expiry:       e.resolveExpiry(resp, now),
	}
	if tok.RefreshToken == "" {
		// Backend did not rotate; keep the old refresh token.
		tok.RefreshToken = stored.RefreshToken
	}

	if err := e.tokenStore.Save(ctx, tok); err != nil {
		e.metricInc(MetricTokenStorageFailure)
		e.emitAudit(ctx, auditEventTokenStorageFailure, false, "", "", ErrTokenStorageFailed, nil)
		return Token{}, fmt.Errorf("%w: %v", ErrTokenStorageFailed, err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, "", "", nil, nil)

	return tok, nil
}

// RefreshInFlight reports whether a refresh is currently running.
func (e *Engine) RefreshInFlight() bool {
	if e == nil || !e.ready {
		return false
	}
	return e.refreshGroup.InFlight()
}

// GlobalLogout clears the token store, offline credential store, attempt
// ledger, and session state store. Every store is attempted even when earlier
// ones fail; failures are joined under [ErrGlobalLogoutFailed].
func (e *Engine) GlobalLogout(ctx context.Context) error {
	if e == nil || !e.ready {
		return ErrEngineNotReady
	}

	var errs []error

	if err := e.tokenStore.Delete(ctx); err != nil {
		e.metricInc(MetricTokenStorageFailure)
		errs = append(errs, fmt.Errorf("%w: %v", ErrTokenStorageFailed, err))
	}
	if e.offline != nil {
		if err := e.offline.ClearAll(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrOfflineStoreFailed, err))
		}
	}
	if err := e.ledger.Clear(ctx); err != nil {
		e.metricInc(MetricLedgerUnavailable)
		errs = append(errs, wrapLedgerErr(err))
	}
	if e.sessionState != nil {
		if err := e.sessionState.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrGlobalLogoutFailed, err))
		}
	}

	e.metricInc(MetricGlobalLogout)

	if len(errs) > 0 {
		err := errors.Join(append([]error{ErrGlobalLogoutFailed}, errs...)...)
		e.emitAudit(ctx, auditEventGlobalLogout, false, "", "", err, nil)
		return err
	}

	e.emitAudit(ctx, auditEventGlobalLogout, true, "", "", nil, nil)
	return nil
}
