package loginguard

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginBlocked        = "login_blocked"
	auditEventLoginInvalidInput   = "login_invalid_input"
	auditEventLockoutTriggered    = "lockout_triggered"
	auditEventCaptchaRequired     = "captcha_required"
	auditEventAttemptsReset       = "attempts_reset"
	auditEventOfflineSaved        = "offline_saved"
	auditEventOfflineReplayed     = "offline_replayed"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshFailure      = "refresh_failure"
	auditEventGlobalLogout        = "global_logout"
	auditEventLedgerUnavailable   = "ledger_unavailable"
	auditEventTokenStorageFailure = "token_storage_failure"
)

// AuditErrorCode is the stable error classification recorded in audit events.
type AuditErrorCode string

const (
	auditErrInvalidEmail       AuditErrorCode = "invalid_email"
	auditErrInvalidPassword    AuditErrorCode = "invalid_password"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrNetwork            AuditErrorCode = "network"
	auditErrNoConnectivity     AuditErrorCode = "no_connectivity"
	auditErrTokenStorage       AuditErrorCode = "token_storage_failed"
	auditErrOfflineStore       AuditErrorCode = "offline_store_failed"
	auditErrLedgerUnavailable  AuditErrorCode = "ledger_unavailable"
	auditErrRefreshFailed      AuditErrorCode = "refresh_failed"
	auditErrNoRefreshToken     AuditErrorCode = "no_refresh_token"
	auditErrGlobalLogout       AuditErrorCode = "global_logout_failed"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principal string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Principal: principal,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidEmailFormat):
		return auditErrInvalidEmail
	case errors.Is(err, ErrInvalidPasswordFormat):
		return auditErrInvalidPassword
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrNoConnectivity):
		return auditErrNoConnectivity
	case errors.Is(err, ErrNetwork):
		return auditErrNetwork
	case errors.Is(err, ErrTokenStorageFailed):
		return auditErrTokenStorage
	case errors.Is(err, ErrOfflineStoreFailed):
		return auditErrOfflineStore
	case errors.Is(err, ErrLedgerUnavailable):
		return auditErrLedgerUnavailable
	case errors.Is(err, ErrNoRefreshToken):
		return auditErrNoRefreshToken
	case errors.Is(err, ErrTokenRefreshFailed):
		return auditErrRefreshFailed
	case errors.Is(err, ErrGlobalLogoutFailed):
		return auditErrGlobalLogout
	default:
		return auditErrInternal
	}
}

func remainingMetadata(remaining time.Duration) func() map[string]string {
	return func() map[string]string {
		return map[string]string{
			"retry_in": remaining.Round(time.Second).String(),
		}
	}
}
