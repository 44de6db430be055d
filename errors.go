package loginguard

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidEmailFormat indicates the principal failed local format validation.
	ErrInvalidEmailFormat = errors.New("invalid email format")
	// ErrInvalidPasswordFormat indicates the secret failed local format validation.
	ErrInvalidPasswordFormat = errors.New("invalid password format")
	// ErrInvalidCredentials indicates the authentication capability rejected the credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the principal is inside an active lockout window.
	// Errors matching it are usually a [*LockoutError] carrying the remaining time.
	ErrAccountLocked = errors.New("account locked")
	// ErrNetwork indicates a transient network failure talking to a remote capability.
	ErrNetwork = errors.New("network error")
	// ErrNoConnectivity indicates the device has no connectivity at all.
	ErrNoConnectivity = errors.New("no connectivity")
	// ErrTokenStorageFailed indicates the token store rejected a save or delete.
	ErrTokenStorageFailed = errors.New("token storage failed")
	// ErrOfflineStoreFailed indicates the offline credential store rejected an operation.
	ErrOfflineStoreFailed = errors.New("offline store failed")
	// ErrLedgerUnavailable indicates the failed-attempt ledger backend is unreachable.
	// It is never silently treated as "zero attempts".
	ErrLedgerUnavailable = errors.New("attempt ledger unavailable")
	// ErrTokenRefreshFailed indicates a terminal refresh failure; the engine has
	// already triggered the cascading global logout when returning it.
	ErrTokenRefreshFailed = errors.New("token refresh failed")
	// ErrNoRefreshToken indicates no stored token (or no refresh token) exists to refresh.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrGlobalLogoutFailed indicates one or more stores failed to clear during
	// cascading logout. The cascade still attempts every store.
	ErrGlobalLogoutFailed = errors.New("global logout incomplete")
	// ErrEngineNotReady indicates the engine was not built through [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUnknown wraps authenticator failures outside the documented taxonomy so
	// callers never branch on (or display) internal error details.
	ErrUnknown = errors.New("unknown error")
)

// LockoutError is returned for login attempts against a locked principal.
// It matches [ErrAccountLocked] under [errors.Is].
type LockoutError struct {
	Remaining time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked: retry in %s", e.Remaining.Round(time.Second))
}

// Is reports whether target is [ErrAccountLocked].
func (e *LockoutError) Is(target error) bool {
	return target == ErrAccountLocked
}
