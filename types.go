package loginguard

import (
	"context"
	"time"
)

// Credentials carries a principal identifier and its secret for the duration of
// a login call. The engine never logs the secret and never persists it except
// through the caller-supplied [OfflineCredentialStore].
type Credentials struct {
	Principal string
	Secret    string
}

// Token is the session token pair owned by whichever [TokenStore] the engine is
// configured with. RefreshToken may be empty when the backend does not rotate.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Expired reports whether the token's expiry is at or before now.
// A zero Expiry is treated as non-expiring.
func (t Token) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !now.Before(t.Expiry)
}

// Session is returned by [Engine.Login] on success.
type Session struct {
	ID        string
	Principal string
	Token     Token
	CreatedAt time.Time
}

// LockoutState is the derived lockout view for a principal. It is computed from
// the attempt ledger and the lockout policy at read time and never persisted.
type LockoutState struct {
	Locked          bool
	Remaining       time.Duration
	RequiresCaptcha bool
	FailedAttempts  int
}

// LoginResponse is what the [Authenticator] and [TokenRefresher] capabilities
// return on success. ExpiresAt may be zero when the backend encodes expiry in
// the access token itself; the engine then recovers it from the JWT exp claim,
// falling back to [TokenConfig.DefaultTTL].
type LoginResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Authenticator is the credential-validation capability. Implementations talk
// to the backend (or a stub) and classify failures with the package sentinels:
// [ErrInvalidCredentials] for rejection, [ErrNetwork]/[ErrNoConnectivity] for
// transport failures. Unclassified errors are surfaced wrapped in [ErrUnknown].
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (LoginResponse, error)
}

// TokenRefresher exchanges a refresh token for a new token pair. Failure
// classification decides between retryable propagation (network-class) and
// terminal session teardown (everything else).
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (LoginResponse, error)
}

// TokenStore persists the current token pair. Load returns (nil, nil) when no
// token is stored.
type TokenStore interface {
	Save(ctx context.Context, token Token) error
	Load(ctx context.Context) (*Token, error)
	Delete(ctx context.Context) error
}

// OfflineCredentialStore holds credentials whose login failed for connectivity
// reasons, for later replay through [Engine.RetryPendingLogins].
type OfflineCredentialStore interface {
	Save(ctx context.Context, creds Credentials) error
	LoadAll(ctx context.Context) ([]Credentials, error)
	Delete(ctx context.Context, creds Credentials) error
	ClearAll(ctx context.Context) error
}

// SessionStateStore is session-scoped key-value state cleared during cascading
// global logout. The engine never reads it; it only clears it.
type SessionStateStore interface {
	Clear(ctx context.Context) error
}

// NotificationSink receives terminal login outcomes after all persistence side
// effects have completed. Implementations must not block for long; they run on
// the caller's goroutine.
type NotificationSink interface {
	NotifySuccess(ctx context.Context, session Session)
	NotifyFailure(ctx context.Context, err error)
}

// NoOpNotificationSink discards all notifications.
type NoOpNotificationSink struct{}

func (NoOpNotificationSink) NotifySuccess(context.Context, Session) {}

func (NoOpNotificationSink) NotifyFailure(context.Context, error) {}
