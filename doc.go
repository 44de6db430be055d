// Package loginguard provides a login security and session coordination engine:
// per-principal failed-attempt tracking, progressive account lockout with CAPTCHA
// escalation, single-flight token refresh, and cascading global logout.
//
// The package is designed for concurrent client workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// loginguard is the public surface. It exposes [Engine], [Builder], [Config], and
// value types (Credentials, Token, Session, LockoutState). All internal
// coordination (attempt ledgers, lockout policy math, single-flight refresh)
// lives under internal/ and is never exported.
//
// Authentication, token refresh, token persistence, offline credential storage,
// session-scoped state, and success/failure notification are capabilities supplied
// by the caller ([Authenticator], [TokenRefresher], [TokenStore],
// [OfflineCredentialStore], [SessionStateStore], [NotificationSink]). The engine
// never performs credential hashing, token minting, or CAPTCHA validation itself;
// it only reports when a CAPTCHA must be required.
//
// # What this package must NOT do
//
//   - Expose Redis clients, ledger internals, or the refresh coordinator in its
//     public API.
//   - Log a credential secret (offline persistence goes through the
//     caller-supplied store only).
//   - Import any sub-package that re-imports loginguard (no import cycles).
//
// # Concurrency contract
//
// The failed-attempt ledger serializes mutations per store: concurrent failures
// for the same principal never lose updates. The refresh coordinator guarantees
// that at most one refresh network call is in flight process-wide; concurrent
// callers join the in-flight operation and observe its result.
package loginguard
