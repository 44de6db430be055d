// Package ledger tracks failed login attempts per principal. It stores raw
// counts and timestamps only; deriving lockout decisions from them is the
// policy package's job.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnavailable indicates the ledger backend is unreachable. Callers treat it
// as fail-closed for lock checks.
var ErrUnavailable = errors.New("attempt ledger unavailable")

// Store is the failed-attempt ledger. Implementations must be safe for
// concurrent use. Reads never mutate state.
type Store interface {
	// GetAttempts returns the current failure count for principal.
	GetAttempts(ctx context.Context, principal string) (int, error)

	// IncrementAttempts records one failure and returns the new count. A
	// count whose window has expired restarts at 1.
	IncrementAttempts(ctx context.Context, principal string) (int, error)

	// ResetAttempts clears the count for principal.
	ResetAttempts(ctx context.Context, principal string) error

	// LastAttemptTime returns the timestamp of the most recent failure.
	// ok is false when no failure is recorded.
	LastAttemptTime(ctx context.Context, principal string) (t time.Time, ok bool, err error)

	// Clear removes all recorded failures for all principals.
	Clear(ctx context.Context) error
}

// CanonicalPrincipal normalizes a principal identifier so that differently
// cased or padded spellings share one ledger entry.
func CanonicalPrincipal(principal string) string {
	return strings.ToLower(strings.TrimSpace(principal))
}
