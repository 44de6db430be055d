// Package internaldefs holds the shared metric name table used by the
// Prometheus and OTel exporters. It is not part of the public API surface.
package internaldefs

import (
	loginguard "github.com/loginguard/loginguard"
)

// CounterDef binds a core counter ID to its exported name.
type CounterDef struct {
	ID   loginguard.MetricID
	Name string
	Help string
}

// HistogramDef binds a core histogram ID to its exported name.
type HistogramDef struct {
	ID   loginguard.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: loginguard.MetricLoginSuccess, Name: "loginguard_login_success_total", Help: "Successful login attempts."},
	{ID: loginguard.MetricLoginFailure, Name: "loginguard_login_failure_total", Help: "Failed login attempts."},
	{ID: loginguard.MetricLoginBlocked, Name: "loginguard_login_blocked_total", Help: "Login attempts rejected by an active lockout."},
	{ID: loginguard.MetricLoginInvalidInput, Name: "loginguard_login_invalid_input_total", Help: "Login attempts rejected by local validation."},
	{ID: loginguard.MetricLockoutTriggered, Name: "loginguard_lockout_triggered_total", Help: "Failures that tipped a principal into lockout."},
	{ID: loginguard.MetricCaptchaRequired, Name: "loginguard_captcha_required_total", Help: "Attempts at or past the CAPTCHA threshold."},
	{ID: loginguard.MetricLedgerUnavailable, Name: "loginguard_ledger_unavailable_total", Help: "Attempt ledger backend failures."},
	{ID: loginguard.MetricOfflineSaved, Name: "loginguard_offline_saved_total", Help: "Credentials saved for offline replay."},
	{ID: loginguard.MetricOfflineReplayed, Name: "loginguard_offline_replayed_total", Help: "Offline credentials replayed successfully."},
	{ID: loginguard.MetricRefreshStarted, Name: "loginguard_refresh_started_total", Help: "Refresh episodes that issued a network call."},
	{ID: loginguard.MetricRefreshJoined, Name: "loginguard_refresh_joined_total", Help: "Callers that joined an in-flight refresh."},
	{ID: loginguard.MetricRefreshSuccess, Name: "loginguard_refresh_success_total", Help: "Refresh episodes that produced a new token."},
	{ID: loginguard.MetricRefreshFailure, Name: "loginguard_refresh_failure_total", Help: "Failed refresh episodes."},
	{ID: loginguard.MetricGlobalLogout, Name: "loginguard_global_logout_total", Help: "Cascading global logout operations."},
	{ID: loginguard.MetricTokenStorageFailure, Name: "loginguard_token_storage_failure_total", Help: "Token store save or delete failures."},
}

var HistogramDefs = []HistogramDef{
	{ID: loginguard.MetricLoginLatency, Name: "loginguard_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBounds are the upper bounds of the core latency buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are instrument-name-safe spellings of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
