// Package indexpipeline holds the sentinel errors shared across the
// indexing pipeline's components, so callers can branch with errors.Is
// regardless of which component produced the failure.
package indexpipeline

import "errors"

var (
	// ErrConfigInvalid marks a fatal configuration problem: missing
	// backend auth, an unknown language name, or a missing anchor in
	// incremental mode.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrAnchorMissing means incremental mode was requested but no prior
	// commit anchor exists for the branch; the caller must run a full
	// index first.
	ErrAnchorMissing = errors.New("commit anchor missing, run a full index first")

	// ErrBackendUnavailable means the search backend collaborator could
	// not be reached or returned a non-retryable failure.
	ErrBackendUnavailable = errors.New("search backend unavailable")

	// ErrStorage marks a local queue or filesystem I/O failure. Fatal
	// for the current run; the orchestrator aborts without advancing
	// the anchor.
	ErrStorage = errors.New("local storage failure")

	// ErrPullFailed means the Git collaborator could not fetch/fast-
	// forward the configured branch; the run aborts with the anchor
	// unchanged.
	ErrPullFailed = errors.New("git pull failed")
)
