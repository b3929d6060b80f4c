// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across queue/remote/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrQueueUnavailable indicates the local durable queue failed (disk full, corruption, closed DB).
	// Callers degrade to memory-only operation.
	ErrQueueUnavailable = errors.New("queue unavailable")

	// ErrRemoteUnavailable indicates a transient or ambiguous remote failure; the operation may be retried.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrRemoteRejected indicates the remote store permanently refused the payload.
	ErrRemoteRejected = errors.New("remote rejected")

	// ErrSyncInProgress indicates a reconciliation pass is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates a write collided with an existing record.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation")
)
