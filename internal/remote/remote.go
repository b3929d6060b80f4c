// Package remote defines the boundary to the authoritative remote document store.
package remote

import (
	"context"

	"github.com/and161185/medizone/internal/model"
)

// Store is a generic keyed remote collection.
//
// Failures are reported wrapped in errs.ErrRemoteUnavailable (retryable, including
// ambiguous outcomes such as timeouts) or errs.ErrRemoteRejected (permanent).
// Get reports errs.ErrNotFound for a missing document.
type Store interface {
	// Create stores fields as a new document and returns the id the store generated.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Query returns all documents of a collection owned by ownerID.
	Query(ctx context.Context, collection, ownerID string) ([]model.Document, error)
	// Get returns a single document by id.
	Get(ctx context.Context, collection, id string) (model.Document, error)
}
