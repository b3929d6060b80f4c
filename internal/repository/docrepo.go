// Package repository declares storage contracts for the remote document store.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/medizone/internal/model"
)

// DocumentRepository stores documents of the remote collections, partitioned by owner.
type DocumentRepository interface {
	// Insert stores doc under doc.ID and returns it with the server timestamp set.
	Insert(ctx context.Context, doc model.Document) (model.Document, error)

	// List returns an owner's documents of one collection, oldest first.
	List(ctx context.Context, collection, ownerID string) ([]model.Document, error)

	// Get returns one document or errs.ErrNotFound.
	Get(ctx context.Context, collection, ownerID string, id uuid.UUID) (model.Document, error)
}
