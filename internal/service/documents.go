// Package service contains the remote store's application services.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/remote"
	"github.com/and161185/medizone/internal/repository"
)

// DocumentService defines operations over an owner's documents.
type DocumentService interface {
	// Create validates fields against the collection schema and stores them under a new id.
	Create(ctx context.Context, owner, collection string, fields map[string]any) (model.Document, error)
	// Query lists the owner's documents of a collection.
	Query(ctx context.Context, owner, collection string) ([]model.Document, error)
	// Get returns one of the owner's documents.
	Get(ctx context.Context, owner, collection, id string) (model.Document, error)
}

type DocumentServiceImpl struct {
	repo repository.DocumentRepository
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(repo repository.DocumentRepository) *DocumentServiceImpl {
	return &DocumentServiceImpl{repo: repo}
}

func checkScope(owner, collection string) error {
	if owner == "" {
		return fmt.Errorf("%w: empty owner", errs.ErrValidation)
	}
	switch collection {
	case model.CollectionMedications, model.CollectionIntakes:
		return nil
	default:
		return fmt.Errorf("%w: unknown collection %q", errs.ErrValidation, collection)
	}
}

// Create stamps the owner into the document and delegates to the repository.
// Validation rules are those of the client-side decoder, so anything stored here
// decodes on every device.
func (s *DocumentServiceImpl) Create(ctx context.Context, owner, collection string, fields map[string]any) (model.Document, error) {
	if err := checkScope(owner, collection); err != nil {
		return model.Document{}, err
	}
	if fields == nil {
		return model.Document{}, fmt.Errorf("%w: empty document", errs.ErrValidation)
	}
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	delete(body, "id")
	body["ownerId"] = owner

	if err := remote.ValidateFields(collection, body); err != nil {
		if errors.Is(err, errs.ErrRemoteRejected) {
			return model.Document{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
		}
		return model.Document{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Document{}, err
	}
	return s.repo.Insert(ctx, model.Document{
		ID:         id.String(),
		Collection: collection,
		OwnerID:    owner,
		Fields:     body,
	})
}

// Query returns the owner's documents oldest first.
func (s *DocumentServiceImpl) Query(ctx context.Context, owner, collection string) ([]model.Document, error) {
	if err := checkScope(owner, collection); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, collection, owner)
}

// Get resolves id within the owner's collection. Ids that are not UUIDs cannot exist.
func (s *DocumentServiceImpl) Get(ctx context.Context, owner, collection, id string) (model.Document, error) {
	if err := checkScope(owner, collection); err != nil {
		return model.Document{}, err
	}
	uid, err := uuid.FromString(id)
	if err != nil || uid == uuid.Nil {
		return model.Document{}, errs.ErrNotFound
	}
	return s.repo.Get(ctx, collection, owner, uid)
}
