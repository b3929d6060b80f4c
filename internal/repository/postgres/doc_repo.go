package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
)

// DocRepo implements DocumentRepository using PostgreSQL.
type DocRepo struct{ db *DB }

// NewDocRepo constructs a document repository.
func NewDocRepo(db *DB) *DocRepo { return &DocRepo{db: db} }

// Insert stores the document body as jsonb.
func (r *DocRepo) Insert(ctx context.Context, doc model.Document) (model.Document, error) {
	id, err := uuid.FromString(doc.ID)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: document id: %v", errs.ErrValidation, err)
	}
	body, err := json.Marshal(doc.Fields)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: document body: %v", errs.ErrValidation, err)
	}

	const ins = `INSERT INTO documents (id, collection, owner_id, body) VALUES ($1,$2,$3,$4) RETURNING created_at`
	if err := r.db.Pool.QueryRow(ctx, ins, id, doc.Collection, doc.OwnerID, body).Scan(&doc.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return model.Document{}, errs.ErrConflict
		}
		return model.Document{}, err
	}
	return doc, nil
}

// List returns the owner's documents ordered by creation time.
func (r *DocRepo) List(ctx context.Context, collection, ownerID string) ([]model.Document, error) {
	const q = `
SELECT id, body, created_at
FROM documents
WHERE collection=$1 AND owner_id=$2
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Pool.Query(ctx, q, collection, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var (
			id   uuid.UUID
			body []byte
			ts   time.Time
		)
		if err = rows.Scan(&id, &body, &ts); err != nil {
			return nil, err
		}
		doc, err := decodeRow(id, collection, ownerID, body, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Get returns a single document of the owner.
func (r *DocRepo) Get(ctx context.Context, collection, ownerID string, id uuid.UUID) (model.Document, error) {
	const q = `SELECT body, created_at FROM documents WHERE collection=$1 AND owner_id=$2 AND id=$3`
	var (
		body []byte
		ts   time.Time
	)
	if err := r.db.Pool.QueryRow(ctx, q, collection, ownerID, id).Scan(&body, &ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, errs.ErrNotFound
		}
		return model.Document{}, err
	}
	return decodeRow(id, collection, ownerID, body, ts)
}

func decodeRow(id uuid.UUID, collection, ownerID string, body []byte, ts time.Time) (model.Document, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return model.Document{}, fmt.Errorf("document %s: body: %w", id, err)
	}
	return model.Document{
		ID:         id.String(),
		Collection: collection,
		OwnerID:    ownerID,
		Fields:     fields,
		CreatedAt:  ts,
	}, nil
}
