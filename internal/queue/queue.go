// Package queue provides the durable local queue of creations made while offline.
package queue

import (
	"context"
	"encoding/json"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/medizone/internal/model"
)

// TempIDPrefix marks ids that have not been confirmed by the remote store.
const TempIDPrefix = "temp_"

// Queue stores pending creations keyed by temp id until the remote store assigns a permanent id.
// Storage failures are reported wrapped in errs.ErrQueueUnavailable.
type Queue interface {
	// Enqueue persists payload under a fresh temp id and returns the stored record.
	Enqueue(ctx context.Context, collection string, payload json.RawMessage) (model.PendingRecord, error)
	// ListPending returns all unconfirmed records in FIFO order.
	ListPending(ctx context.Context) ([]model.PendingRecord, error)
	// Remove deletes a record; removing an absent id is not an error.
	Remove(ctx context.Context, tempID string) error
	// Promote removes a record and remembers which permanent id replaced it.
	Promote(ctx context.Context, tempID, permanentID string) error
	// Aliases returns every recorded temp id -> permanent id promotion.
	Aliases(ctx context.Context) (map[string]string, error)
	// Count returns the number of pending records.
	Count(ctx context.Context) (int, error)
}

// NewTempID returns a device-unique temporary id: a time-ordered UUIDv7 (millisecond
// timestamp plus random bits) behind TempIDPrefix.
func NewTempID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.Must(uuid.NewV4())
	}
	return TempIDPrefix + id.String()
}

// IsTempID reports whether id was minted by NewTempID.
func IsTempID(id string) bool {
	return len(id) > len(TempIDPrefix) && id[:len(TempIDPrefix)] == TempIDPrefix
}
