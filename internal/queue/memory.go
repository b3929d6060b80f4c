package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/and161185/medizone/internal/model"
)

// Memory is a non-durable Queue. It is the fallback when the local database cannot be opened.
type Memory struct {
	mu      sync.Mutex
	items   []model.PendingRecord
	aliases map[string]string
}

var _ Queue = (*Memory)(nil)

// NewMemory creates an empty in-memory queue.
func NewMemory() *Memory {
	return &Memory{aliases: make(map[string]string)}
}

func (q *Memory) Enqueue(_ context.Context, collection string, payload json.RawMessage) (model.PendingRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec := model.PendingRecord{
		TempID:     NewTempID(),
		Collection: collection,
		Payload:    append(json.RawMessage(nil), payload...),
		CreatedAt:  time.Now().UTC(),
	}
	q.items = append(q.items, rec)
	return rec, nil
}

func (q *Memory) ListPending(context.Context) ([]model.PendingRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.PendingRecord(nil), q.items...), nil
}

func (q *Memory) Remove(_ context.Context, tempID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(tempID)
	return nil
}

func (q *Memory) Promote(_ context.Context, tempID, permanentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(tempID)
	q.aliases[tempID] = permanentID
	return nil
}

func (q *Memory) Aliases(context.Context) (map[string]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]string, len(q.aliases))
	for k, v := range q.aliases {
		out[k] = v
	}
	return out, nil
}

func (q *Memory) Count(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *Memory) removeLocked(tempID string) {
	for i := range q.items {
		if q.items[i].TempID == tempID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}
