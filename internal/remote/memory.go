package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
)

// CreateHook intercepts Memory.Create. A non-nil error fails the call; persist=true
// stores the document anyway, which models a timeout whose server-side effect happened.
type CreateHook func(collection string, fields map[string]any) (persist bool, err error)

// Memory is an in-process Store used as a stub and in tests.
type Memory struct {
	mu    sync.Mutex
	docs  map[string]map[string]model.Document
	hook  CreateHook
	calls []map[string]any
	down  bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]model.Document)}
}

// SetCreateHook installs or clears (nil) a Create interceptor.
func (m *Memory) SetCreateHook(h CreateHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = h
}

// SetDown makes every call fail with errs.ErrRemoteUnavailable while true.
func (m *Memory) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// CreateCalls returns the fields of every Create call, in order.
func (m *Memory) CreateCalls() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.calls...)
}

// Len returns the number of stored documents in a collection.
func (m *Memory) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}

func (m *Memory) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrRemoteUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, copyFields(fields))
	if m.down {
		return "", fmt.Errorf("%w: store is down", errs.ErrRemoteUnavailable)
	}
	persist, hookErr := true, error(nil)
	if m.hook != nil {
		persist, hookErr = m.hook(collection, fields)
	}
	if hookErr == nil {
		if err := ValidateFields(collection, fields); err != nil {
			return "", err
		}
	}
	var id string
	if persist || hookErr == nil {
		id = uuid.Must(uuid.NewV4()).String()
		owner, _ := fields["ownerId"].(string)
		if m.docs[collection] == nil {
			m.docs[collection] = make(map[string]model.Document)
		}
		m.docs[collection][id] = model.Document{
			ID:         id,
			Collection: collection,
			OwnerID:    owner,
			Fields:     copyFields(fields),
			CreatedAt:  time.Now().UTC(),
		}
	}
	if hookErr != nil {
		return "", hookErr
	}
	return id, nil
}

func (m *Memory) Query(_ context.Context, collection, ownerID string) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, fmt.Errorf("%w: store is down", errs.ErrRemoteUnavailable)
	}
	var out []model.Document
	for _, d := range m.docs[collection] {
		if d.OwnerID == ownerID {
			d.Fields = copyFields(d.Fields)
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return model.Document{}, fmt.Errorf("%w: store is down", errs.ErrRemoteUnavailable)
	}
	d, ok := m.docs[collection][id]
	if !ok {
		return model.Document{}, errs.ErrNotFound
	}
	d.Fields = copyFields(d.Fields)
	return d, nil
}

// Put stores a document verbatim, bypassing validation. Tests use it to seed malformed data.
func (m *Memory) Put(doc model.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[doc.Collection] == nil {
		m.docs[doc.Collection] = make(map[string]model.Document)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	m.docs[doc.Collection][doc.ID] = doc
}

func copyFields(f map[string]any) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
