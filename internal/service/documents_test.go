package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/repository"
)

type fakeDocRepo struct {
	insIn  model.Document
	insErr error

	listInColl  string
	listInOwner string
	listOut     []model.Document
	listErr     error

	getInColl  string
	getInOwner string
	getInID    uuid.UUID
	getOut     model.Document
	getErr     error
}

var _ repository.DocumentRepository = (*fakeDocRepo)(nil)

func (f *fakeDocRepo) Insert(_ context.Context, doc model.Document) (model.Document, error) {
	f.insIn = doc
	doc.CreatedAt = time.Unix(1, 0)
	return doc, f.insErr
}

func (f *fakeDocRepo) List(_ context.Context, collection, ownerID string) ([]model.Document, error) {
	f.listInColl, f.listInOwner = collection, ownerID
	return append([]model.Document(nil), f.listOut...), f.listErr
}

func (f *fakeDocRepo) Get(_ context.Context, collection, ownerID string, id uuid.UUID) (model.Document, error) {
	f.getInColl, f.getInOwner, f.getInID = collection, ownerID, id
	return f.getOut, f.getErr
}

func TestDocumentService_Create_OK(t *testing.T) {
	t.Parallel()
	repo := &fakeDocRepo{}
	s := NewDocumentService(repo)

	doc, err := s.Create(context.Background(), "u1", model.CollectionMedications, map[string]any{
		"id": "temp_x", "name": "Ibuprofen", "dosageForm": "tablet", "ownerId": "someone-else",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := uuid.FromString(doc.ID); err != nil {
		t.Fatalf("id is not a uuid: %q", doc.ID)
	}
	if repo.insIn.OwnerID != "u1" || repo.insIn.Fields["ownerId"] != "u1" {
		t.Fatalf("owner not stamped: %+v", repo.insIn)
	}
	if _, ok := repo.insIn.Fields["id"]; ok {
		t.Fatalf("client id leaked into body")
	}
	if doc.CreatedAt.IsZero() {
		t.Fatalf("created_at not propagated")
	}
}

func TestDocumentService_Create_Validation(t *testing.T) {
	t.Parallel()
	s := NewDocumentService(&fakeDocRepo{})
	ctx := context.Background()

	cases := []struct {
		name       string
		owner      string
		collection string
		fields     map[string]any
	}{
		{"no owner", "", model.CollectionMedications, map[string]any{"name": "x", "dosageForm": "tablet"}},
		{"unknown collection", "u1", "users", map[string]any{}},
		{"nil fields", "u1", model.CollectionIntakes, nil},
		{"schema mismatch", "u1", model.CollectionIntakes, map[string]any{"medicationId": "m", "dose": "two"}},
		{"negative dose", "u1", model.CollectionIntakes, map[string]any{"medicationId": "m", "dose": -5.0}},
	}
	for _, tc := range cases {
		if _, err := s.Create(ctx, tc.owner, tc.collection, tc.fields); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("%s: want ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestDocumentService_Create_RepoError(t *testing.T) {
	t.Parallel()
	boom := errors.New("db down")
	s := NewDocumentService(&fakeDocRepo{insErr: boom})
	_, err := s.Create(context.Background(), "u1", model.CollectionIntakes, map[string]any{"medicationId": "m"})
	if !errors.Is(err, boom) {
		t.Fatalf("want repo error, got %v", err)
	}
}

func TestDocumentService_Query(t *testing.T) {
	t.Parallel()
	repo := &fakeDocRepo{listOut: []model.Document{{ID: "a"}, {ID: "b"}}}
	s := NewDocumentService(repo)

	out, err := s.Query(context.Background(), "u1", model.CollectionIntakes)
	if err != nil || len(out) != 2 {
		t.Fatalf("Query: out=%v err=%v", out, err)
	}
	if repo.listInColl != model.CollectionIntakes || repo.listInOwner != "u1" {
		t.Fatalf("repo got %q/%q", repo.listInColl, repo.listInOwner)
	}
	if _, err := s.Query(context.Background(), "u1", "nope"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestDocumentService_Get(t *testing.T) {
	t.Parallel()
	id := uuid.Must(uuid.NewV4())
	repo := &fakeDocRepo{getOut: model.Document{ID: id.String()}}
	s := NewDocumentService(repo)

	doc, err := s.Get(context.Background(), "u1", model.CollectionMedications, id.String())
	if err != nil || doc.ID != id.String() {
		t.Fatalf("Get: doc=%v err=%v", doc, err)
	}
	if repo.getInID != id || repo.getInOwner != "u1" {
		t.Fatalf("repo got id=%v owner=%q", repo.getInID, repo.getInOwner)
	}

	for _, bad := range []string{"temp_123", "", uuid.Nil.String()} {
		if _, err := s.Get(context.Background(), "u1", model.CollectionMedications, bad); !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("id %q: want ErrNotFound, got %v", bad, err)
		}
	}
}
