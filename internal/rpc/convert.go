package rpc

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/medizone/internal/model"
)

// Message keys.
const (
	keyCollection = "collection"
	keyFields     = "fields"
	keyID         = "id"
	keyOwner      = "ownerId"
	keyCreatedAt  = "createdAt"
)

// ErrMalformed reports a request or response that does not have the expected shape.
var ErrMalformed = errors.New("malformed message")

// NewCreateRequest builds the Create request.
func NewCreateRequest(collection string, fields map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{keyCollection: collection, keyFields: fields})
}

// NewQueryRequest builds the Query request.
func NewQueryRequest(collection string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{keyCollection: structpb.NewStringValue(collection)}}
}

// NewGetRequest builds the Get request.
func NewGetRequest(collection, id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyCollection: structpb.NewStringValue(collection),
		keyID:         structpb.NewStringValue(id),
	}}
}

// ParseCreateRequest extracts collection and fields.
func ParseCreateRequest(req *structpb.Struct) (string, map[string]any, error) {
	coll, err := stringField(req, keyCollection)
	if err != nil {
		return "", nil, err
	}
	v, ok := req.GetFields()[keyFields]
	if !ok || v.GetStructValue() == nil {
		return "", nil, fmt.Errorf("%w: %q must be an object", ErrMalformed, keyFields)
	}
	return coll, v.GetStructValue().AsMap(), nil
}

// ParseQueryRequest extracts the collection.
func ParseQueryRequest(req *structpb.Struct) (string, error) {
	return stringField(req, keyCollection)
}

// ParseGetRequest extracts collection and id.
func ParseGetRequest(req *structpb.Struct) (string, string, error) {
	coll, err := stringField(req, keyCollection)
	if err != nil {
		return "", "", err
	}
	id, err := stringField(req, keyID)
	if err != nil {
		return "", "", err
	}
	return coll, id, nil
}

func stringField(s *structpb.Struct, key string) (string, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return "", fmt.Errorf("%w: %q is required", ErrMalformed, key)
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || str.StringValue == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrMalformed, key)
	}
	return str.StringValue, nil
}

// DocumentToStruct encodes a document for the wire.
func DocumentToStruct(doc model.Document) (*structpb.Struct, error) {
	fields, err := structpb.NewStruct(doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		keyID:         structpb.NewStringValue(doc.ID),
		keyCollection: structpb.NewStringValue(doc.Collection),
		keyOwner:      structpb.NewStringValue(doc.OwnerID),
		keyFields:     structpb.NewStructValue(fields),
	}}
	if !doc.CreatedAt.IsZero() {
		out.Fields[keyCreatedAt] = structpb.NewStringValue(doc.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
	return out, nil
}

// DocumentFromStruct decodes a wire document.
func DocumentFromStruct(s *structpb.Struct) (model.Document, error) {
	id, err := stringField(s, keyID)
	if err != nil {
		return model.Document{}, err
	}
	doc := model.Document{ID: id}
	doc.Collection, _ = stringField(s, keyCollection)
	doc.OwnerID, _ = stringField(s, keyOwner)
	if ts, err := stringField(s, keyCreatedAt); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			doc.CreatedAt = t
		}
	}
	f := s.GetFields()[keyFields].GetStructValue()
	if f == nil {
		return model.Document{}, fmt.Errorf("%w: document %s has no fields", ErrMalformed, id)
	}
	doc.Fields = f.AsMap()
	return doc, nil
}

// DocumentsToList encodes documents for a Query response.
func DocumentsToList(docs []model.Document) (*structpb.ListValue, error) {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(docs))}
	for _, d := range docs {
		s, err := DocumentToStruct(d)
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, structpb.NewStructValue(s))
	}
	return out, nil
}

// DocumentsFromList decodes a Query response.
func DocumentsFromList(l *structpb.ListValue) ([]model.Document, error) {
	out := make([]model.Document, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("%w: item %d is not an object", ErrMalformed, i)
		}
		d, err := DocumentFromStruct(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
