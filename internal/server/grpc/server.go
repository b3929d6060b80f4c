// Package grpcserver exposes the remote document store over gRPC.
package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/rpc"
	"github.com/and161185/medizone/internal/service"
)

// Server wires the document service into gRPC handlers.
type Server struct {
	docs service.DocumentService
}

var _ rpc.RemoteStoreServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(docs service.DocumentService) *Server {
	return &Server{docs: docs}
}

// Create stores a new document for the authenticated owner.
func (s *Server) Create(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	owner, ok := OwnerFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	coll, fields, err := rpc.ParseCreateRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	doc, err := s.docs.Create(ctx, owner, coll, fields)
	if err != nil {
		return nil, toStatus("create", err)
	}
	return wrapperspb.String(doc.ID), nil
}

// Query lists the owner's documents of a collection.
func (s *Server) Query(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	owner, ok := OwnerFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	coll, err := rpc.ParseQueryRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	docs, err := s.docs.Query(ctx, owner, coll)
	if err != nil {
		return nil, toStatus("query", err)
	}
	out, err := rpc.DocumentsToList(docs)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return out, nil
}

// Get returns a single document.
func (s *Server) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, ok := OwnerFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	coll, id, err := rpc.ParseGetRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	doc, err := s.docs.Get(ctx, owner, coll, id)
	if err != nil {
		return nil, toStatus("get", err)
	}
	out, err := rpc.DocumentToStruct(doc)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return out, nil
}

// toStatus maps service sentinels to gRPC codes. Clients treat InvalidArgument and
// AlreadyExists as permanent and everything else but NotFound as retryable.
func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrConflict):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "no auth")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}
