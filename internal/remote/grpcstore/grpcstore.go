// Package grpcstore implements remote.Store over the medizone.v1.RemoteStore gRPC service.
package grpcstore

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/remote"
	"github.com/and161185/medizone/internal/rpc"
)

// DefaultCallTimeout bounds a single RPC when Options.CallTimeout is zero.
const DefaultCallTimeout = 10 * time.Second

// Options configure Dial.
type Options struct {
	// Token is sent as "authorization: Bearer <Token>" on every call.
	Token string
	// CACert is a PEM file with the server's CA; empty means system roots.
	CACert string
	// SkipVerify disables certificate verification (dev only).
	SkipVerify bool
	// Plaintext dials without TLS.
	Plaintext   bool
	CallTimeout time.Duration
	// DialOptions are appended last, e.g. a bufconn dialer in tests.
	DialOptions []grpc.DialOption
}

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

// LoadTLS builds client transport credentials.
func LoadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // dev flag
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}), nil
}

// Store is a remote.Store backed by a gRPC connection.
type Store struct {
	cc      *grpc.ClientConn
	client  *rpc.RemoteStoreClient
	timeout time.Duration
}

var _ remote.Store = (*Store)(nil)

// Dial creates a client for addr. The connection is established lazily.
func Dial(addr string, opts Options) (*Store, error) {
	var creds credentials.TransportCredentials
	if opts.Plaintext {
		creds = insecure.NewCredentials()
	} else {
		c, err := LoadTLS(opts.CACert, opts.SkipVerify)
		if err != nil {
			return nil, fmt.Errorf("tls: %w", err)
		}
		creds = c
	}
	dopts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if opts.Token != "" {
		dopts = append(dopts, grpc.WithPerRPCCredentials(bearerCreds{token: opts.Token, secure: !opts.Plaintext}))
	}
	dopts = append(dopts, opts.DialOptions...)

	cc, err := grpc.NewClient(addr, dopts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Store{cc: cc, client: rpc.NewRemoteStoreClient(cc), timeout: timeout}, nil
}

// Conn exposes the connection, e.g. for health probing.
func (s *Store) Conn() *grpc.ClientConn { return s.cc }

// Close closes the connection.
func (s *Store) Close() error { return s.cc.Close() }

func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	req, err := rpc.NewCreateRequest(collection, fields)
	if err != nil {
		return "", fmt.Errorf("%w: encode %s: %v", errs.ErrRemoteRejected, collection, err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.client.Create(ctx, req)
	if err != nil {
		return "", classify("create", err)
	}
	if resp.GetValue() == "" {
		return "", fmt.Errorf("%w: create: empty id in response", errs.ErrRemoteUnavailable)
	}
	return resp.GetValue(), nil
}

func (s *Store) Query(ctx context.Context, collection, ownerID string) ([]model.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.client.Query(ctx, rpc.NewQueryRequest(collection))
	if err != nil {
		return nil, classify("query", err)
	}
	docs, err := rpc.DocumentsFromList(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", errs.ErrRemoteUnavailable, err)
	}
	// the server scopes results to the token's owner; ownerID guards against a token mismatch
	out := docs[:0]
	for _, d := range docs {
		if ownerID == "" || d.OwnerID == "" || d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (model.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.client.Get(ctx, rpc.NewGetRequest(collection, id))
	if err != nil {
		return model.Document{}, classify("get", err)
	}
	doc, err := rpc.DocumentFromStruct(resp)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: get: %v", errs.ErrRemoteUnavailable, err)
	}
	return doc, nil
}

// classify maps gRPC status codes onto the remote.Store error contract.
func classify(op string, err error) error {
	st := status.Convert(err)
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange, codes.AlreadyExists:
		return fmt.Errorf("%w: %s: %s", errs.ErrRemoteRejected, op, st.Message())
	default:
		return fmt.Errorf("%w: %s: %s: %s", errs.ErrRemoteUnavailable, op, st.Code(), st.Message())
	}
}
