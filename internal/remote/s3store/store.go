// Package s3store keeps the remote collections in an S3-compatible bucket (AWS S3 or MinIO).
// Each document is one JSON object at <prefix>/<owner>/<collection>/<id>.json.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/remote"
)

// Config holds construction parameters.
type Config struct {
	Bucket string
	Prefix string
	// Owner is stamped into every created document and scopes Get.
	Owner           string
	Region          string // default us-east-1
	Endpoint        string // optional, e.g. MinIO
	AccessKeyID     string // optional, falls back to the default credential chain
	SecretAccessKey string
	PathStyle       bool
	// MaxAttempts overrides the SDK retry count when positive.
	MaxAttempts int
	HTTPClient  *http.Client
}

// Store implements remote.Store on S3.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
	owner  string
	now    func() time.Time
}

var _ remote.Store = (*Store)(nil)

// object is the stored JSON body.
type object struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	OwnerID    string         `json:"ownerId"`
	CreatedAt  time.Time      `json:"createdAt"`
	Fields     map[string]any `json:"fields"`
}

// New creates a Store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	if cfg.Owner == "" {
		return nil, errors.New("s3 owner required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
		if cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = cfg.MaxAttempts
		}
		// MinIO rejects trailing checksums on unsigned payloads
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		owner:  cfg.Owner,
		now:    time.Now,
	}, nil
}

// Ping checks that the bucket is reachable with the configured credentials.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return classify("head bucket", err)
	}
	return nil
}

func (s *Store) dir(owner, collection string) string {
	return path.Join(s.prefix, owner, collection) + "/"
}

func (s *Store) key(owner, collection, id string) string {
	return s.dir(owner, collection) + id + ".json"
}

func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	delete(body, "id")
	body["ownerId"] = s.owner
	if err := remote.ValidateFields(collection, body); err != nil {
		return "", err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("%w: id: %v", errs.ErrRemoteUnavailable, err)
	}
	obj := object{ID: id.String(), Collection: collection, OwnerID: s.owner, CreatedAt: s.now().UTC(), Fields: body}
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("%w: encode: %v", errs.ErrRemoteRejected, err)
	}
	key := s.key(s.owner, collection, obj.ID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", classify("put "+key, err)
	}
	return obj.ID, nil
}

// Query lists ownerID's documents of collection, oldest first.
func (s *Store) Query(ctx context.Context, collection, ownerID string) ([]model.Document, error) {
	prefix := s.dir(ownerID, collection)
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, classify("list "+prefix, err)
		}
		for _, o := range out.Contents {
			if k := aws.ToString(o.Key); strings.HasSuffix(k, ".json") {
				keys = append(keys, k)
			}
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}

	docs := make([]model.Document, 0, len(keys))
	for _, k := range keys {
		doc, err := s.fetch(ctx, k)
		if errors.Is(err, errs.ErrNotFound) {
			continue // deleted between list and get
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// Get returns one of the configured owner's documents.
func (s *Store) Get(ctx context.Context, collection, id string) (model.Document, error) {
	if id == "" || strings.ContainsAny(id, "/\\") {
		return model.Document{}, fmt.Errorf("get %q: %w", id, errs.ErrNotFound)
	}
	return s.fetch(ctx, s.key(s.owner, collection, id))
}

func (s *Store) fetch(ctx context.Context, key string) (model.Document, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return model.Document{}, classify("get "+key, err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: read %s: %v", errs.ErrRemoteUnavailable, key, err)
	}
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		// surfaced as a document without fields, which the decode step skips
		return model.Document{ID: strings.TrimSuffix(path.Base(key), ".json")}, nil
	}
	return model.Document{
		ID:         obj.ID,
		Collection: obj.Collection,
		OwnerID:    obj.OwnerID,
		Fields:     obj.Fields,
		CreatedAt:  obj.CreatedAt,
	}, nil
}

// classify maps SDK failures onto the remote.Store error contract by HTTP status.
func classify(op string, err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		code := re.HTTPStatusCode()
		switch {
		case code == http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, errs.ErrNotFound)
		case code >= 400 && code < 500 && !retryable4xx(code):
			return fmt.Errorf("%w: %s: status %d", errs.ErrRemoteRejected, op, code)
		}
	}
	return fmt.Errorf("%w: %s: %v", errs.ErrRemoteUnavailable, op, err)
}

// retryable4xx reports client errors that clear up on their own or after re-authentication.
func retryable4xx(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return false
}
