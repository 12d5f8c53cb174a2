package snapshotstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
	"github.com/tborlee/points-verts-web/pkg/util"
)

// ObjectStoreOptions configures the S3-compatible backend.
type ObjectStoreOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
}

// ObjectStore persists one JSON object per day in an S3-compatible bucket.
// Buckets have no per-object TTL here, so the deadline travels in the payload.
type ObjectStore struct {
	client       *minio.Client
	bucket       string
	prefix       string
	now          func() time.Time
	logger       *slog.Logger
	bucketExists atomic.Bool
}

// NewObjectStore constructs the storage adapter.
func NewObjectStore(opts ObjectStoreOptions, logger *slog.Logger) (*ObjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}
	client, err := minio.New(sanitizeEndpoint(opts.Endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       strings.HasPrefix(strings.ToLower(strings.TrimSpace(opts.Endpoint)), "https"),
		Region:       opts.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}
	prefix := strings.Trim(opts.Prefix, "/")
	if prefix == "" {
		prefix = "snapshots"
	}
	return &ObjectStore{
		client: client,
		bucket: opts.Bucket,
		prefix: prefix,
		now:    util.NowUTC,
		logger: logger.With("component", "snapshotstore.object"),
	}, nil
}

// Load implements walks.SnapshotStore.
func (s *ObjectStore) Load(ctx context.Context, date string) (walks.CachedSnapshot, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(date), minio.GetObjectOptions{})
	if err != nil {
		return s.missOrError(err)
	}
	defer obj.Close()
	payload, err := io.ReadAll(obj)
	if err != nil {
		return s.missOrError(err)
	}
	env, err := decode(payload)
	if err != nil {
		return walks.CachedSnapshot{}, false, err
	}
	if hasExpired(env.ExpiresAt, s.now()) {
		return walks.CachedSnapshot{}, false, nil
	}
	return env.Snapshot, true, nil
}

// Save implements walks.SnapshotStore.
func (s *ObjectStore) Save(ctx context.Context, snapshot walks.CachedSnapshot, retention time.Duration) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	payload, err := encode(snapshot, expiry(s.now(), retention))
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.objectKey(snapshot.Date), bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType:      "application/json",
		DisableMultipart: true,
	})
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", snapshot.Date, err)
	}
	s.logger.Debug("snapshot stored", "date", snapshot.Date, "bytes", len(payload))
	return nil
}

func (s *ObjectStore) ensureBucket(ctx context.Context) error {
	if s.bucketExists.Load() {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		s.bucketExists.Store(true)
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.bucketExists.Store(true)
	return nil
}

func (s *ObjectStore) missOrError(err error) (walks.CachedSnapshot, bool, error) {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return walks.CachedSnapshot{}, false, nil
	}
	return walks.CachedSnapshot{}, false, err
}

func (s *ObjectStore) objectKey(date string) string {
	return path.Join(s.prefix, date+".json")
}

// sanitizeEndpoint strips scheme and path so minio.New accepts the host.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if idx := strings.Index(raw, "/"); idx >= 0 {
		raw = raw[:idx]
	}
	return raw
}

var _ walks.SnapshotStore = (*ObjectStore)(nil)
