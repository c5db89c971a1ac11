package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/poiesic/docfind/core"
	"github.com/poiesic/docfind/storage"
)

// Config holds connection settings for an S3-compatible object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// Prefix is prepended to every object name, allowing several services
	// to share one bucket.
	Prefix string
}

// SnapshotStore implements storage.SnapshotStore over an S3-compatible
// object store. Each snapshot is one object; a put fully replaces the
// previous version.
type SnapshotStore struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore connects to the object store and ensures the
// configured bucket exists.
func NewSnapshotStore(ctx context.Context, cfg Config) (*SnapshotStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to object store: %w", err)
	}

	s := &SnapshotStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: slog.Default().With("component", "minio-snapshots", "bucket", cfg.Bucket),
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureBucket creates the bucket if it does not already exist.
func (s *SnapshotStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: checking bucket: %w", core.ErrPersistence, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("%w: creating bucket: %w", core.ErrPersistence, err)
	}
	s.logger.Info("created snapshot bucket")
	return nil
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (s *SnapshotStore) Close() error {
	return nil
}

// PutSnapshot stores data under name, replacing any previous snapshot.
func (s *SnapshotStore) PutSnapshot(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(name),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("%w: storing snapshot %q: %w", core.ErrPersistence, name, err)
	}
	s.logger.Debug("snapshot stored", "name", name, "bytes", len(data))
	return nil
}

// GetSnapshot retrieves the snapshot stored under name.
func (s *SnapshotStore) GetSnapshot(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.classify("reading", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.classify("reading", name, err)
	}
	return data, nil
}

// HasSnapshot reports whether a snapshot exists under name.
func (s *SnapshotStore) HasSnapshot(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.objectName(name), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: checking snapshot %q: %w", core.ErrPersistence, name, err)
	}
	return true, nil
}

func (s *SnapshotStore) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// classify maps object-store errors onto the storage error taxonomy.
func (s *SnapshotStore) classify(op, name string, err error) error {
	if isNotFound(err) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%w: %s snapshot %q: %w", core.ErrPersistence, op, name, err)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
