package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/scenedex/scenedex-agent/internal/cloud"
)

const defaultPresignTTL = 10 * time.Minute

// ObjectStoreConfig holds the connection settings for an S3-compatible
// export target.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ObjectStore pushes embedding exports into a bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

func NewObjectStore(cfg ObjectStoreConfig, logger *slog.Logger) (*ObjectStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("created export bucket", "bucket", s.bucket)
	return nil
}

// PutNDJSON streams an embedding export into the bucket under key. The
// object is produced through a pipe so large segment sets never sit in
// memory twice.
func (s *ObjectStore) PutNDJSON(ctx context.Context, key, videoID, model string, segments []cloud.Segment) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(WriteNDJSON(pw, videoID, model, segments))
	}()

	_, err := s.client.PutObject(ctx, s.bucket, key, pr, -1,
		minio.PutObjectOptions{ContentType: "application/x-ndjson"})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}

	s.logger.Info("exported embeddings to object store",
		"bucket", s.bucket,
		"key", key,
		"segments", len(segments),
	)
	return nil
}

// PresignGet returns a time-limited download URL for an exported object.
func (s *ObjectStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}
