package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
)

const defaultPresignTTL = 15 * time.Minute

var ErrInvalidObject = errors.New("invalid s3 object")

// Storage writes snapshot objects into a single bucket.
type Storage struct {
	client *minio.Client
	bucket string

	mu      sync.Mutex
	ensured bool
}

func NewStorage(client *minio.Client, bucket string) *Storage {
	return &Storage{
		client: client,
		bucket: strings.TrimSpace(bucket),
	}
}

func (s *Storage) Bucket() string {
	return s.bucket
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check s3 bucket %q: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create s3 bucket %q: %w", s.bucket, err)
		}
	}
	s.ensured = true
	return nil
}

// PutJSON uploads body under key and returns the stored size.
func (s *Storage) PutJSON(ctx context.Context, key string, body []byte) (int64, error) {
	if s.client == nil {
		return 0, fmt.Errorf("s3 client is nil")
	}
	if strings.TrimSpace(key) == "" || len(body) == 0 {
		return 0, ErrInvalidObject
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return 0, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return 0, fmt.Errorf("put object to s3: %w", err)
	}

	return info.Size, nil
}

func (s *Storage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if key == "" {
		return "", ErrInvalidObject
	}
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}

	return presigned.String(), nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if s.client == nil || key == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
