// AngelaMos | 2026
// object_store.go

package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/siliconforge/eda-backend/internal/config"
)

// ObjectStore is the blob-store boundary: uploaded project files and
// generated job artifacts live behind it.
type ObjectStore interface {
	Put(
		ctx context.Context,
		key string,
		reader io.Reader,
		size int64,
		contentType string,
	) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Ping(ctx context.Context) error
}

type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(
	ctx context.Context,
	cfg config.StorageConfig,
) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	store := &MinioStore{client: client, bucket: cfg.Bucket}

	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("create bucket %q: %w", s.bucket, err)
		}
	}

	return nil
}

func (s *MinioStore) Put(
	ctx context.Context,
	key string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}

	return nil
}

func (s *MinioStore) Get(
	ctx context.Context,
	key string,
) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}

	// GetObject is lazy; stat so missing keys fail here, not on first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close() //nolint:errcheck // cleanup on stat failure
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}

	return obj, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}

	return nil
}

func (s *MinioStore) PresignGet(
	ctx context.Context,
	key string,
	expiry time.Duration,
) (string, error) {
	presigned, err := s.client.PresignedGetObject(
		ctx,
		s.bucket,
		key,
		expiry,
		url.Values{},
	)
	if err != nil {
		return "", fmt.Errorf("presign object %q: %w", key, err)
	}

	return presigned.String(), nil
}

func (s *MinioStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.BucketExists(pingCtx, s.bucket); err != nil {
		return fmt.Errorf("object store ping failed: %w", err)
	}

	return nil
}
