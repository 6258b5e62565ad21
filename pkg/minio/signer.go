package minio

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"taskora/pkg/config"

	"github.com/minio/minio-go/v7"
)

//go:generate mockgen -destination=mock/signer.go -package=mock taskora/pkg/minio Signer

// Signer mints time-limited URLs for objects in the proof bucket.
type Signer interface {
	SignReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	SignUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type presigner interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error)
}

type signer struct {
	client presigner
	bucket string
}

func NewSigner(client *minio.Client, cfg *config.Config) Signer {
	return &signer{
		client: client,
		bucket: cfg.Minio.BucketName,
	}
}

func (s *signer) SignReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *signer) SignUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return u.String(), nil
}
