package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base under which objects are publicly readable,
	// e.g. a CDN in front of the bucket. Defaults to the endpoint/bucket URL.
	PublicURL string
	Folder    string
}

// Minio stores assets in an S3-compatible bucket. Public ids are object keys.
type Minio struct {
	client    *minio.Client
	bucket    string
	publicURL string
	folder    string
}

func NewMinio(cfg MinioConfig) (*Minio, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("minio access key and secret key are required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	base := cfg.PublicURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	folder := cfg.Folder
	if folder == "" {
		folder = DefaultFolder
	}

	return &Minio{client: client, bucket: cfg.Bucket, publicURL: base, folder: folder}, nil
}

func (m *Minio) Name() string { return "minio" }

// EnsureBucket ensures the configured bucket exists.
func (m *Minio) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
}

func (m *Minio) Upload(ctx context.Context, in Upload) (*Asset, error) {
	key := objectKey(m.folder, in.Filename)
	_, err := m.client.PutObject(ctx, m.bucket, key, in.Body, in.Size, minio.PutObjectOptions{
		ContentType: in.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("minio put %s: %w", key, err)
	}
	return &Asset{
		URL:          publicURL(m.publicURL, key),
		PublicID:     key,
		ResourceType: ResourceTypeFor(in.ContentType),
	}, nil
}

// Delete removes the object. The resource type is irrelevant for a bucket.
func (m *Minio) Delete(ctx context.Context, publicID, _ string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove %s: %w", publicID, err)
	}
	return nil
}
