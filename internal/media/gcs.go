package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
	// PublicURL defaults to https://storage.googleapis.com/<bucket>.
	PublicURL string
	Folder    string
}

// GCS stores assets in a Google Cloud Storage bucket. Public ids are object
// names.
type GCS struct {
	client    *storage.Client
	bucket    string
	projectID string
	publicURL string
	folder    string
}

func NewGCS(ctx context.Context, cfg GCSConfig, opts ...option.ClientOption) (*GCS, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	base := cfg.PublicURL
	if base == "" {
		base = "https://storage.googleapis.com/" + cfg.Bucket
	}
	folder := cfg.Folder
	if folder == "" {
		folder = DefaultFolder
	}

	return &GCS{
		client:    client,
		bucket:    cfg.Bucket,
		projectID: cfg.ProjectID,
		publicURL: base,
		folder:    folder,
	}, nil
}

func (g *GCS) Name() string { return "gcs" }

// EnsureBucket ensures the configured bucket exists.
func (g *GCS) EnsureBucket(ctx context.Context) error {
	_, err := g.client.Bucket(g.bucket).Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if strings.TrimSpace(g.projectID) == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return g.client.Bucket(g.bucket).Create(ctx, g.projectID, nil)
}

func (g *GCS) Upload(ctx context.Context, in Upload) (*Asset, error) {
	key := objectKey(g.folder, in.Filename)
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if in.ContentType != "" {
		w.ContentType = in.ContentType
	}
	if _, err := io.Copy(w, in.Body); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gcs write %s: %w", key, err)
	}
	return &Asset{
		URL:          publicURL(g.publicURL, key),
		PublicID:     key,
		ResourceType: ResourceTypeFor(in.ContentType),
	}, nil
}

func (g *GCS) Delete(ctx context.Context, publicID, _ string) error {
	err := g.client.Bucket(g.bucket).Object(publicID).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s does not exist", ErrNotDeleted, publicID)
	}
	if err != nil {
		return fmt.Errorf("gcs delete %s: %w", publicID, err)
	}
	return nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}
