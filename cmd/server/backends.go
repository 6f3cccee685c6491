package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/projectshelf/internal/config"
	"github.com/sakif/projectshelf/internal/media"
	mongoRepo "github.com/sakif/projectshelf/internal/repository/mongo"
	sqliteRepo "github.com/sakif/projectshelf/internal/repository/sqlite"
	"github.com/sakif/projectshelf/internal/server"
)

const connectTimeout = 10 * time.Second

// openedStore is a server.Store plus the function that releases it.
type openedStore struct {
	server.Store
	close func()
}

// openStore connects to the configured backend and brings its schema up to
// date.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*openedStore, error) {
	switch cfg.DBDriver {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		store, err := mongoRepo.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		logger.Info("mongo store ready", slog.String("database", cfg.MongoDatabase))

		return &openedStore{
			Store: server.Store{
				Users:     store.Users(),
				Projects:  store.Projects(),
				Analytics: store.Analytics(),
			},
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
				defer cancel()
				if err := store.Close(closeCtx); err != nil {
					logger.Error("closing mongo", slog.String("error", err.Error()))
				}
			},
		}, nil

	default:
		// The data directory is created on demand (like `mkdir -p`).
		if dir := filepath.Dir(cfg.DBPath); dir != "." && cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}

		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		logger.Info("sqlite store ready", slog.String("path", cfg.DBPath))

		return &openedStore{
			Store: server.Store{
				Users:     db.Users(),
				Projects:  db.Projects(),
				Analytics: db.Analytics(),
			},
			close: func() {
				if err := db.Close(); err != nil {
					logger.Error("closing sqlite", slog.String("error", err.Error()))
				}
			},
		}, nil
	}
}

// openMedia builds the configured asset host. The returned host is nil for
// MEDIA_BACKEND=none.
func openMedia(ctx context.Context, cfg *config.Config) (media.Host, func(), error) {
	noop := func() {}

	switch cfg.MediaBackend {
	case "cloudinary":
		host, err := media.NewCloudinary(media.CloudinaryConfig{
			CloudName: cfg.CloudinaryName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.MediaFolder,
		})
		if err != nil {
			return nil, noop, err
		}
		return host, noop, nil

	case "minio":
		host, err := media.NewMinio(media.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
			Folder:    cfg.MediaFolder,
		})
		if err != nil {
			return nil, noop, err
		}
		bucketCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := host.EnsureBucket(bucketCtx); err != nil {
			return nil, noop, fmt.Errorf("minio bucket: %w", err)
		}
		return host, noop, nil

	case "gcs":
		host, err := media.NewGCS(ctx, media.GCSConfig{
			Bucket:          cfg.GCSBucket,
			ProjectID:       cfg.GCSProjectID,
			CredentialsFile: cfg.GCSCredentialsFile,
			PublicURL:       cfg.GCSPublicURL,
			Folder:          cfg.MediaFolder,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("gcs client: %w", err)
		}
		bucketCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := host.EnsureBucket(bucketCtx); err != nil {
			_ = host.Close()
			return nil, noop, fmt.Errorf("gcs bucket: %w", err)
		}
		return host, func() { _ = host.Close() }, nil

	default:
		return nil, noop, nil
	}
}

// openRedis connects to REDIS_URL. No URL means no rate limiting; an
// unreachable Redis is logged and the limiter fails open at request time.
func openRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set, auth rate limiting disabled")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, rate limiter will fail open",
			slog.String("error", err.Error()),
		)
	}
	return rdb, nil
}
