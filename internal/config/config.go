// Package config provides application configuration loading and validation.
//
// Values come, lowest precedence first, from built-in defaults, an optional
// config.yml in the working directory, a .env file (development only) and
// the process environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DevJWTSecret is only acceptable outside production.
	DevJWTSecret = "projectshelf-dev-secret-change-me"

	minProductionSecret = 32
)

// Config holds every setting the server reads at startup.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBDriver      string `mapstructure:"DB_DRIVER"`
	DBPath        string `mapstructure:"DB_PATH"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	JWTSecret  string        `mapstructure:"JWT_SECRET"`
	TokenTTL   time.Duration `mapstructure:"TOKEN_TTL"`
	BcryptCost int           `mapstructure:"BCRYPT_COST"`
	ClientURL  string        `mapstructure:"CLIENT_URL"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `mapstructure:"GOOGLE_CALLBACK_URL"`

	MediaBackend        string `mapstructure:"MEDIA_BACKEND"`
	MediaFolder         string `mapstructure:"MEDIA_FOLDER"`
	MaxUploadMB         int64  `mapstructure:"MAX_UPLOAD_MB"`
	CloudinaryName      string `mapstructure:"CLOUDINARY_NAME"`
	CloudinaryAPIKey    string `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `mapstructure:"CLOUDINARY_API_SECRET"`
	MinioEndpoint       string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey      string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey      string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket         string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL         bool   `mapstructure:"MINIO_USE_SSL"`
	MinioPublicURL      string `mapstructure:"MINIO_PUBLIC_URL"`
	GCSBucket           string `mapstructure:"GCS_BUCKET"`
	GCSProjectID        string `mapstructure:"GCS_PROJECT_ID"`
	GCSCredentialsFile  string `mapstructure:"GCS_CREDENTIALS_FILE"`
	GCSPublicURL        string `mapstructure:"GCS_PUBLIC_URL"`

	RedisURL        string        `mapstructure:"REDIS_URL"`
	AuthRateLimit   int           `mapstructure:"AUTH_RATE_LIMIT"`
	AuthRateWindow  time.Duration `mapstructure:"AUTH_RATE_WINDOW"`
	CountOwnerViews bool          `mapstructure:"COUNT_OWNER_VIEWS"`
}

var defaults = map[string]any{
	"APP_ENV":   EnvDevelopment,
	"PORT":      "8080",
	"LOG_LEVEL": "info",

	"DB_DRIVER":      "sqlite",
	"DB_PATH":        "projectshelf.db",
	"MONGO_URI":      "",
	"MONGO_DATABASE": "projectshelf",

	"JWT_SECRET":  DevJWTSecret,
	"TOKEN_TTL":   "720h",
	"BCRYPT_COST": 10,
	"CLIENT_URL":  "http://localhost:5173",

	"GOOGLE_CLIENT_ID":     "",
	"GOOGLE_CLIENT_SECRET": "",
	"GOOGLE_CALLBACK_URL":  "http://localhost:8080/api/auth/google/callback",

	"MEDIA_BACKEND":         "none",
	"MEDIA_FOLDER":          "projectshelf",
	"MAX_UPLOAD_MB":         50,
	"CLOUDINARY_NAME":       "",
	"CLOUDINARY_API_KEY":    "",
	"CLOUDINARY_API_SECRET": "",
	"MINIO_ENDPOINT":        "",
	"MINIO_ACCESS_KEY":      "",
	"MINIO_SECRET_KEY":      "",
	"MINIO_BUCKET":          "",
	"MINIO_USE_SSL":         false,
	"MINIO_PUBLIC_URL":      "",
	"GCS_BUCKET":            "",
	"GCS_PROJECT_ID":        "",
	"GCS_CREDENTIALS_FILE":  "",
	"GCS_PUBLIC_URL":        "",

	"REDIS_URL":         "",
	"AUTH_RATE_LIMIT":   20,
	"AUTH_RATE_WINDOW":  "15m",
	"COUNT_OWNER_VIEWS": true,
}

// Load reads and validates the configuration.
func Load() (*Config, error) {
	// .env is a development convenience; production sets real env vars.
	if env := os.Getenv("APP_ENV"); env == "" || env == EnvDevelopment {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	cfg.MediaBackend = strings.ToLower(cfg.MediaBackend)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate ensures required values are present and production-safe.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or mongo, got %q", c.DBDriver)
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if !c.IsDevelopment() {
		if c.JWTSecret == DevJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value outside development")
		}
		if len(c.JWTSecret) < minProductionSecret {
			return fmt.Errorf("JWT_SECRET must be at least %d characters outside development", minProductionSecret)
		}
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}

	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}

	switch c.MediaBackend {
	case "none", "":
	case "cloudinary":
		if c.CloudinaryName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
			return errors.New("CLOUDINARY_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for cloudinary")
		}
	case "minio":
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			return errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required for minio")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required for gcs")
		}
	default:
		return fmt.Errorf("MEDIA_BACKEND must be cloudinary, minio, gcs or none, got %q", c.MediaBackend)
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}

	if c.AuthRateLimit < 0 {
		return errors.New("AUTH_RATE_LIMIT cannot be negative")
	}
	if c.AuthRateLimit > 0 && c.AuthRateWindow <= 0 {
		return errors.New("AUTH_RATE_WINDOW must be positive when rate limiting is on")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
