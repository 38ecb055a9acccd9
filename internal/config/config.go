// Package config loads application configuration from flags, environment variables, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Storage    StorageConfig
	DocStore   DocStoreConfig
	BlobStore  BlobStoreConfig
	BookLookup BookLookupConfig
	Users      UsersConfig
	Identity   IdentityConfig
	Feed       FeedConfig
	Server     ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `env:"ENV" envDefault:"development"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// StorageConfig holds local storage configuration.
type StorageConfig struct {
	// DataPath holds the image cache database, avatar and cover files (default: ~/BookReviews/data).
	DataPath string `env:"DATA_PATH"`
}

// DocStoreConfig selects the remote document store backend.
type DocStoreConfig struct {
	Driver string `env:"DOCSTORE_DRIVER" envDefault:"sqlite"`
	// DSN is a file path for sqlite (default: {data}/documents.db) or a postgres connection string.
	DSN string `env:"DOCSTORE_DSN"`
}

// BlobStoreConfig selects the remote blob store backend.
type BlobStoreConfig struct {
	Driver        string `env:"BLOBSTORE_DRIVER" envDefault:"local"`
	Path          string `env:"BLOBSTORE_PATH"`
	CloudinaryURL string `env:"CLOUDINARY_URL"`
	Folder        string `env:"BLOBSTORE_FOLDER" envDefault:"bookreviews"`
}

// BookLookupConfig configures the external book catalog client.
type BookLookupConfig struct {
	BaseURL           string        `env:"BOOKS_API_URL" envDefault:"https://www.googleapis.com/books/v1/volumes"`
	APIKey            string        `env:"BOOKS_API_KEY"`
	RequestsPerSecond float64       `env:"BOOKS_API_RPS" envDefault:"1"`
	Burst             int           `env:"BOOKS_API_BURST" envDefault:"5"`
	Timeout           time.Duration `env:"BOOKS_API_TIMEOUT" envDefault:"30s"`
}

// UsersConfig configures the user directory cache.
type UsersConfig struct {
	CacheCapacity int           `env:"USER_CACHE_CAPACITY" envDefault:"10000"`
	CacheTTL      time.Duration `env:"USER_CACHE_TTL" envDefault:"24h"`
}

// IdentityConfig configures verification of identity-provider tokens.
type IdentityConfig struct {
	// Secret is the HMAC key shared with the identity provider.
	Secret string `env:"IDENTITY_SECRET"`
	// Issuer, when set, must match the token's iss claim.
	Issuer string `env:"IDENTITY_ISSUER"`
}

// FeedConfig tunes the feed coordinator.
type FeedConfig struct {
	EnrichConcurrency int `env:"FEED_ENRICH_CONCURRENCY" envDefault:"8"`
	Workers           int `env:"FEED_WORKERS" envDefault:"1"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// flagBindings maps command-line flags to the environment keys they override.
var flagBindings = []struct {
	name   string
	envKey string
	usage  string
}{
	{"env", "ENV", "Environment (development, staging, production)"},
	{"log-level", "LOG_LEVEL", "Log level (debug, info, warn, error)"},
	{"data-path", "DATA_PATH", "Base path for local data"},
	{"docstore", "DOCSTORE_DRIVER", "Document store driver (sqlite, postgres)"},
	{"docstore-dsn", "DOCSTORE_DSN", "Document store DSN"},
	{"blobstore", "BLOBSTORE_DRIVER", "Blob store driver (local, cloudinary)"},
	{"blobstore-path", "BLOBSTORE_PATH", "Root directory for the local blob store"},
	{"books-api-url", "BOOKS_API_URL", "Book catalog search endpoint"},
	{"port", "SERVER_PORT", "Server port (default: 8080)"},
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	flags := flag.NewFlagSet("bookreviews", flag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "Path to .env file")
	values := make(map[string]*string, len(flagBindings))
	for _, b := range flagBindings {
		values[b.envKey] = flags.String(b.name, "", b.usage)
	}

	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", *envFile, err)
	}

	environ := env.ToMap(os.Environ())
	for key, value := range values {
		if *value != "" {
			environ[key] = *value
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"development", "staging", "production"}, c.App.Environment) {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logger.Level)) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	switch c.DocStore.Driver {
	case "sqlite":
		if c.DocStore.DSN == "" {
			return errors.New("document store path cannot be empty after expansion")
		}
	case "postgres":
		if c.DocStore.DSN == "" {
			return errors.New("DOCSTORE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid document store driver: %s (must be sqlite or postgres)", c.DocStore.Driver)
	}

	switch c.BlobStore.Driver {
	case "local":
		if c.BlobStore.Path == "" {
			return errors.New("blob store path cannot be empty after expansion")
		}
	case "cloudinary":
		if c.BlobStore.CloudinaryURL == "" {
			return errors.New("CLOUDINARY_URL is required for the cloudinary driver")
		}
	default:
		return fmt.Errorf("invalid blob store driver: %s (must be local or cloudinary)", c.BlobStore.Driver)
	}

	if c.BookLookup.BaseURL == "" {
		return errors.New("BOOKS_API_URL cannot be empty")
	}
	if c.BookLookup.RequestsPerSecond <= 0 || c.BookLookup.Burst < 1 {
		return errors.New("book lookup rate limit must be positive")
	}

	if c.Identity.Secret == "" {
		return errors.New("IDENTITY_SECRET is required")
	}

	if c.Users.CacheCapacity < 1 {
		return errors.New("USER_CACHE_CAPACITY must be at least 1")
	}
	if c.Feed.EnrichConcurrency < 1 || c.Feed.Workers < 1 {
		return errors.New("feed concurrency and workers must be at least 1")
	}

	return nil
}

// expandPaths resolves the data path and the paths that default beneath it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	dataPath, err := expandPath(c.Storage.DataPath, filepath.Join(homeDir, "BookReviews", "data"))
	if err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	c.Storage.DataPath = dataPath

	if c.DocStore.Driver == "sqlite" {
		dsn, err := expandPath(c.DocStore.DSN, filepath.Join(dataPath, "documents.db"))
		if err != nil {
			return fmt.Errorf("invalid document store path: %w", err)
		}
		c.DocStore.DSN = dsn
	}

	if c.BlobStore.Driver == "local" {
		blobPath, err := expandPath(c.BlobStore.Path, filepath.Join(dataPath, "blobs"))
		if err != nil {
			return fmt.Errorf("invalid blob store path: %w", err)
		}
		c.BlobStore.Path = blobPath
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}
