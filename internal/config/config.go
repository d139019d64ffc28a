// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported storage drivers.
const (
	DriverMinio = "minio"
	DriverS3    = "s3"
)

// Supported URL modes for uploaded objects.
const (
	URLModePublic    = "public"
	URLModePresigned = "presigned"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port   string
	AppEnv string

	// JWTSecret enables bearer-token auth on the upload route when non-empty.
	JWTSecret string

	// MaxRequestBytes caps the JSON body accepted by the upload endpoint.
	MaxRequestBytes int64

	Storage Storage
	Log     Log
	Seed    Seed
}

// Storage describes the S3-compatible bucket the service writes to.
type Storage struct {
	Driver     string // "minio" or "s3"
	Endpoint   string // host:port or full URL, e.g. "http://localhost:4566"
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PublicBase string // browser-accessible base URL, e.g. "http://localhost:4566/fiambond-local-test-bucket"
	URLMode    string // "public" or "presigned"
	PresignTTL time.Duration
}

// Log configures the process logger.
type Log struct {
	Level      string
	Format     string // "console" or "json"
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Seed is the fixed local file pushed by the maintenance tool.
type Seed struct {
	File string
	Key  string
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() Config {
	endpoint := getEnv("STORAGE_ENDPOINT", "http://localhost:4566")
	bucket := getEnv("STORAGE_BUCKET", "fiambond-local-test-bucket")
	useSSL := getEnvBool("STORAGE_USE_SSL", false)

	return Config{
		Port:            getEnv("PORT", "8080"),
		AppEnv:          getEnv("APP_ENV", "development"),
		JWTSecret:       getEnv("AUTH_JWT_SECRET", ""),
		MaxRequestBytes: getEnvInt64("MAX_REQUEST_BYTES", 10<<20),

		Storage: Storage{
			Driver:     strings.ToLower(getEnv("STORAGE_DRIVER", DriverMinio)),
			Endpoint:   endpoint,
			AccessKey:  getEnv("STORAGE_ACCESS_KEY", "test"),
			SecretKey:  getEnv("STORAGE_SECRET_KEY", "test"),
			Bucket:     bucket,
			Region:     getEnv("STORAGE_REGION", "us-east-1"),
			UseSSL:     useSSL,
			PublicBase: getEnv("STORAGE_PUBLIC_BASE", defaultPublicBase(endpoint, bucket, useSSL)),
			URLMode:    strings.ToLower(getEnv("STORAGE_URL_MODE", URLModePublic)),
			PresignTTL: getEnvDuration("STORAGE_PRESIGN_TTL", 15*time.Minute),
		},

		Log: Log{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     strings.ToLower(getEnv("LOG_FORMAT", "console")),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_FILE_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_FILE_MAX_AGE_DAYS", 28),
		},

		Seed: Seed{
			File: getEnv("SEED_FILE", "receipt.txt"),
			Key:  getEnv("SEED_KEY", "loan-receipts/receipt-001.txt"),
		},
	}
}

// Validate reports every configuration problem that would prevent startup.
func (c Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverMinio, DriverS3:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	switch c.Storage.URLMode {
	case URLModePublic, URLModePresigned:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_URL_MODE %q", c.Storage.URLMode))
	}
	if c.Storage.Endpoint == "" {
		errs = append(errs, errors.New("STORAGE_ENDPOINT is required"))
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("STORAGE_BUCKET is required"))
	}
	if c.Storage.URLMode == URLModePresigned && c.Storage.PresignTTL <= 0 {
		errs = append(errs, errors.New("STORAGE_PRESIGN_TTL must be positive"))
	}
	if c.MaxRequestBytes <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BYTES must be positive"))
	}

	return errors.Join(errs...)
}

// IsProduction returns true when the app is running in production mode.
func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// defaultPublicBase derives "<scheme>://<host>/<bucket>" from the endpoint.
// The scheme is https when useSSL is set or the endpoint already says https,
// matching how the storage drivers dial the endpoint.
func defaultPublicBase(endpoint, bucket string, useSSL bool) string {
	host := strings.TrimRight(endpoint, "/")
	scheme, rest, ok := strings.Cut(host, "://")
	if ok {
		host = rest
		useSSL = useSSL || strings.EqualFold(scheme, "https")
	}
	if useSSL {
		return "https://" + host + "/" + bucket
	}
	return "http://" + host + "/" + bucket
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
