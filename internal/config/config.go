package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names for STORE_BACKEND and BLOB_BACKEND
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendS3       = "s3"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	TablePrefix string

	// Metadata store
	StoreBackend   string // postgres | memory
	DatabaseURL    string
	MigrateOnStart bool

	// Blob store
	BlobBackend       string // s3 | memory
	S3Bucket          string
	S3Region          string
	S3Endpoint        string // MinIO/Localstack; empty for AWS
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3KeyPrefix       string

	// Authentication: JWKS_URL wins over JWT_SECRET when both are set
	JWTSecret       string
	JWKSURL         string
	PrivilegedRoles []string

	// Domain record registry
	ProtectedContexts []string

	// Path cache
	CacheSize int
	CacheTTL  time.Duration

	// Log file tee (empty LogDir disables it)
	LogDir      string
	LogMaxFiles int

	// ConfigFile is the optional YAML policy overlay
	ConfigFile string
}

// Load reads configuration from the environment and applies the YAML
// overlay named by CONFIG_FILE, if any
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "dev")

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getTablePrefix(env),

		StoreBackend:   getEnv("STORE_BACKEND", BackendPostgres),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrateOnStart: getEnv("MIGRATE_ON_START", "true") == "true",

		BlobBackend:       getEnv("BLOB_BACKEND", BackendS3),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3KeyPrefix:       getEnv("S3_KEY_PREFIX", ""),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWKSURL:         getEnv("JWKS_URL", ""),
		PrivilegedRoles: splitList(getEnv("PRIVILEGED_ROLES", "")),

		ProtectedContexts: splitList(getEnv("PROTECTED_CONTEXTS", "")),

		LogDir:     getEnv("LOG_DIR", ""),
		ConfigFile: getEnv("CONFIG_FILE", ""),
	}

	var err error
	if cfg.CacheSize, err = getInt("CACHE_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LogMaxFiles, err = getInt("LOG_MAX_FILES", 10); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		if err := cfg.applyPolicyFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", BackendPostgres)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.BlobBackend {
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND=%s", BackendS3)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	if c.JWTSecret == "" && c.JWKSURL == "" {
		return fmt.Errorf("one of JWT_SECRET or JWKS_URL is required")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("CACHE_SIZE must be positive")
	}
	return nil
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// splitList splits a comma-separated value, dropping blanks
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
