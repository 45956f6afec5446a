package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnv clears every key Load reads, then applies overrides
func setEnv(t *testing.T, overrides map[string]string) {
	t.Helper()
	keys := []string{
		"PORT", "ENVIRONMENT", "CORS_ORIGINS", "TABLE_PREFIX", "STORE_BACKEND", "DATABASE_URL",
		"MIGRATE_ON_START", "BLOB_BACKEND", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT",
		"S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_KEY_PREFIX", "JWT_SECRET", "JWKS_URL",
		"PRIVILEGED_ROLES", "PROTECTED_CONTEXTS", "CACHE_SIZE", "CACHE_TTL", "LOG_DIR",
		"LOG_MAX_FILES", "CONFIG_FILE",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
	for k, v := range overrides {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/docvault",
		"S3_BUCKET":    "docs",
		"JWT_SECRET":   "s3cret",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "dev_", cfg.TablePrefix)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, BackendS3, cfg.BlobBackend)
	assert.True(t, cfg.MigrateOnStart)
	assert.Equal(t, 1024, cfg.CacheSize)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Empty(t, cfg.PrivilegedRoles)
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, map[string]string{
		"ENVIRONMENT":        "prod",
		"STORE_BACKEND":      "memory",
		"BLOB_BACKEND":       "memory",
		"JWKS_URL":           "https://idp.example.com/jwks.json",
		"PRIVILEGED_ROLES":   "admin, auditor ,",
		"PROTECTED_CONTEXTS": "signature",
		"CACHE_SIZE":         "16",
		"CACHE_TTL":          "30s",
		"MIGRATE_ON_START":   "false",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod_", cfg.TablePrefix)
	assert.Equal(t, []string{"admin", "auditor"}, cfg.PrivilegedRoles)
	assert.Equal(t, []string{"signature"}, cfg.ProtectedContexts)
	assert.Equal(t, 16, cfg.CacheSize)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.False(t, cfg.MigrateOnStart)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"BLOB_BACKEND": "memory", "JWT_SECRET": "x"}},
		{"s3 without bucket", map[string]string{"STORE_BACKEND": "memory", "JWT_SECRET": "x"}},
		{"no auth", map[string]string{"STORE_BACKEND": "memory", "BLOB_BACKEND": "memory"}},
		{"unknown store", map[string]string{"STORE_BACKEND": "sqlite", "BLOB_BACKEND": "memory", "JWT_SECRET": "x"}},
		{"bad cache size", map[string]string{"STORE_BACKEND": "memory", "BLOB_BACKEND": "memory", "JWT_SECRET": "x", "CACHE_SIZE": "lots"}},
		{"bad ttl", map[string]string{"STORE_BACKEND": "memory", "BLOB_BACKEND": "memory", "JWT_SECRET": "x", "CACHE_TTL": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestPolicyFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
privileged_roles: [records_manager]
protected_contexts:
  - signature
  - payment_receipt
cache:
  size: 2048
  ttl: 10m
`), 0o600))

	setEnv(t, map[string]string{
		"STORE_BACKEND":    "memory",
		"BLOB_BACKEND":     "memory",
		"JWT_SECRET":       "x",
		"PRIVILEGED_ROLES": "admin",
		"CONFIG_FILE":      path,
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"records_manager"}, cfg.PrivilegedRoles)
	assert.Equal(t, []string{"signature", "payment_receipt"}, cfg.ProtectedContexts)
	assert.Equal(t, 2048, cfg.CacheSize)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
}

func TestPolicyFileErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("privileged_roles: {"), 0o600))

	for _, path := range []string{bad, filepath.Join(dir, "missing.yaml")} {
		setEnv(t, map[string]string{
			"STORE_BACKEND": "memory",
			"BLOB_BACKEND":  "memory",
			"JWT_SECRET":    "x",
			"CONFIG_FILE":   path,
		})
		_, err := Load()
		assert.Error(t, err, path)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"docvault-2024-01-01T00-00-00.log",
		"docvault-2024-01-02T00-00-00.log",
		"docvault-2024-01-03T00-00-00.log",
		"unrelated.log",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o600))
	}

	require.NoError(t, cleanupOldLogs(dir, 2))

	left, err := filepath.Glob(filepath.Join(dir, "*.log"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "docvault-2024-01-02T00-00-00.log"),
		filepath.Join(dir, "docvault-2024-01-03T00-00-00.log"),
		filepath.Join(dir, "unrelated.log"),
	}, left)
}

func TestSetupLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	f, err := SetupLogFile(dir, 3)
	require.NoError(t, err)
	defer f.Close()

	assert.Contains(t, filepath.Base(f.Name()), logFilePrefix)
}
