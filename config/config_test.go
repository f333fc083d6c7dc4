package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-persistence/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "persistence.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  url: sqlite:///tmp/app.db
  pool_size: 3
  echo: true
cache:
  url: redis://cache:6379/2
  default_ttl: 30s
memory_cache:
  backend: redis
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite:///tmp/app.db", cfg.Database.URL)
	assert.Equal(t, 3, cfg.Database.PoolSize)
	assert.True(t, cfg.Database.Echo)
	assert.Equal(t, 10, cfg.Database.MaxOverflow, "unset keys keep their default")
	assert.Equal(t, "redis://cache:6379/2", cfg.Cache.URL)
	assert.Equal(t, 30*time.Second, cfg.Cache.DefaultTTL)
	assert.Equal(t, cache.BackendRedis, cfg.MemoryCache.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := writeConfig(t, "database:\n  pool_size: 3\n")
	t.Setenv("PERSISTENCE_DATABASE_POOL_SIZE", "8")
	t.Setenv("PERSISTENCE_CACHE_URL", "redis://other:6380/0")
	t.Setenv("PERSISTENCE_DATABASE_AUTOFLUSH", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Database.PoolSize)
	assert.True(t, cfg.Database.Autoflush)
	assert.Equal(t, "redis://other:6380/0", cfg.Cache.URL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "explicit file missing",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") },
		},
		{
			name: "malformed yaml",
			path: func(t *testing.T) string { return writeConfig(t, "database: [") },
		},
		{
			name: "unsupported driver",
			path: func(t *testing.T) string { return writeConfig(t, "database:\n  url: mysql://localhost/db\n") },
		},
		{
			name: "bad cache scheme",
			path: func(t *testing.T) string { return writeConfig(t, "cache:\n  url: http://localhost\n") },
		},
		{
			name: "bad log level",
			path: func(t *testing.T) string { return writeConfig(t, "log:\n  level: loud\n") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			assert.Error(t, err)
		})
	}
}

func TestValidate_NamesSection(t *testing.T) {
	cfg := Default()
	cfg.Database.PoolSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config database")
}
