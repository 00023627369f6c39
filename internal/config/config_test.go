package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20*time.Second, cfg.IndexCacheTTL)
	assert.Equal(t, 10, cfg.PostsPerPage)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yatube.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
posts_per_page: 5
index_cache_ttl: 30s
rate_limit:
  per_second: 2
  burst: 4
`), 0o600))

	t.Setenv("PORT", "")
	t.Setenv("YATUBE_LOG_LEVEL", "debug")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 5, cfg.PostsPerPage)
	assert.Equal(t, 30*time.Second, cfg.IndexCacheTTL)
	assert.Equal(t, 4, cfg.RateLimit.Burst)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Не заданные в файле ключи остаются по умолчанию
	assert.Equal(t, 10, cfg.CommentsPerPage)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"PORT":                   "8000",
		"DATABASE_URL":           "postgres://localhost/yatube",
		"YATUBE_STORAGE":         StoragePostgres,
		"YATUBE_SECURE_COOKIES":  "true",
		"YATUBE_INDEX_CACHE_TTL": "1m",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, time.Minute, cfg.IndexCacheTTL)
	require.NoError(t, cfg.Validate())

	err = cfg.applyEnv(env(map[string]string{"YATUBE_SECURE_COOKIES": "maybe"}))
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"postgres without dsn": func(c *Config) { c.Storage = StoragePostgres },
		"unknown storage":      func(c *Config) { c.Storage = "sqlite" },
		"redis without url":    func(c *Config) { c.Cache = CacheRedis },
		"zero page size":       func(c *Config) { c.PostsPerPage = 0 },
		"short session key":    func(c *Config) { c.SessionKey = "short" },
		"bad csrf key":         func(c *Config) { c.CSRFKey = "not-32-bytes" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.True(t, errors.Is(cfg.Validate(), errors.NotValid))
		})
	}
}
