package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TAPPO_AUTH_MASTER_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 60*time.Second, cfg.Reviews.NavigateTimeout)
	assert.Equal(t, 3*time.Second, cfg.Reviews.SettleDelay)
	assert.Equal(t, 90*time.Second, cfg.Reviews.JobTimeout)
	assert.Equal(t, "yandex.ru", cfg.Reviews.ProviderHost)
	assert.Equal(t, "Yandex", cfg.Reviews.ProviderName)
	assert.Equal(t, BackendPostgres, cfg.Analytics.EventBackend)
	assert.Equal(t, 30*time.Second, cfg.Analytics.CacheTTL)
	assert.Equal(t, "secret", cfg.Auth.MasterKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TAPPO_AUTH_MASTER_KEY", "secret")
	t.Setenv("TAPPO_SERVER_ADDR", ":9090")
	t.Setenv("TAPPO_DATABASE_MAX_CONNS", "7")
	t.Setenv("TAPPO_REVIEWS_SETTLE_DELAY", "5s")
	t.Setenv("TAPPO_ANALYTICS_EVENT_BACKEND", "clickhouse")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 7, cfg.Database.MaxConns)
	assert.Equal(t, 5*time.Second, cfg.Reviews.SettleDelay)
	assert.Equal(t, BackendClickHouse, cfg.Analytics.EventBackend)
	// untouched keys keep their defaults
	assert.Equal(t, "localhost", cfg.Database.Host)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tappo.yaml")
	body := []byte(`
server:
  addr: ":7070"
reviews:
  fetcher: http
  provider_host: yandex.com
auth:
  enabled: false
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("TAPPO_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, FetcherHTTP, cfg.Reviews.Fetcher)
	assert.Equal(t, "yandex.com", cfg.Reviews.ProviderHost)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("TAPPO_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults with key", func(c *Config) {}, true},
		{"auth without key", func(c *Config) { c.Auth.MasterKey = "" }, false},
		{"auth disabled without key", func(c *Config) { c.Auth.Enabled = false; c.Auth.MasterKey = "" }, true},
		{"production with auth", func(c *Config) { c.Server.Env = "production" }, true},
		{"production without auth", func(c *Config) { c.Server.Env = "production"; c.Auth.Enabled = false }, false},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, false},
		{"unknown backend", func(c *Config) { c.Analytics.EventBackend = "mongo" }, false},
		{"unknown fetcher", func(c *Config) { c.Reviews.Fetcher = "curl" }, false},
		{"zero navigate timeout", func(c *Config) { c.Reviews.NavigateTimeout = 0 }, false},
		{"bad timezone", func(c *Config) { c.Analytics.Timezone = "Mars/Olympus" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.MasterKey = "secret"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestEnvironment(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Server.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5433, DBName: "tappo", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5433/tappo?sslmode=disable", d.DSN())
}
