package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "TAPPO_"
	envFileVar = "TAPPO_CONFIG"
)

// Event log backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

// Page fetchers used by the rating sync.
const (
	FetcherChrome = "chrome"
	FetcherHTTP   = "http"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all configuration for the tappo service.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	ClickHouse ClickHouseConfig `koanf:"clickhouse"`
	Redis      RedisConfig      `koanf:"redis"`
	Auth       AuthConfig       `koanf:"auth"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Log        LogConfig        `koanf:"log"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Geo        GeoConfig        `koanf:"geo"`
	Reviews    ReviewsConfig    `koanf:"reviews"`
	Analytics  AnalyticsConfig  `koanf:"analytics"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	Env             string        `koanf:"env"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	User        string `koanf:"user"`
	Password    string `koanf:"password"`
	DBName      string `koanf:"name"`
	SSLMode     string `koanf:"sslmode"`
	MaxConns    int    `koanf:"max_conns"`
	MinConns    int    `koanf:"min_conns"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ClickHouseConfig configures the optional columnar event log.
type ClickHouseConfig struct {
	Addr        string        `koanf:"addr"`
	Database    string        `koanf:"database"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// RedisConfig configures the analytics report cache.
type RedisConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	PoolSize    int           `koanf:"pool_size"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

type AuthConfig struct {
	Enabled   bool     `koanf:"enabled"`
	MasterKey string   `koanf:"master_key"`
	SkipPaths []string `koanf:"skip_paths"`
}

// RateLimitConfig has one bucket for the public endpoints (event ingestion,
// tag redirects) and a stricter one for the management API.
type RateLimitConfig struct {
	Enabled     bool    `koanf:"enabled"`
	PublicRPS   float64 `koanf:"public_rps"`
	PublicBurst int     `koanf:"public_burst"`
	MgmtRPS     float64 `koanf:"mgmt_rps"`
	MgmtBurst   int     `koanf:"mgmt_burst"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
}

// GeoConfig configures GeoIP enrichment of ingested events.
type GeoConfig struct {
	Enabled      bool   `koanf:"enabled"`
	DatabasePath string `koanf:"database_path"`
}

// ReviewsConfig configures the rating sync job.
type ReviewsConfig struct {
	Fetcher         string        `koanf:"fetcher"`
	ChromePath      string        `koanf:"chrome_path"`
	NavigateTimeout time.Duration `koanf:"navigate_timeout"`
	SettleDelay     time.Duration `koanf:"settle_delay"`
	JobTimeout      time.Duration `koanf:"job_timeout"`
	ProviderHost    string        `koanf:"provider_host"`
	ProviderName    string        `koanf:"provider_name"`
	UserAgent       string        `koanf:"user_agent"`
}

// AnalyticsConfig configures the dashboard read path.
type AnalyticsConfig struct {
	EventBackend string        `koanf:"event_backend"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
	Timezone     string        `koanf:"timezone"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Env:             "development",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Host:        "localhost",
			Port:        5432,
			User:        "tappo",
			Password:    "tappo_secret",
			DBName:      "tappo",
			SSLMode:     "disable",
			MaxConns:    25,
			MinConns:    5,
			AutoMigrate: true,
		},
		ClickHouse: ClickHouseConfig{
			Addr:        "localhost:9000",
			Database:    "tappo",
			Username:    "default",
			DialTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:     true,
			Addr:        "localhost:6379",
			PoolSize:    20,
			DialTimeout: 3 * time.Second,
		},
		Auth: AuthConfig{
			Enabled:   true,
			SkipPaths: []string{"/health", "/metrics", "/api/events", "/n/"},
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			PublicRPS:   500,
			PublicBurst: 100,
			MgmtRPS:     50,
			MgmtBurst:   20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "tappo",
		},
		Geo: GeoConfig{
			Enabled:      false,
			DatabasePath: "/app/data/GeoLite2-Country.mmdb",
		},
		Reviews: ReviewsConfig{
			Fetcher:         FetcherChrome,
			NavigateTimeout: 60 * time.Second,
			SettleDelay:     3 * time.Second,
			JobTimeout:      90 * time.Second,
			ProviderHost:    "yandex.ru",
			ProviderName:    "Yandex",
			UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		},
		Analytics: AnalyticsConfig{
			EventBackend: BackendPostgres,
			CacheTTL:     30 * time.Second,
			Timezone:     "UTC",
		},
	}
}

// Load builds a Config by layering defaults, an optional .env file, an
// optional YAML file named by TAPPO_CONFIG and TAPPO_* environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// TAPPO_DATABASE_MAX_CONNS -> database.max_conns
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.Replace(s, "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr must not be empty", ErrInvalidConfig)
	}
	if c.IsProduction() && !c.Auth.Enabled {
		return fmt.Errorf("%w: auth must be enabled in production", ErrInvalidConfig)
	}
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("%w: TAPPO_AUTH_MASTER_KEY is required when auth is enabled", ErrInvalidConfig)
	}
	switch c.Analytics.EventBackend {
	case BackendMemory, BackendPostgres, BackendClickHouse:
	default:
		return fmt.Errorf("%w: unknown analytics.event_backend %q", ErrInvalidConfig, c.Analytics.EventBackend)
	}
	switch c.Reviews.Fetcher {
	case FetcherChrome, FetcherHTTP:
	default:
		return fmt.Errorf("%w: unknown reviews.fetcher %q", ErrInvalidConfig, c.Reviews.Fetcher)
	}
	if c.Reviews.NavigateTimeout <= 0 {
		return fmt.Errorf("%w: reviews.navigate_timeout must be positive", ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.Analytics.Timezone); err != nil {
		return fmt.Errorf("%w: analytics.timezone: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Location returns the timezone used to resolve calendar-day presets.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Analytics.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
