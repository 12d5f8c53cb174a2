package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Walks    WalksConfig    `yaml:"walks"`
	Cache    CacheConfig    `yaml:"cache"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// UpstreamConfig points at the open-data records API.
type UpstreamConfig struct {
	BaseURL  string        `yaml:"baseUrl"`
	Dataset  string        `yaml:"dataset"`
	PageSize int           `yaml:"pageSize"`
	Timeout  time.Duration `yaml:"timeout"`
}

// WalksConfig controls caching and session lifetime.
type WalksConfig struct {
	CacheTTL           time.Duration `yaml:"cacheTtl"`
	SessionIdleTimeout time.Duration `yaml:"sessionIdleTimeout"`
	SweepInterval      time.Duration `yaml:"sweepInterval"`
}

// CacheConfig selects the durable snapshot backend.
type CacheConfig struct {
	Valkey      ValkeyConfig      `yaml:"valkey"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
}

// ValkeyConfig contains connection information for cache storage.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ObjectStoreConfig targets an S3-compatible bucket (R2, MinIO).
type ObjectStoreConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

// SQLiteConfig points at the local cache database file. An empty path
// disables it.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("UPSTREAM_DATASET"); v != "" {
		cfg.Upstream.Dataset = v
	}
	if v := os.Getenv("UPSTREAM_PAGE_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Upstream.PageSize = parsed
		}
	}
	if v := os.Getenv("UPSTREAM_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Upstream.Timeout = parsed
		}
	}
	if v := os.Getenv("WALKS_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Walks.CacheTTL = parsed
		}
	}
	if v := os.Getenv("WALKS_SESSION_IDLE_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Walks.SessionIdleTimeout = parsed
		}
	}
	if v := os.Getenv("CACHE_VALKEY_ENABLED"); v != "" {
		cfg.Cache.Valkey.Enabled = parseBool(v)
	}
	if v := os.Getenv("CACHE_VALKEY_ADDR"); v != "" {
		cfg.Cache.Valkey.Addr = v
	}
	if v := os.Getenv("CACHE_POSTGRES_DSN"); v != "" {
		cfg.Cache.Postgres.DSN = v
	}
	if v := os.Getenv("CACHE_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("CACHE_OBJECT_STORE_ENABLED"); v != "" {
		cfg.Cache.ObjectStore.Enabled = parseBool(v)
	}
	if v := os.Getenv("CACHE_OBJECT_STORE_ENDPOINT"); v != "" {
		cfg.Cache.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("CACHE_OBJECT_STORE_ACCESS_KEY"); v != "" {
		cfg.Cache.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("CACHE_OBJECT_STORE_SECRET_KEY"); v != "" {
		cfg.Cache.ObjectStore.SecretKey = v
	}
	if v := os.Getenv("CACHE_OBJECT_STORE_BUCKET"); v != "" {
		cfg.Cache.ObjectStore.Bucket = v
	}
	if v, ok := os.LookupEnv("CACHE_SQLITE_PATH"); ok {
		cfg.Cache.SQLite.Path = strings.TrimSpace(v)
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			AllowedOrigins: []string{
				"http://localhost:5173",
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		Upstream: UpstreamConfig{
			BaseURL:  "https://www.odwb.be/api/records/1.0",
			Dataset:  "points-verts-de-ladeps",
			PageSize: 30,
			Timeout:  10 * time.Second,
		},
		Walks: WalksConfig{
			CacheTTL:           time.Hour,
			SessionIdleTimeout: 30 * time.Minute,
			SweepInterval:      time.Minute,
		},
		Cache: CacheConfig{
			Valkey: ValkeyConfig{
				Prefix: "walks",
			},
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
			ObjectStore: ObjectStoreConfig{
				Prefix: "snapshots",
			},
			SQLite: SQLiteConfig{
				Path: "data/walks.db",
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		return errors.New("upstream.baseUrl cannot be empty")
	}
	if c.Upstream.PageSize <= 0 {
		return errors.New("upstream.pageSize must be positive")
	}
	if c.Upstream.Timeout <= 0 {
		return errors.New("upstream.timeout must be positive")
	}
	if c.Walks.CacheTTL <= 0 {
		return errors.New("walks.cacheTtl must be positive")
	}
	if c.Walks.SessionIdleTimeout <= 0 {
		return errors.New("walks.sessionIdleTimeout must be positive")
	}
	if c.Walks.SweepInterval <= 0 {
		return errors.New("walks.sweepInterval must be positive")
	}
	if c.Cache.Valkey.Enabled && strings.TrimSpace(c.Cache.Valkey.Addr) == "" {
		return errors.New("cache.valkey.addr cannot be empty when valkey is enabled")
	}
	if c.Cache.ObjectStore.Enabled {
		if strings.TrimSpace(c.Cache.ObjectStore.Endpoint) == "" {
			return errors.New("cache.objectStore.endpoint cannot be empty when the object store is enabled")
		}
		if strings.TrimSpace(c.Cache.ObjectStore.Bucket) == "" {
			return errors.New("cache.objectStore.bucket cannot be empty when the object store is enabled")
		}
	}
	return nil
}
