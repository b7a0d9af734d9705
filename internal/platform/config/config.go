package config

import (
	"errors"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type HTTPConfig struct {
	Addr string
}

type AppConfig struct {
	ServiceName string
	LogLevel    string
	Env         string
	HTTP        HTTPConfig

	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	// PermissionCacheTTL bounds how long a granted search permission is reused.
	PermissionCacheTTL time.Duration

	// Pull consumer batching.
	WorkerBatchSize       int
	WorkerBatchIntervalMs int
}

// IsProduction reports whether APP_ENV is "production" (case-insensitive).
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

var defaults = map[string]interface{}{
	"log_level":                "info",
	"http_addr":                ":8080",
	"app_env":                  "development",
	"permission_cache_ttl":     "5m",
	"worker_batch_size":        100,
	"worker_batch_interval_ms": 2000,
}

// Load reads configuration from the process environment.
// Keys are the lower-cased environment variable names (HTTP_ADDR -> http_addr).
func Load() (AppConfig, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return AppConfig{}, err
	}
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return AppConfig{}, err
	}

	cfg := AppConfig{
		ServiceName: strings.TrimSpace(k.String("service_name")),
		LogLevel:    strings.TrimSpace(k.String("log_level")),
		Env:         strings.TrimSpace(k.String("app_env")),
		HTTP: HTTPConfig{
			Addr: strings.TrimSpace(k.String("http_addr")),
		},
		DatabaseURL: strings.TrimSpace(k.String("database_url")),
		RedisURL:    strings.TrimSpace(k.String("redis_url")),
		JWTSecret:   strings.TrimSpace(k.String("jwt_secret")),

		WorkerBatchSize:       k.Int("worker_batch_size"),
		WorkerBatchIntervalMs: k.Int("worker_batch_interval_ms"),
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	rawTTL := strings.TrimSpace(k.String("permission_cache_ttl"))
	if rawTTL == "" {
		rawTTL = "5m"
	}
	ttl, err := time.ParseDuration(rawTTL)
	if err != nil || ttl <= 0 {
		return AppConfig{}, errors.New("PERMISSION_CACHE_TTL must be a positive duration")
	}
	cfg.PermissionCacheTTL = ttl

	if cfg.IsProduction() {
		if cfg.DatabaseURL == "" {
			return AppConfig{}, errors.New("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == "" {
			return AppConfig{}, errors.New("JWT_SECRET is required in production")
		}
	}
	return cfg, nil
}
