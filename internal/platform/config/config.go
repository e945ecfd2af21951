package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. Provider-specific settings
// live in the registry file, not here.
type Server struct {
	Addr          string
	RegistryPath  string
	LogLevel      slog.Level
	QueryTimeout  time.Duration
	MemoryBudget  int64
	RedisURL      string
	PostgresDSN   string
	KafkaBrokers  string
	AlertTopic    string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:         envOr("VENUEHUB_ADDR", ":8080"),
		RegistryPath: envOr("VENUEHUB_PROVIDERS", "providers.yaml"),
		QueryTimeout: durationOr("VENUEHUB_QUERY_TIMEOUT", 15*time.Second),
		MemoryBudget: int64Or("VENUEHUB_CACHE_BUDGET_BYTES", 64<<20),
		RedisURL:     os.Getenv("VENUEHUB_REDIS_URL"),
		PostgresDSN:  os.Getenv("VENUEHUB_POSTGRES_DSN"),
		KafkaBrokers: os.Getenv("VENUEHUB_KAFKA_BROKERS"),
		AlertTopic:   envOr("VENUEHUB_ALERT_TOPIC", "venuehub.alerts"),
	}

	switch os.Getenv("VENUEHUB_LOG_LEVEL") {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func int64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
