package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the collector application.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Archive   ArchiveConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Geo       GeoConfig
	Analytics AnalyticsConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// StoreConfig selects the record store backing sessions and events. The
// memory driver exists for development and tests only.
type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// ArchiveConfig configures the optional ClickHouse raw-hit archive.
type ArchiveConfig struct {
	Enabled       bool
	Addr          string
	Database      string
	Username      string
	Password      string
	BatchSize     int
	FlushInterval time.Duration
}

type AuthConfig struct {
	// SecretKey is the shared secret checked on reporting requests.
	SecretKey string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GeoConfig configures optional GeoIP enrichment of session records.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
}

// AnalyticsConfig configures the aggregation engine and reporting endpoint.
type AnalyticsConfig struct {
	// TrackingElementTypes are the element types included in the
	// conversion-rate breakdown.
	TrackingElementTypes []string

	// QueryTimeout bounds a single reporting request end to end.
	QueryTimeout time.Duration

	// WriteTimeout bounds a single fire-and-forget ingestion write.
	WriteTimeout time.Duration

	// ReportCacheTTL is how long a rendered report stays in the Redis
	// cache. Zero disables caching even when Redis is available.
	ReportCacheTTL time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("COLLECTOR_HTTP_ADDR", ":8080"),
			Env:             getEnv("COLLECTOR_ENV", "development"),
			ShutdownTimeout: getDurationEnv("COLLECTOR_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Driver: getEnv("COLLECTOR_STORE_DRIVER", StorePostgres),
		},
		Database: DatabaseConfig{
			Host:     getEnv("COLLECTOR_DB_HOST", "localhost"),
			Port:     getIntEnv("COLLECTOR_DB_PORT", 5432),
			User:     getEnv("COLLECTOR_DB_USER", "collector"),
			Password: getEnv("COLLECTOR_DB_PASSWORD", "collector_secret"),
			DBName:   getEnv("COLLECTOR_DB_NAME", "collector"),
			SSLMode:  getEnv("COLLECTOR_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("COLLECTOR_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("COLLECTOR_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("COLLECTOR_REDIS_ENABLED", true),
			Addr:     getEnv("COLLECTOR_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("COLLECTOR_REDIS_PASSWORD", ""),
			DB:       getIntEnv("COLLECTOR_REDIS_DB", 0),
		},
		Archive: ArchiveConfig{
			Enabled:       getBoolEnv("COLLECTOR_ARCHIVE_ENABLED", false),
			Addr:          getEnv("COLLECTOR_ARCHIVE_ADDR", "localhost:9000"),
			Database:      getEnv("COLLECTOR_ARCHIVE_DB", "collector"),
			Username:      getEnv("COLLECTOR_ARCHIVE_USER", "default"),
			Password:      getEnv("COLLECTOR_ARCHIVE_PASSWORD", ""),
			BatchSize:     getIntEnv("COLLECTOR_ARCHIVE_BATCH_SIZE", 500),
			FlushInterval: getDurationEnv("COLLECTOR_ARCHIVE_FLUSH_INTERVAL", 5*time.Second),
		},
		Auth: AuthConfig{
			SecretKey: getEnv("COLLECTOR_SECRET_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("COLLECTOR_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("COLLECTOR_RATE_LIMIT_RPS", 50),
			Burst:   getIntEnv("COLLECTOR_RATE_LIMIT_BURST", 100),
		},
		Log: LogConfig{
			Level:  getEnv("COLLECTOR_LOG_LEVEL", "info"),
			Format: getEnv("COLLECTOR_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("COLLECTOR_METRICS_ENABLED", true),
			Path:    getEnv("COLLECTOR_METRICS_PATH", "/metrics"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("COLLECTOR_GEO_ENABLED", false),
			DatabasePath: getEnv("COLLECTOR_GEO_DB_PATH", "/app/data/GeoLite2-Country.mmdb"),
		},
		Analytics: AnalyticsConfig{
			TrackingElementTypes: getSliceEnv("COLLECTOR_TRACKING_ELEMENT_TYPES", []string{"Slider", "Heading", "Button", "Image2"}),
			QueryTimeout:         getDurationEnv("COLLECTOR_QUERY_TIMEOUT", 15*time.Second),
			WriteTimeout:         getDurationEnv("COLLECTOR_WRITE_TIMEOUT", 10*time.Second),
			ReportCacheTTL:       getDurationEnv("COLLECTOR_REPORT_CACHE_TTL", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("COLLECTOR_SECRET_KEY is required")
	}
	switch c.Store.Driver {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("invalid store driver: %s", c.Store.Driver)
	}
	if len(c.Analytics.TrackingElementTypes) == 0 {
		return fmt.Errorf("COLLECTOR_TRACKING_ELEMENT_TYPES must not be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
