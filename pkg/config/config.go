package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/entitle/pkg/audit"
	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/rbac"
	"github.com/platinummonkey/entitle/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Permission resolution and caching
	Permissions PermissionsConfig

	// Background refresh of stale memberships
	Refresh RefreshConfig

	// Audit sinks and archival
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Requests per minute per caller; zero disables rate limiting
	RateLimitPerMinute int
	RateLimitBurst     int
}

// PermissionsConfig controls the catalog and the persisted cache
type PermissionsConfig struct {
	CacheTTL    time.Duration
	CatalogFile string // empty means the built-in catalog
}

// RefreshConfig controls the stale membership sweeper
type RefreshConfig struct {
	Enabled  bool
	Schedule string
	Batch    int
}

// AuditConfig holds the optional audit sinks. The store always receives entries.
type AuditConfig struct {
	RedisURL        string
	Stream          string
	StreamMaxLen    int64
	File            string
	ArchiveSchedule string
	S3              audit.S3Config
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Permissions:   loadPermissionsConfig(),
		Refresh:       loadRefreshConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Addr is the listen address for the API server
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ENTITLE_HOST", "0.0.0.0"),
		Port:            getEnv("ENTITLE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ENTITLE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ENTITLE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ENTITLE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ENTITLE_SHUTDOWN_TIMEOUT", 30*time.Second),

		RateLimitPerMinute: getEnvInt("ENTITLE_RATE_LIMIT_PER_MINUTE", 1200),
		RateLimitBurst:     getEnvInt("ENTITLE_RATE_LIMIT_BURST", 100),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	cfg.Type = strings.ToLower(getEnv("ENTITLE_STORAGE_TYPE", cfg.Type))

	// PostgreSQL config
	cfg.PostgresURL = getEnv("ENTITLE_POSTGRES_URL", "")
	cfg.PostgresReplicaURLs = splitList(getEnv("ENTITLE_POSTGRES_REPLICA_URLS", ""))
	if maxConns := getEnvInt("ENTITLE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("ENTITLE_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("ENTITLE_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}
	cfg.AutoMigrate = getEnvBool("ENTITLE_POSTGRES_AUTO_MIGRATE", false)

	// MongoDB config
	cfg.MongoURI = getEnv("ENTITLE_MONGO_URI", "")
	cfg.MongoDatabase = getEnv("ENTITLE_MONGO_DATABASE", cfg.MongoDatabase)
	if timeout := getEnvDuration("ENTITLE_MONGO_TIMEOUT", 0); timeout > 0 {
		cfg.MongoTimeout = timeout
	}

	return cfg
}

func loadPermissionsConfig() PermissionsConfig {
	return PermissionsConfig{
		CacheTTL:    getEnvDuration("ENTITLE_CACHE_TTL", rbac.DefaultCacheTTL),
		CatalogFile: getEnv("ENTITLE_CATALOG_FILE", ""),
	}
}

func loadRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Enabled:  getEnvBool("ENTITLE_REFRESH_ENABLED", true),
		Schedule: getEnv("ENTITLE_REFRESH_SCHEDULE", "@every 1m"),
		Batch:    getEnvInt("ENTITLE_REFRESH_BATCH", 500),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		RedisURL:        getEnv("ENTITLE_REDIS_URL", ""),
		Stream:          getEnv("ENTITLE_AUDIT_STREAM", "entitle:audit"),
		StreamMaxLen:    getEnvInt64("ENTITLE_AUDIT_STREAM_MAXLEN", 0),
		File:            getEnv("ENTITLE_AUDIT_FILE", ""),
		ArchiveSchedule: getEnv("ENTITLE_AUDIT_ARCHIVE_SCHEDULE", "@daily"),
		S3: audit.S3Config{
			Bucket:       getEnv("ENTITLE_AUDIT_S3_BUCKET", ""),
			Prefix:       getEnv("ENTITLE_AUDIT_S3_PREFIX", "audit/"),
			Region:       getEnv("ENTITLE_AUDIT_S3_REGION", "us-east-1"),
			Endpoint:     getEnv("ENTITLE_AUDIT_S3_ENDPOINT", ""),
			AccessKey:    getEnv("ENTITLE_AUDIT_S3_ACCESS_KEY", ""),
			SecretKey:    getEnv("ENTITLE_AUDIT_S3_SECRET_KEY", ""),
			UsePathStyle: getEnvBool("ENTITLE_AUDIT_S3_USE_PATH_STYLE", false),
		},
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("ENTITLE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("ENTITLE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("ENTITLE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("ENTITLE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("ENTITLE_SERVICE_NAME", "entitle"),
		OTelServiceVersion: getEnv("ENTITLE_SERVICE_VERSION", "dev"),
		OTelInsecure:       getEnvBool("ENTITLE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.RateLimitPerMinute < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if c.Permissions.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	if c.Refresh.Enabled {
		if c.Refresh.Batch <= 0 {
			return fmt.Errorf("refresh batch must be positive")
		}
		if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", c.Refresh.Schedule, err)
		}
	}

	if c.Audit.S3.Bucket != "" {
		if _, err := cron.ParseStandard(c.Audit.ArchiveSchedule); err != nil {
			return fmt.Errorf("invalid audit archive schedule %q: %w", c.Audit.ArchiveSchedule, err)
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// splitList splits a comma separated value, dropping blanks
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
