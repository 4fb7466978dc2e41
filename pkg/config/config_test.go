package config

import (
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/rbac"
	"github.com/platinummonkey/entitle/pkg/storage"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("ENTITLE_TEST_VAR", "custom")

	if got := getEnv("ENTITLE_TEST_VAR", "default"); got != "custom" {
		t.Errorf("getEnv() = %v, want custom", got)
	}
	if got := getEnv("ENTITLE_TEST_VAR_NOT_SET", "default"); got != "default" {
		t.Errorf("getEnv() = %v, want default", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{name: "true", envValue: "true", want: true},
		{name: "TRUE", envValue: "TRUE", want: true},
		{name: "one", envValue: "1", want: true},
		{name: "false", envValue: "false", defaultValue: true, want: false},
		{name: "garbage is false", envValue: "yes please", defaultValue: true, want: false},
		{name: "unset uses default", envValue: "", defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENTITLE_TEST_BOOL", tt.envValue)
			if got := getEnvBool("ENTITLE_TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int
	}{
		{name: "valid", envValue: "42", want: 42},
		{name: "negative", envValue: "-3", want: -3},
		{name: "invalid uses default", envValue: "forty", want: 7},
		{name: "unset uses default", envValue: "", want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENTITLE_TEST_INT", tt.envValue)
			if got := getEnvInt("ENTITLE_TEST_INT", 7); got != tt.want {
				t.Errorf("getEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("ENTITLE_TEST_INT64", "9223372036854775807")
	if got := getEnvInt64("ENTITLE_TEST_INT64", 0); got != 9223372036854775807 {
		t.Errorf("getEnvInt64() = %v", got)
	}
	t.Setenv("ENTITLE_TEST_INT64", "nope")
	if got := getEnvInt64("ENTITLE_TEST_INT64", 5); got != 5 {
		t.Errorf("getEnvInt64() = %v, want 5", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{name: "seconds", envValue: "30s", want: 30 * time.Second},
		{name: "compound", envValue: "1h30m", want: 90 * time.Minute},
		{name: "bare number is invalid", envValue: "30", want: time.Minute},
		{name: "unset uses default", envValue: "", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENTITLE_TEST_DURATION", tt.envValue)
			if got := getEnvDuration("ENTITLE_TEST_DURATION", time.Minute); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" postgres://a/db , ,postgres://b/db,")
	if len(got) != 2 || got[0] != "postgres://a/db" || got[1] != "postgres://b/db" {
		t.Errorf("splitList() = %#v", got)
	}
	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %#v, want nil", got)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %v", cfg.Addr())
	}
	if cfg.Storage.Type != storage.TypeMemory {
		t.Errorf("Storage.Type = %v, want memory", cfg.Storage.Type)
	}
	if cfg.Server.RateLimitPerMinute != 1200 || cfg.Server.RateLimitBurst != 100 {
		t.Errorf("rate limit = %d/%d", cfg.Server.RateLimitPerMinute, cfg.Server.RateLimitBurst)
	}
	if cfg.Permissions.CacheTTL != rbac.DefaultCacheTTL {
		t.Errorf("CacheTTL = %v, want %v", cfg.Permissions.CacheTTL, rbac.DefaultCacheTTL)
	}
	if cfg.Refresh.Schedule != "@every 1m" || cfg.Refresh.Batch != 500 {
		t.Errorf("Refresh = %+v", cfg.Refresh)
	}
	if cfg.Audit.Stream != "entitle:audit" || cfg.Audit.S3.Prefix != "audit/" {
		t.Errorf("Audit = %+v", cfg.Audit)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("LogLevel = %v, want info", cfg.Observability.LogLevel)
	}
	if cfg.Observability.OTelServiceName != "entitle" {
		t.Errorf("OTelServiceName = %v", cfg.Observability.OTelServiceName)
	}
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("ENTITLE_PORT", "9000")
	t.Setenv("ENTITLE_STORAGE_TYPE", "Postgres")
	t.Setenv("ENTITLE_POSTGRES_URL", "postgres://primary/entitle")
	t.Setenv("ENTITLE_POSTGRES_REPLICA_URLS", "postgres://r1/entitle,postgres://r2/entitle")
	t.Setenv("ENTITLE_POSTGRES_MAX_CONNS", "40")
	t.Setenv("ENTITLE_CACHE_TTL", "30s")
	t.Setenv("ENTITLE_REFRESH_BATCH", "50")
	t.Setenv("ENTITLE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("Port = %v", cfg.Server.Port)
	}
	if cfg.Storage.Type != storage.TypePostgres {
		t.Errorf("Storage.Type = %v", cfg.Storage.Type)
	}
	if len(cfg.Storage.PostgresReplicaURLs) != 2 {
		t.Errorf("replicas = %v", cfg.Storage.PostgresReplicaURLs)
	}
	if cfg.Storage.PostgresMaxConns != 40 {
		t.Errorf("PostgresMaxConns = %v", cfg.Storage.PostgresMaxConns)
	}
	if cfg.Permissions.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v", cfg.Permissions.CacheTTL)
	}
	if cfg.Refresh.Batch != 50 {
		t.Errorf("Refresh.Batch = %v", cfg.Refresh.Batch)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:      ServerConfig{Port: "8080"},
			Storage:     storage.DefaultConfig(),
			Permissions: PermissionsConfig{CacheTTL: time.Minute},
			Refresh:     RefreshConfig{Enabled: true, Schedule: "@every 1m", Batch: 10},
			Audit:       AuditConfig{ArchiveSchedule: "@daily"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port"},
		{name: "negative rate limit", mutate: func(c *Config) { c.Server.RateLimitPerMinute = -1 }, wantErr: "rate limits"},
		{name: "bad storage", mutate: func(c *Config) { c.Storage.Type = "hybrid" }, wantErr: "storage"},
		{name: "zero ttl", mutate: func(c *Config) { c.Permissions.CacheTTL = 0 }, wantErr: "cache TTL"},
		{name: "zero batch", mutate: func(c *Config) { c.Refresh.Batch = 0 }, wantErr: "refresh batch"},
		{name: "bad schedule", mutate: func(c *Config) { c.Refresh.Schedule = "every minute" }, wantErr: "refresh schedule"},
		{
			name: "disabled refresh ignores schedule",
			mutate: func(c *Config) {
				c.Refresh.Enabled = false
				c.Refresh.Schedule = "nonsense"
			},
		},
		{
			name: "bad archive schedule",
			mutate: func(c *Config) {
				c.Audit.S3.Bucket = "audit"
				c.Audit.ArchiveSchedule = "daily-ish"
			},
			wantErr: "archive schedule",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "entitle"
			},
			wantErr: "endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
