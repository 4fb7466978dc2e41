package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/rbac"
	"github.com/platinummonkey/entitle/pkg/storage/memory"
	"github.com/platinummonkey/entitle/pkg/storage/mongo"
	"github.com/platinummonkey/entitle/pkg/storage/postgres"
)

// Backend types
const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
	TypeMongo    = "mongo"
)

// Config for storage backend
type Config struct {
	Type string

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs []string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration
	ReplicaCheckPeriod  time.Duration
	AutoMigrate         bool

	// MongoDB config
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:               TypeMemory,
		PostgresMaxConns:   20,
		PostgresMinConns:   5,
		PostgresTimeout:    5 * time.Second,
		ReplicaCheckPeriod: 30 * time.Second,
		MongoDatabase:      "entitle",
		MongoTimeout:       10 * time.Second,
	}
}

// Validate checks that the selected backend has what it needs
func (c Config) Validate() error {
	switch c.Type {
	case TypeMemory:
	case TypePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres storage requires a primary URL")
		}
		if c.PostgresMaxConns <= 0 {
			return fmt.Errorf("postgres max connections must be positive")
		}
	case TypeMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("mongo storage requires a URI")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("mongo storage requires a database name")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Type)
	}
	return nil
}

// Open connects to the backend named by cfg.Type
func Open(ctx context.Context, cfg Config, logger *observability.Logger) (rbac.MutationStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	logger = logger.WithField("storage", cfg.Type)

	switch cfg.Type {
	case TypePostgres:
		return openPostgres(ctx, cfg, logger)
	case TypeMongo:
		return mongo.Connect(ctx, mongo.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Timeout:  cfg.MongoTimeout,
		}, logger)
	default:
		logger.Warn("Using in-memory storage; data is lost on restart")
		return memory.New(), nil
	}
}

func openPostgres(ctx context.Context, cfg Config, logger *observability.Logger) (*postgres.Store, error) {
	cm, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfig{
		PrimaryURL:  cfg.PostgresURL,
		ReplicaURLs: cfg.PostgresReplicaURLs,
		MaxConns:    cfg.PostgresMaxConns,
		MinConns:    cfg.PostgresMinConns,
		Timeout:     cfg.PostgresTimeout,
		MaxLifetime: time.Hour,
		MaxIdleTime: 10 * time.Minute,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(ctx, cm.Primary(), logger); err != nil {
			cm.Close()
			return nil, err
		}
	}
	if cm.ReplicaCount() > 0 {
		cm.StartHealthCheckRoutine(ctx, cfg.ReplicaCheckPeriod)
	}
	return postgres.NewStore(cm), nil
}
