// Package storage selects and opens the persistence backend behind the
// permission engine.
//
// # Backends
//
// Every backend implements rbac.MutationStore:
//
//   - memory: in-process maps, for development and tests (storage/memory)
//   - postgres: database/sql on lib/pq with read replicas (storage/postgres)
//   - mongo: one collection per entity (storage/mongo)
//
// # Configuration
//
//	cfg := storage.DefaultConfig()
//	cfg.Type = storage.TypePostgres
//	cfg.PostgresURL = "postgres://localhost/entitle?sslmode=disable"
//	cfg.PostgresReplicaURLs = []string{"postgres://replica-1/entitle?sslmode=disable"}
//
//	store, err := storage.Open(ctx, cfg, logger)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
// With AutoMigrate set, Open applies pending Postgres migrations before
// returning. Mongo indexes are always ensured on connect.
//
// # Read routing
//
// The Postgres backend sends every read to a replica chosen round-robin and
// every write to the primary. Replicas that stop answering pings are dropped
// by a background routine started by Open and stopped when ctx is cancelled.
// Reads fall back to the primary when no replica is left.
package storage
