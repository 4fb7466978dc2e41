// Package config loads service configuration from environment variables.
//
// Every setting has a default, so an empty environment yields a runnable
// in-memory server. cmd/entitle loads an optional .env file before calling
// LoadConfig.
//
// Server settings:
//
//	ENTITLE_HOST="0.0.0.0"
//	ENTITLE_PORT="8080"
//	ENTITLE_READ_TIMEOUT="15s"
//	ENTITLE_WRITE_TIMEOUT="15s"
//	ENTITLE_RATE_LIMIT_PER_MINUTE="1200"  # 0 disables
//	ENTITLE_RATE_LIMIT_BURST="100"
//
// Storage settings:
//
//	ENTITLE_STORAGE_TYPE="postgres"  # memory, postgres, mongo
//	ENTITLE_POSTGRES_URL="postgres://localhost/entitle?sslmode=disable"
//	ENTITLE_POSTGRES_REPLICA_URLS="postgres://replica-1/entitle,postgres://replica-2/entitle"
//	ENTITLE_POSTGRES_MAX_CONNS="20"
//	ENTITLE_MONGO_URI="mongodb://localhost:27017"
//	ENTITLE_MONGO_DATABASE="entitle"
//
// Permission settings:
//
//	ENTITLE_CACHE_TTL="5m"
//	ENTITLE_CATALOG_FILE="/etc/entitle/catalog.yaml"
//	ENTITLE_REFRESH_SCHEDULE="@every 1m"
//	ENTITLE_REFRESH_BATCH="500"
//
// Audit settings:
//
//	ENTITLE_REDIS_URL="redis://localhost:6379/0"
//	ENTITLE_AUDIT_STREAM="entitle:audit"
//	ENTITLE_AUDIT_FILE="/var/log/entitle/audit.ndjson"
//	ENTITLE_AUDIT_S3_BUCKET="entitle-audit"
//	ENTITLE_AUDIT_ARCHIVE_SCHEDULE="@daily"
//
// Observability settings:
//
//	ENTITLE_LOG_LEVEL="info"  # debug, info, warn, error
//	ENTITLE_METRICS_ENABLED="true"
//	ENTITLE_OTEL_ENABLED="true"
//	ENTITLE_OTEL_ENDPOINT="otel-collector:4317"
package config
