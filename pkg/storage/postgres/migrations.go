package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/entitle/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// The DDL sticks to types and clauses PostgreSQL and SQLite both accept so the
// same migrations back the in-memory scenario tests.

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create subscription_tiers and permissions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscription_tiers (
					id VARCHAR(64) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					price_eur DOUBLE PRECISION NOT NULL DEFAULT 0,
					is_custom BOOLEAN NOT NULL DEFAULT FALSE,
					base_permissions BIGINT NOT NULL DEFAULT 0,
					max_members INTEGER
				);

				CREATE TABLE IF NOT EXISTS permissions (
					id VARCHAR(64) PRIMARY KEY,
					code VARCHAR(255) NOT NULL UNIQUE,
					bit_position INTEGER NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					category VARCHAR(64) NOT NULL DEFAULT '',
					is_addon BOOLEAN NOT NULL DEFAULT FALSE,
					is_dangerous BOOLEAN NOT NULL DEFAULT FALSE
				);
			`,
		},
		{
			Version:     2,
			Description: "Create organizations and organization_members tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id VARCHAR(64) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					owner_id VARCHAR(255) NOT NULL,
					subscription_tier_id VARCHAR(64) NOT NULL,
					subscription_status VARCHAR(32) NOT NULL,
					custom_permissions BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_organizations_owner_id ON organizations(owner_id);

				CREATE TABLE IF NOT EXISTS organization_members (
					id VARCHAR(64) PRIMARY KEY,
					organization_id VARCHAR(64) NOT NULL,
					user_id VARCHAR(255) NOT NULL,
					status VARCHAR(32) NOT NULL,
					invited_by VARCHAR(255) NOT NULL DEFAULT '',
					invited_at TIMESTAMP,
					joined_at TIMESTAMP,
					computed_permissions BIGINT NOT NULL DEFAULT 0,
					permissions_last_computed_at TIMESTAMP,
					UNIQUE(organization_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_organization_members_user_id ON organization_members(user_id);
				CREATE INDEX IF NOT EXISTS idx_organization_members_stale ON organization_members(status, permissions_last_computed_at);
			`,
		},
		{
			Version:     3,
			Description: "Create roles and member_roles tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id VARCHAR(64) PRIMARY KEY,
					organization_id VARCHAR(64) NOT NULL,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					color VARCHAR(16) NOT NULL DEFAULT '',
					permissions BIGINT NOT NULL DEFAULT 0,
					position INTEGER NOT NULL DEFAULT 0,
					is_system_role BOOLEAN NOT NULL DEFAULT FALSE,
					system_role_type VARCHAR(32) NOT NULL DEFAULT '',
					is_assignable BOOLEAN NOT NULL DEFAULT TRUE,
					is_default BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_roles_organization_id ON roles(organization_id, position);

				CREATE TABLE IF NOT EXISTS member_roles (
					id VARCHAR(64) PRIMARY KEY,
					member_id VARCHAR(64) NOT NULL,
					role_id VARCHAR(64) NOT NULL,
					assigned_by VARCHAR(255) NOT NULL DEFAULT '',
					assigned_at TIMESTAMP NOT NULL,
					UNIQUE(member_id, role_id)
				);

				CREATE INDEX IF NOT EXISTS idx_member_roles_role_id ON member_roles(role_id);
			`,
		},
		{
			Version:     4,
			Description: "Create member_permission_overrides and organization_addons tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS member_permission_overrides (
					id VARCHAR(64) PRIMARY KEY,
					member_id VARCHAR(64) NOT NULL,
					permission_id VARCHAR(64) NOT NULL,
					allow BOOLEAN NOT NULL,
					granted_by VARCHAR(255) NOT NULL DEFAULT '',
					reason TEXT NOT NULL DEFAULT '',
					expires_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_overrides_member_id ON member_permission_overrides(member_id);

				CREATE TABLE IF NOT EXISTS organization_addons (
					id VARCHAR(64) PRIMARY KEY,
					organization_id VARCHAR(64) NOT NULL,
					permission_id VARCHAR(64) NOT NULL,
					purchased_by VARCHAR(255) NOT NULL DEFAULT '',
					purchased_at TIMESTAMP NOT NULL,
					expires_at TIMESTAMP,
					price_paid_eur DOUBLE PRECISION,
					is_active BOOLEAN NOT NULL DEFAULT TRUE
				);

				CREATE INDEX IF NOT EXISTS idx_addons_organization_id ON organization_addons(organization_id);
			`,
		},
		{
			Version:     5,
			Description: "Create permission_audit_log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permission_audit_log (
					id VARCHAR(64) PRIMARY KEY,
					organization_id VARCHAR(64) NOT NULL,
					actor_id VARCHAR(255) NOT NULL,
					action VARCHAR(64) NOT NULL,
					target_user_id VARCHAR(255) NOT NULL DEFAULT '',
					target_role_id VARCHAR(64) NOT NULL DEFAULT '',
					target_permission_id VARCHAR(64) NOT NULL DEFAULT '',
					metadata TEXT,
					ip_address VARCHAR(64) NOT NULL DEFAULT '',
					user_agent TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_audit_organization_created ON permission_audit_log(organization_id, created_at);
				CREATE INDEX IF NOT EXISTS idx_audit_actor_id ON permission_audit_log(actor_id);
				CREATE INDEX IF NOT EXISTS idx_audit_action ON permission_audit_log(action);
			`,
		},
	}
}

// RunMigrations applies every migration not yet recorded in
// entitle_migrations, each in its own transaction.
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	if logger == nil {
		logger = observability.NopLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS entitle_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO entitle_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
			migration.Version, migration.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM entitle_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
