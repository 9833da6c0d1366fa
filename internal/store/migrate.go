package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

//go:embed schema.sql
var schemaSQL string

// AppliedMigration records the outcome of one schema upgrade step.
type AppliedMigration struct {
	Version     int
	Description string
	Detail      string
	AppliedAt   time.Time
}

type migration struct {
	version     int
	description string
	apply       func(ctx context.Context, db *sql.DB) (string, error)
}

// Schema upgrades in order. Each runs at most once per database; results
// are recorded in schema_migrations so upgrades never hide inside the
// request path.
var migrations = []migration{
	{
		version:     1,
		description: "base schema",
		apply: func(ctx context.Context, db *sql.DB) (string, error) {
			for _, stmt := range splitSQLStatements(schemaSQL) {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return "", fmt.Errorf("run schema stmt: %w", err)
				}
			}
			return "created memories and mcp_requests tables", nil
		},
	},
	{
		version:     2,
		description: "add category column",
		apply: func(ctx context.Context, db *sql.DB) (string, error) {
			// Pre-category databases get 'semantic', matching the value the
			// historical in-place migration assigned.
			if _, err := db.ExecContext(ctx,
				`ALTER TABLE memories ADD COLUMN category TEXT NOT NULL DEFAULT 'semantic'`,
			); err != nil {
				return "", fmt.Errorf("add category column: %w", err)
			}
			if _, err := db.ExecContext(ctx,
				`CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category)`,
			); err != nil {
				return "", fmt.Errorf("index category column: %w", err)
			}
			var backfilled int64
			row := db.QueryRowContext(ctx, `SELECT count(*) FROM memories`)
			_ = row.Scan(&backfilled)
			return fmt.Sprintf("backfilled %d rows with category 'semantic'", backfilled), nil
		},
	},
}

// Migrate applies pending schema upgrades in version order and returns
// the steps applied during this call.
func Migrate(ctx context.Context, db *sql.DB, logger *log.Logger) ([]AppliedMigration, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		applied_at TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var current sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT max(version) FROM schema_migrations`).Scan(&current); err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	var applied []AppliedMigration
	for _, m := range migrations {
		if current.Valid && int64(m.version) <= current.Int64 {
			continue
		}
		detail, err := m.apply(ctx, db)
		if err != nil {
			return applied, fmt.Errorf("migration v%d (%s): %w", m.version, m.description, err)
		}

		now := time.Now().UTC()
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description, detail, applied_at) VALUES (?, ?, ?, ?)`,
			m.version, m.description, detail, now.Format(time.RFC3339Nano),
		); err != nil {
			return applied, fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		logger.Info("applied schema migration", "version", m.version, "description", m.description, "detail", detail)
		applied = append(applied, AppliedMigration{
			Version:     m.version,
			Description: m.description,
			Detail:      detail,
			AppliedAt:   now,
		})
	}
	return applied, nil
}

// AppliedMigrations lists every recorded upgrade, oldest first.
func AppliedMigrations(ctx context.Context, db *sql.DB) ([]AppliedMigration, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT version, description, detail, applied_at FROM schema_migrations ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		var appliedAt string
		if err := rows.Scan(&m.Version, &m.Description, &m.Detail, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, appliedAt); err == nil {
			m.AppliedAt = ts
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func splitSQLStatements(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p+";")
	}
	return out
}
