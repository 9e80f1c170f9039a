package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"solana-airdrop/internal/storage/postgres"
)

// postgresLockKey serializes schema changes across replicas starting together.
const postgresLockKey int64 = 0x616972_64726f70 // "airdrop"

const createPostgresVersions = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// RunPostgresMigrations applies every embedded migration not yet recorded in
// schema_migrations. Each file runs in its own transaction together with its
// version row, under an advisory lock, so concurrent starts apply it once.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := loadMigrations(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	return pool.WithAdvisoryLock(ctx, postgresLockKey, func(conn *pgxpool.Conn) error {
		if _, err := conn.Exec(ctx, createPostgresVersions); err != nil {
			return fmt.Errorf("create schema_migrations: %w", err)
		}

		applied, err := appliedPostgresVersions(ctx, conn)
		if err != nil {
			return err
		}

		for _, m := range files {
			if applied[m.Version] {
				continue
			}
			if err := applyPostgres(ctx, conn, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func appliedPostgresVersions(ctx context.Context, conn *pgxpool.Conn) (map[string]bool, error) {
	rows, err := conn.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func applyPostgres(ctx context.Context, conn *pgxpool.Conn, m migration) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.Name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.Name, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Name, err)
	}
	return tx.Commit(ctx)
}
