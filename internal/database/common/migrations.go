package common

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
)

// AppliedMigrations reads the migrations table. applied_at is stored as an
// RFC 3339 string so every backend scans it the same way.
func AppliedMigrations(ctx context.Context, db *sql.DB, d Dialect) (map[string]*time.Time, error) {
	query, args, err := d.Builder().
		Select("id", "applied_at").
		From(MigrationsTable).
		OrderBy("applied_at").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]*time.Time)
	for rows.Next() {
		var id string
		var appliedAt sql.NullString
		if err := rows.Scan(&id, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		if !appliedAt.Valid {
			applied[id] = nil
			continue
		}
		if t, err := time.Parse(time.RFC3339, appliedAt.String); err == nil {
			applied[id] = &t
		} else {
			applied[id] = nil
		}
	}
	return applied, rows.Err()
}

func RecordMigration(ctx context.Context, db *sql.DB, d Dialect, migrationID, name, checksum string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query, args, err := d.Builder().
		Insert(MigrationsTable).
		Columns("id", "migration_name", "checksum", "applied_at").
		Values(migrationID, name, checksum, time.Now().UTC().Format(time.RFC3339)).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return tx.Commit()
}

// ExecuteScript runs every statement of script inside one transaction.
func ExecuteScript(ctx context.Context, db *sql.DB, script string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range ParseSQLStatements(script) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement '%s': %w", stmt, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}
	return nil
}

// TableExists checks an information_schema style catalog.
func TableExists(ctx context.Context, db *sql.DB, qb squirrel.StatementBuilderType, from string, where squirrel.Sqlizer) (bool, error) {
	query, args, err := qb.Select("COUNT(*)").From(from).Where(where).ToSql()
	if err != nil {
		return false, err
	}
	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
