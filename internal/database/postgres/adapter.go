package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/Rana718/petquest/internal/database/common"
	"github.com/Rana718/petquest/internal/types"
)

type Adapter struct {
	pool    *pgxpool.Pool
	db      *sql.DB
	dialect common.Dialect
}

// Booleans are stored as SMALLINT because the gateway writes them as 0/1.
var typeMap = map[string]string{
	"character varying": "VARCHAR(255)", "varchar": "VARCHAR(255)",
	"character": "CHAR", "char": "CHAR", "text": "TEXT",
	"integer": "BIGINT", "int4": "INTEGER", "bigint": "BIGINT", "int8": "BIGINT",
	"smallint": "SMALLINT", "int2": "SMALLINT", "boolean": "SMALLINT", "bool": "SMALLINT",
	"timestamp with time zone": "TIMESTAMPTZ", "timestamptz": "TIMESTAMPTZ",
	"timestamp without time zone": "TIMESTAMP", "timestamp": "TIMESTAMP",
	"date": "DATE", "time": "TIME", "numeric": "NUMERIC", "decimal": "NUMERIC",
	"real": "DOUBLE PRECISION", "float4": "REAL", "double precision": "DOUBLE PRECISION", "float8": "DOUBLE PRECISION",
	"uuid": "UUID", "json": "JSON", "jsonb": "JSONB",
}

func New() *Adapter {
	return &Adapter{
		dialect: common.NewDialect("postgres", squirrel.Dollar, true, pq.QuoteIdentifier),
	}
}

func (p *Adapter) Connect(ctx context.Context, url string) error {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return fmt.Errorf("failed to parse connection URL: %w", err)
	}

	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	config.MaxConns = 4
	config.MinConns = 0
	config.MaxConnLifetime = 15 * time.Minute
	config.MaxConnIdleTime = 3 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	p.pool = pool
	p.db = stdlib.OpenDBFromPool(pool)
	return nil
}

func (p *Adapter) Close() error {
	var err error
	if p.db != nil {
		err = p.db.Close()
	}
	if p.pool != nil {
		p.pool.Close()
	}
	return err
}

func (p *Adapter) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Adapter) DB() *sql.DB {
	return p.db
}

func (p *Adapter) Dialect() common.Dialect {
	return p.dialect
}

func (p *Adapter) CreateMigrationsTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + common.MigrationsTable + ` (
		id VARCHAR(255) PRIMARY KEY,
		migration_name VARCHAR(255) NOT NULL,
		checksum VARCHAR(64) NOT NULL,
		applied_at VARCHAR(64)
	)`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *Adapter) GetAppliedMigrations(ctx context.Context) (map[string]*time.Time, error) {
	return common.AppliedMigrations(ctx, p.db, p.dialect)
}

func (p *Adapter) RecordMigration(ctx context.Context, migrationID, name, checksum string) error {
	return common.RecordMigration(ctx, p.db, p.dialect, migrationID, name, checksum)
}

func (p *Adapter) ExecuteMigration(ctx context.Context, migrationSQL string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range common.ParseSQLStatements(migrationSQL) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement '%s': %w", stmt, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}
	return nil
}

func (p *Adapter) GetAllTableNames(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT table_name FROM information_schema.tables
		WHERE table_schema IN (current_schema(), 'public') AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make([]string, 0, 32)
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

func (p *Adapter) GetTableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT c.column_name, c.data_type, c.is_nullable, COALESCE(c.column_default, ''),
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_name = c.table_name AND kcu.column_name = c.column_name
			)
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position
	`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []types.SchemaColumn
	for rows.Next() {
		var column types.SchemaColumn
		var dataType, nullable string
		if err := rows.Scan(&column.Name, &dataType, &nullable, &column.Default, &column.IsPrimary); err != nil {
			return nil, err
		}
		column.Type = strings.ToUpper(dataType)
		column.Nullable = nullable == "YES"
		column.IsAutoIncrement = strings.HasPrefix(column.Default, "nextval(")
		columns = append(columns, column)
	}
	return columns, rows.Err()
}

func (p *Adapter) CheckTableExists(ctx context.Context, tableName string) (bool, error) {
	return common.TableExists(ctx, p.db, p.dialect.Builder(), "information_schema.tables",
		squirrel.And{
			squirrel.Expr("table_schema = current_schema()"),
			squirrel.Eq{"table_name": tableName},
		})
}

func (p *Adapter) GenerateCreateTableSQL(table types.SchemaTable) string {
	lines := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (", pq.QuoteIdentifier(table.Name))}

	for i, column := range table.Columns {
		comma := ","
		if i == len(table.Columns)-1 {
			comma = ""
		}
		lines = append(lines, fmt.Sprintf("  %s %s%s", pq.QuoteIdentifier(column.Name), p.FormatColumnType(column), comma))
	}

	lines = append(lines, ");")
	return strings.Join(lines, "\n")
}

func (p *Adapter) MapColumnType(columnType string) string {
	if mapped, exists := typeMap[strings.ToLower(columnType)]; exists {
		return mapped
	}
	return strings.ToUpper(columnType)
}

func (p *Adapter) FormatColumnType(column types.SchemaColumn) string {
	if column.IsPrimary && column.IsAutoIncrement {
		return "BIGSERIAL PRIMARY KEY"
	}

	parts := []string{p.MapColumnType(column.Type)}
	if column.IsPrimary {
		parts = append(parts, "PRIMARY KEY")
	}
	if !column.Nullable && !column.IsPrimary {
		parts = append(parts, "NOT NULL")
	}
	if column.Default != "" {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", column.Default))
	}
	return strings.Join(parts, " ")
}
