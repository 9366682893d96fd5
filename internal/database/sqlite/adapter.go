package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Rana718/petquest/internal/database/common"
	"github.com/Rana718/petquest/internal/types"
)

type Adapter struct {
	db      *sql.DB
	dialect common.Dialect
	path    string
}

var typeMap = map[string]string{
	"varchar": "TEXT", "text": "TEXT", "char": "TEXT",
	"int": "INTEGER", "integer": "INTEGER", "bigint": "INTEGER", "smallint": "INTEGER", "tinyint": "INTEGER",
	"real": "REAL", "double": "REAL", "float": "REAL",
	"blob": "BLOB", "numeric": "NUMERIC", "decimal": "NUMERIC",
	"boolean": "INTEGER", "bool": "INTEGER",
	"date": "TEXT", "datetime": "TEXT", "timestamp": "TEXT",
}

func New() *Adapter {
	return &Adapter{
		dialect: common.NewDialect("sqlite", squirrel.Question, false, common.QuoteIdentifier),
	}
}

func (s *Adapter) Connect(ctx context.Context, url string) error {
	dbPath := strings.TrimPrefix(url, "sqlite://")
	dbPath = strings.TrimPrefix(dbPath, "file:")

	s.path = dbPath
	if idx := strings.Index(s.path, "?"); idx > 0 {
		s.path = s.path[:idx]
	}

	if !strings.Contains(dbPath, "?") {
		dbPath += "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s.db = db
	return nil
}

func (s *Adapter) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Adapter) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Adapter) DB() *sql.DB {
	return s.db
}

func (s *Adapter) Dialect() common.Dialect {
	return s.dialect
}

// Path is the database file without connection parameters.
func (s *Adapter) Path() string {
	return s.path
}

func (s *Adapter) CreateMigrationsTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + common.MigrationsTable + ` (
		id TEXT PRIMARY KEY,
		migration_name TEXT NOT NULL,
		checksum TEXT NOT NULL,
		applied_at TEXT
	)`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *Adapter) GetAppliedMigrations(ctx context.Context) (map[string]*time.Time, error) {
	return common.AppliedMigrations(ctx, s.db, s.dialect)
}

func (s *Adapter) RecordMigration(ctx context.Context, migrationID, name, checksum string) error {
	return common.RecordMigration(ctx, s.db, s.dialect, migrationID, name, checksum)
}

func (s *Adapter) ExecuteMigration(ctx context.Context, migrationSQL string) error {
	return common.ExecuteScript(ctx, s.db, migrationSQL)
}

func (s *Adapter) GetAllTableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

func (s *Adapter) GetTableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error) {
	// PRAGMA does not take bound parameters.
	if err := common.ValidateTableName(tableName); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", common.QuoteIdentifier(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []types.SchemaColumn
	for rows.Next() {
		var cid int
		var column types.SchemaColumn
		var dataType string
		var notNull int
		var defaultValue sql.NullString
		var pk int

		if err := rows.Scan(&cid, &column.Name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}

		column.Type = s.MapColumnType(dataType)
		column.Nullable = notNull == 0
		column.IsPrimary = pk > 0
		column.IsAutoIncrement = pk > 0 && strings.EqualFold(dataType, "INTEGER")
		if defaultValue.Valid {
			column.Default = defaultValue.String
		}
		columns = append(columns, column)
	}
	return columns, rows.Err()
}

func (s *Adapter) CheckTableExists(ctx context.Context, tableName string) (bool, error) {
	return common.TableExists(ctx, s.db, s.dialect.Builder(), "sqlite_master",
		squirrel.Eq{"type": "table", "name": tableName})
}

func (s *Adapter) GenerateCreateTableSQL(table types.SchemaTable) string {
	lines := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (", common.QuoteIdentifier(table.Name))}

	for i, column := range table.Columns {
		comma := ","
		if i == len(table.Columns)-1 {
			comma = ""
		}
		lines = append(lines, fmt.Sprintf("  %s %s%s", common.QuoteIdentifier(column.Name), s.FormatColumnType(column), comma))
	}

	lines = append(lines, ");")
	return strings.Join(lines, "\n")
}

func (s *Adapter) MapColumnType(columnType string) string {
	if mapped, exists := typeMap[strings.ToLower(columnType)]; exists {
		return mapped
	}
	return strings.ToUpper(columnType)
}

func (s *Adapter) FormatColumnType(column types.SchemaColumn) string {
	parts := []string{s.MapColumnType(column.Type)}

	if column.IsPrimary {
		if column.IsAutoIncrement {
			parts = append(parts, "PRIMARY KEY AUTOINCREMENT")
		} else {
			parts = append(parts, "PRIMARY KEY")
		}
	}

	if !column.Nullable && !column.IsPrimary {
		parts = append(parts, "NOT NULL")
	}

	if column.Default != "" {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", column.Default))
	}

	return strings.Join(parts, " ")
}
