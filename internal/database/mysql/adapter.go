package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"

	"github.com/Rana718/petquest/internal/database/common"
	"github.com/Rana718/petquest/internal/types"
)

type Adapter struct {
	db      *sql.DB
	dialect common.Dialect
}

// Booleans are stored as TINYINT because the gateway writes them as 0/1.
var typeMap = map[string]string{
	"varchar": "VARCHAR(255)", "char": "CHAR",
	"text": "TEXT", "longtext": "LONGTEXT", "mediumtext": "MEDIUMTEXT", "tinytext": "TINYTEXT",
	"int": "INT", "integer": "BIGINT", "bigint": "BIGINT", "smallint": "SMALLINT", "tinyint": "TINYINT",
	"boolean": "TINYINT", "bool": "TINYINT",
	"datetime": "DATETIME", "timestamp": "TIMESTAMP", "date": "DATE", "time": "TIME",
	"decimal": "DECIMAL", "numeric": "DECIMAL", "float": "FLOAT", "double": "DOUBLE", "real": "DOUBLE",
	"json": "JSON", "blob": "BLOB",
}

func New() *Adapter {
	return &Adapter{
		dialect: common.NewDialect("mysql", squirrel.Question, false, common.QuoteBacktick),
	}
}

// ToDSN converts a mysql:// URL into a go-sql-driver DSN. Anything else is
// returned unchanged.
func ToDSN(url string) string {
	if !strings.HasPrefix(url, "mysql://") {
		return url
	}

	dsn := strings.TrimPrefix(url, "mysql://")
	atIndex := strings.LastIndex(dsn, "@")
	if atIndex <= 0 {
		return dsn
	}

	credentials := dsn[:atIndex]
	remainder := dsn[atIndex+1:]

	slashIndex := strings.Index(remainder, "/")
	if slashIndex <= 0 {
		return fmt.Sprintf("%s@tcp(%s)/", credentials, remainder)
	}

	hostPort := remainder[:slashIndex]
	dbAndParams := remainder[slashIndex+1:]

	replacer := strings.NewReplacer(
		"ssl-mode=REQUIRED", "tls=skip-verify",
		"ssl-mode=DISABLED", "tls=false",
		"ssl-mode=VERIFY_CA", "tls=true",
		"ssl-mode=VERIFY_IDENTITY", "tls=true",
		"sslmode=require", "tls=skip-verify",
		"sslmode=disable", "tls=false",
		"sslmode=verify-ca", "tls=true",
		"sslmode=verify-full", "tls=true",
	)
	dbAndParams = replacer.Replace(dbAndParams)

	return fmt.Sprintf("%s@tcp(%s)/%s", credentials, hostPort, dbAndParams)
}

func (m *Adapter) Connect(ctx context.Context, url string) error {
	db, err := sql.Open("mysql", ToDSN(url))
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	m.db = db
	return nil
}

func (m *Adapter) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

func (m *Adapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *Adapter) DB() *sql.DB {
	return m.db
}

func (m *Adapter) Dialect() common.Dialect {
	return m.dialect
}

func (m *Adapter) CreateMigrationsTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + common.MigrationsTable + ` (
		id VARCHAR(255) PRIMARY KEY,
		migration_name VARCHAR(255) NOT NULL,
		checksum VARCHAR(64) NOT NULL,
		applied_at VARCHAR(64)
	)`
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *Adapter) GetAppliedMigrations(ctx context.Context) (map[string]*time.Time, error) {
	return common.AppliedMigrations(ctx, m.db, m.dialect)
}

func (m *Adapter) RecordMigration(ctx context.Context, migrationID, name, checksum string) error {
	return common.RecordMigration(ctx, m.db, m.dialect, migrationID, name, checksum)
}

// ExecuteMigration runs statements one by one. MySQL commits DDL implicitly,
// so a transaction would not make the script atomic.
func (m *Adapter) ExecuteMigration(ctx context.Context, migrationSQL string) error {
	for _, stmt := range common.ParseSQLStatements(migrationSQL) {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement '%s': %w", stmt, err)
		}
	}
	return nil
}

func (m *Adapter) GetAllTableNames(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
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

func (m *Adapter) GetTableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT column_name, column_type, is_nullable, COALESCE(column_default, ''), column_key, extra
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position
	`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []types.SchemaColumn
	for rows.Next() {
		var column types.SchemaColumn
		var columnType, nullable, key, extra string
		if err := rows.Scan(&column.Name, &columnType, &nullable, &column.Default, &key, &extra); err != nil {
			return nil, err
		}
		column.Type = strings.ToUpper(columnType)
		column.Nullable = nullable == "YES"
		column.IsPrimary = key == "PRI"
		column.IsAutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		columns = append(columns, column)
	}
	return columns, rows.Err()
}

func (m *Adapter) CheckTableExists(ctx context.Context, tableName string) (bool, error) {
	return common.TableExists(ctx, m.db, m.dialect.Builder(), "information_schema.tables",
		squirrel.And{
			squirrel.Expr("table_schema = DATABASE()"),
			squirrel.Eq{"table_name": tableName},
		})
}

func (m *Adapter) GenerateCreateTableSQL(table types.SchemaTable) string {
	lines := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (", common.QuoteBacktick(table.Name))}

	for i, column := range table.Columns {
		comma := ","
		if i == len(table.Columns)-1 {
			comma = ""
		}
		lines = append(lines, fmt.Sprintf("  %s %s%s", common.QuoteBacktick(column.Name), m.FormatColumnType(column), comma))
	}

	lines = append(lines, ") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;")
	return strings.Join(lines, "\n")
}

func (m *Adapter) MapColumnType(columnType string) string {
	if mapped, exists := typeMap[strings.ToLower(columnType)]; exists {
		return mapped
	}
	return strings.ToUpper(columnType)
}

func (m *Adapter) FormatColumnType(column types.SchemaColumn) string {
	parts := []string{m.MapColumnType(column.Type)}

	if column.IsPrimary {
		if column.IsAutoIncrement {
			parts = append(parts, "AUTO_INCREMENT")
		}
		parts = append(parts, "PRIMARY KEY")
	}
	if !column.Nullable && !column.IsPrimary {
		parts = append(parts, "NOT NULL")
	}
	// TEXT columns cannot carry a literal default before MySQL 8.0.13.
	if column.Default != "" && !strings.HasSuffix(parts[0], "TEXT") {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", column.Default))
	}
	return strings.Join(parts, " ")
}
