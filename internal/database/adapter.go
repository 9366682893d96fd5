package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/Rana718/petquest/internal/database/common"
	"github.com/Rana718/petquest/internal/types"
)

type DatabaseAdapter interface {
	Connect(ctx context.Context, url string) error
	Close() error
	Ping(ctx context.Context) error

	// DB exposes the pooled handle used by the gateway and the game service.
	DB() *sql.DB
	Dialect() common.Dialect

	// Migration table management
	CreateMigrationsTable(ctx context.Context) error
	GetAppliedMigrations(ctx context.Context) (map[string]*time.Time, error)
	RecordMigration(ctx context.Context, migrationID, name, checksum string) error
	ExecuteMigration(ctx context.Context, migrationSQL string) error

	// Catalog
	GetAllTableNames(ctx context.Context) ([]string, error)
	GetTableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error)
	CheckTableExists(ctx context.Context, tableName string) (bool, error)

	// SQL generation
	GenerateCreateTableSQL(table types.SchemaTable) string
	MapColumnType(columnType string) string
	FormatColumnType(column types.SchemaColumn) string
}
