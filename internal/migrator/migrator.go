package migrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/database/common"
	"github.com/Rana718/petquest/internal/logging"
	"github.com/Rana718/petquest/internal/schema"
	"github.com/Rana718/petquest/internal/types"
)

// Adapter is the part of a database adapter migrations need.
type Adapter interface {
	CreateMigrationsTable(ctx context.Context) error
	GetAppliedMigrations(ctx context.Context) (map[string]*time.Time, error)
	RecordMigration(ctx context.Context, migrationID, name, checksum string) error
	ExecuteMigration(ctx context.Context, migrationSQL string) error
	CheckTableExists(ctx context.Context, tableName string) (bool, error)
	GenerateCreateTableSQL(table types.SchemaTable) string
}

// Schemas lists and loads descriptors.
type Schemas interface {
	Available() ([]string, error)
	GetSchema(ctx context.Context, table string) (*schema.Descriptor, error)
}

// Migrator creates one table per descriptor and records each creation in
// the migrations table.
type Migrator struct {
	adapter Adapter
	schemas Schemas
	logger  *zap.Logger
}

func New(adapter Adapter, schemas Schemas, logger *zap.Logger) *Migrator {
	return &Migrator{adapter: adapter, schemas: schemas, logger: logging.OrNop(logger)}
}

// Result lists what Apply did. Adopted tables already existed and were only
// recorded.
type Result struct {
	Applied []string
	Adopted []string
}

// Plan builds the migration for every descriptor, in table name order.
func (m *Migrator) Plan(ctx context.Context) ([]types.Migration, error) {
	tables, err := m.schemas.Available()
	if err != nil {
		return nil, fmt.Errorf("failed to list descriptors: %w", err)
	}

	migrations := make([]types.Migration, 0, len(tables))
	for _, table := range tables {
		desc, err := m.schemas.GetSchema(ctx, table)
		if err != nil {
			return nil, err
		}
		sql := m.adapter.GenerateCreateTableSQL(TableFor(desc))
		migrations = append(migrations, types.Migration{
			ID:       MigrationID(table),
			Name:     "create " + table,
			Checksum: checksum(sql),
			SQL:      sql,
		})
	}
	return migrations, nil
}

// Apply runs every pending migration.
func (m *Migrator) Apply(ctx context.Context) (*Result, error) {
	if err := m.adapter.CreateMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := m.Plan(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := m.adapter.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	result := &Result{}
	for _, mig := range migrations {
		if _, ok := applied[mig.ID]; ok {
			continue
		}
		table := tableOf(mig.ID)

		exists, err := m.adapter.CheckTableExists(ctx, table)
		if err != nil {
			return result, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if exists {
			m.logger.Info("adopting existing table", zap.String("table", table))
			result.Adopted = append(result.Adopted, table)
		} else {
			m.logger.Info("applying migration", zap.String("id", mig.ID))
			if err := m.adapter.ExecuteMigration(ctx, mig.SQL); err != nil {
				return result, fmt.Errorf("failed to apply migration %s: %w", mig.ID, err)
			}
			result.Applied = append(result.Applied, table)
		}

		if err := m.adapter.RecordMigration(ctx, mig.ID, mig.Name, mig.Checksum); err != nil {
			return result, fmt.Errorf("failed to record migration %s: %w", mig.ID, err)
		}
	}
	return result, nil
}

// Status compares the planned migrations with the recorded ones.
func (m *Migrator) Status(ctx context.Context) (*types.MigrationStatus, error) {
	if err := m.adapter.CreateMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	migrations, err := m.Plan(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := m.adapter.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	status := &types.MigrationStatus{TotalMigrations: len(migrations)}
	for _, mig := range migrations {
		item := types.MigrationStatusItem{ID: mig.ID, Name: mig.Name, Status: "pending"}
		if at, ok := applied[mig.ID]; ok {
			item.Status = "applied"
			item.AppliedAt = at
			status.AppliedMigrations++
		} else {
			status.PendingMigrations++
		}
		status.Items = append(status.Items, item)
	}
	return status, nil
}

const idPrefix = "create_"

func MigrationID(table string) string {
	return idPrefix + table
}

func tableOf(id string) string {
	return id[len(idPrefix):]
}

// TableFor maps a descriptor onto columns. An integer id becomes an
// auto-increment primary key; other fields are nullable unless required.
func TableFor(desc *schema.Descriptor) types.SchemaTable {
	t := types.SchemaTable{Name: desc.Table}
	for _, f := range desc.Fields {
		col := types.SchemaColumn{
			Name:     f.Name,
			Type:     columnType(f),
			Nullable: !f.Required,
			Default:  defaultLiteral(f),
		}
		if f.Name == "id" {
			col.IsPrimary = true
			col.Nullable = false
			col.Default = ""
			col.IsAutoIncrement = f.Type == schema.TypeInteger
		}
		t.Columns = append(t.Columns, col)
	}
	return t
}

func columnType(f schema.Field) string {
	switch f.Type {
	case schema.TypeInteger:
		return types.ColumnInteger
	case schema.TypeNumber:
		return types.ColumnReal
	case schema.TypeBoolean:
		return types.ColumnBoolean
	case schema.TypeEnumSet:
		return types.ColumnText
	}
	if f.Format == schema.FormatRichText {
		return types.ColumnText
	}
	return types.ColumnVarchar
}

// defaultLiteral renders a descriptor default as SQL. Booleans are stored
// as 0/1.
func defaultLiteral(f schema.Field) string {
	switch v := f.Default.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		if f.Type == schema.TypeInteger && v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		if f.Type.Numeric() {
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				return v
			}
			return ""
		}
		return common.QuoteLiteral(v)
	}
	return ""
}

func checksum(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}
