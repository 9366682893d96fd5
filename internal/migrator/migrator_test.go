package migrator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rana718/petquest/internal/database/sqlite"
	"github.com/Rana718/petquest/internal/gateway"
	"github.com/Rana718/petquest/internal/schema"
	"github.com/Rana718/petquest/internal/types"
)

func setup(t *testing.T) (*sqlite.Adapter, *schema.Registry, *Migrator) {
	t.Helper()
	adapter := sqlite.New()
	require.NoError(t, adapter.Connect(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "migrate.db")))
	t.Cleanup(func() { adapter.Close() })

	registry := schema.NewRegistry(adapter, nil, schema.Embedded())
	return adapter, registry, New(adapter, registry, nil)
}

func TestTableFor(t *testing.T) {
	desc, err := schema.Parse("challenges", []byte(`{
		"required": ["name"],
		"properties": {
			"id": {"type": "integer", "readOnly": true},
			"name": {"type": "string"},
			"description": {"type": "string", "format": "rich-text"},
			"score": {"type": "number", "default": 1.5},
			"reward_xp": {"type": "integer", "default": 10},
			"is_active": {"type": "boolean", "default": true},
			"status": {"type": "string", "enum": ["open", "closed"], "default": "it's open"},
			"tags": {"type": "array", "items": {"enum": ["a"]}}
		}
	}`))
	require.NoError(t, err)

	table := TableFor(desc)
	assert.Equal(t, "challenges", table.Name)
	assert.Equal(t, []types.SchemaColumn{
		{Name: "id", Type: types.ColumnInteger, IsPrimary: true, IsAutoIncrement: true},
		{Name: "name", Type: types.ColumnVarchar},
		{Name: "description", Type: types.ColumnText, Nullable: true},
		{Name: "score", Type: types.ColumnReal, Nullable: true, Default: "1.5"},
		{Name: "reward_xp", Type: types.ColumnInteger, Nullable: true, Default: "10"},
		{Name: "is_active", Type: types.ColumnBoolean, Nullable: true, Default: "1"},
		{Name: "status", Type: types.ColumnVarchar, Nullable: true, Default: "'it''s open'"},
		{Name: "tags", Type: types.ColumnText, Nullable: true},
	}, table.Columns)
}

func TestApplyCreatesEveryTable(t *testing.T) {
	ctx := context.Background()
	adapter, registry, m := setup(t)

	available, err := registry.Available()
	require.NoError(t, err)

	result, err := m.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, available, result.Applied)
	assert.Empty(t, result.Adopted)

	tables, err := registry.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, available, tables)

	cols, err := adapter.GetTableColumns(ctx, "pets")
	require.NoError(t, err)
	desc, err := registry.GetSchema(ctx, "pets")
	require.NoError(t, err)
	assert.True(t, schema.Drift(desc, cols).Clean())

	again, err := m.Apply(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Applied)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(available), status.AppliedMigrations)
	assert.Zero(t, status.PendingMigrations)
	for _, item := range status.Items {
		assert.Equal(t, "applied", item.Status)
		assert.NotNil(t, item.AppliedAt)
	}
}

func TestApplyAdoptsExistingTables(t *testing.T) {
	ctx := context.Background()
	adapter, _, m := setup(t)
	require.NoError(t, adapter.ExecuteMigration(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT);`))

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, status.TotalMigrations, status.PendingMigrations)

	result, err := m.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, result.Adopted)
	assert.NotContains(t, result.Applied, "users")

	applied, err := adapter.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Contains(t, applied, MigrationID("users"))
}

func TestMigratedSchemaDefaultsReadOnlyColumns(t *testing.T) {
	ctx := context.Background()
	adapter, registry, m := setup(t)
	_, err := m.Apply(ctx)
	require.NoError(t, err)

	gw := gateway.New(adapter, registry)
	id, err := gw.Create(ctx, "pets", map[string]interface{}{"name": "Rex", "owner_user_id": "1", "level": 9, "coins": 500})
	require.NoError(t, err)

	row, err := gw.Get(ctx, "pets", gateway.FormatValue(id))
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["level"])
	assert.Equal(t, int64(0), row["coins"])
	assert.Equal(t, "dog", row["species"])
	assert.True(t, strings.HasSuffix(row["created_at"].(string), "Z"))
}

func TestPlanChecksumsAreStable(t *testing.T) {
	_, _, m := setup(t)
	first, err := m.Plan(context.Background())
	require.NoError(t, err)
	second, err := m.Plan(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Checksum, second[i].Checksum)
		assert.Len(t, first[i].Checksum, 64)
		assert.True(t, strings.HasPrefix(first[i].SQL, "CREATE TABLE IF NOT EXISTS"))
	}
}
