package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rana718/petquest/internal/database/common"
	"github.com/Rana718/petquest/internal/types"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter := New()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, adapter.Connect(context.Background(), "sqlite://"+path))
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func TestGenerateCreateTableSQL(t *testing.T) {
	adapter := New()
	sql := adapter.GenerateCreateTableSQL(types.SchemaTable{
		Name: "pets",
		Columns: []types.SchemaColumn{
			{Name: "id", Type: types.ColumnInteger, IsPrimary: true, IsAutoIncrement: true},
			{Name: "name", Type: types.ColumnVarchar},
			{Name: "level", Type: types.ColumnInteger, Nullable: true, Default: "1"},
		},
	})

	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "pets" (
  "id" INTEGER PRIMARY KEY AUTOINCREMENT,
  "name" TEXT NOT NULL,
  "level" INTEGER DEFAULT 1
);`, sql)
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	require.NoError(t, adapter.ExecuteMigration(ctx, `
		CREATE TABLE pets (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, level INTEGER DEFAULT 1);
		CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT);
	`))

	names, err := adapter.GetAllTableNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "pets")
	assert.Contains(t, names, "users")
	for _, name := range names {
		assert.NotContains(t, name, "sqlite_")
	}

	exists, err := adapter.CheckTableExists(ctx, "pets")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = adapter.CheckTableExists(ctx, "ghosts")
	require.NoError(t, err)
	assert.False(t, exists)

	columns, err := adapter.GetTableColumns(ctx, "pets")
	require.NoError(t, err)
	require.Len(t, columns, 3)
	assert.Equal(t, "id", columns[0].Name)
	assert.True(t, columns[0].IsPrimary)
	assert.True(t, columns[0].IsAutoIncrement)
	assert.Equal(t, "TEXT", columns[1].Type)
	assert.False(t, columns[1].Nullable)
	assert.Equal(t, "1", columns[2].Default)

	_, err = adapter.GetTableColumns(ctx, "pets); DROP TABLE users; --")
	assert.Error(t, err)
}

func TestMigrationRecords(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	require.NoError(t, adapter.CreateMigrationsTable(ctx))
	require.NoError(t, adapter.CreateMigrationsTable(ctx))

	applied, err := adapter.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	require.NoError(t, adapter.RecordMigration(ctx, "0001_pets", "pets", "abc"))

	applied, err = adapter.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.Contains(t, applied, "0001_pets")
	assert.NotNil(t, applied["0001_pets"])

	names, err := adapter.GetAllTableNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, common.MigrationsTable)
}

func TestScanRows(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	require.NoError(t, adapter.ExecuteMigration(ctx, `
		CREATE TABLE quests (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, xp_value INTEGER, ratio REAL, note TEXT);
		INSERT INTO quests (name, xp_value, ratio) VALUES ('Walk', 10, 1.5);
	`))

	rows, err := adapter.DB().QueryContext(ctx, "SELECT * FROM quests")
	require.NoError(t, err)
	defer rows.Close()

	result, err := common.ScanRows(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "xp_value", "ratio", "note"}, result.Columns)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, "Walk", row["name"])
	assert.Equal(t, int64(10), row["xp_value"])
	assert.Equal(t, 1.5, row["ratio"])
	assert.Nil(t, row["note"])
}
