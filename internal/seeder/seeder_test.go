package seeder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rana718/petquest/internal/database/sqlite"
	"github.com/Rana718/petquest/internal/gateway"
	"github.com/Rana718/petquest/internal/migrator"
	"github.com/Rana718/petquest/internal/schema"
)

func TestReferences(t *testing.T) {
	desc, err := schema.NewDescriptor("messages", "Messages", []schema.Field{
		{Name: "id", Type: schema.TypeInteger},
		{Name: "sender_user_id", Type: schema.TypeInteger},
		{Name: "pet_id", Type: schema.TypeInteger},
		{Name: "friend_id", Type: schema.TypeInteger},
		{Name: "quest_id", Type: schema.TypeString},
	})
	require.NoError(t, err)

	refs := References(desc, map[string]bool{"users": true, "pets": true, "quests": true})
	assert.Equal(t, []Reference{
		{Column: "sender_user_id", Table: "users"},
		{Column: "pet_id", Table: "pets"},
	}, refs)
}

func TestBuildInsertionOrder(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTable("quest_logs", []Reference{{Column: "pet_id", Table: "pets"}, {Column: "quest_id", Table: "quests"}})
	g.AddTable("pets", []Reference{{Column: "owner_user_id", Table: "users"}})
	g.AddTable("quests", nil)
	g.AddTable("users", nil)

	order, err := g.BuildInsertionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "pets", "quests", "quest_logs"}, order)
	assert.Equal(t, order, g.GetOrder())
}

func TestBuildInsertionOrderRejectsCycles(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTable("a", []Reference{{Column: "b_id", Table: "b"}})
	g.AddTable("b", []Reference{{Column: "a_id", Table: "a"}})

	_, err := g.BuildInsertionOrder()
	assert.ErrorContains(t, err, "circular dependency")
}

func TestGeneratedValuesFitTheirFields(t *testing.T) {
	gen := NewDataGenerator(7, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	status := schema.Field{Name: "status", Type: schema.TypeEnum, Choices: []schema.Choice{{Value: "done"}, {Value: "skipped"}}}
	tags := schema.Field{Name: "tags", Type: schema.TypeEnumSet, Choices: []schema.Choice{{Value: "walk"}, {Value: "play"}}}

	for i := 0; i < 20; i++ {
		assert.True(t, status.HasChoice(gen.Value(status).(string)))
		for _, tag := range gen.Value(tags).([]string) {
			assert.True(t, tags.HasChoice(tag))
		}

		at, err := time.Parse(time.RFC3339, gen.Value(schema.Field{Name: "start_date", Format: schema.FormatDateTime}).(string))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), at, 31*24*time.Hour)

		assert.Contains(t, gen.Value(schema.Field{Name: "email", Format: schema.FormatEmail}), "@")
		assert.IsType(t, int64(0), gen.Value(schema.Field{Name: "xp_value", Type: schema.TypeInteger}))
		assert.IsType(t, float64(0), gen.Value(schema.Field{Name: "score", Type: schema.TypeNumber}))
	}
}

func TestSeedThroughGateway(t *testing.T) {
	ctx := context.Background()
	adapter := sqlite.New()
	require.NoError(t, adapter.Connect(ctx, "sqlite://"+filepath.Join(t.TempDir(), "seed.db")))
	t.Cleanup(func() { adapter.Close() })

	registry := schema.NewRegistry(adapter, nil, schema.Embedded())
	_, err := migrator.New(adapter, registry, nil).Apply(ctx)
	require.NoError(t, err)

	s := New(gateway.New(adapter, registry), registry, nil)
	result, err := s.Seed(ctx, SeedConfig{Count: 5, Seed: 42, Tables: map[string]int{"users": 3, "pets": 6, "quests": 4}})
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "pets", "quests"}, result.Order)
	assert.Equal(t, map[string]int{"users": 3, "pets": 6, "quests": 4}, result.Created)

	var orphans int
	require.NoError(t, adapter.DB().QueryRow(
		`SELECT COUNT(*) FROM pets WHERE owner_user_id NOT IN (SELECT id FROM users)`).Scan(&orphans))
	assert.Zero(t, orphans)

	var level int
	require.NoError(t, adapter.DB().QueryRow(`SELECT MAX(level) FROM pets`).Scan(&level))
	assert.Equal(t, 1, level)
}

func TestSeedUnknownTable(t *testing.T) {
	ctx := context.Background()
	adapter := sqlite.New()
	require.NoError(t, adapter.Connect(ctx, "sqlite://"+filepath.Join(t.TempDir(), "seed.db")))
	t.Cleanup(func() { adapter.Close() })

	registry := schema.NewRegistry(adapter, nil, schema.Embedded())
	_, err := New(gateway.New(adapter, registry), registry, nil).Seed(ctx, SeedConfig{Tables: map[string]int{"ghosts": 1}})
	assert.ErrorContains(t, err, "unknown table")
}
