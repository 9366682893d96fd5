package schema

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rana718/petquest/internal/types"
)

type fakeCatalog struct {
	tables []string
	err    error
}

func (c fakeCatalog) GetAllTableNames(ctx context.Context) ([]string, error) {
	return c.tables, c.err
}

// countingFS records how many files were opened.
type countingFS struct {
	fs.FS
	opens atomic.Int32
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.opens.Add(1)
	return c.FS.Open(name)
}

const petsJSON = `{
	"$id": "pets",
	"title": "Pets",
	"required": ["name"],
	"properties": {
		"name": {"type": "string"},
		"level": {"type": "integer", "readOnly": true},
		"species": {"type": "string", "enum": ["dog", "cat"], "enumNames": ["Dog"]},
		"tags": {"type": "array", "items": {"type": "string", "enum": ["a", "b"]}},
		"bio": {"type": "string", "format": "rich_text"},
		"born": {"type": "string", "format": "date-time"}
	}
}`

func TestParsePreservesOrderAndTypes(t *testing.T) {
	d, err := Parse("pets", []byte(petsJSON))
	require.NoError(t, err)

	assert.Equal(t, "pets", d.ID)
	assert.Equal(t, "Pets", d.Title)
	assert.Equal(t, []string{"name", "level", "species", "tags", "bio", "born"}, d.Names())

	name, _ := d.Field("name")
	assert.True(t, name.Required)
	assert.Equal(t, TypeString, name.Type)

	level, _ := d.Field("level")
	assert.True(t, level.ReadOnly)
	assert.Equal(t, TypeInteger, level.Type)

	species, _ := d.Field("species")
	assert.Equal(t, TypeEnum, species.Type)
	assert.Equal(t, []Choice{{Value: "dog", Label: "Dog"}, {Value: "cat", Label: "cat"}}, species.Choices)
	assert.True(t, species.HasChoice("cat"))
	assert.False(t, species.HasChoice("cow"))

	tags, _ := d.Field("tags")
	assert.Equal(t, TypeEnumSet, tags.Type)
	assert.Len(t, tags.Choices, 2)

	bio, _ := d.Field("bio")
	assert.Equal(t, FormatRichText, bio.Format)

	born, _ := d.Field("born")
	assert.Equal(t, FormatDateTime, born.Format)
}

func TestParseYAML(t *testing.T) {
	doc := `
title: Toys
properties:
  label:
    type: string
    required: true
  price:
    type: number
`
	d, err := Parse("toys", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "toys", d.ID)
	assert.Equal(t, []string{"label", "price"}, d.Names())
	label, _ := d.Field("label")
	assert.True(t, label.Required)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"duplicate field":     `{"properties": {"a": {"type": "string"}, "a": {"type": "integer"}}}`,
		"unknown type":        `{"properties": {"a": {"type": "object"}}}`,
		"array without enum":  `{"properties": {"a": {"type": "array", "items": {"type": "string"}}}}`,
		"undeclared required": `{"required": ["b"], "properties": {"a": {"type": "string"}}}`,
		"not an object":       `["a"]`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("x", []byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestMarshalJSONKeepsOrder(t *testing.T) {
	d, err := Parse("pets", []byte(petsJSON))
	require.NoError(t, err)

	out, err := json.Marshal(d)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `"$id":"pets"`)
	assert.Contains(t, s, `"required":["name"]`)
	assert.Less(t, strings.Index(s, `"name":{`), strings.Index(s, `"level":{`))
	assert.Less(t, strings.Index(s, `"level":{`), strings.Index(s, `"species":{`))
	assert.Less(t, strings.Index(s, `"tags":{`), strings.Index(s, `"bio":{`))

	back, err := Parse("pets", out)
	require.NoError(t, err)
	assert.Equal(t, d.Names(), back.Names())
	for _, f := range d.Fields {
		got, ok := back.Field(f.Name)
		require.True(t, ok)
		assert.Equal(t, f.Type, got.Type, f.Name)
		assert.Equal(t, f.Format, got.Format, f.Name)
		assert.Equal(t, f.ReadOnly, got.ReadOnly, f.Name)
		assert.Equal(t, f.Required, got.Required, f.Name)
	}
}

func TestListTables(t *testing.T) {
	r := NewRegistry(fakeCatalog{tables: []string{"users", "_petquest_migrations", "pets", "sqlite_sequence"}}, nil)

	tables, err := r.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pets", "users"}, tables)

	known, err := r.Known(context.Background(), "pets")
	require.NoError(t, err)
	assert.True(t, known)

	known, err = r.Known(context.Background(), "_petquest_migrations")
	require.NoError(t, err)
	assert.False(t, known)
}

func TestListTablesDiscoveryError(t *testing.T) {
	cause := errors.New("catalog offline")
	r := NewRegistry(fakeCatalog{err: cause}, nil)

	_, err := r.ListTables(context.Background())
	var discovery *DiscoveryError
	require.ErrorAs(t, err, &discovery)
	assert.ErrorIs(t, err, cause)
}

func TestGetSchemaIsMemoized(t *testing.T) {
	src := &countingFS{FS: fstest.MapFS{
		"pets-schema.json": {Data: []byte(petsJSON)},
	}}
	r := NewRegistry(fakeCatalog{}, nil, src)

	first, err := r.GetSchema(context.Background(), "pets")
	require.NoError(t, err)
	opens := src.opens.Load()
	assert.Positive(t, opens)

	second, err := r.GetSchema(context.Background(), "pets")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, opens, src.opens.Load())
}

func TestGetSchemaNotFound(t *testing.T) {
	r := NewRegistry(fakeCatalog{}, nil, fstest.MapFS{})

	for _, table := range []string{"ghosts", "../etc/passwd"} {
		_, err := r.GetSchema(context.Background(), table)
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound, table)
		assert.Equal(t, "Schema not found for "+table, err.Error())
	}
}

func TestOverrideSourceWins(t *testing.T) {
	override := fstest.MapFS{
		"pets-schema.yaml": {Data: []byte("title: Custom Pets\nproperties:\n  name:\n    type: string\n")},
	}
	r := NewRegistry(fakeCatalog{}, nil, override, Embedded())

	d, err := r.GetSchema(context.Background(), "pets")
	require.NoError(t, err)
	assert.Equal(t, "Custom Pets", d.Title)

	users, err := r.GetSchema(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, "Users", users.Title)
}

func TestEmbeddedDescriptorsParse(t *testing.T) {
	r := NewRegistry(fakeCatalog{}, nil)

	tables, err := r.Available()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"challenge_leaderboard",
		"challenge_participations",
		"challenges",
		"friendships",
		"leaderboard_scores",
		"messages",
		"pets",
		"quest_logs",
		"quests",
		"users",
	}, tables)

	for _, table := range tables {
		d, err := r.GetSchema(context.Background(), table)
		require.NoError(t, err, table)
		assert.Equal(t, "id", d.Fields[0].Name, table)
		assert.True(t, d.Fields[0].ReadOnly, table)
		assert.Equal(t, TypeInteger, d.IDType(), table)
	}

	challenges, err := r.GetSchema(context.Background(), "challenges")
	require.NoError(t, err)
	banner, _ := challenges.Field("banner_url")
	assert.Equal(t, FormatMediaURL, banner.Format)
	rules, _ := challenges.Field("rules_url")
	assert.Equal(t, FormatFileURL, rules.Format)
}

func TestDrift(t *testing.T) {
	d, err := NewDescriptor("pets", "Pets", []Field{{Name: "id"}, {Name: "name"}, {Name: "level"}})
	require.NoError(t, err)

	report := Drift(d, []types.SchemaColumn{{Name: "id"}, {Name: "name"}, {Name: "nickname"}, {Name: "age"}})
	assert.Equal(t, []string{"level"}, report.MissingColumns)
	assert.Equal(t, []string{"age", "nickname"}, report.UndeclaredColumns)
	assert.False(t, report.Clean())

	clean := Drift(d, []types.SchemaColumn{{Name: "id"}, {Name: "name"}, {Name: "level"}})
	assert.True(t, clean.Clean())
}

func TestCacheFirstWriterWins(t *testing.T) {
	c := NewCache()
	a := &Descriptor{Table: "a"}
	b := &Descriptor{Table: "a"}

	assert.Same(t, a, c.Put("a", a))
	assert.Same(t, a, c.Put("a", b))
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 1, c.Len())
}
