package form

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rana718/petquest/internal/schema"
	"github.com/Rana718/petquest/internal/upload"
)

const questsJSON = `{
	"$id": "quests",
	"title": "Quests",
	"required": ["title"],
	"properties": {
		"id": {"type": "integer", "readOnly": true},
		"title": {"type": "string"},
		"description": {"type": "string", "format": "rich-text"},
		"banner": {"type": "string", "format": "media-url"},
		"xp_reward": {"type": "integer"},
		"weight": {"type": "number"},
		"starts_at": {"type": "string", "format": "date-time"},
		"is_custom": {"type": "boolean"},
		"contact": {"type": "string", "format": "email"},
		"tags": {"type": "array", "items": {"type": "string", "enum": ["walk", "feed", "play"]}},
		"type": {"type": "string", "enum": ["daily", "weekly"], "enumNames": ["Daily", "Weekly"]},
		"created_at": {"type": "string", "format": "date-time", "readOnly": true}
	}
}`

var valueAttr = regexp.MustCompile(`value="([^"]*)"`)

func questDescriptor(t *testing.T) *schema.Descriptor {
	t.Helper()
	d, err := schema.Parse("quests", []byte(questsJSON))
	require.NoError(t, err)
	return d
}

func widget(t *testing.T, d *schema.Descriptor, name string) Widget {
	t.Helper()
	f, ok := d.Field(name)
	require.True(t, ok, name)
	return Resolve(f)
}

func TestResolvePrecedence(t *testing.T) {
	d := questDescriptor(t)
	want := map[string]Kind{
		"id":          KindReadOnly,
		"title":       KindText,
		"description": KindRichText,
		"banner":      KindUpload,
		"xp_reward":   KindNumber,
		"weight":      KindNumber,
		"starts_at":   KindDateTime,
		"is_custom":   KindCheckbox,
		"contact":     KindEmail,
		"tags":        KindMultiSelect,
		"type":        KindSelect,
		"created_at":  KindReadOnly,
	}
	for name, kind := range want {
		assert.Equal(t, kind, widget(t, d, name).Kind, name)
	}

	assert.Equal(t, upload.KindMedia, widget(t, d, "banner").Upload)
	assert.True(t, widget(t, d, "xp_reward").Integer)
	assert.False(t, widget(t, d, "weight").Integer)
	assert.Len(t, widget(t, d, "type").Choices, 2)
}

func TestResolveEarlierRulesWin(t *testing.T) {
	// read-only beats rich-text, rich-text beats the numeric type.
	assert.Equal(t, KindReadOnly, Resolve(schema.Field{Name: "a", Format: schema.FormatRichText, ReadOnly: true}).Kind)
	assert.Equal(t, KindRichText, Resolve(schema.Field{Name: "b", Type: schema.TypeInteger, Format: schema.FormatRichText}).Kind)
	assert.Equal(t, KindUpload, Resolve(schema.Field{Name: "c", Type: schema.TypeInteger, Format: schema.FormatFileURL}).Kind)
	assert.Equal(t, KindNumber, Resolve(schema.Field{Name: "d", Type: schema.TypeNumber, Format: schema.FormatDateTime}).Kind)
}

func TestWidgetsSkipsReadOnly(t *testing.T) {
	d := questDescriptor(t)
	for _, w := range Widgets(d, false) {
		assert.NotEqual(t, KindReadOnly, w.Kind, w.Name())
	}
	assert.Len(t, Widgets(d, true), len(d.Fields))
}

func TestDecode(t *testing.T) {
	d := questDescriptor(t)
	tests := []struct {
		field   string
		posted  []string
		want    interface{}
		present bool
	}{
		{"xp_reward", []string{"25"}, int64(25), true},
		{"xp_reward", []string{""}, nil, false},
		{"weight", []string{" 2.5 "}, 2.5, true},
		{"starts_at", []string{"2024-06-01T09:30"}, "2024-06-01T09:30:00Z", true},
		{"starts_at", []string{"2024-06-01T09:30:00+02:00"}, "2024-06-01T07:30:00Z", true},
		{"is_custom", []string{"0"}, int64(0), true},
		{"is_custom", []string{"0", "1"}, int64(1), true},
		{"tags", []string{""}, []string{}, true},
		{"tags", []string{"", "play", "walk"}, []string{"walk", "play"}, true},
		{"type", []string{""}, nil, false},
		{"type", []string{"weekly"}, "weekly", true},
		{"description", []string{"<p>Hi</p>"}, "<p>Hi</p>", true},
		{"title", nil, nil, false},
		{"id", []string{"9"}, nil, false},
	}
	for _, tt := range tests {
		v, present, err := Decode(widget(t, d, tt.field), tt.posted)
		require.NoError(t, err, tt.field)
		assert.Equal(t, tt.present, present, "%s %v", tt.field, tt.posted)
		assert.Equal(t, tt.want, v, "%s %v", tt.field, tt.posted)
	}
}

func TestDecodeErrors(t *testing.T) {
	d := questDescriptor(t)
	for field, posted := range map[string][]string{
		"xp_reward": {"2.5"},
		"weight":    {"heavy"},
		"starts_at": {"tomorrow"},
		"tags":      {"", "sleep"},
		"type":      {"monthly"},
	} {
		_, _, err := Decode(widget(t, d, field), posted)
		var ierr *InputError
		require.True(t, errors.As(err, &ierr), field)
		assert.Equal(t, field, ierr.Field)
	}
}

func TestPayloadCreateOmitsEmptyAndReadOnly(t *testing.T) {
	d, err := schema.Parse("pets", []byte(`{"title":"Pets","properties":{"name":{"type":"string"},"level":{"type":"integer","readOnly":true}}}`))
	require.NoError(t, err)

	payload, err := Payload(d, map[string][]string{"name": {"Rex"}, "level": {"99"}}, ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Rex"}, payload)

	payload, err = Payload(d, map[string][]string{"name": {""}}, ModeCreate)
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestPayloadUpdateClearsOptional(t *testing.T) {
	d := questDescriptor(t)

	payload, err := Payload(d, map[string][]string{
		"id":        {"3"},
		"title":     {"Walk"},
		"xp_reward": {""},
		"contact":   {""},
	}, ModeUpdate)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"title": "Walk", "xp_reward": nil, "contact": nil}, payload)

	_, err = Payload(d, map[string][]string{"title": {" "}, "xp_reward": {"x"}}, ModeUpdate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title: is required")
	assert.Contains(t, err.Error(), "xp_reward")
}

func TestToggle(t *testing.T) {
	sel := Toggle(nil, "walk")
	sel = Toggle(sel, "play")
	assert.Equal(t, []string{"walk", "play"}, sel)
	sel = Toggle(sel, "walk")
	assert.Equal(t, []string{"play"}, sel)
}

func TestRender(t *testing.T) {
	d := questDescriptor(t)

	html, err := Render(widget(t, d, "is_custom"), int64(1))
	require.NoError(t, err)
	assert.Contains(t, string(html), `<input type="hidden" name="is_custom" value="0">`)
	assert.Contains(t, string(html), "checked")

	html, err = Render(widget(t, d, "type"), "weekly")
	require.NoError(t, err)
	assert.Contains(t, string(html), `<option value="weekly" selected>Weekly</option>`)

	html, err = Render(widget(t, d, "tags"), `["play"]`)
	require.NoError(t, err)
	assert.Contains(t, string(html), `value="play" checked`)
	assert.NotContains(t, string(html), `value="walk" checked`)

	html, err = Render(widget(t, d, "starts_at"), "2024-06-01T09:30:00Z")
	require.NoError(t, err)
	assert.Contains(t, string(html), `value="2024-06-01T09:30:00" step="1"`)

	html, err = Render(widget(t, d, "title"), `"><script>`)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>")

	html, err = Render(widget(t, d, "banner"), "/uploads/a.png")
	require.NoError(t, err)
	assert.Contains(t, string(html), `name="banner__upload"`)
	assert.Contains(t, string(html), `accept="image/*,video/*"`)
	assert.True(t, strings.Contains(string(html), `<img src="/uploads/a.png"`))

	html, err = Render(widget(t, d, "created_at"), "2024-06-01T09:30:00Z")
	require.NoError(t, err)
	assert.Contains(t, string(html), "disabled")
	assert.NotContains(t, string(html), "name=")
}

func TestDateTimeSurvivesRenderAndDecode(t *testing.T) {
	d := questDescriptor(t)
	w := widget(t, d, "starts_at")

	for _, stored := range []string{"2024-05-01T12:34:56Z", "2024-05-01T00:00:00Z", "2024-12-31T23:59:59Z"} {
		html, err := Render(w, stored)
		require.NoError(t, err)
		m := valueAttr.FindStringSubmatch(string(html))
		require.Len(t, m, 2, string(html))

		resaved, present, err := Decode(w, []string{m[1]})
		require.NoError(t, err)
		assert.True(t, present)
		assert.Equal(t, stored, resaved, "shown as %s", m[1])
	}
}

func TestStateBlocksSubmitWhileUploading(t *testing.T) {
	s := NewState()
	assert.True(t, s.CanSubmit())

	require.NoError(t, s.BeginUpload("banner"))
	assert.True(t, s.Busy("banner"))
	assert.False(t, s.CanSubmit())
	assert.Error(t, s.BeginUpload("banner"))

	s.CompleteUpload("banner", "/uploads/x.png")
	assert.True(t, s.CanSubmit())
	url, ok := s.Value("banner")
	assert.True(t, ok)
	assert.Equal(t, "/uploads/x.png", url)

	posted := map[string][]string{"banner": {""}}
	s.Apply(posted)
	assert.Equal(t, []string{"/uploads/x.png"}, posted["banner"])
}

func TestStateUploadFailureKeepsValue(t *testing.T) {
	s := NewState()
	s.CompleteUpload("banner", "/uploads/old.png")

	boom := errors.New("disk full")
	_, err := s.Upload(context.Background(), "banner", func(ctx context.Context) (string, error) {
		assert.False(t, s.CanSubmit())
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Err("banner"), boom)
	assert.True(t, s.CanSubmit())

	url, _ := s.Value("banner")
	assert.Equal(t, "/uploads/old.png", url)
}
