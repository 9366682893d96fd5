package dashboard

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Rana718/petquest/internal/auth"
	"github.com/Rana718/petquest/internal/form"
	"github.com/Rana718/petquest/internal/gateway"
	"github.com/Rana718/petquest/internal/schema"
	"github.com/Rana718/petquest/internal/upload"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const petsJSON = `{"title":"Pets","required":["name"],"properties":{
	"id":{"type":"integer","readOnly":true},
	"name":{"type":"string"},
	"level":{"type":"integer","readOnly":true},
	"avatar_url":{"type":"string","format":"media-url"},
	"bio":{"type":"string","format":"rich-text"}
}}`

type fakeRegistry struct {
	tables      []string
	listErr     error
	schemas     map[string]*schema.Descriptor
	listCalls   atomic.Int32
	schemaCalls atomic.Int32
}

func (r *fakeRegistry) ListTables(ctx context.Context) ([]string, error) {
	r.listCalls.Add(1)
	return r.tables, r.listErr
}

func (r *fakeRegistry) GetSchema(ctx context.Context, table string) (*schema.Descriptor, error) {
	r.schemaCalls.Add(1)
	d, ok := r.schemas[table]
	if !ok {
		return nil, &schema.NotFoundError{Table: table}
	}
	return d, nil
}

type fakeRows struct {
	mu        sync.Mutex
	data      map[string][]gateway.Row
	failList  map[string]error
	created   []map[string]interface{}
	updated   map[string]map[string]interface{}
	createErr error
	calls     atomic.Int32
}

func (f *fakeRows) List(ctx context.Context, table string, w gateway.Window) (*gateway.Page, error) {
	f.calls.Add(1)
	if err := f.failList[table]; err != nil {
		return nil, err
	}
	rows := f.data[table]
	w = w.Normalize(gateway.DefaultPageSize)
	start := w.Offset()
	if start > len(rows) {
		start = len(rows)
	}
	end := start + w.Size
	if end > len(rows) {
		end = len(rows)
	}
	return &gateway.Page{Results: rows[start:end], Total: int64(len(rows))}, nil
}

func (f *fakeRows) Get(ctx context.Context, table, id string) (gateway.Row, error) {
	f.calls.Add(1)
	for _, r := range f.data[table] {
		if gateway.FormatValue(r["id"]) == id {
			return r, nil
		}
	}
	return nil, gateway.ErrRowNotFound
}

func (f *fakeRows) Create(ctx context.Context, table string, payload map[string]interface{}) (interface{}, error) {
	f.calls.Add(1)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, payload)
	return int64(len(f.created)), nil
}

func (f *fakeRows) Update(ctx context.Context, table, id string, payload map[string]interface{}) error {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = make(map[string]map[string]interface{})
	}
	f.updated[id] = payload
	return nil
}

func (f *fakeRows) Delete(ctx context.Context, table, id string) error {
	f.calls.Add(1)
	return nil
}

type fakeUploader struct {
	url string
	err error
}

func (u fakeUploader) Save(ctx context.Context, kind upload.Kind, fh *multipart.FileHeader) (string, error) {
	return u.url, u.err
}

type fixture struct {
	dash     *Dashboard
	registry *fakeRegistry
	rows     *fakeRows
	sess     *Session
	issued   int
}

func (f *fixture) session() *Session {
	f.issued++
	return f.sess
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pets, err := schema.Parse("pets", []byte(petsJSON))
	require.NoError(t, err)
	users, err := schema.NewDescriptor("users", "Users", []schema.Field{{Name: "id", Type: schema.TypeInteger, ReadOnly: true}, {Name: "email"}})
	require.NoError(t, err)

	var petRows []gateway.Row
	for i := 1; i <= 120; i++ {
		petRows = append(petRows, gateway.Row{"id": int64(i), "name": "pet", "level": int64(1), "bio": "<p>Good <b>dog</b></p>"})
	}

	f := &fixture{
		registry: &fakeRegistry{
			tables:  []string{"broken", "pets", "users"},
			schemas: map[string]*schema.Descriptor{"pets": pets, "users": users},
		},
		rows: &fakeRows{
			data:     map[string][]gateway.Row{"pets": petRows},
			failList: map[string]error{"users": errors.New("users table is locked")},
		},
	}

	f.dash = New(Config{
		Resolver:    tokenResolver{},
		Authorizer:  auth.OwnerAuthorizer{Email: "owner@example.com"},
		Registry:    f.registry,
		Rows:        f.rows,
		Uploads:     fakeUploader{url: "/uploads/new.png"},
		LoginURL:    "/login",
		Concurrency: 2,
	})
	sessions := NewSessions()
	f.sess, _ = sessions.Get("")
	return f
}

// tokenResolver treats the token as the email.
type tokenResolver struct{}

func (tokenResolver) Resolve(ctx context.Context, token string) (*auth.Identity, error) {
	if token == "" {
		return nil, auth.ErrUnauthenticated
	}
	return &auth.Identity{Email: token}, nil
}

func TestOpenUnauthenticatedRedirects(t *testing.T) {
	f := newFixture(t)

	v := f.dash.Open(context.Background(), "", f.session)
	assert.Equal(t, PhaseLogin, v.Phase)
	assert.Equal(t, "/login", v.Redirect)
	assert.Equal(t, []Phase{PhaseLoadingAuth, PhaseLogin}, v.Trail)
	assert.Zero(t, f.registry.listCalls.Load())
	assert.Zero(t, f.rows.calls.Load())
	assert.Zero(t, f.issued)
}

func TestOpenNonOwnerIsForbidden(t *testing.T) {
	f := newFixture(t)

	v := f.dash.Open(context.Background(), "someone@example.com", f.session)
	assert.Equal(t, PhaseForbidden, v.Phase)
	assert.Equal(t, []Phase{PhaseLoadingAuth, PhaseCheckingAdmin, PhaseForbidden}, v.Trail)
	assert.Empty(t, v.Panels)
	assert.Zero(t, f.registry.listCalls.Load())
	assert.Zero(t, f.registry.schemaCalls.Load())
	assert.Zero(t, f.rows.calls.Load())
	assert.Zero(t, f.issued)
}

type downResolver struct{}

func (downResolver) Resolve(context.Context, string) (*auth.Identity, error) {
	return nil, errors.New("users service unreachable: connection refused")
}

func TestOpenResolverOutageShowsBanner(t *testing.T) {
	f := newFixture(t)
	f.dash.resolver = downResolver{}

	v := f.dash.Open(context.Background(), "owner@example.com", f.session)
	assert.Equal(t, PhaseLoadingAuth, v.Phase)
	assert.Empty(t, v.Redirect)
	require.Error(t, v.Err)
	assert.Equal(t, "Could not check your session: users service unreachable: connection refused", v.Banner())
	assert.Zero(t, f.issued)
	assert.Zero(t, f.registry.listCalls.Load())
}

func TestOpenReadyIsolatesPanelFailures(t *testing.T) {
	f := newFixture(t)

	v := f.dash.Open(context.Background(), "Owner@Example.com", f.session)
	require.Equal(t, PhaseReady, v.Phase)
	assert.Same(t, f.sess, v.Session)
	assert.Equal(t, 1, f.issued)
	assert.Equal(t, []Phase{PhaseLoadingAuth, PhaseCheckingAdmin, PhaseLoadingSchemas, PhaseReady}, v.Trail)
	require.Len(t, v.Panels, 3)

	byTable := map[string]*Panel{}
	for _, p := range v.Panels {
		byTable[p.Table] = p
	}

	var nf *schema.NotFoundError
	assert.True(t, errors.As(byTable["broken"].Err, &nf))
	assert.EqualError(t, byTable["users"].Err, "users table is locked")

	pets := byTable["pets"]
	require.NoError(t, pets.Err)
	assert.Equal(t, "Pets", pets.Title)
	assert.Equal(t, int64(120), pets.Total)
	assert.Equal(t, 3, pets.Pages)
	assert.Len(t, pets.Rows, 50)
	assert.Equal(t, "Good dog", pets.Rows[0].Cells[4])
}

func TestOpenDiscoveryFailure(t *testing.T) {
	f := newFixture(t)
	f.registry.listErr = &schema.DiscoveryError{Err: errors.New("catalog down")}

	v := f.dash.Open(context.Background(), "owner@example.com", f.session)
	assert.Equal(t, PhaseLoadingSchemas, v.Phase)
	assert.Error(t, v.Err)
	assert.Contains(t, v.Banner(), "Could not load tables: ")
	assert.Empty(t, v.Panels)
}

func TestSessionPageIsUsed(t *testing.T) {
	f := newFixture(t)
	f.sess.SetPage("pets", 3)

	p := f.dash.LoadPanel(context.Background(), "pets", f.sess)
	require.NoError(t, p.Err)
	assert.Equal(t, 3, p.Page)
	assert.Len(t, p.Rows, 20)
	assert.Equal(t, "101", p.Rows[0].ID)

	f.sess.SetSort("pets", gateway.ParseSort("name:desc"))
	assert.Equal(t, 1, f.sess.Table("pets").Page)
}

func TestAddModalLeavesOutReadOnly(t *testing.T) {
	f := newFixture(t)

	m, err := f.dash.AddModal(context.Background(), "pets")
	require.NoError(t, err)
	assert.Equal(t, "Add Pets", m.Title)
	assert.False(t, m.Editing())

	var names []string
	for _, fld := range m.Fields {
		names = append(names, fld.Widget.Name())
	}
	assert.Equal(t, []string{"name", "avatar_url", "bio"}, names)
}

func TestEditModalShowsCurrentValues(t *testing.T) {
	f := newFixture(t)

	m, err := f.dash.EditModal(context.Background(), f.sess, "pets", "2")
	require.NoError(t, err)
	assert.True(t, m.Editing())
	assert.Equal(t, "2", f.sess.Table("pets").Editing)
	require.Len(t, m.Fields, 5)
	assert.Contains(t, string(m.Fields[1].Input), `value="pet"`)
	assert.Contains(t, string(m.Fields[2].Input), "disabled")

	_, err = f.dash.EditModal(context.Background(), f.sess, "pets", "999")
	assert.ErrorIs(t, err, gateway.ErrRowNotFound)
}

func TestSaveCreatePayloadExcludesReadOnly(t *testing.T) {
	f := newFixture(t)

	m, err := f.dash.Save(context.Background(), f.sess, SaveRequest{
		Table:  "pets",
		Posted: map[string][]string{"name": {"Rex"}, "level": {"7"}, "bio": {""}},
	})
	require.NoError(t, err)
	assert.Nil(t, m)
	require.Len(t, f.rows.created, 1)
	assert.Equal(t, map[string]interface{}{"name": "Rex"}, f.rows.created[0])
}

func TestSaveUploadsAttachedFile(t *testing.T) {
	f := newFixture(t)
	f.sess.SetEditing("pets", "1")

	_, err := f.dash.Save(context.Background(), f.sess, SaveRequest{
		Table:  "pets",
		RowID:  "1",
		Posted: map[string][]string{"name": {"Rex"}, "avatar_url": {"/uploads/old.png"}},
		Files:  map[string]*multipart.FileHeader{"avatar_url" + form.UploadSuffix: {Filename: "a.png"}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Rex", "avatar_url": "/uploads/new.png"}, f.rows.updated["1"])
	assert.Empty(t, f.sess.Table("pets").Editing)
}

func TestSaveFailureKeepsModalOpen(t *testing.T) {
	f := newFixture(t)
	f.rows.createErr = &gateway.ValidationError{Table: "pets", Fields: []string{"name"}, Reason: "missing required fields"}

	m, err := f.dash.Save(context.Background(), f.sess, SaveRequest{
		Table:  "pets",
		Posted: map[string][]string{"bio": {"<p>draft</p>"}},
	})
	require.Error(t, err)
	require.NotNil(t, m)
	assert.Contains(t, m.Err, "missing required fields")
	assert.Equal(t, "missing required fields", m.Fields[0].Error)
	assert.Contains(t, string(m.Fields[2].Input), "draft")
}

func TestSaveInputErrorsAreInline(t *testing.T) {
	f := newFixture(t)
	f.dash.uploads = fakeUploader{err: &upload.Error{Kind: upload.KindMedia, Reason: "too large", Rejected: true}}

	m, err := f.dash.Save(context.Background(), f.sess, SaveRequest{
		Table:  "pets",
		Posted: map[string][]string{"name": {"Rex"}},
		Files:  map[string]*multipart.FileHeader{"avatar_url" + form.UploadSuffix: {Filename: "big.png"}},
	})
	var uerr *upload.Error
	require.True(t, errors.As(err, &uerr))
	require.NotNil(t, m)
	assert.True(t, strings.Contains(m.Err, "too large"))
	assert.Empty(t, f.rows.created)
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("a", 200)
	assert.Len(t, []rune(Preview(schema.Field{}, long)), previewLength)
	assert.Equal(t, "hi there", Preview(schema.Field{Format: schema.FormatRichText}, "<p>hi</p><p>there</p>"))
	assert.Equal(t, "", Preview(schema.Field{}, nil))
}

func TestSessionsAreIndependent(t *testing.T) {
	sessions := NewSessions()
	a, created := sessions.Get("")
	assert.True(t, created)
	b, _ := sessions.Get("unknown")
	assert.NotEqual(t, a.ID, b.ID)

	again, created := sessions.Get(a.ID)
	assert.False(t, created)
	assert.Same(t, a, again)

	a.SetPage("pets", 4)
	assert.Equal(t, 1, b.Table("pets").Page)
	assert.Equal(t, 2, sessions.Len())
}

func TestSessionsExpireWhenIdle(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sessions := NewSessions(WithSessionTTL(time.Hour), WithSessionClock(func() time.Time { return now }))

	a, _ := sessions.Get("")
	now = now.Add(45 * time.Minute)
	again, created := sessions.Get(a.ID)
	assert.False(t, created)
	assert.Same(t, a, again)

	// Each use resets the idle clock.
	now = now.Add(45 * time.Minute)
	_, created = sessions.Get(a.ID)
	assert.False(t, created)

	now = now.Add(61 * time.Minute)
	fresh, created := sessions.Get(a.ID)
	assert.True(t, created)
	assert.NotEqual(t, a.ID, fresh.ID)
	assert.Equal(t, 1, sessions.Len())
}

func TestSessionsEvictLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	sessions := NewSessions(WithMaxSessions(2), WithSessionClock(tick))

	a, _ := sessions.Get("")
	b, _ := sessions.Get("")
	sessions.Get(a.ID)
	c, _ := sessions.Get("")

	assert.Equal(t, 2, sessions.Len())
	_, created := sessions.Get(b.ID)
	assert.True(t, created, "least recently used session should be gone")
	_, created = sessions.Get(c.ID)
	assert.False(t, created)
}
