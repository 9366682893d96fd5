package dashboard

import (
	"context"
	"errors"
	"mime/multipart"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Rana718/petquest/internal/auth"
	"github.com/Rana718/petquest/internal/gateway"
	"github.com/Rana718/petquest/internal/logging"
	"github.com/Rana718/petquest/internal/schema"
	"github.com/Rana718/petquest/internal/upload"
)

type Phase int

const (
	PhaseLoadingAuth Phase = iota
	PhaseCheckingAdmin
	// PhaseLogin is terminal: the visitor has no identity and is sent to
	// the login page.
	PhaseLogin
	PhaseForbidden
	PhaseLoadingSchemas
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoadingAuth:
		return "loading-auth"
	case PhaseCheckingAdmin:
		return "checking-admin"
	case PhaseLogin:
		return "login"
	case PhaseForbidden:
		return "forbidden"
	case PhaseLoadingSchemas:
		return "loading-schemas"
	default:
		return "ready"
	}
}

// Registry is the schema source the dashboard reads.
type Registry interface {
	ListTables(ctx context.Context) ([]string, error)
	GetSchema(ctx context.Context, table string) (*schema.Descriptor, error)
}

// Rows is the table data the dashboard reads and writes.
type Rows interface {
	List(ctx context.Context, table string, w gateway.Window) (*gateway.Page, error)
	Get(ctx context.Context, table, id string) (gateway.Row, error)
	Create(ctx context.Context, table string, payload map[string]interface{}) (interface{}, error)
	Update(ctx context.Context, table, id string, payload map[string]interface{}) error
	Delete(ctx context.Context, table, id string) error
}

type Uploader interface {
	Save(ctx context.Context, kind upload.Kind, fh *multipart.FileHeader) (string, error)
}

type Config struct {
	Resolver   auth.Resolver
	Authorizer auth.Authorizer
	Registry   Registry
	Rows       Rows
	Uploads    Uploader
	LoginURL   string
	PageSize   int
	// Concurrency bounds how many panels load at once.
	Concurrency int
	Logger      *zap.Logger
}

type Dashboard struct {
	resolver    auth.Resolver
	authorizer  auth.Authorizer
	registry    Registry
	rows        Rows
	uploads     Uploader
	loginURL    string
	pageSize    int
	concurrency int
	logger      *zap.Logger
}

func New(cfg Config) *Dashboard {
	d := &Dashboard{
		resolver:    cfg.Resolver,
		authorizer:  cfg.Authorizer,
		registry:    cfg.Registry,
		rows:        cfg.Rows,
		uploads:     cfg.Uploads,
		loginURL:    cfg.LoginURL,
		pageSize:    cfg.PageSize,
		concurrency: cfg.Concurrency,
		logger:      logging.OrNop(cfg.Logger),
	}
	if d.loginURL == "" {
		d.loginURL = "/login"
	}
	if d.pageSize <= 0 {
		d.pageSize = gateway.DefaultPageSize
	}
	if d.concurrency <= 0 {
		d.concurrency = 4
	}
	return d
}

// View is the outcome of opening the dashboard.
type View struct {
	Phase    Phase
	Trail    []Phase
	Identity *auth.Identity
	// Session is issued only to the owner.
	Session *Session
	// Redirect is set in PhaseLogin.
	Redirect string
	// Err is a session check or discovery failure shown as a banner.
	Err    error
	Panels []*Panel
}

func (v *View) enter(p Phase) {
	v.Phase = p
	v.Trail = append(v.Trail, p)
}

// Banner is the message shown for Err.
func (v *View) Banner() string {
	if v.Err == nil {
		return ""
	}
	if v.Phase == PhaseLoadingAuth {
		return "Could not check your session: " + v.Err.Error()
	}
	return "Could not load tables: " + v.Err.Error()
}

// Open walks loading-auth, checking-admin and loading-schemas to ready. A
// visitor without an identity ends in PhaseLogin and a non-owner in
// PhaseForbidden; neither reaches the registry or gets a session. Any other
// resolver failure stays in PhaseLoadingAuth with Err set.
func (d *Dashboard) Open(ctx context.Context, token string, session func() *Session) *View {
	v := &View{}

	v.enter(PhaseLoadingAuth)
	id, err := d.resolver.Resolve(ctx, token)
	if errors.Is(err, auth.ErrUnauthenticated) {
		d.logger.Debug("dashboard visitor not signed in", zap.Error(err))
		v.Redirect = d.loginURL
		v.enter(PhaseLogin)
		return v
	}
	if err != nil {
		d.logger.Error("session check failed", zap.Error(err))
		v.Err = err
		return v
	}
	v.Identity = id

	v.enter(PhaseCheckingAdmin)
	if !d.authorizer.IsAdmin(id) {
		d.logger.Info("dashboard access denied", zap.String("email", id.Email))
		v.enter(PhaseForbidden)
		return v
	}
	v.Session = session()

	v.enter(PhaseLoadingSchemas)
	tables, err := d.registry.ListTables(ctx)
	if err != nil {
		d.logger.Error("table discovery failed", zap.Error(err))
		v.Err = err
		return v
	}

	v.Panels = d.loadPanels(ctx, tables, v.Session)
	v.enter(PhaseReady)
	return v
}

// loadPanels loads every panel with bounded concurrency. A failing panel
// records its own error and never cancels the others.
func (d *Dashboard) loadPanels(ctx context.Context, tables []string, sess *Session) []*Panel {
	panels := make([]*Panel, len(tables))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, table := range tables {
		g.Go(func() error {
			panels[i] = d.LoadPanel(ctx, table, sess)
			return nil
		})
	}
	_ = g.Wait()
	return panels
}

// LoadPanel reads one table's descriptor and current page.
func (d *Dashboard) LoadPanel(ctx context.Context, table string, sess *Session) *Panel {
	p := &Panel{Table: table, Title: table}
	st := sess.Table(table)
	p.Page, p.Sort = st.Page, st.Sort

	desc, err := d.registry.GetSchema(ctx, table)
	if err != nil {
		d.logger.Warn("panel schema failed", zap.String("table", table), zap.Error(err))
		p.Err = err
		return p
	}
	p.Descriptor = desc
	p.Title = desc.DisplayTitle()
	p.Columns = columns(desc)

	page, err := d.rows.List(ctx, table, gateway.Window{Page: st.Page, Size: d.pageSize, Sort: st.Sort})
	if err != nil {
		d.logger.Warn("panel rows failed", zap.String("table", table), zap.Error(err))
		p.Err = err
		return p
	}
	p.Total = page.Total
	p.Pages = pages(page.Total, d.pageSize)
	p.Rows = rows(desc, page.Results)
	return p
}

// Delete removes a row. Deleting a missing row succeeds.
func (d *Dashboard) Delete(ctx context.Context, table, id string) error {
	return d.rows.Delete(ctx, table, id)
}

// Panel is one table's slice of the dashboard.
type Panel struct {
	Table      string
	Title      string
	Descriptor *schema.Descriptor
	Columns    []Column
	Rows       []PanelRow
	Page       int
	Pages      int
	Total      int64
	Sort       *gateway.Sort
	Err        error
}

type Column struct {
	Name  string
	Label string
}

type PanelRow struct {
	ID    string
	Cells []string
}

func columns(desc *schema.Descriptor) []Column {
	cols := make([]Column, len(desc.Fields))
	for i, f := range desc.Fields {
		cols[i] = Column{Name: f.Name, Label: f.Label()}
	}
	return cols
}

const previewLength = 80

func rows(desc *schema.Descriptor, results []gateway.Row) []PanelRow {
	out := make([]PanelRow, len(results))
	for i, r := range results {
		row := PanelRow{ID: gateway.FormatValue(r["id"]), Cells: make([]string, len(desc.Fields))}
		for j, f := range desc.Fields {
			row.Cells[j] = Preview(f, r[f.Name])
		}
		out[i] = row
	}
	return out
}

// Preview is a cell's text in the table view. Rich text loses its markup
// and long values are cut.
func Preview(f schema.Field, v interface{}) string {
	s := gateway.FormatValue(v)
	if f.Format == schema.FormatRichText {
		s = gateway.StripMarkup(s)
	}
	if utf8.RuneCountInString(s) > previewLength {
		r := []rune(s)
		s = string(r[:previewLength-1]) + "…"
	}
	return s
}

func pages(total int64, size int) int {
	if total == 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}

