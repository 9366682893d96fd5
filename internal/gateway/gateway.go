package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/database/common"
	"github.com/Rana718/petquest/internal/logging"
	"github.com/Rana718/petquest/internal/schema"
)

// Store is the slice of a database adapter the gateway needs.
type Store interface {
	DB() *sql.DB
	Dialect() common.Dialect
}

// Schemas resolves table names and their descriptors.
type Schemas interface {
	Known(ctx context.Context, table string) (bool, error)
	GetSchema(ctx context.Context, table string) (*schema.Descriptor, error)
}

// Gateway is the only writer of row data. Mutations are single statements
// committed on their own; concurrent edits of one row are last-write-wins.
type Gateway struct {
	db       *sql.DB
	dialect  common.Dialect
	schemas  Schemas
	pageSize int
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Gateway)

func WithPageSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.pageSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = logging.OrNop(l) }
}

func New(store Store, schemas Schemas, opts ...Option) *Gateway {
	g := &Gateway{
		db:       store.DB(),
		dialect:  store.Dialect(),
		schemas:  schemas,
		pageSize: DefaultPageSize,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) PageSize() int {
	return g.pageSize
}

func (g *Gateway) q(identifier string) string {
	return g.dialect.Quote(identifier)
}

func (g *Gateway) qb() squirrel.StatementBuilderType {
	return g.dialect.Builder()
}

// resolve validates table against the catalog before anything is
// interpolated into SQL.
func (g *Gateway) resolve(ctx context.Context, op, table string) (*schema.Descriptor, error) {
	if !common.ValidIdentifier(table) {
		return nil, malformedTable(op, table)
	}
	known, err := g.schemas.Known(ctx, table)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, malformedTable(op, table)
	}
	return g.schemas.GetSchema(ctx, table)
}

func (g *Gateway) order(q squirrel.SelectBuilder, desc *schema.Descriptor, s *Sort) squirrel.SelectBuilder {
	if s == nil {
		return q
	}
	dir := " ASC"
	if s.Desc {
		dir = " DESC"
	}
	q = q.OrderBy(g.q(s.Column) + dir)
	// id breaks ties so pages do not overlap.
	if s.Column != "id" && desc.Has("id") {
		q = q.OrderBy(g.q("id") + " ASC")
	}
	return q
}

func (g *Gateway) checkSort(op string, desc *schema.Descriptor, s *Sort) error {
	if s != nil && !desc.Has(s.Column) {
		return malformedColumn(op, desc.Table, s.Column)
	}
	return nil
}

func (g *Gateway) selectRows(ctx context.Context, op, table string, q squirrel.Sqlizer) (*common.QueryResult, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, storageError(op, table, err)
	}
	g.logger.Debug("query", zap.String("op", op), zap.String("sql", query), zap.Int("args", len(args)))

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(op, table, err)
	}
	defer rows.Close()

	result, err := common.ScanRows(rows)
	if err != nil {
		return nil, storageError(op, table, err)
	}
	return result, nil
}

func (g *Gateway) exec(ctx context.Context, op, table string, q squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, storageError(op, table, err)
	}
	g.logger.Debug("exec", zap.String("op", op), zap.String("sql", query), zap.Int("args", len(args)))

	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(op, table, err)
	}
	return res, nil
}

func toRows(result *common.QueryResult) []Row {
	rows := make([]Row, len(result.Rows))
	for i, r := range result.Rows {
		rows[i] = Row(r)
	}
	return rows
}

// List returns one page of table and the row count of the whole table.
func (g *Gateway) List(ctx context.Context, table string, w Window) (*Page, error) {
	desc, err := g.resolve(ctx, "list", table)
	if err != nil {
		return nil, err
	}
	w = w.Normalize(g.pageSize)
	if err := g.checkSort("list", desc, w.Sort); err != nil {
		return nil, err
	}

	total, err := g.count(ctx, table)
	if err != nil {
		return nil, err
	}

	q := g.order(g.qb().Select("*").From(g.q(table)), desc, w.Sort).
		Limit(uint64(w.Size)).
		Offset(uint64(w.Offset()))

	result, err := g.selectRows(ctx, "list", table, q)
	if err != nil {
		return nil, err
	}

	return &Page{Results: toRows(result), Total: total}, nil
}

func (g *Gateway) count(ctx context.Context, table string) (int64, error) {
	query, args, err := g.qb().Select("COUNT(*)").From(g.q(table)).ToSql()
	if err != nil {
		return 0, storageError("count", table, err)
	}
	var total int64
	if err := g.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, storageError("count", table, err)
	}
	return total, nil
}

// Get returns the row with id.
func (g *Gateway) Get(ctx context.Context, table, id string) (Row, error) {
	desc, err := g.resolve(ctx, "get", table)
	if err != nil {
		return nil, err
	}
	key, err := parseID(desc, id)
	if err != nil {
		return nil, err
	}

	q := g.qb().Select("*").From(g.q(table)).Where(g.q("id")+" = ?", key).Limit(1)
	result, err := g.selectRows(ctx, "get", table, q)
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("%s %s: %w", table, id, ErrRowNotFound)
	}
	return Row(result.Rows[0]), nil
}

// Create inserts payload and returns the server-assigned id. Caller supplied
// id, timestamps and read-only fields are ignored.
func (g *Gateway) Create(ctx context.Context, table string, payload map[string]interface{}) (interface{}, error) {
	desc, err := g.resolve(ctx, "create", table)
	if err != nil {
		return nil, err
	}

	values, err := prepare(desc, "create", payload)
	if err != nil {
		return nil, err
	}
	if err := checkRequired(desc, values); err != nil {
		return nil, err
	}

	now := g.now().UTC().Format(time.RFC3339)
	if desc.Has("created_at") {
		values["created_at"] = now
	}
	if desc.Has("updated_at") {
		values["updated_at"] = now
	}

	var assigned interface{}
	if desc.Has("id") && desc.IDType() == schema.TypeString {
		assigned = uuid.NewString()
		values["id"] = assigned
	}

	columns, args := ordered(desc, values)
	if len(columns) == 0 {
		return g.insertDefaults(ctx, table)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = g.q(c)
	}
	insert := g.qb().Insert(g.q(table)).Columns(quoted...).Values(args...)

	if assigned != nil {
		if _, err := g.exec(ctx, "create", table, insert); err != nil {
			return nil, err
		}
		return assigned, nil
	}

	if g.dialect.Returning {
		query, qargs, err := insert.Suffix("RETURNING " + g.q("id")).ToSql()
		if err != nil {
			return nil, storageError("create", table, err)
		}
		g.logger.Debug("exec", zap.String("op", "create"), zap.String("sql", query))
		var id int64
		if err := g.db.QueryRowContext(ctx, query, qargs...).Scan(&id); err != nil {
			return nil, storageError("create", table, err)
		}
		return id, nil
	}

	res, err := g.exec(ctx, "create", table, insert)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageError("create", table, err)
	}
	return id, nil
}

func (g *Gateway) insertDefaults(ctx context.Context, table string) (interface{}, error) {
	var query string
	switch {
	case g.dialect.Name == "mysql":
		query = fmt.Sprintf("INSERT INTO %s () VALUES ()", g.q(table))
	case g.dialect.Returning:
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", g.q(table), g.q("id"))
		var id int64
		if err := g.db.QueryRowContext(ctx, query).Scan(&id); err != nil {
			return nil, storageError("create", table, err)
		}
		return id, nil
	default:
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", g.q(table))
	}

	res, err := g.db.ExecContext(ctx, query)
	if err != nil {
		return nil, storageError("create", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageError("create", table, err)
	}
	return id, nil
}

// Update writes payload to the row with id and refreshes updated_at. An id
// that matches no row is not an error.
func (g *Gateway) Update(ctx context.Context, table, id string, payload map[string]interface{}) error {
	desc, err := g.resolve(ctx, "update", table)
	if err != nil {
		return err
	}
	key, err := parseID(desc, id)
	if err != nil {
		return err
	}

	values, err := prepare(desc, "update", payload)
	if err != nil {
		return err
	}
	if desc.Has("updated_at") {
		values["updated_at"] = g.now().UTC().Format(time.RFC3339)
	}

	columns, args := ordered(desc, values)
	if len(columns) == 0 {
		return nil
	}

	update := g.qb().Update(g.q(table))
	for i, c := range columns {
		update = update.Set(g.q(c), args[i])
	}
	update = update.Where(g.q("id")+" = ?", key)

	_, err = g.exec(ctx, "update", table, update)
	return err
}

// Delete removes the row with id. Deleting a missing row succeeds.
func (g *Gateway) Delete(ctx context.Context, table, id string) error {
	desc, err := g.resolve(ctx, "delete", table)
	if err != nil {
		return err
	}
	key, err := parseID(desc, id)
	if err != nil {
		return err
	}

	_, err = g.exec(ctx, "delete", table, g.qb().Delete(g.q(table)).Where(g.q("id")+" = ?", key))
	return err
}

func parseID(desc *schema.Descriptor, id string) (interface{}, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &ValidationError{Table: desc.Table, Fields: []string{"id"}, Reason: "missing id"}
	}
	if desc.IDType() == schema.TypeString {
		return id, nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, &ValidationError{Table: desc.Table, Fields: []string{"id"}, Reason: fmt.Sprintf("invalid id %q", id)}
	}
	return n, nil
}

// serverOwned columns are never taken from a payload.
var serverOwned = map[string]bool{"id": true, "created_at": true, "updated_at": true}

// prepare filters and coerces a payload. Unknown columns are a QueryError;
// values that do not fit their field are a ValidationError.
func prepare(desc *schema.Descriptor, op string, payload map[string]interface{}) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(payload))
	var invalid []string
	var reasons []string

	for name, raw := range payload {
		if serverOwned[name] {
			continue
		}
		field, ok := desc.Field(name)
		if !ok {
			return nil, malformedColumn(op, desc.Table, name)
		}
		if field.ReadOnly {
			continue
		}
		v, present, err := coerce(field, raw)
		if err != nil {
			invalid = append(invalid, name)
			reasons = append(reasons, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if present {
			values[name] = v
		}
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)
		sort.Strings(reasons)
		return nil, &ValidationError{
			Table:  desc.Table,
			Fields: invalid,
			Reason: "invalid values (" + strings.Join(reasons, "; ") + ")",
		}
	}
	return values, nil
}

func checkRequired(desc *schema.Descriptor, values map[string]interface{}) error {
	var missing []string
	for _, f := range desc.Fields {
		if !f.Required || f.ReadOnly || serverOwned[f.Name] {
			continue
		}
		v, ok := values[f.Name]
		if !ok || v == nil {
			missing = append(missing, f.Name)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Table: desc.Table, Fields: missing, Reason: "missing required fields"}
	}
	return nil
}

// ordered lists values in descriptor field order.
func ordered(desc *schema.Descriptor, values map[string]interface{}) ([]string, []interface{}) {
	columns := make([]string, 0, len(values))
	args := make([]interface{}, 0, len(values))
	for _, f := range desc.Fields {
		if v, ok := values[f.Name]; ok {
			columns = append(columns, f.Name)
			args = append(args, v)
		}
	}
	return columns, args
}

// IsNotFound reports a missing row or a missing descriptor.
func IsNotFound(err error) bool {
	var nf *schema.NotFoundError
	return errors.Is(err, ErrRowNotFound) || errors.As(err, &nf)
}
