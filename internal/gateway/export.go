package gateway

import (
	"bytes"
	"context"
	"encoding/csv"
	"html"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Rana718/petquest/internal/schema"
)

// NoData is exported in place of a CSV when the table is empty.
const NoData = "No data"

var stripPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// StripMarkup removes HTML tags and decodes entities, collapsing whitespace.
func StripMarkup(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(stripPolicy.Sanitize(s))), " ")
}

// Export serializes every row of table as CSV. The header follows the
// descriptor's field order, then any undeclared columns in name order.
func (g *Gateway) Export(ctx context.Context, table string, s *Sort) ([]byte, error) {
	desc, err := g.resolve(ctx, "export", table)
	if err != nil {
		return nil, err
	}
	if err := g.checkSort("export", desc, s); err != nil {
		return nil, err
	}

	result, err := g.selectRows(ctx, "export", table, g.order(g.qb().Select("*").From(g.q(table)), desc, s))
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 {
		return []byte(NoData), nil
	}

	header := exportColumns(desc, result.Columns)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, storageError("export", table, err)
	}

	record := make([]string, len(header))
	for _, row := range result.Rows {
		for i, col := range header {
			record[i] = cell(desc, col, row[col])
		}
		if err := w.Write(record); err != nil {
			return nil, storageError("export", table, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, storageError("export", table, err)
	}

	g.logger.Debug("exported table")
	return buf.Bytes(), nil
}

func exportColumns(desc *schema.Descriptor, columns []string) []string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	header := make([]string, 0, len(columns))
	for _, f := range desc.Fields {
		if present[f.Name] {
			header = append(header, f.Name)
			delete(present, f.Name)
		}
	}

	extra := make([]string, 0, len(present))
	for c := range present {
		extra = append(extra, c)
	}
	sort.Strings(extra)
	return append(header, extra...)
}

func cell(desc *schema.Descriptor, column string, v interface{}) string {
	s := FormatValue(v)
	if f, ok := desc.Field(column); ok && f.Format == schema.FormatRichText {
		return StripMarkup(s)
	}
	return s
}
