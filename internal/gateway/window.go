package gateway

import "strings"

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

type Sort struct {
	Column string
	Desc   bool
}

// ParseSort reads "column:direction". Direction "desc" in any case sorts
// descending, anything else ascending. An empty spec means no sort.
func ParseSort(spec string) *Sort {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	column, dir, _ := strings.Cut(spec, ":")
	column = strings.TrimSpace(column)
	if column == "" {
		return nil
	}
	return &Sort{
		Column: column,
		Desc:   strings.EqualFold(strings.TrimSpace(dir), "desc"),
	}
}

func (s *Sort) String() string {
	if s == nil {
		return ""
	}
	if s.Desc {
		return s.Column + ":desc"
	}
	return s.Column + ":asc"
}

// Window is one bounded slice of a table.
type Window struct {
	Page int
	Size int
	Sort *Sort
}

// Normalize clamps the window: pages start at 1, a missing size falls back
// to defaultSize and sizes above MaxPageSize are capped.
func (w Window) Normalize(defaultSize int) Window {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	if w.Page < 1 {
		w.Page = 1
	}
	if w.Size <= 0 {
		w.Size = defaultSize
	}
	if w.Size > MaxPageSize {
		w.Size = MaxPageSize
	}
	return w
}

func (w Window) Offset() int {
	return (w.Page - 1) * w.Size
}

// Row is one table row keyed by column name.
type Row map[string]interface{}

type Page struct {
	Results []Row `json:"results"`
	Total   int64 `json:"total"`
}
