package schema

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/database/common"
	"github.com/Rana718/petquest/internal/logging"
)

//go:embed schemas/*.json
var embedded embed.FS

var extensions = []string{".json", ".yaml", ".yml"}

const fileSuffix = "-schema"

// Catalog lists the tables present in storage.
type Catalog interface {
	GetAllTableNames(ctx context.Context) ([]string, error)
}

// Embedded returns the descriptors compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "schemas")
	if err != nil {
		panic(err)
	}
	return sub
}

// Sources layers an optional override directory over the embedded
// descriptors.
func Sources(dir string) []fs.FS {
	if dir == "" {
		return []fs.FS{Embedded()}
	}
	return []fs.FS{os.DirFS(dir), Embedded()}
}

type Registry struct {
	catalog Catalog
	sources []fs.FS
	cache   *Cache
	logger  *zap.Logger
}

func NewRegistry(catalog Catalog, logger *zap.Logger, sources ...fs.FS) *Registry {
	if len(sources) == 0 {
		sources = []fs.FS{Embedded()}
	}
	return &Registry{
		catalog: catalog,
		sources: sources,
		cache:   NewCache(),
		logger:  logging.OrNop(logger),
	}
}

// ListTables returns the administrable tables in storage, sorted. Storage
// engine and migrator tables are hidden.
func (r *Registry) ListTables(ctx context.Context) ([]string, error) {
	names, err := r.catalog.GetAllTableNames(ctx)
	if err != nil {
		r.logger.Error("table discovery failed", zap.Error(err))
		return nil, &DiscoveryError{Err: err}
	}

	tables := make([]string, 0, len(names))
	for _, name := range names {
		if common.IsInternalTable(name) {
			continue
		}
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return tables, nil
}

// Known reports whether table is in the catalog.
func (r *Registry) Known(ctx context.Context, table string) (bool, error) {
	tables, err := r.ListTables(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range tables {
		if t == table {
			return true, nil
		}
	}
	return false, nil
}

// GetSchema returns the descriptor for table. The first successful lookup is
// cached and every later call is served from the cache.
func (r *Registry) GetSchema(ctx context.Context, table string) (*Descriptor, error) {
	if d, ok := r.cache.Get(table); ok {
		return d, nil
	}

	if !common.ValidIdentifier(table) {
		return nil, &NotFoundError{Table: table}
	}

	data, file, err := r.read(table)
	if err != nil {
		return nil, err
	}

	d, err := Parse(table, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}

	r.logger.Debug("schema loaded", zap.String("table", table), zap.String("file", file), zap.Int("fields", len(d.Fields)))
	return r.cache.Put(table, d), nil
}

func (r *Registry) read(table string) ([]byte, string, error) {
	for _, src := range r.sources {
		for _, ext := range extensions {
			file := table + fileSuffix + ext
			data, err := fs.ReadFile(src, file)
			if err == nil {
				return data, file, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, file, fmt.Errorf("failed to read %s: %w", file, err)
			}
		}
	}
	return nil, "", &NotFoundError{Table: table}
}

// Available lists every table that has a descriptor in any source, sorted.
func (r *Registry) Available() ([]string, error) {
	seen := make(map[string]bool)
	for _, src := range r.sources {
		entries, err := fs.ReadDir(src, ".")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			ext := path.Ext(name)
			if !hasExtension(ext) {
				continue
			}
			base := strings.TrimSuffix(name, ext)
			if !strings.HasSuffix(base, fileSuffix) {
				continue
			}
			table := strings.TrimSuffix(base, fileSuffix)
			if common.ValidIdentifier(table) {
				seen[table] = true
			}
		}
	}

	tables := make([]string, 0, len(seen))
	for t := range seen {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables, nil
}

func hasExtension(ext string) bool {
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}
