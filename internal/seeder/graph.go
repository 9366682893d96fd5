package seeder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Rana718/petquest/internal/schema"
)

// Reference is an integer column holding the id of a row in another table.
type Reference struct {
	Column string
	Table  string
}

// References infers the tables desc points at. A column named "pet_id" or
// "owner_user_id" refers to "pets" or "users" when that table is known.
func References(desc *schema.Descriptor, known map[string]bool) []Reference {
	var refs []Reference
	for _, f := range desc.Fields {
		if f.Type != schema.TypeInteger || f.Name == "id" || !strings.HasSuffix(f.Name, "_id") {
			continue
		}
		stem := strings.TrimSuffix(f.Name, "_id")
		if i := strings.LastIndex(stem, "_"); i >= 0 {
			stem = stem[i+1:]
		}
		if target := stem + "s"; known[target] {
			refs = append(refs, Reference{Column: f.Name, Table: target})
		}
	}
	return refs
}

type DependencyGraph struct {
	deps  map[string][]string
	order []string
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{deps: make(map[string][]string)}
}

func (g *DependencyGraph) AddTable(table string, refs []Reference) {
	deps := g.deps[table]
	for _, r := range refs {
		deps = append(deps, r.Table)
	}
	g.deps[table] = deps
}

// BuildInsertionOrder orders tables so every table follows the ones it
// references. Ties are broken by name.
func (g *DependencyGraph) BuildInsertionOrder() ([]string, error) {
	visited := make(map[string]bool)
	temp := make(map[string]bool)
	var order []string

	var visit func(string) error
	visit = func(table string) error {
		if temp[table] {
			return fmt.Errorf("circular dependency detected involving table: %s", table)
		}
		if visited[table] {
			return nil
		}

		temp[table] = true
		deps := append([]string(nil), g.deps[table]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := g.deps[dep]; !ok || dep == table {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		temp[table] = false
		visited[table] = true
		order = append(order, table)
		return nil
	}

	tables := make([]string, 0, len(g.deps))
	for t := range g.deps {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		if err := visit(t); err != nil {
			return nil, err
		}
	}

	g.order = order
	return order, nil
}

func (g *DependencyGraph) GetOrder() []string {
	return g.order
}
