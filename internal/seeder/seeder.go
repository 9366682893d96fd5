package seeder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/logging"
	"github.com/Rana718/petquest/internal/schema"
)

// Rows creates rows through the gateway so seeded data passes the same
// validation as the dashboard.
type Rows interface {
	Create(ctx context.Context, table string, payload map[string]interface{}) (interface{}, error)
}

type Schemas interface {
	ListTables(ctx context.Context) ([]string, error)
	GetSchema(ctx context.Context, table string) (*schema.Descriptor, error)
}

type SeedConfig struct {
	Count  int            // Default records per table
	Tables map[string]int // Per-table counts; when set only these tables are seeded
	Seed   int64          // Random source seed; zero uses the clock
}

// Result is the number of rows created per table, in insertion order.
type Result struct {
	Order   []string
	Created map[string]int
}

type Seeder struct {
	rows    Rows
	schemas Schemas
	now     func() time.Time
	logger  *zap.Logger
}

func New(rows Rows, schemas Schemas, logger *zap.Logger) *Seeder {
	return &Seeder{rows: rows, schemas: schemas, now: time.Now, logger: logging.OrNop(logger)}
}

func (s *Seeder) Seed(ctx context.Context, cfg SeedConfig) (*Result, error) {
	tables, err := s.schemas.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[t] = true
	}
	for t := range cfg.Tables {
		if !known[t] {
			return nil, fmt.Errorf("unknown table: %s", t)
		}
	}

	descs := make(map[string]*schema.Descriptor, len(tables))
	refs := make(map[string][]Reference, len(tables))
	graph := NewDependencyGraph()
	for _, t := range tables {
		if len(cfg.Tables) > 0 {
			if _, ok := cfg.Tables[t]; !ok {
				continue
			}
		}
		desc, err := s.schemas.GetSchema(ctx, t)
		if err != nil {
			return nil, err
		}
		descs[t] = desc
		refs[t] = References(desc, known)
		graph.AddTable(t, refs[t])
	}

	order, err := graph.BuildInsertionOrder()
	if err != nil {
		return nil, fmt.Errorf("failed to build insertion order: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = s.now().UnixNano()
	}
	gen := NewDataGenerator(seed, s.now())

	result := &Result{Order: order, Created: make(map[string]int, len(order))}
	inserted := make(map[string][]interface{})
	for _, t := range order {
		count := cfg.Count
		if n, ok := cfg.Tables[t]; ok {
			count = n
		}
		for i := 0; i < count; i++ {
			payload, err := record(gen, descs[t], refs[t], inserted)
			if err != nil {
				return result, fmt.Errorf("failed to seed table %s: %w", t, err)
			}
			id, err := s.rows.Create(ctx, t, payload)
			if err != nil {
				return result, fmt.Errorf("failed to seed table %s: %w", t, err)
			}
			inserted[t] = append(inserted[t], id)
			result.Created[t]++
		}
		s.logger.Info("table seeded", zap.String("table", t), zap.Int("rows", result.Created[t]))
	}
	return result, nil
}

// record builds one row. Referencing columns take an id seeded earlier in
// the run; server owned and read-only columns are left to the gateway.
func record(gen *DataGenerator, desc *schema.Descriptor, refs []Reference, inserted map[string][]interface{}) (map[string]interface{}, error) {
	target := make(map[string]string, len(refs))
	for _, r := range refs {
		target[r.Column] = r.Table
	}

	payload := make(map[string]interface{})
	for _, f := range desc.Fields {
		switch f.Name {
		case "id", "created_at", "updated_at":
			continue
		}
		if f.ReadOnly {
			continue
		}

		if table, ok := target[f.Name]; ok {
			ids := inserted[table]
			if len(ids) == 0 {
				if f.Required {
					return nil, fmt.Errorf("column %s needs rows in %s", f.Name, table)
				}
				continue
			}
			payload[f.Name] = gen.Pick(ids)
			continue
		}

		if !f.Required && gen.Optional() {
			continue
		}
		if (f.Type == schema.TypeEnum || f.Type == schema.TypeEnumSet) && len(f.Choices) == 0 {
			continue
		}
		payload[f.Name] = gen.Value(f)
	}
	return payload, nil
}
