package schema

import (
	"sort"

	"github.com/Rana718/petquest/internal/types"
)

// DriftReport compares a descriptor with the live table.
type DriftReport struct {
	Table string
	// MissingColumns are descriptor fields with no table column.
	MissingColumns []string
	// UndeclaredColumns are table columns the descriptor does not mention.
	UndeclaredColumns []string
}

func (r DriftReport) Clean() bool {
	return len(r.MissingColumns) == 0 && len(r.UndeclaredColumns) == 0
}

func Drift(d *Descriptor, columns []types.SchemaColumn) DriftReport {
	report := DriftReport{Table: d.Table}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c.Name] = true
		if !d.Has(c.Name) {
			report.UndeclaredColumns = append(report.UndeclaredColumns, c.Name)
		}
	}
	for _, f := range d.Fields {
		if !present[f.Name] {
			report.MissingColumns = append(report.MissingColumns, f.Name)
		}
	}

	sort.Strings(report.UndeclaredColumns)
	return report
}
