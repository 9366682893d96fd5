package types

import (
	"time"
)

// Column types used when generating DDL. Each adapter maps them onto its own
// SQL types through MapColumnType.
const (
	ColumnText    = "text"
	ColumnVarchar = "varchar"
	ColumnInteger = "integer"
	ColumnReal    = "real"
	ColumnBoolean = "boolean"
)

type SchemaTable struct {
	Name    string
	Columns []SchemaColumn
}

type SchemaColumn struct {
	Name            string
	Type            string
	Nullable        bool
	Default         string
	IsPrimary       bool
	IsAutoIncrement bool
}

type Migration struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	Checksum  string     `json:"checksum"`
	SQL       string     `json:"-"`
}

type MigrationStatusItem struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

type MigrationStatus struct {
	TotalMigrations   int                   `json:"total_migrations"`
	AppliedMigrations int                   `json:"applied_migrations"`
	PendingMigrations int                   `json:"pending_migrations"`
	Items             []MigrationStatusItem `json:"items"`
}
