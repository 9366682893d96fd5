package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRowNotFound is returned by Get when no row has the requested id.
var ErrRowNotFound = errors.New("row not found")

// ValidationError rejects a payload before it reaches storage.
type ValidationError struct {
	Table  string
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Table, e.Reason, strings.Join(e.Fields, ", "))
}

// QueryError covers identifiers that failed validation (Malformed) and
// failures reported by storage (Err set).
type QueryError struct {
	Op         string
	Table      string
	Identifier string
	Err        error
}

func (e *QueryError) Malformed() bool {
	return e.Err == nil
}

func (e *QueryError) Error() string {
	if e.Malformed() {
		if e.Identifier == e.Table {
			return fmt.Sprintf("unknown table %q", e.Table)
		}
		return fmt.Sprintf("unknown column %q for table %s", e.Identifier, e.Table)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func malformedTable(op, table string) *QueryError {
	return &QueryError{Op: op, Table: table, Identifier: table}
}

func malformedColumn(op, table, column string) *QueryError {
	return &QueryError{Op: op, Table: table, Identifier: column}
}

func storageError(op, table string, err error) *QueryError {
	return &QueryError{Op: op, Table: table, Err: err}
}
