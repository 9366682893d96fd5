package schema

import "fmt"

// DiscoveryError means the table catalog could not be read.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("failed to discover tables: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// NotFoundError means no descriptor exists for Table.
type NotFoundError struct {
	Table string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Schema not found for %s", e.Table)
}
