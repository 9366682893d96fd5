package common

import (
	"fmt"
	"regexp"
	"strings"
)

// MigrationsTable records applied schema migrations. It is hidden from the
// admin catalog.
const MigrationsTable = "_petquest_migrations"

var (
	commentRegex    = regexp.MustCompile(`(?m)^\s*--.*$`)
	stringRegex     = regexp.MustCompile(`'(?:[^']|'')*'|"(?:[^"]|"")*"|` + "`(?:[^`]|``)*`")
	identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ValidIdentifier reports whether name is a bare SQL identifier that is safe
// to quote and interpolate.
func ValidIdentifier(name string) bool {
	return identifierRegex.MatchString(name)
}

func ValidateTableName(name string) error {
	if !ValidIdentifier(name) {
		return fmt.Errorf("invalid table name: %s", name)
	}
	return nil
}

// IsInternalTable reports tables that belong to the storage engine or to the
// migrator rather than to the application.
func IsInternalTable(name string) bool {
	return strings.HasPrefix(name, "sqlite_") || name == MigrationsTable
}

// ParseSQLStatements splits a script on semicolons that are not inside string
// literals or quoted identifiers. Line comments are dropped.
func ParseSQLStatements(sql string) []string {
	sql = commentRegex.ReplaceAllString(sql, "")

	stringPositions := make(map[int]bool)
	for _, match := range stringRegex.FindAllStringIndex(sql, -1) {
		for i := match[0]; i < match[1]; i++ {
			stringPositions[i] = true
		}
	}

	statements := make([]string, 0, strings.Count(sql, ";")+1)
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" && !strings.HasPrefix(stmt, "/*") {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for i, char := range sql {
		if char == ';' && !stringPositions[i] {
			flush()
			continue
		}
		current.WriteRune(char)
	}
	flush()

	return statements
}
