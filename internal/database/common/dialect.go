package common

import (
	"strings"

	"github.com/Masterminds/squirrel"
)

// Dialect carries what query builders need to know about a SQL backend.
type Dialect struct {
	Name        string
	Placeholder squirrel.PlaceholderFormat
	// Returning is set when INSERT ... RETURNING yields generated ids.
	Returning bool
	quote     func(string) string
}

func NewDialect(name string, placeholder squirrel.PlaceholderFormat, returning bool, quote func(string) string) Dialect {
	return Dialect{
		Name:        name,
		Placeholder: placeholder,
		Returning:   returning,
		quote:       quote,
	}
}

func (d Dialect) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(d.Placeholder)
}

func (d Dialect) Quote(identifier string) string {
	if d.quote == nil {
		return QuoteIdentifier(identifier)
	}
	return d.quote(identifier)
}

// QuoteIdentifier wraps name in ANSI double quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteBacktick wraps name in MySQL backticks.
func QuoteBacktick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteLiteral renders s as a single-quoted SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
