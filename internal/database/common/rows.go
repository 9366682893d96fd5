package common

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

type QueryResult struct {
	Columns []string
	Rows    []map[string]interface{}
}

// ScanRows reads every row into a column map. Text values delivered as bytes
// become strings; integer and float columns delivered as bytes (the MySQL
// text protocol) are parsed back into numbers.
func ScanRows(rows *sql.Rows) (*QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i], columnTypes[i])
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryResult{
		Columns: columns,
		Rows:    results,
	}, nil
}

func normalizeValue(val interface{}, columnType *sql.ColumnType) interface{} {
	b, ok := val.([]byte)
	if !ok {
		return val
	}

	s := string(b)
	if columnType == nil {
		return s
	}

	typeName := strings.ToUpper(columnType.DatabaseTypeName())
	switch {
	case strings.Contains(typeName, "INT"):
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case typeName == "DOUBLE" || typeName == "FLOAT" || typeName == "REAL" || typeName == "DECIMAL":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
