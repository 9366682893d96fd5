package gateway

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Rana718/petquest/internal/schema"
)

// coerce converts a decoded payload value to its storage form. present is
// false when the value should be treated as omitted (an empty string for a
// numeric or enum field).
func coerce(f schema.Field, v interface{}) (value interface{}, present bool, err error) {
	if v == nil {
		return nil, true, nil
	}

	switch f.Type {
	case schema.TypeInteger:
		return toInteger(v)
	case schema.TypeNumber:
		return toNumber(v)
	case schema.TypeBoolean:
		return toFlag(v)
	case schema.TypeEnum:
		s, ok := scalarString(v)
		if !ok {
			return nil, false, fmt.Errorf("expected one of the enumerated values")
		}
		if s == "" {
			return nil, false, nil
		}
		if !f.HasChoice(s) {
			return nil, false, fmt.Errorf("%q is not an allowed value", s)
		}
		return s, true, nil
	case schema.TypeEnumSet:
		return toEnumSet(f, v)
	default:
		s, ok := scalarString(v)
		if !ok {
			return nil, false, fmt.Errorf("expected a string")
		}
		return s, true, nil
	}
}

func toInteger(v interface{}) (interface{}, bool, error) {
	switch x := v.(type) {
	case int:
		return int64(x), true, nil
	case int32:
		return int64(x), true, nil
	case int64:
		return x, true, nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, false, fmt.Errorf("%d is out of range", x)
		}
		return int64(x), true, nil
	case float64:
		n, err := floatToInt(x)
		if err != nil {
			return nil, false, err
		}
		return n, true, nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return nil, false, fmt.Errorf("%s is not an integer", x)
		}
		return n, true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, false, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false, fmt.Errorf("%q is not an integer", x)
		}
		n, err := floatToInt(f)
		if err != nil {
			return nil, false, fmt.Errorf("%q: %w", x, err)
		}
		return n, true, nil
	default:
		return nil, false, fmt.Errorf("expected an integer")
	}
}

// floatToInt accepts whole floats that fit an int64. 2^63 itself is the
// first float past math.MaxInt64.
func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v is out of range", f)
	}
	return int64(f), nil
}

func toNumber(v interface{}) (interface{}, bool, error) {
	switch x := v.(type) {
	case int:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case float64:
		return x, true, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, false, fmt.Errorf("%s is not a number", x)
		}
		return f, true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false, fmt.Errorf("%q is not a number", x)
		}
		return f, true, nil
	default:
		return nil, false, fmt.Errorf("expected a number")
	}
}

// toFlag stores booleans as 0/1.
func toFlag(v interface{}) (interface{}, bool, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1), true, nil
		}
		return int64(0), true, nil
	case int, int64, float64:
		n, _, err := toNumber(x)
		if err != nil {
			return nil, false, err
		}
		if n.(float64) != 0 {
			return int64(1), true, nil
		}
		return int64(0), true, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "on", "yes":
			return int64(1), true, nil
		case "0", "false", "off", "no", "":
			return int64(0), true, nil
		}
		return nil, false, fmt.Errorf("%q is not a boolean", x)
	default:
		return nil, false, fmt.Errorf("expected a boolean")
	}
}

// toEnumSet stores a selection as a JSON array string.
func toEnumSet(f schema.Field, v interface{}) (interface{}, bool, error) {
	var items []string
	switch x := v.(type) {
	case []string:
		items = x
	case []interface{}:
		for _, item := range x {
			s, ok := scalarString(item)
			if !ok {
				return nil, false, fmt.Errorf("expected a list of strings")
			}
			items = append(items, s)
		}
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, false, nil
		}
		if strings.HasPrefix(s, "[") {
			if err := json.Unmarshal([]byte(s), &items); err != nil {
				return nil, false, fmt.Errorf("invalid list: %w", err)
			}
		} else {
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, part)
				}
			}
		}
	default:
		return nil, false, fmt.Errorf("expected a list of strings")
	}

	for _, item := range items {
		if !f.HasChoice(item) {
			return nil, false, fmt.Errorf("%q is not an allowed value", item)
		}
	}
	if items == nil {
		items = []string{}
	}
	out, err := json.Marshal(items)
	if err != nil {
		return nil, false, err
	}
	return string(out), true, nil
}

func scalarString(v interface{}) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}

// FormatValue renders a stored value as text for CSV cells and previews.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	if s, ok := scalarString(v); ok {
		return s
	}
	return fmt.Sprint(v)
}
