package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Rana718/petquest/internal/schema"
)

// Mode says whether a form adds a row or edits one. An emptied optional
// input clears the column on edit and is omitted on add.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

// InputError is a posted value that does not fit its widget.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// UploadSuffix names the file input that accompanies an upload field.
const UploadSuffix = "__upload"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Decode turns the values posted for one widget into a payload value. A nil
// posted slice means the input was not part of the form, which is always
// absent. Empty text decodes to absent; callers in ModeUpdate turn that into
// a cleared column.
func Decode(w Widget, posted []string) (value interface{}, present bool, err error) {
	if posted == nil || w.Kind == KindReadOnly {
		return nil, false, nil
	}

	switch w.Kind {
	case KindCheckbox:
		// A hidden "0" precedes the checkbox so an unchecked box still posts.
		for _, v := range posted {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "1", "on", "true", "yes":
				return int64(1), true, nil
			}
		}
		return int64(0), true, nil

	case KindMultiSelect:
		// A hidden empty value marks the group as posted even with nothing
		// ticked.
		selected := make([]string, 0, len(posted))
		for _, v := range posted {
			if v == "" {
				continue
			}
			if !w.Field.HasChoice(v) {
				return nil, false, &InputError{Field: w.Name(), Reason: fmt.Sprintf("%q is not an option", v)}
			}
			selected = append(selected, v)
		}
		return ordered(w, selected), true, nil
	}

	raw := strings.TrimSpace(last(posted))
	if raw == "" {
		return nil, false, nil
	}

	switch w.Kind {
	case KindNumber:
		if w.Integer {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, false, &InputError{Field: w.Name(), Reason: fmt.Sprintf("%q is not a whole number", raw)}
			}
			return n, true, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false, &InputError{Field: w.Name(), Reason: fmt.Sprintf("%q is not a number", raw)}
		}
		return f, true, nil

	case KindDateTime:
		t, err := ParseTime(raw)
		if err != nil {
			return nil, false, &InputError{Field: w.Name(), Reason: fmt.Sprintf("%q is not a date and time", raw)}
		}
		return t.Format(time.RFC3339), true, nil

	case KindSelect:
		if !w.Field.HasChoice(raw) {
			return nil, false, &InputError{Field: w.Name(), Reason: fmt.Sprintf("%q is not an option", raw)}
		}
		return raw, true, nil

	case KindRichText:
		// Markup is kept as written.
		return last(posted), true, nil
	}

	return raw, true, nil
}

// ParseTime accepts RFC 3339 and the zone-less layouts a datetime-local
// input posts. Zone-less values are UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// Payload builds a create or update payload from posted form values. id and
// read-only fields never appear in it. Every bad input is reported; the
// joined error wraps one *InputError per field.
func Payload(d *schema.Descriptor, posted map[string][]string, mode Mode) (map[string]interface{}, error) {
	payload := make(map[string]interface{})
	var errs []error

	for _, w := range Widgets(d, false) {
		if w.Name() == "id" {
			continue
		}
		values, ok := posted[w.Name()]
		if !ok {
			continue
		}

		v, present, err := Decode(w, values)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !present {
			if mode == ModeUpdate {
				if w.Field.Required {
					errs = append(errs, &InputError{Field: w.Name(), Reason: "is required"})
					continue
				}
				payload[w.Name()] = nil
			}
			continue
		}
		payload[w.Name()] = v
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return payload, nil
}

// Toggle adds option to selection, or removes it when already selected.
func Toggle(selection []string, option string) []string {
	for i, s := range selection {
		if s == option {
			out := make([]string, 0, len(selection)-1)
			out = append(out, selection[:i]...)
			return append(out, selection[i+1:]...)
		}
	}
	return append(selection, option)
}

// ordered sorts a selection into the field's choice order.
func ordered(w Widget, selected []string) []string {
	if len(w.Choices) == 0 {
		return selected
	}
	picked := make(map[string]bool, len(selected))
	for _, s := range selected {
		picked[s] = true
	}
	out := make([]string, 0, len(selected))
	for _, c := range w.Choices {
		if picked[c.Value] {
			out = append(out, c.Value)
		}
	}
	return out
}

func last(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}
