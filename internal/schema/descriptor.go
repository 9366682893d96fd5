package schema

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Type is the semantic type of a field.
type Type int

const (
	TypeString Type = iota
	TypeInteger
	TypeNumber
	TypeBoolean
	// TypeEnum is a string restricted to Choices.
	TypeEnum
	// TypeEnumSet is an array whose items are restricted to Choices.
	TypeEnumSet
)

func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeEnum:
		return "enum"
	case TypeEnumSet:
		return "array-of-enum"
	default:
		return "string"
	}
}

// Numeric reports integer and number fields.
func (t Type) Numeric() bool {
	return t == TypeInteger || t == TypeNumber
}

type Format string

const (
	FormatNone     Format = ""
	FormatEmail    Format = "email"
	FormatDateTime Format = "date-time"
	FormatRichText Format = "rich-text"
	FormatMediaURL Format = "media-url"
	FormatFileURL  Format = "file-url"
)

type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type Field struct {
	Name        string
	Title       string
	Description string
	Type        Type
	Format      Format
	Choices     []Choice
	ReadOnly    bool
	Required    bool
	Default     interface{}
}

// Label is the display title, falling back to the field name.
func (f Field) Label() string {
	if f.Title != "" {
		return f.Title
	}
	return f.Name
}

// HasChoice reports whether value is one of the field's enumerated options.
// Fields without choices accept anything.
func (f Field) HasChoice(value string) bool {
	if len(f.Choices) == 0 {
		return true
	}
	for _, c := range f.Choices {
		if c.Value == value {
			return true
		}
	}
	return false
}

// Descriptor describes one administrable table. Fields keep their declared
// order.
type Descriptor struct {
	Table       string
	ID          string
	Title       string
	Description string
	Fields      []Field

	index map[string]int
}

func NewDescriptor(table, title string, fields []Field) (*Descriptor, error) {
	d := &Descriptor{
		Table:  table,
		ID:     table,
		Title:  title,
		Fields: fields,
	}
	if err := d.reindex(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Descriptor) reindex() error {
	d.index = make(map[string]int, len(d.Fields))
	for i, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field %d has no name", d.Table, i)
		}
		if _, dup := d.index[f.Name]; dup {
			return fmt.Errorf("schema %s: duplicate field %q", d.Table, f.Name)
		}
		d.index[f.Name] = i
	}
	return nil
}

func (d *Descriptor) Field(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.Fields[i], true
}

func (d *Descriptor) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Names returns field names in declared order.
func (d *Descriptor) Names() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// DisplayTitle falls back to the table name.
func (d *Descriptor) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Table
}

// IDType is the semantic type of the id column. Tables without a declared
// id are assumed to use integer keys.
func (d *Descriptor) IDType() Type {
	if f, ok := d.Field("id"); ok {
		return f.Type
	}
	return TypeInteger
}

// MarshalJSON writes the descriptor back in JSON-Schema form with properties
// in declared order.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeKV := func(key string, value interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(v)
		return nil
	}

	if err := writeKV("$id", d.ID); err != nil {
		return nil, err
	}
	if err := writeKV("title", d.DisplayTitle()); err != nil {
		return nil, err
	}
	if d.Description != "" {
		if err := writeKV("description", d.Description); err != nil {
			return nil, err
		}
	}
	if err := writeKV("type", "object"); err != nil {
		return nil, err
	}

	required := make([]string, 0)
	for _, f := range d.Fields {
		if f.Required {
			required = append(required, f.Name)
		}
	}
	if err := writeKV("required", required); err != nil {
		return nil, err
	}

	buf.WriteString(`,"properties":{`)
	for i, f := range d.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(f.Name)
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(fieldJSON(f))
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteString("}}")

	return buf.Bytes(), nil
}

type itemsJSON struct {
	Type      string   `json:"type"`
	Enum      []string `json:"enum,omitempty"`
	EnumNames []string `json:"enumNames,omitempty"`
}

type propertyJSON struct {
	Type        string      `json:"type"`
	Format      string      `json:"format,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	EnumNames   []string    `json:"enumNames,omitempty"`
	Items       *itemsJSON  `json:"items,omitempty"`
	ReadOnly    bool        `json:"readOnly,omitempty"`
	Default     interface{} `json:"default,omitempty"`
}

func fieldJSON(f Field) propertyJSON {
	p := propertyJSON{
		Format:      string(f.Format),
		Title:       f.Title,
		Description: f.Description,
		ReadOnly:    f.ReadOnly,
		Default:     f.Default,
	}

	values, labels := splitChoices(f.Choices)
	switch f.Type {
	case TypeInteger:
		p.Type = "integer"
	case TypeNumber:
		p.Type = "number"
	case TypeBoolean:
		p.Type = "boolean"
	case TypeEnum:
		p.Type = "string"
		p.Enum, p.EnumNames = values, labels
	case TypeEnumSet:
		p.Type = "array"
		p.Items = &itemsJSON{Type: "string", Enum: values, EnumNames: labels}
	default:
		p.Type = "string"
	}
	return p
}

func splitChoices(choices []Choice) ([]string, []string) {
	if len(choices) == 0 {
		return nil, nil
	}
	values := make([]string, len(choices))
	labels := make([]string, len(choices))
	for i, c := range choices {
		values[i] = c.Value
		labels[i] = c.Label
	}
	return values, labels
}
