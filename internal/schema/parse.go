package schema

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type rawItems struct {
	Type      string   `yaml:"type"`
	Enum      []string `yaml:"enum"`
	EnumNames []string `yaml:"enumNames"`
}

type rawProperty struct {
	Type        string      `yaml:"type"`
	Format      string      `yaml:"format"`
	Title       string      `yaml:"title"`
	Description string      `yaml:"description"`
	Enum        []string    `yaml:"enum"`
	EnumNames   []string    `yaml:"enumNames"`
	ReadOnly    bool        `yaml:"readOnly"`
	Required    bool        `yaml:"required"`
	Default     interface{} `yaml:"default"`
	Items       *rawItems   `yaml:"items"`
}

var formatAliases = map[string]Format{
	"email":     FormatEmail,
	"date-time": FormatDateTime,
	"date_time": FormatDateTime,
	"datetime":  FormatDateTime,
	"rich-text": FormatRichText,
	"rich_text": FormatRichText,
	"richtext":  FormatRichText,
	"media-url": FormatMediaURL,
	"media_url": FormatMediaURL,
	"file-url":  FormatFileURL,
	"file_url":  FormatFileURL,
}

// Parse decodes a JSON or YAML descriptor for table. Property order is taken
// from the document.
func Parse(table string, data []byte) (*Descriptor, error) {
	// Tabs are insignificant whitespace in JSON but not allowed as YAML
	// indentation. Valid JSON never has a raw tab inside a string.
	data = bytes.ReplaceAll(data, []byte("\t"), []byte("  "))

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema %s: %w", table, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("schema %s: empty document", table)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("schema %s: top level must be an object", table)
	}

	d := &Descriptor{Table: table}
	var required []string
	var properties *yaml.Node

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		switch key {
		case "$id":
			d.ID = value.Value
		case "title":
			d.Title = value.Value
		case "description":
			d.Description = value.Value
		case "required":
			if err := value.Decode(&required); err != nil {
				return nil, fmt.Errorf("schema %s: required: %w", table, err)
			}
		case "properties":
			properties = value
		}
	}
	if d.ID == "" {
		d.ID = table
	}

	if properties != nil {
		if properties.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("schema %s: properties must be an object", table)
		}
		seen := make(map[string]bool, len(properties.Content)/2)
		for i := 0; i+1 < len(properties.Content); i += 2 {
			name := properties.Content[i].Value
			if seen[name] {
				return nil, fmt.Errorf("schema %s: duplicate field %q", table, name)
			}
			seen[name] = true

			var raw rawProperty
			if err := properties.Content[i+1].Decode(&raw); err != nil {
				return nil, fmt.Errorf("schema %s: field %s: %w", table, name, err)
			}
			field, err := buildField(name, raw)
			if err != nil {
				return nil, fmt.Errorf("schema %s: %w", table, err)
			}
			d.Fields = append(d.Fields, field)
		}
	}

	if err := d.reindex(); err != nil {
		return nil, err
	}

	for _, name := range required {
		i, ok := d.index[name]
		if !ok {
			return nil, fmt.Errorf("schema %s: required field %q is not declared", table, name)
		}
		d.Fields[i].Required = true
	}

	return d, nil
}

func buildField(name string, raw rawProperty) (Field, error) {
	f := Field{
		Name:        name,
		Title:       raw.Title,
		Description: raw.Description,
		ReadOnly:    raw.ReadOnly,
		Required:    raw.Required,
		Default:     raw.Default,
	}

	if raw.Format != "" {
		format, ok := formatAliases[strings.ToLower(raw.Format)]
		if !ok {
			// Unknown formats render as plain inputs.
			format = Format(strings.ToLower(raw.Format))
		}
		f.Format = format
	}

	switch strings.ToLower(raw.Type) {
	case "", "string":
		if len(raw.Enum) > 0 {
			f.Type = TypeEnum
			f.Choices = choices(raw.Enum, raw.EnumNames)
		} else {
			f.Type = TypeString
		}
	case "integer":
		f.Type = TypeInteger
	case "number":
		f.Type = TypeNumber
	case "boolean":
		f.Type = TypeBoolean
	case "array":
		if raw.Items == nil || len(raw.Items.Enum) == 0 {
			return Field{}, fmt.Errorf("field %s: arrays must declare items.enum", name)
		}
		f.Type = TypeEnumSet
		f.Choices = choices(raw.Items.Enum, raw.Items.EnumNames)
	default:
		return Field{}, fmt.Errorf("field %s: unsupported type %q", name, raw.Type)
	}

	return f, nil
}

func choices(values, names []string) []Choice {
	out := make([]Choice, len(values))
	for i, v := range values {
		label := v
		if i < len(names) && names[i] != "" {
			label = names[i]
		}
		out[i] = Choice{Value: v, Label: label}
	}
	return out
}
