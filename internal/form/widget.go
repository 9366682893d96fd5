package form

import (
	"github.com/Rana718/petquest/internal/schema"
	"github.com/Rana718/petquest/internal/upload"
)

// Kind is the input widget chosen for a field.
type Kind int

const (
	KindReadOnly Kind = iota
	KindRichText
	KindUpload
	KindNumber
	KindDateTime
	KindCheckbox
	KindEmail
	KindMultiSelect
	KindSelect
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindReadOnly:
		return "read-only"
	case KindRichText:
		return "rich-text"
	case KindUpload:
		return "upload"
	case KindNumber:
		return "number"
	case KindDateTime:
		return "date-time"
	case KindCheckbox:
		return "checkbox"
	case KindEmail:
		return "email"
	case KindMultiSelect:
		return "multi-select"
	case KindSelect:
		return "select"
	default:
		return "text"
	}
}

// Widget is a resolved field. Only the data belonging to Kind is set:
// Upload for KindUpload, Integer for KindNumber, Choices for the select
// kinds.
type Widget struct {
	Field   schema.Field
	Kind    Kind
	Upload  upload.Kind
	Integer bool
	Choices []schema.Choice
}

func (w Widget) Name() string {
	return w.Field.Name
}

// Resolve picks the widget for f. The first matching rule wins.
func Resolve(f schema.Field) Widget {
	w := Widget{Field: f}
	switch {
	case f.ReadOnly:
		w.Kind = KindReadOnly
	case f.Format == schema.FormatRichText:
		w.Kind = KindRichText
	case f.Format == schema.FormatMediaURL:
		w.Kind, w.Upload = KindUpload, upload.KindMedia
	case f.Format == schema.FormatFileURL:
		w.Kind, w.Upload = KindUpload, upload.KindFile
	case f.Type.Numeric():
		w.Kind, w.Integer = KindNumber, f.Type == schema.TypeInteger
	case f.Format == schema.FormatDateTime:
		w.Kind = KindDateTime
	case f.Type == schema.TypeBoolean:
		w.Kind = KindCheckbox
	case f.Format == schema.FormatEmail:
		w.Kind = KindEmail
	case f.Type == schema.TypeEnumSet:
		w.Kind, w.Choices = KindMultiSelect, f.Choices
	case f.Type == schema.TypeEnum:
		w.Kind, w.Choices = KindSelect, f.Choices
	default:
		w.Kind = KindText
	}
	return w
}

// Widgets resolves every field of d in order. Read-only fields are left out
// unless withReadOnly is set, as on an add form.
func Widgets(d *schema.Descriptor, withReadOnly bool) []Widget {
	widgets := make([]Widget, 0, len(d.Fields))
	for _, f := range d.Fields {
		w := Resolve(f)
		if w.Kind == KindReadOnly && !withReadOnly {
			continue
		}
		widgets = append(widgets, w)
	}
	return widgets
}
