package form

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Rana718/petquest/internal/gateway"
)

const widgetTemplates = `
{{define "read-only"}}<input type="text" id="{{.ID}}" value="{{.Text}}" disabled class="input input-disabled">{{end}}

{{define "rich-text"}}<textarea id="{{.ID}}" name="{{.Name}}" data-editor="rich-text" rows="6" class="input"{{if .Required}} required{{end}}>{{.Text}}</textarea>{{end}}

{{define "upload"}}<div class="upload" data-upload="{{.Upload}}" data-field="{{.Name}}">
<input type="hidden" id="{{.ID}}" name="{{.Name}}" value="{{.Text}}">
<input type="file" name="{{.Name}}` + UploadSuffix + `"{{if eq .Upload "media"}} accept="image/*,video/*"{{end}} class="input">
{{if .Text}}{{if eq .Upload "media"}}<img src="{{.Text}}" alt="preview" class="preview">{{else}}<a href="{{.Text}}" target="_blank" rel="noopener noreferrer">{{.Text}}</a>{{end}}{{end}}
</div>{{end}}

{{define "number"}}<input type="number" id="{{.ID}}" name="{{.Name}}" value="{{.Text}}"{{if not .Integer}} step="any"{{end}} class="input"{{if .Required}} required{{end}}>{{end}}

{{define "date-time"}}<input type="datetime-local" id="{{.ID}}" name="{{.Name}}" value="{{.Text}}" step="1" class="input"{{if .Required}} required{{end}}>{{end}}

{{define "checkbox"}}<input type="hidden" name="{{.Name}}" value="0"><input type="checkbox" id="{{.ID}}" name="{{.Name}}" value="1"{{if .Checked}} checked{{end}}>{{end}}

{{define "email"}}<input type="email" id="{{.ID}}" name="{{.Name}}" value="{{.Text}}" class="input"{{if .Required}} required{{end}}>{{end}}

{{define "multi-select"}}<fieldset id="{{.ID}}" class="choices"><input type="hidden" name="{{.Name}}" value="">
{{range .Options}}<label><input type="checkbox" name="{{$.Name}}" value="{{.Value}}"{{if .Selected}} checked{{end}}> {{.Label}}</label>
{{end}}</fieldset>{{end}}

{{define "select"}}<select id="{{.ID}}" name="{{.Name}}" class="input"{{if .Required}} required{{end}}>
<option value=""{{if not .Text}} selected{{end}}>Select...</option>
{{range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>
{{end}}</select>{{end}}

{{define "text"}}<input type="text" id="{{.ID}}" name="{{.Name}}" value="{{.Text}}" class="input"{{if .Required}} required{{end}}>{{end}}
`

var widgets = template.Must(template.New("widgets").Parse(widgetTemplates))

type option struct {
	Value    string
	Label    string
	Selected bool
}

type view struct {
	ID       string
	Name     string
	Text     string
	Required bool
	Integer  bool
	Checked  bool
	Upload   string
	Options  []option
}

// Render produces the input markup for w holding value.
func Render(w Widget, value interface{}) (template.HTML, error) {
	v := view{
		ID:       "field-" + w.Name(),
		Name:     w.Name(),
		Text:     DisplayValue(w, value),
		Required: w.Field.Required,
		Integer:  w.Integer,
		Upload:   string(w.Upload),
	}

	switch w.Kind {
	case KindCheckbox:
		v.Checked = Truthy(value)
	case KindSelect:
		v.Options = options(w, []string{v.Text})
	case KindMultiSelect:
		v.Options = options(w, Selection(value))
	}

	var buf bytes.Buffer
	if err := widgets.ExecuteTemplate(&buf, w.Kind.String(), v); err != nil {
		return "", fmt.Errorf("render %s: %w", w.Name(), err)
	}
	return template.HTML(buf.String()), nil
}

// DisplayValue is the text an input starts with. Times are shown in the
// layout a datetime-local input expects, down to the second so an untouched
// input posts back the stored instant.
const dateTimeLocal = "2006-01-02T15:04:05"

func DisplayValue(w Widget, value interface{}) string {
	s := gateway.FormatValue(value)
	if w.Kind == KindDateTime && s != "" {
		if t, err := ParseTime(s); err == nil {
			return t.Format(dateTimeLocal)
		}
	}
	return s
}

// Truthy reads a stored 0/1 flag.
func Truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	}
	switch strings.ToLower(gateway.FormatValue(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Selection reads a stored multi-select value: a JSON array string or a
// plain list.
func Selection(value interface{}) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, gateway.FormatValue(item))
		}
		return out
	}

	s := strings.TrimSpace(gateway.FormatValue(value))
	if s == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err == nil {
		return items
	}
	return strings.Split(s, ",")
}

func options(w Widget, selected []string) []option {
	picked := make(map[string]bool, len(selected))
	for _, s := range selected {
		picked[s] = true
	}
	out := make([]option, len(w.Choices))
	for i, c := range w.Choices {
		label := c.Label
		if label == "" {
			label = c.Value
		}
		out[i] = option{Value: c.Value, Label: label, Selected: picked[c.Value]}
	}
	return out
}
