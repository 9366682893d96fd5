package dashboard

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"

	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/form"
	"github.com/Rana718/petquest/internal/gateway"
	"github.com/Rana718/petquest/internal/schema"
)

// Modal is an open add or edit form.
type Modal struct {
	Table  string
	Title  string
	Mode   form.Mode
	RowID  string
	Fields []ModalField
	// Err is the inline message shown when Save fails.
	Err string
}

func (m *Modal) Editing() bool {
	return m.Mode == form.ModeUpdate
}

type ModalField struct {
	Widget form.Widget
	Label  string
	Input  template.HTML
	Error  string
}

// AddModal opens an empty form. Fields start at their descriptor defaults.
func (d *Dashboard) AddModal(ctx context.Context, table string) (*Modal, error) {
	desc, err := d.registry.GetSchema(ctx, table)
	if err != nil {
		return nil, err
	}
	values := make(map[string]interface{})
	for _, f := range desc.Fields {
		if f.Default != nil {
			values[f.Name] = f.Default
		}
	}
	return buildModal(desc, form.ModeCreate, "", values, nil)
}

// EditModal opens the form for an existing row and marks it as the row being
// edited in sess.
func (d *Dashboard) EditModal(ctx context.Context, sess *Session, table, id string) (*Modal, error) {
	desc, err := d.registry.GetSchema(ctx, table)
	if err != nil {
		return nil, err
	}
	row, err := d.rows.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	sess.SetEditing(table, id)
	return buildModal(desc, form.ModeUpdate, id, row, nil)
}

// SaveRequest is a submitted modal. RowID is empty for an add.
type SaveRequest struct {
	Table  string
	RowID  string
	Posted map[string][]string
	Files  map[string]*multipart.FileHeader
}

// Save uploads any attached files, then creates or updates the row. On
// failure the modal is returned again with the posted values and an inline
// error; on success the modal is nil and the caller reloads the page.
func (d *Dashboard) Save(ctx context.Context, sess *Session, req SaveRequest) (*Modal, error) {
	desc, err := d.registry.GetSchema(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	mode := form.ModeCreate
	if req.RowID != "" {
		mode = form.ModeUpdate
	}
	posted := copyPosted(req.Posted)

	fail := func(err error) (*Modal, error) {
		m, buildErr := buildModal(desc, mode, req.RowID, postedValues(desc, posted), fieldErrors(err))
		if buildErr != nil {
			return nil, buildErr
		}
		m.Err = err.Error()
		return m, err
	}

	state := form.NewState()
	for _, w := range form.Widgets(desc, false) {
		if w.Kind != form.KindUpload {
			continue
		}
		fh := req.Files[w.Name()+form.UploadSuffix]
		if fh == nil || d.uploads == nil {
			continue
		}
		_, err := state.Upload(ctx, w.Name(), func(ctx context.Context) (string, error) {
			return d.uploads.Save(ctx, w.Upload, fh)
		})
		if err != nil {
			d.logger.Warn("modal upload failed", zap.String("table", req.Table), zap.String("field", w.Name()), zap.Error(err))
			return fail(err)
		}
	}
	if !state.CanSubmit() {
		return fail(errors.New("an upload is still in progress"))
	}
	state.Apply(posted)

	payload, err := form.Payload(desc, posted, mode)
	if err != nil {
		return fail(err)
	}

	if mode == form.ModeCreate {
		id, err := d.rows.Create(ctx, req.Table, payload)
		if err != nil {
			return fail(err)
		}
		d.logger.Info("row created", zap.String("table", req.Table), zap.Any("id", id))
	} else {
		if err := d.rows.Update(ctx, req.Table, req.RowID, payload); err != nil {
			return fail(err)
		}
		d.logger.Info("row updated", zap.String("table", req.Table), zap.String("id", req.RowID))
	}

	sess.SetEditing(req.Table, "")
	return nil, nil
}

func buildModal(desc *schema.Descriptor, mode form.Mode, id string, values map[string]interface{}, errs map[string]string) (*Modal, error) {
	m := &Modal{Table: desc.Table, Mode: mode, RowID: id}
	if mode == form.ModeUpdate {
		m.Title = fmt.Sprintf("Edit %s #%s", desc.DisplayTitle(), id)
	} else {
		m.Title = "Add " + desc.DisplayTitle()
	}

	// Edit shows read-only columns disabled; add leaves them out.
	for _, w := range form.Widgets(desc, mode == form.ModeUpdate) {
		input, err := form.Render(w, values[w.Name()])
		if err != nil {
			return nil, err
		}
		m.Fields = append(m.Fields, ModalField{
			Widget: w,
			Label:  w.Field.Label(),
			Input:  input,
			Error:  errs[w.Name()],
		})
	}
	return m, nil
}

// postedValues turns posted strings back into values the widgets render.
func postedValues(desc *schema.Descriptor, posted map[string][]string) map[string]interface{} {
	values := make(map[string]interface{}, len(posted))
	for _, w := range form.Widgets(desc, false) {
		raw, ok := posted[w.Name()]
		if !ok || len(raw) == 0 {
			continue
		}
		switch w.Kind {
		case form.KindMultiSelect:
			var selected []string
			for _, v := range raw {
				if v != "" {
					selected = append(selected, v)
				}
			}
			values[w.Name()] = selected
		case form.KindCheckbox:
			v, _, _ := form.Decode(w, raw)
			values[w.Name()] = v
		default:
			values[w.Name()] = raw[len(raw)-1]
		}
	}
	return values
}

// fieldErrors maps per-field failures to their message.
func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var inputs []*form.InputError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			var ie *form.InputError
			if errors.As(e, &ie) {
				inputs = append(inputs, ie)
			}
		}
	} else {
		var ie *form.InputError
		if errors.As(err, &ie) {
			inputs = append(inputs, ie)
		}
	}
	for _, ie := range inputs {
		out[ie.Field] = ie.Reason
	}

	var verr *gateway.ValidationError
	if errors.As(err, &verr) {
		for _, f := range verr.Fields {
			if _, ok := out[f]; !ok {
				out[f] = verr.Reason
			}
		}
	}
	return out
}

func copyPosted(posted map[string][]string) map[string][]string {
	out := make(map[string][]string, len(posted))
	for k, v := range posted {
		out[k] = append([]string(nil), v...)
	}
	return out
}
