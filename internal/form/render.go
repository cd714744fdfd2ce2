// internal/form/render.go
//
// formlab – Form Controller: HTML renderer.
//
// Context
//   The presentation layer is a collaborator of the controller, so the
//   markup is generated from the same two inputs it always reads: the bound
//   FormSchema and a Snapshot.  The output is plain HTML (no framework
//   classes) that page templates embed as template.HTML.
//
// Workflow
//   •  Each field is wrapped in <div class="form-field"> with a label, an
//      input chosen from Field.Input (or derived from the kind), and an
//      error span holding the visible message.
//   •  required, minlength, maxlength, and pattern become HTML5 attributes
//      unless NoValidate is set.  The server is authoritative either way.
//   •  Values are pre-filled from the snapshot except for password inputs.
//   •  A CSRF token, when supplied, is written as a hidden input.
//
// Style
//   Each input gets id="fld-{name}".  Invalid inputs carry
//   aria-invalid="true" and aria-describedby pointing at the error span.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/yanizio/formlab/internal/schema"
)

// RenderOptions bundles optional parameters influencing HTML output.
type RenderOptions struct {
	CSRFToken  string
	NoValidate bool // omit HTML5 constraint attributes
}

// Render returns the field markup for s populated from snap.
func Render(s *schema.FormSchema, snap Snapshot, opts RenderOptions) (template.HTML, error) {
	var buf bytes.Buffer
	buf.WriteString(`<div class="formlab-fields">` + "\n")

	for _, f := range s.Fields() {
		if err := writeField(&buf, f, snap, opts); err != nil {
			return "", err
		}
	}

	if opts.CSRFToken != "" {
		buf.WriteString(`<input type="hidden" name="csrf_token" value="` + html.EscapeString(opts.CSRFToken) + `">` + "\n")
	}
	buf.WriteString(`</div>`)
	return template.HTML(buf.String()), nil
}

// InputType returns the HTML control used for f.
func InputType(f schema.Field) string {
	if f.Input != "" {
		return f.Input
	}
	switch f.Kind {
	case schema.KindNumber:
		return "number"
	case schema.KindBoolean:
		return "checkbox"
	case schema.KindDate:
		return "date"
	case schema.KindEnum:
		return "select"
	default:
		return "text"
	}
}

func writeField(buf *bytes.Buffer, f schema.Field, snap Snapshot, opts RenderOptions) error {
	name := html.EscapeString(f.Name)
	id := "fld-" + name
	errID := id + "-error"
	msgs := snap.Errors[f.Name]
	val := displayValue(snap.Values[f.Name])
	typ := InputType(f)

	cls := "form-field"
	if len(msgs) > 0 {
		cls += " has-error"
	}
	buf.WriteString(`<div class="` + cls + `">` + "\n")

	shared := `id="` + id + `" name="` + name + `"`
	if len(msgs) > 0 {
		shared += ` aria-invalid="true" aria-describedby="` + errID + `"`
	}

	label := f.Label
	if label == "" {
		label = f.Name
	}

	switch typ {
	case "text", "email", "password", "number", "date", "tel", "url":
		buf.WriteString(`<label for="` + id + `">` + html.EscapeString(label) + `</label>` + "\n")
		buf.WriteString(`<input ` + shared + ` type="` + typ + `"`)
		if f.Placeholder != "" {
			buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
		}
		if !opts.NoValidate {
			writeConstraintAttrs(buf, f)
		}
		if val != "" && typ != "password" {
			buf.WriteString(` value="` + html.EscapeString(val) + `"`)
		}
		buf.WriteString(`>` + "\n")

	case "textarea":
		buf.WriteString(`<label for="` + id + `">` + html.EscapeString(label) + `</label>` + "\n")
		buf.WriteString(`<textarea ` + shared)
		if f.Placeholder != "" {
			buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
		}
		if !opts.NoValidate {
			writeConstraintAttrs(buf, f)
		}
		buf.WriteString(`>` + html.EscapeString(val) + `</textarea>` + "\n")

	case "select":
		buf.WriteString(`<label for="` + id + `">` + html.EscapeString(label) + `</label>` + "\n")
		buf.WriteString(`<select ` + shared)
		if !opts.NoValidate && f.IsRequired() {
			buf.WriteString(` required`)
		}
		buf.WriteString(`>` + "\n")
		placeholder := f.Placeholder
		if placeholder == "" {
			placeholder = "Select…"
		}
		buf.WriteString(`<option value="">` + html.EscapeString(placeholder) + `</option>` + "\n")
		for _, opt := range f.Options {
			sel := ""
			if val == opt.Value {
				sel = ` selected`
			}
			buf.WriteString(`<option value="` + html.EscapeString(opt.Value) + `"` + sel + `>` + html.EscapeString(optionLabel(opt)) + `</option>` + "\n")
		}
		buf.WriteString(`</select>` + "\n")

	case "radio":
		buf.WriteString(`<fieldset>` + "\n")
		buf.WriteString(`<legend>` + html.EscapeString(label) + `</legend>` + "\n")
		for i, opt := range f.Options {
			radioID := fmt.Sprintf("%s-%d", id, i)
			checked := ""
			if val == opt.Value {
				checked = ` checked`
			}
			buf.WriteString(`<div class="radio-option">` + "\n")
			buf.WriteString(`<input id="` + radioID + `" name="` + name + `" type="radio" value="` + html.EscapeString(opt.Value) + `"` + checked)
			if !opts.NoValidate && f.IsRequired() {
				buf.WriteString(` required`)
			}
			buf.WriteString(`>` + "\n")
			buf.WriteString(`<label for="` + radioID + `">` + html.EscapeString(optionLabel(opt)) + `</label>` + "\n")
			buf.WriteString(`</div>` + "\n")
		}
		buf.WriteString(`</fieldset>` + "\n")

	case "checkbox":
		checked := ""
		if isChecked(snap.Values[f.Name]) {
			checked = ` checked`
		}
		buf.WriteString(`<input ` + shared + ` type="checkbox" value="true"` + checked + `>` + "\n")
		buf.WriteString(`<label for="` + id + `">` + html.EscapeString(label) + `</label>` + "\n")

	default:
		return fmt.Errorf("render: unsupported input %q for field %s", typ, f.Name)
	}

	buf.WriteString(`<span class="error" id="` + errID + `" aria-live="polite">`)
	if len(msgs) > 0 {
		buf.WriteString(html.EscapeString(msgs[0]))
	}
	buf.WriteString(`</span>` + "\n")
	buf.WriteString(`</div>` + "\n")
	return nil
}

func writeConstraintAttrs(buf *bytes.Buffer, f schema.Field) {
	for _, c := range f.Constraints {
		switch c.Kind {
		case schema.Required:
			buf.WriteString(` required`)
		case schema.MinLength:
			buf.WriteString(` minlength="` + strconv.Itoa(c.Int()) + `"`)
		case schema.MaxLength:
			buf.WriteString(` maxlength="` + strconv.Itoa(c.Int()) + `"`)
		case schema.Pattern:
			buf.WriteString(` pattern="` + html.EscapeString(c.Regexp().String()) + `"`)
		case schema.Min:
			buf.WriteString(` min="` + strconv.FormatFloat(c.Number(), 'f', -1, 64) + `"`)
		case schema.Max:
			buf.WriteString(` max="` + strconv.FormatFloat(c.Number(), 'f', -1, 64) + `"`)
		}
	}
}

func optionLabel(o schema.Option) string {
	if o.Label != "" {
		return o.Label
	}
	return o.Value
}

// displayValue turns a raw or coerced value back into input text.
func displayValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		if len(x) == 0 {
			return ""
		}
		return x[0]
	case time.Time:
		return x.Format(schema.DateLayout)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func isChecked(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "on", "1", "yes":
			return true
		}
	}
	return false
}
