// components/registration/api.go
//
// JSON endpoints.  /schema and /validate are stateless; /values feeds
// live edits into the visitor's controller and answers with the errors the
// page should show, which is how onChange variants report as you type.
package registration

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yanizio/formlab/internal/form"
	"github.com/yanizio/formlab/internal/metrics"
	"github.com/yanizio/formlab/internal/schema"
	"github.com/yanizio/formlab/internal/session"
	"github.com/yanizio/formlab/internal/validate"
	"github.com/yanizio/formlab/internal/variant"
)

// CSRFHeader carries the token on JSON requests that change state.
const CSRFHeader = "X-CSRF-Token"

type constraintDoc struct {
	Kind    schema.ConstraintKind `json:"kind"`
	Param   any                   `json:"param,omitempty"`
	Message string                `json:"message"`
}

type fieldDoc struct {
	Name        string          `json:"name"`
	Label       string          `json:"label,omitempty"`
	Kind        schema.Kind     `json:"kind"`
	Input       string          `json:"input"`
	Required    bool            `json:"required"`
	Default     any             `json:"default"`
	Options     []schema.Option `json:"options,omitempty"`
	Constraints []constraintDoc `json:"constraints"`
}

type ruleDoc struct {
	Name    string          `json:"name"`
	Kind    schema.RuleKind `json:"kind"`
	Fields  []string        `json:"fields"`
	Target  string          `json:"target"`
	Message string          `json:"message"`
}

type schemaDoc struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Mode   string     `json:"mode"`
	Fields []fieldDoc `json:"fields"`
	Rules  []ruleDoc  `json:"rules,omitempty"`
}

type validateResponse struct {
	Valid  bool                `json:"valid"`
	Values map[string]any      `json:"values,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

type valueRequest struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type valueResponse struct {
	Errors map[string][]string `json:"errors"`
	Dirty  []string            `json:"dirty"`
}

func (c *Comp) describe(w http.ResponseWriter, r *http.Request) {
	v, s, ok := c.lookupJSON(w, r)
	if !ok {
		return
	}
	defaults := s.Defaults()
	doc := schemaDoc{ID: s.ID(), Title: s.Title(), Mode: v.Mode.String()}
	for _, f := range s.Fields() {
		fd := fieldDoc{
			Name:     f.Name,
			Label:    f.Label,
			Kind:     f.Kind,
			Input:    form.InputType(f),
			Required: f.IsRequired(),
			Default:  defaults[f.Name],
			Options:  f.Options,
		}
		for _, k := range f.Constraints {
			cd := constraintDoc{Kind: k.Kind, Message: k.Message}
			if k.Kind != schema.Predicate {
				cd.Param = k.Param
			}
			fd.Constraints = append(fd.Constraints, cd)
		}
		doc.Fields = append(doc.Fields, fd)
	}
	for _, rl := range s.Rules() {
		doc.Rules = append(doc.Rules, ruleDoc{
			Name: rl.Name, Kind: rl.Kind, Fields: rl.Fields, Target: rl.Target, Message: rl.Message,
		})
	}
	writeJSON(w, http.StatusOK, doc)
}

func (c *Comp) validateJSON(w http.ResponseWriter, r *http.Request) {
	_, s, ok := c.lookupJSON(w, r)
	if !ok {
		return
	}
	var rec map[string]any
	if !decodeJSON(w, r, &rec) {
		return
	}

	res := validate.Validate(s, rec, validate.Options{
		CollectAll: c.deps.Config.Forms.CollectAll,
		Now:        c.now,
	})
	outcome := "accepted"
	if !res.Accepted() {
		outcome = "rejected"
	}
	metrics.ValidationsTotal.WithLabelValues(s.ID(), outcome).Inc()

	out := validateResponse{Valid: res.Accepted(), Errors: res.Errors}
	if res.Accepted() {
		out.Values = res.Values
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *Comp) setValue(w http.ResponseWriter, r *http.Request) {
	v, s, ok := c.lookupJSON(w, r)
	if !ok {
		return
	}
	visitor := session.VisitorID(r.Context())
	if !c.deps.CSRF.Verify(visitor, r.Header.Get(CSRFHeader)) {
		writeError(w, http.StatusForbidden, "invalid csrf token")
		return
	}
	var req valueRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctl := c.controller(visitor, v, s)
	if err := ctl.SetValue(req.Name, req.Value); err != nil {
		switch {
		case errors.Is(err, form.ErrUnknownField):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, form.ErrClosed), errors.Is(err, form.ErrBusy):
			writeError(w, http.StatusConflict, err.Error())
		default:
			c.internal(w, r, err)
		}
		return
	}
	errs := ctl.VisibleErrors()
	if errs == nil {
		errs = map[string][]string{}
	}
	writeJSON(w, http.StatusOK, valueResponse{Errors: errs, Dirty: ctl.Dirty()})
}

// lookupJSON is lookup with JSON error bodies.
func (c *Comp) lookupJSON(w http.ResponseWriter, r *http.Request) (variant.Variant, *schema.FormSchema, bool) {
	return c.resolve(r, func(status int, msg string) { writeError(w, status, msg) })
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
