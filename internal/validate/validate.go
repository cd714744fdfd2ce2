// internal/validate/validate.go
//
// formlab – Validator: evaluate a FormSchema against a candidate record.
//
// Context
//   Validate is a pure function.  For each field it walks the constraints in
//   declaration order and records the first failing message (or every
//   failing message when CollectAll is set).  Cross-field rules run after
//   the per-field pass and only when every field they read came out clean.
//   Rejection is a normal Result value, never an error.
//
// Workflow
//   •  Empty values (missing key, nil, blank string) only meet `required`.
//      Optional empty fields are accepted as their zero input.
//   •  Non-empty values are coerced to the field kind once.  When coercion
//      fails the `type` constraint reports it and every later constraint
//      that needs the coerced value is skipped.
//   •  Format checks (email, e164, url, …) are delegated to
//      go-playground/validator so we never hand-roll those grammars.
//
//------------------------------------------------------------------------------

package validate

import (
	"sort"
	"time"

	"github.com/yanizio/formlab/internal/schema"
)

// Options tunes a Validate call.
type Options struct {
	// CollectAll records every failing message per field instead of the first.
	CollectAll bool
	// Now is the reference clock for notFuture.  Nil means time.Now.
	Now func() time.Time
}

// Result is Accepted (Errors empty, Values holds the coerced record) or
// Rejected (Errors non-empty, keyed by declared field names).
type Result struct {
	Values map[string]any      `json:"values,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// Accepted reports whether validation passed.
func (r Result) Accepted() bool { return len(r.Errors) == 0 }

// First returns the first message for field, or "".
func (r Result) First(field string) string {
	if msgs := r.Errors[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Count returns the total number of messages.
func (r Result) Count() int {
	n := 0
	for _, msgs := range r.Errors {
		n += len(msgs)
	}
	return n
}

// FieldNames returns the names carrying errors, sorted.
func (r Result) FieldNames() []string {
	out := make([]string, 0, len(r.Errors))
	for k := range r.Errors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate evaluates s against record.
func Validate(s *schema.FormSchema, record map[string]any, opts Options) Result {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ev := evaluator{now: now()}

	values := make(map[string]any, len(record))
	errs := make(map[string][]string)

	for _, f := range s.Fields() {
		v, msgs := ev.field(f, record[f.Name], opts.CollectAll)
		if len(msgs) > 0 {
			errs[f.Name] = msgs
			continue
		}
		values[f.Name] = v
	}

	for _, r := range s.Rules() {
		if touchesFailed(r, errs) {
			continue
		}
		if !opts.CollectAll && len(errs[r.Target]) > 0 {
			continue
		}
		if !ruleHolds(r, values) {
			errs[r.Target] = append(errs[r.Target], r.Message)
		}
	}

	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	return Result{Values: values}
}

func touchesFailed(r schema.Rule, errs map[string][]string) bool {
	for _, name := range r.Fields {
		if len(errs[name]) > 0 {
			return true
		}
	}
	return false
}

func ruleHolds(r schema.Rule, values map[string]any) bool {
	switch r.Kind {
	case schema.RuleEqual:
		first := values[r.Fields[0]]
		for _, name := range r.Fields[1:] {
			if !sameValue(first, values[name]) {
				return false
			}
		}
		return true
	case schema.RulePredicate:
		view := make(map[string]any, len(values))
		for k, v := range values {
			view[k] = v
		}
		return r.Check(view)
	default:
		return true
	}
}
