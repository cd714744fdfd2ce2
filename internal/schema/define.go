// internal/schema/define.go
//
// formlab – Schema: structural checks and parameter compilation.
//
// Context
//   Define is the only way to obtain a *FormSchema.  It rejects malformed
//   definitions with *SchemaError so a bad schema fails once at startup,
//   never per submission.  Checks mirror the form loader this package grew
//   out of: missing names, duplicates, bad regex, negative lengths, and
//   minLength greater than maxLength, plus cross-field references.
//
//------------------------------------------------------------------------------

package schema

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SchemaError reports a malformed definition.  Field or Rule names the
// offending element; Reason is a short description.
type SchemaError struct {
	Field  string
	Rule   string
	Reason string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Rule != "":
		return fmt.Sprintf("schema: rule %q: %s", e.Rule, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("schema: field %q: %s", e.Field, e.Reason)
	default:
		return "schema: " + e.Reason
	}
}

// DefineOption sets schema metadata.
type DefineOption func(*FormSchema)

// WithID sets the schema identifier.
func WithID(id string) DefineOption { return func(s *FormSchema) { s.id = id } }

// WithTitle sets the display title.
func WithTitle(t string) DefineOption { return func(s *FormSchema) { s.title = t } }

// FormatTags lists the go-playground/validator tags accepted by Format.
var FormatTags = map[string]bool{
	"email":    true,
	"e164":     true,
	"url":      true,
	"uri":      true,
	"uuid":     true,
	"alpha":    true,
	"alphanum": true,
	"numeric":  true,
	"hostname": true,
	"ip":       true,
}

// Default messages for implicit type checks.
var typeMessages = map[Kind]string{
	KindString:  "Must be text.",
	KindNumber:  "Must be a number.",
	KindBoolean: "Must be true or false.",
	KindDate:    "Please select a valid date",
	KindEnum:    "Please select a valid option",
}

// Define validates fields and rules and returns an immutable FormSchema.
// The caller's slices are copied; later mutation does not leak in.
func Define(fields []Field, rules []Rule, opts ...DefineOption) (*FormSchema, error) {
	if len(fields) == 0 {
		return nil, &SchemaError{Reason: "at least one field is required"}
	}

	s := &FormSchema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, o := range opts {
		o(s)
	}

	for _, f := range fields {
		f = cloneField(f)
		if err := compileField(&f); err != nil {
			return nil, err
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, &SchemaError{Field: f.Name, Reason: "duplicate field name"}
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	for i, r := range rules {
		r.Fields = append([]string(nil), r.Fields...)
		if err := s.compileRule(&r, i); err != nil {
			return nil, err
		}
		s.rules = append(s.rules, r)
	}

	return s, nil
}

// MustDefine is Define for statically declared schemas; it panics on error.
func MustDefine(fields []Field, rules []Rule, opts ...DefineOption) *FormSchema {
	s, err := Define(fields, rules, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// -----------------------------------------------------------------------------
// Field compilation
// -----------------------------------------------------------------------------

func compileField(f *Field) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return &SchemaError{Reason: "field missing 'name'"}
	}
	if f.Kind == "" {
		f.Kind = KindString
	}
	switch f.Kind {
	case KindString, KindNumber, KindBoolean, KindDate:
	case KindEnum:
		if len(f.Options) == 0 {
			return &SchemaError{Field: f.Name, Reason: "enum field needs at least one option"}
		}
	default:
		return &SchemaError{Field: f.Name, Reason: fmt.Sprintf("unknown kind %q", f.Kind)}
	}

	var hasType bool
	for i := range f.Constraints {
		c := &f.Constraints[i]
		if c.Kind == Type {
			hasType = true
		}
		if err := compileConstraint(f, c); err != nil {
			return err
		}
	}
	if !hasType {
		insertType(f)
	}

	var minLen, maxLen = -1, -1
	for _, c := range f.Constraints {
		switch c.Kind {
		case MinLength:
			minLen = c.Int()
		case MaxLength:
			maxLen = c.Int()
		}
	}
	if minLen >= 0 && maxLen >= 0 && minLen > maxLen {
		return &SchemaError{Field: f.Name, Reason: "minLength greater than maxLength"}
	}
	return nil
}

// insertType places the implicit type check right after Required, or first
// when the field is optional.  Date parseability must precede range checks.
func insertType(f *Field) {
	tc := Constraint{Kind: Type, Message: typeMessages[f.Kind]}
	pos := 0
	for i, c := range f.Constraints {
		if c.Kind == Required {
			pos = i + 1
			break
		}
	}
	cs := make([]Constraint, 0, len(f.Constraints)+1)
	cs = append(cs, f.Constraints[:pos]...)
	cs = append(cs, tc)
	cs = append(cs, f.Constraints[pos:]...)
	f.Constraints = cs
}

func compileConstraint(f *Field, c *Constraint) error {
	bad := func(format string, a ...any) error {
		return &SchemaError{Field: f.Name, Reason: string(c.Kind) + ": " + fmt.Sprintf(format, a...)}
	}
	textual := f.Kind == KindString || f.Kind == KindEnum

	switch c.Kind {
	case Required:
	case Type:
		if c.Message == "" {
			c.Message = typeMessages[f.Kind]
		}

	case MinLength, MaxLength:
		if !textual {
			return bad("only applies to string or enum fields")
		}
		n, err := toNumber(c.Param)
		if err != nil || n < 0 || n != math.Trunc(n) {
			return bad("length must be a non-negative integer")
		}
		c.n = n

	case Pattern:
		if !textual {
			return bad("only applies to string or enum fields")
		}
		p, ok := c.Param.(string)
		if !ok || p == "" {
			return bad("pattern must be a non-empty string")
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return bad("invalid regex pattern: %v", err)
		}
		c.re = re

	case Email:
		if !textual {
			return bad("only applies to string fields")
		}
		c.tag = "email"

	case Format:
		if !textual {
			return bad("only applies to string fields")
		}
		tag, _ := c.Param.(string)
		if !FormatTags[tag] {
			return bad("unsupported format %q", tag)
		}
		c.tag = tag

	case OneOf:
		if !textual {
			return bad("only applies to string or enum fields")
		}
		vals, err := toStrings(c.Param)
		if err != nil || len(vals) == 0 {
			return bad("param must be a non-empty list of strings")
		}
		c.values = vals

	case Equals:
		w, err := coerceParam(f.Kind, c.Param)
		if err != nil {
			return bad("%v", err)
		}
		c.want = w

	case Min, Max:
		if f.Kind != KindNumber {
			return bad("only applies to number fields")
		}
		n, err := toNumber(c.Param)
		if err != nil {
			return bad("param must be a number")
		}
		c.n = n

	case NotFuture:
		if f.Kind != KindDate {
			return bad("only applies to date fields")
		}

	case NotBefore:
		if f.Kind != KindDate {
			return bad("only applies to date fields")
		}
		s, _ := c.Param.(string)
		t, err := ParseDate(s)
		if err != nil {
			return bad("param must be a date (%s)", DateLayout)
		}
		c.at = t

	case Predicate:
		if c.Check == nil {
			name, _ := c.Param.(string)
			fn, ok := lookupPredicate(name)
			if !ok {
				return bad("unknown predicate %q", name)
			}
			c.Check = fn
		}

	default:
		return &SchemaError{Field: f.Name, Reason: fmt.Sprintf("unknown constraint kind %q", c.Kind)}
	}

	if c.Message == "" {
		c.Message = "Invalid input."
	}
	return nil
}

// -----------------------------------------------------------------------------
// Rule compilation
// -----------------------------------------------------------------------------

func (s *FormSchema) compileRule(r *Rule, i int) error {
	if r.Name == "" {
		r.Name = fmt.Sprintf("rule%d", i+1)
	}
	if len(r.Fields) == 0 {
		return &SchemaError{Rule: r.Name, Reason: "rule must reference at least one field"}
	}
	for _, name := range r.Fields {
		if !s.Has(name) {
			return &SchemaError{Rule: r.Name, Reason: fmt.Sprintf("references undeclared field %q", name)}
		}
	}
	if r.Target == "" {
		r.Target = r.Fields[len(r.Fields)-1]
	}
	if !s.Has(r.Target) {
		return &SchemaError{Rule: r.Name, Reason: fmt.Sprintf("targets undeclared field %q", r.Target)}
	}

	switch r.Kind {
	case RuleEqual:
		if len(r.Fields) < 2 {
			return &SchemaError{Rule: r.Name, Reason: "equal needs two or more fields"}
		}
	case RulePredicate:
		if r.Check == nil {
			fn, ok := lookupRulePredicate(r.Param)
			if !ok {
				return &SchemaError{Rule: r.Name, Reason: fmt.Sprintf("unknown predicate %q", r.Param)}
			}
			r.Check = fn
		}
	default:
		return &SchemaError{Rule: r.Name, Reason: fmt.Sprintf("unknown rule kind %q", r.Kind)}
	}

	if r.Message == "" {
		r.Message = "Invalid input."
	}
	return nil
}

// -----------------------------------------------------------------------------
// Parameter helpers
// -----------------------------------------------------------------------------

// ParseDate accepts DateLayout or RFC 3339.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func toStrings(v any) ([]string, error) {
	switch l := v.(type) {
	case []string:
		return append([]string(nil), l...), nil
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("not a string: %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a list: %T", v)
	}
}

func coerceParam(k Kind, v any) (any, error) {
	switch k {
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("param must be a boolean")
		}
		return b, nil
	case KindNumber:
		return toNumber(v)
	case KindDate:
		s, _ := v.(string)
		return ParseDate(s)
	default:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("param must be a string")
		}
		return s, nil
	}
}
