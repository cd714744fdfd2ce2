// internal/schema/schema.go
//
// formlab – Schema: field shapes, constraints, and cross-field rules.
//
// Context
//   A FormSchema is declared once (in Go or YAML) and shared read-only by
//   every validator call and every form controller.  Fields are ordered;
//   constraints inside a field are ordered, and that order is the order in
//   which the validator evaluates them.
//
// Workflow
//   •  Callers describe Fields and Rules, then call Define.  Define checks
//      structure, compiles parameters (regexes, dates, numbers), and inserts
//      the implicit `type` check for each kind.
//   •  The returned *FormSchema exposes copies only, so it stays immutable
//      once shared.
//
// Style
//   Full sentences, two spaces after periods, Oxford commas.
//
//------------------------------------------------------------------------------

package schema

import (
	"regexp"
	"time"
)

// -----------------------------------------------------------------------------
// Kinds
// -----------------------------------------------------------------------------

// Kind is the value shape a field accepts.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindDate    Kind = "date"
	KindEnum    Kind = "enum"
)

// DateLayout is the wire format of date inputs (HTML <input type="date">).
const DateLayout = "2006-01-02"

// ConstraintKind tags a Constraint variant.
type ConstraintKind string

const (
	Required  ConstraintKind = "required"
	Type      ConstraintKind = "type"
	MinLength ConstraintKind = "minLength"
	MaxLength ConstraintKind = "maxLength"
	Pattern   ConstraintKind = "pattern"
	Email     ConstraintKind = "email"
	Format    ConstraintKind = "format"
	OneOf     ConstraintKind = "oneOf"
	Equals    ConstraintKind = "equals"
	Min       ConstraintKind = "min"
	Max       ConstraintKind = "max"
	NotFuture ConstraintKind = "notFuture"
	NotBefore ConstraintKind = "notBefore"
	Predicate ConstraintKind = "predicate"
)

// RuleKind tags a cross-field Rule variant.
type RuleKind string

const (
	RuleEqual     RuleKind = "equal"
	RulePredicate RuleKind = "predicate"
)

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// Option is one selectable value of an enum field.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Constraint is a tagged variant {Kind, Param, Message}.  Param meaning
// depends on Kind: an int for lengths, a regex for Pattern, a validator tag
// for Format, a list for OneOf, a number for Min/Max, a date for NotBefore,
// a predicate name for Predicate.  Go callers may set Check instead of
// naming a registered predicate.
type Constraint struct {
	Kind    ConstraintKind   `yaml:"kind"`
	Param   any              `yaml:"param,omitempty"`
	Message string           `yaml:"message"`
	Check   func(v any) bool `yaml:"-"`

	// Compiled by Define.
	n      float64
	re     *regexp.Regexp
	values []string
	at     time.Time
	tag    string
	want   any
}

// Int returns the compiled length parameter.
func (c Constraint) Int() int { return int(c.n) }

// Number returns the compiled numeric parameter.
func (c Constraint) Number() float64 { return c.n }

// Regexp returns the compiled Pattern parameter.
func (c Constraint) Regexp() *regexp.Regexp { return c.re }

// Values returns the OneOf list.
func (c Constraint) Values() []string { return append([]string(nil), c.values...) }

// Time returns the compiled NotBefore date.
func (c Constraint) Time() time.Time { return c.at }

// Tag returns the validator tag used by Email and Format.
func (c Constraint) Tag() string { return c.tag }

// Want returns the Equals parameter coerced to the field kind.
func (c Constraint) Want() any { return c.want }

// Field describes one input.  Input, Placeholder, and Label are rendering
// hints; validation only looks at Name, Kind, Options, Sanitize, and
// Constraints.
type Field struct {
	Name        string       `yaml:"name"`
	Label       string       `yaml:"label"`
	Kind        Kind         `yaml:"kind"`
	Input       string       `yaml:"input"`
	Placeholder string       `yaml:"placeholder"`
	Options     []Option     `yaml:"options"`
	Default     any          `yaml:"default"`
	Sanitize    bool         `yaml:"sanitize"`
	Constraints []Constraint `yaml:"constraints"`
}

// IsRequired reports whether the field carries a Required constraint.
func (f Field) IsRequired() bool {
	for _, c := range f.Constraints {
		if c.Kind == Required {
			return true
		}
	}
	return false
}

// OptionValues returns the allowed enum values in declaration order.
func (f Field) OptionValues() []string {
	out := make([]string, 0, len(f.Options))
	for _, o := range f.Options {
		out = append(out, o.Value)
	}
	return out
}

// Rule is a cross-field constraint.  Fields lists every field the rule
// reads; Target names the field that receives Message on failure.
type Rule struct {
	Name    string                    `yaml:"name"`
	Kind    RuleKind                  `yaml:"kind"`
	Fields  []string                  `yaml:"fields"`
	Target  string                    `yaml:"target"`
	Param   string                    `yaml:"param,omitempty"`
	Message string                    `yaml:"message"`
	Check   func(map[string]any) bool `yaml:"-"`
}

// FormSchema is the immutable result of Define.
type FormSchema struct {
	id     string
	title  string
	fields []Field
	index  map[string]int
	rules  []Rule
}

// ID returns the schema identifier, e.g. "rhf-zod".
func (s *FormSchema) ID() string { return s.id }

// Title returns the display title.
func (s *FormSchema) Title() string { return s.title }

// Fields returns the fields in declaration order.
func (s *FormSchema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = cloneField(f)
	}
	return out
}

// Field returns one field by name.
func (s *FormSchema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return cloneField(s.fields[i]), true
}

// Has reports whether name is a declared field.
func (s *FormSchema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Rules returns the cross-field rules in declaration order.
func (s *FormSchema) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	for i, r := range s.rules {
		r.Fields = append([]string(nil), r.Fields...)
		out[i] = r
	}
	return out
}

// Defaults returns the initial value of every field: the declared Default
// or the zero input of its kind (empty string, false for booleans).
func (s *FormSchema) Defaults() map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		switch {
		case f.Default != nil:
			out[f.Name] = f.Default
		case f.Kind == KindBoolean:
			out[f.Name] = false
		default:
			out[f.Name] = ""
		}
	}
	return out
}

func cloneField(f Field) Field {
	f.Options = append([]Option(nil), f.Options...)
	cs := make([]Constraint, len(f.Constraints))
	for i, c := range f.Constraints {
		c.values = append([]string(nil), c.values...)
		cs[i] = c
	}
	f.Constraints = cs
	return f
}
