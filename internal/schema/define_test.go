// internal/schema/define_test.go
//
// Unit-tests for Define and the YAML loader.
//
// Run: go test ./internal/schema -v

package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefine_DuplicateField(t *testing.T) {
	_, err := Define([]Field{
		{Name: "email", Kind: KindString},
		{Name: "email", Kind: KindString},
	}, nil)

	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SchemaError", err)
	}
	if se.Field != "email" {
		t.Fatalf("SchemaError.Field = %q, want email", se.Field)
	}
}

func TestDefine_RuleReferencesUndeclaredField(t *testing.T) {
	_, err := Define(
		[]Field{{Name: "password", Kind: KindString}},
		[]Rule{{Name: "match", Kind: RuleEqual, Fields: []string{"password", "confirmPassword"}}},
	)

	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SchemaError", err)
	}
	if se.Rule != "match" {
		t.Fatalf("SchemaError.Rule = %q, want match", se.Rule)
	}
}

func TestDefine_RuleTargetsUndeclaredField(t *testing.T) {
	_, err := Define(
		[]Field{{Name: "a"}, {Name: "b"}},
		[]Rule{{Kind: RuleEqual, Fields: []string{"a", "b"}, Target: "c"}},
	)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SchemaError", err)
	}
}

func TestDefine_MalformedParams(t *testing.T) {
	cases := map[string]Field{
		"bad regex":      {Name: "f", Constraints: []Constraint{{Kind: Pattern, Param: "("}}},
		"negative len":   {Name: "f", Constraints: []Constraint{{Kind: MinLength, Param: -1}}},
		"min over max":   {Name: "f", Constraints: []Constraint{{Kind: MinLength, Param: 5}, {Kind: MaxLength, Param: 2}}},
		"unknown format": {Name: "f", Constraints: []Constraint{{Kind: Format, Param: "nope"}}},
		"unknown pred":   {Name: "f", Constraints: []Constraint{{Kind: Predicate, Param: "missing"}}},
		"enum no opts":   {Name: "f", Kind: KindEnum},
		"unknown kind":   {Name: "f", Kind: "blob"},
		"range on text":  {Name: "f", Constraints: []Constraint{{Kind: NotFuture}}},
		"equals type":    {Name: "f", Kind: KindBoolean, Constraints: []Constraint{{Kind: Equals, Param: "yes"}}},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Define([]Field{f}, nil)
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *SchemaError", err)
			}
		})
	}
}

func TestDefine_InsertsTypeAfterRequired(t *testing.T) {
	s := MustDefine([]Field{{
		Name: "dob",
		Kind: KindDate,
		Constraints: []Constraint{
			{Kind: Required, Message: "Required"},
			{Kind: NotFuture, Message: "Date cannot be in the future"},
		},
	}}, nil)

	f, _ := s.Field("dob")
	var got []ConstraintKind
	for _, c := range f.Constraints {
		got = append(got, c.Kind)
	}
	want := []ConstraintKind{Required, Type, NotFuture}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("constraint order mismatch (-want +got):\n%s", diff)
	}
	if f.Constraints[1].Message != "Please select a valid date" {
		t.Fatalf("type message = %q", f.Constraints[1].Message)
	}
}

func TestDefine_CopiesInput(t *testing.T) {
	fields := []Field{{Name: "a", Constraints: []Constraint{{Kind: Required, Message: "x"}}}}
	s := MustDefine(fields, nil)
	fields[0].Constraints[0].Message = "mutated"

	f, _ := s.Field("a")
	if f.Constraints[0].Message != "x" {
		t.Fatalf("schema leaked caller mutation: %q", f.Constraints[0].Message)
	}
}

func TestDefine_NamedPredicate(t *testing.T) {
	RegisterPredicate("test-nonzero", func(v any) bool { return v != "0" })
	RegisterRulePredicate("test-any", func(map[string]any) bool { return true })

	_, err := Define(
		[]Field{{Name: "a", Constraints: []Constraint{{Kind: Predicate, Param: "test-nonzero"}}}},
		[]Rule{{Kind: RulePredicate, Param: "test-any", Fields: []string{"a"}}},
	)
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	s := MustDefine([]Field{
		{Name: "name"},
		{Name: "terms", Kind: KindBoolean},
		{Name: "plan", Kind: KindEnum, Options: []Option{{Value: "free"}}, Default: "free"},
	}, nil)

	want := map[string]any{"name": "", "terms": false, "plan": "free"}
	if diff := cmp.Diff(want, s.Defaults()); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

const sampleYAML = `
id: sample
title: Sample
fields:
  - name: password
    kind: string
    constraints:
      - {kind: required, message: Required}
      - {kind: minLength, param: 8, message: "Password must be at least 8 characters"}
  - name: confirmPassword
    kind: string
    constraints:
      - {kind: required, message: Required}
rules:
  - name: passwords-match
    kind: equal
    fields: [password, confirmPassword]
    target: confirmPassword
    message: Passwords must match
`

func TestParse(t *testing.T) {
	s, err := Parse("sample.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.ID() != "sample" || s.Title() != "Sample" {
		t.Fatalf("metadata = %q/%q", s.ID(), s.Title())
	}
	f, ok := s.Field("password")
	if !ok {
		t.Fatal("password field missing")
	}
	if f.Constraints[2].Kind != MinLength || f.Constraints[2].Int() != 8 {
		t.Fatalf("minLength not compiled: %+v", f.Constraints[2])
	}
	rules := s.Rules()
	if len(rules) != 1 || rules[0].Target != "confirmPassword" {
		t.Fatalf("rules = %+v", rules)
	}
}

func TestParse_MissingID(t *testing.T) {
	_, err := Parse("x.yaml", []byte("fields: [{name: a}]"))
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SchemaError", err)
	}
}

func TestRegisterDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sample.yaml"), []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := RegisterDir(dir)
	if err != nil {
		t.Fatalf("RegisterDir: %v", err)
	}
	if len(files) != 1 || files[0].Path != "sample.yaml" || string(files[0].Raw) != sampleYAML {
		t.Fatalf("files = %+v, want sample.yaml", files)
	}
	if _, ok := Get("sample"); !ok {
		t.Fatal("sample not registered")
	}

	if files, err := RegisterDir(filepath.Join(dir, "missing")); err != nil || len(files) != 0 {
		t.Fatalf("missing dir: files=%d err=%v", len(files), err)
	}
}
