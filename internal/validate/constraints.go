// internal/validate/constraints.go
//
// formlab – Validator: per-field evaluation, coercion, and format checks.
//
//------------------------------------------------------------------------------

package validate

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/yanizio/formlab/internal/schema"
)

var (
	formats = validator.New()

	sanitizeOnce   sync.Once
	sanitizePolicy *bluemonday.Policy
)

type evaluator struct{ now time.Time }

// field returns the coerced value, or the failing messages.
func (ev evaluator) field(f schema.Field, raw any, collectAll bool) (any, []string) {
	if f.Kind == schema.KindBoolean && isEmpty(raw) {
		raw = false // an unchecked box is never posted, or posts blank
	}
	if isEmpty(raw) {
		if f.IsRequired() {
			for _, c := range f.Constraints {
				if c.Kind == schema.Required {
					return nil, []string{c.Message}
				}
			}
		}
		return zeroInput(f.Kind, raw), nil
	}

	v, typeOK := coerce(f, raw)

	var msgs []string
	for _, c := range f.Constraints {
		var ok bool
		switch c.Kind {
		case schema.Required:
			continue
		case schema.Type:
			ok = typeOK
		default:
			if !typeOK {
				continue // nothing meaningful to compare against
			}
			ok = ev.holds(c, v)
		}
		if ok {
			continue
		}
		msgs = append(msgs, c.Message)
		if !collectAll {
			break
		}
	}
	if len(msgs) > 0 {
		return nil, msgs
	}
	return v, nil
}

// holds evaluates one constraint on an already coerced value.
func (ev evaluator) holds(c schema.Constraint, v any) bool {
	switch c.Kind {
	case schema.MinLength:
		return utf8.RuneCountInString(v.(string)) >= c.Int()
	case schema.MaxLength:
		return utf8.RuneCountInString(v.(string)) <= c.Int()
	case schema.Pattern:
		return c.Regexp().MatchString(v.(string))
	case schema.Email, schema.Format:
		return formats.Var(v.(string), c.Tag()) == nil
	case schema.OneOf:
		return contains(c.Values(), v.(string))
	case schema.Equals:
		return sameValue(c.Want(), v)
	case schema.Min:
		return v.(float64) >= c.Number()
	case schema.Max:
		return v.(float64) <= c.Number()
	case schema.NotFuture:
		return !v.(time.Time).After(ev.now)
	case schema.NotBefore:
		return !v.(time.Time).Before(c.Time())
	case schema.Predicate:
		return c.Check(v)
	default:
		return true
	}
}

// -----------------------------------------------------------------------------
// Coercion
// -----------------------------------------------------------------------------

// coerce converts raw to the field kind.  The boolean is false when raw
// cannot represent the kind (the `type` constraint failure).
func coerce(f schema.Field, raw any) (any, bool) {
	switch f.Kind {
	case schema.KindNumber:
		switch n := raw.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
		s, ok := asString(raw)
		if !ok {
			return nil, false
		}
		n, err := strconv.ParseFloat(s, 64)
		return n, err == nil

	case schema.KindBoolean:
		if b, ok := raw.(bool); ok {
			return b, true
		}
		s, ok := asString(raw)
		if !ok {
			return nil, false
		}
		switch strings.ToLower(s) {
		case "true", "on", "1", "yes":
			return true, true
		case "false", "off", "0", "no":
			return false, true
		}
		return nil, false

	case schema.KindDate:
		if t, ok := raw.(time.Time); ok {
			return t, true
		}
		s, ok := asString(raw)
		if !ok {
			return nil, false
		}
		t, err := schema.ParseDate(s)
		return t, err == nil

	case schema.KindEnum:
		s, ok := asString(raw)
		if !ok {
			return nil, false
		}
		return s, contains(f.OptionValues(), s)

	default:
		text := asString
		if f.Input == "password" {
			text = rawString // secrets compare byte for byte
		}
		s, ok := text(raw)
		if !ok {
			return nil, false
		}
		if f.Sanitize {
			s = sanitize(s)
		}
		return s, true
	}
}

func asString(raw any) (string, bool) {
	s, ok := rawString(raw)
	return strings.TrimSpace(s), ok
}

// rawString is asString without trimming.
func rawString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []string:
		if len(v) == 0 {
			return "", true
		}
		return v[0], true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

func isEmpty(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := asString(raw)
	return ok && s == ""
}

// zeroInput is what an optional empty field contributes to Accepted values.
func zeroInput(k schema.Kind, raw any) any {
	switch k {
	case schema.KindBoolean:
		return false
	case schema.KindNumber, schema.KindDate:
		return nil
	default:
		if raw == nil {
			return ""
		}
		s, _ := asString(raw)
		return s
	}
}

// sanitize strips markup but keeps the literal characters a user typed.
func sanitize(s string) string {
	sanitizeOnce.Do(func() { sanitizePolicy = bluemonday.StrictPolicy() })
	return strings.TrimSpace(html.UnescapeString(sanitizePolicy.Sanitize(s)))
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}
