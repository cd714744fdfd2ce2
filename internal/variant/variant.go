// internal/variant/variant.go
//
// formlab – the three registration form variants.
//
// Context
//   The demo compares one registration form under three client-side
//   library pairings.  Each variant is a YAML schema embedded in the binary
//   plus a little presentation metadata (name, blurb, validation mode).
//   The YAML text doubles as the source snippet shown beside the live form.
//
// Workflow
//   •  Load parses every embedded schema and registers it.
//   •  Override replaces a variant's schema and snippet from a file in the
//      operator's `forms.dir`; the watcher calls it on every valid edit.
//   •  Get / All expose the catalogue to the HTTP layer.
//
//------------------------------------------------------------------------------

package variant

import (
	"embed"
	"fmt"
	"os"
	"sync"

	"github.com/yanizio/formlab/internal/form"
	"github.com/yanizio/formlab/internal/schema"
)

//go:embed schemas/*.yaml
var files embed.FS

// Variant describes one flavour of the registration form.
type Variant struct {
	Slug        string
	Name        string
	Description string
	Mode        form.Mode
	file        string
}

var catalog = []Variant{
	{
		Slug:        "formik-yup",
		Name:        "Formik + Yup",
		Description: "Form state managed by Formik with a Yup object schema.  Errors appear as soon as a touched field changes.",
		Mode:        form.OnChange,
		file:        "schemas/formik-yup.yaml",
	},
	{
		Slug:        "rhf-yup",
		Name:        "React Hook Form + Yup",
		Description: "Uncontrolled inputs registered with React Hook Form, validated by a Yup resolver on submit.",
		Mode:        form.OnSubmit,
		file:        "schemas/rhf-yup.yaml",
	},
	{
		Slug:        "rhf-zod",
		Name:        "React Hook Form + Zod",
		Description: "React Hook Form with a Zod resolver.  The password check is an object-level refinement targeting confirmPassword.",
		Mode:        form.OnSubmit,
		file:        "schemas/rhf-zod.yaml",
	},
}

var (
	mu      sync.RWMutex
	sources = map[string]string{}
)

// Load parses every embedded variant schema and registers it.  It fails on
// the first invalid document or on a catalogue entry without a schema.
func Load() error {
	loaded, err := schema.LoadFS(files, "schemas")
	if err != nil {
		return err
	}
	byPath := make(map[string]schema.File, len(loaded))
	for _, f := range loaded {
		byPath[f.Path] = f
	}

	mu.Lock()
	defer mu.Unlock()
	for _, v := range catalog {
		f, ok := byPath[v.file]
		if !ok {
			return fmt.Errorf("variant %s: %s not embedded", v.Slug, v.file)
		}
		if f.Schema.ID() != v.Slug {
			return fmt.Errorf("variant %s: schema id is %q", v.Slug, f.Schema.ID())
		}
		schema.Register(f.Schema)
		sources[v.Slug] = string(f.Raw)
	}
	return nil
}

// Override records a new snippet for the variant whose schema was reloaded
// from path.  Unknown ids are ignored.
func Override(s *schema.FormSchema, path string) {
	if _, ok := Get(s.ID()); !ok {
		return
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	mu.Lock()
	sources[s.ID()] = string(raw)
	mu.Unlock()
}

// OverrideDir registers every YAML schema in dir and records the snippets
// of those that replace a variant.  A missing directory is not an error.
func OverrideDir(dir string) (int, error) {
	loaded, err := schema.RegisterDir(dir)
	if err != nil {
		return 0, err
	}
	mu.Lock()
	defer mu.Unlock()
	for _, f := range loaded {
		if _, ok := Get(f.Schema.ID()); ok {
			sources[f.Schema.ID()] = string(f.Raw)
		}
	}
	return len(loaded), nil
}

// All returns the catalogue in display order.
func All() []Variant {
	out := make([]Variant, len(catalog))
	copy(out, catalog)
	return out
}

// Get looks up a variant by slug.
func Get(slug string) (Variant, bool) {
	for _, v := range catalog {
		if v.Slug == slug {
			return v, true
		}
	}
	return Variant{}, false
}

// Schema returns the currently registered schema for v.
func (v Variant) Schema() (*schema.FormSchema, bool) {
	return schema.Get(v.Slug)
}

// Source returns the schema text shown beside the form.
func (v Variant) Source() string {
	mu.RLock()
	defer mu.RUnlock()
	return sources[v.Slug]
}
