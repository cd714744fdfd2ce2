// internal/view/render.go
//
// formlab – view engine: template lookup, override directory, func-map
// injection, and an LRU of parsed *template.Template* sets.
//
// Public helpers
// --------------
//   - Render         – write a rendered page to an http.ResponseWriter.
//   - RenderToString – return template.HTML (tests, notification bodies).
//   - Static         – http.Handler for the embedded CSS and JS.
//
// Lookup precedence (first hit wins, per file):
//   1. <override dir>/<tpl>.html      (Configure(Options{Dir: …}))
//   2. embedded templates/<tpl>.html
//
// Every page is parsed together with layout.html.  Pages define "title"
// and "content"; the layout executes both.
//
// Style
// -----
// • Oxford commas, two spaces after periods.

package view

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"sync"

	"github.com/yanizio/formlab/internal/cache"
	"github.com/yanizio/formlab/internal/requestinfo"
)

//go:embed templates/*.html static/*
var files embed.FS

const layout = "layout"

//
// cache definitions
//

// CachePolicy hints how parsed sets are cached.
type CachePolicy int

const (
	CacheDefault CachePolicy = iota // keep parsed sets in the LRU
	CacheSkip                       // re-parse on every render (template editing)
)

// Options configures the engine.  The zero value serves embedded templates
// with caching.
type Options struct {
	Dir    string // optional override directory
	Policy CachePolicy
}

var (
	mu      sync.RWMutex
	opts    Options
	overlay fs.FS
)

// Parsed template sets; one entry per page.
var tmplLRU = cache.New[string, *template.Template](32, nil)

// Page is the data every template receives.  Body holds the page-specific
// view model.
type Page struct {
	Title string
	Info  *requestinfo.RequestInfo
	Body  any
}

// Configure replaces the engine options and drops cached sets.
func Configure(o Options) {
	mu.Lock()
	defer mu.Unlock()
	opts = o
	overlay = nil
	if o.Dir != "" {
		overlay = os.DirFS(o.Dir)
	}
	tmplLRU.Purge()
}

//
// public helpers
//

// Render executes page name into a buffer and then writes it to w, so a
// template error never leaves a half-written response.
func Render(w http.ResponseWriter, status int, name string, p Page) error {
	out, err := RenderToString(name, p)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write([]byte(out))
	return err
}

// RenderToString executes page name and returns the HTML.
func RenderToString(name string, p Page) (template.HTML, error) {
	t, err := load(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layout, p); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Static serves the embedded assets; mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err) // embed pattern guarantees the directory
	}
	return http.FileServer(http.FS(sub))
}

//
// internal: load
//

// load finds and (if necessary) parses the template set for page name.
func load(name string) (*template.Template, error) {
	mu.RLock()
	policy, ov := opts.Policy, overlay
	mu.RUnlock()

	if policy != CacheSkip {
		if t, ok := tmplLRU.Get(name); ok {
			return t, nil
		}
	}

	t := template.New(name).Funcs(funcMap())
	for _, base := range []string{layout, name} {
		src, err := readTemplate(ov, base+".html")
		if err != nil {
			return nil, err
		}
		if _, err := t.New(base + ".html").Parse(string(src)); err != nil {
			return nil, err
		}
	}

	if policy != CacheSkip {
		tmplLRU.Add(name, t)
	}
	return t, nil
}

// readTemplate returns file from the overlay when present, else from the
// embedded set.
func readTemplate(ov fs.FS, file string) ([]byte, error) {
	if ov != nil {
		b, err := fs.ReadFile(ov, file)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return fs.ReadFile(files, path.Join("templates", file))
}

//
// func-map builders
//

func funcMap() template.FuncMap {
	fm := template.FuncMap{
		"dict": dict,
	}
	for k, v := range uaFuncMap() {
		fm[k] = v
	}
	return fm
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}
