// components/registration/registration.go
//
// formlab – registration component: the three demo variants over HTTP.
//
// Context
//   Each visitor gets one form.Controller per variant, held in a bounded
//   LRU keyed by "<visitor>/<variant>".  Pages are rendered from the
//   controller Snapshot, so a POST only mutates state and then redirects;
//   the following GET shows errors, the busy label, or the success banner
//   exactly as the controller reports them.
//
// Routes
//   GET   /                               variant index
//   GET   /forms/{variant}                form page + schema snippet
//   POST  /forms/{variant}                submit (CSRF checked) → 303
//   POST  /forms/{variant}/reset          reset settled form → 303
//   GET   /api/forms/{variant}/schema     JSON description
//   POST  /api/forms/{variant}/validate   stateless JSON validation
//   PATCH /api/forms/{variant}/values     live edit (onChange variants)
//
// Notes
//   •  Submissions run detached from the request context so a closed tab
//      does not fail a registration; evicting the controller still
//      cancels them.
//   •  A controller bound to a schema that has since been reloaded is
//      replaced on next access.
//
//------------------------------------------------------------------------------

package registration

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/formlab/internal/cache"
	"github.com/yanizio/formlab/internal/component"
	"github.com/yanizio/formlab/internal/config"
	"github.com/yanizio/formlab/internal/form"
	"github.com/yanizio/formlab/internal/logger"
	"github.com/yanizio/formlab/internal/metrics"
	"github.com/yanizio/formlab/internal/requestinfo"
	"github.com/yanizio/formlab/internal/schema"
	"github.com/yanizio/formlab/internal/session"
	"github.com/yanizio/formlab/internal/submit"
	"github.com/yanizio/formlab/internal/variant"
	"github.com/yanizio/formlab/internal/view"
)

// compile-time assertions
var (
	_ component.Component = (*Comp)(nil)
	_ component.Closer    = (*Comp)(nil)
)

const (
	maxBody        = 64 << 10
	submitTimeout  = 30 * time.Second
	defaultCtlSize = 4096

	// FailureMessage is shown instead of the collaborator's error text.
	FailureMessage = "Registration failed.  Please try again."
)

// Comp implements component.Component.
type Comp struct {
	deps  component.Deps
	store *submit.Store
	ctls  *cache.LRU[string, *form.Controller]

	// now feeds validation; nil means time.Now.
	now func() time.Time
}

func (c *Comp) Name() string { return "registration" }

// Init wires the store stage when a database is configured and sizes the
// controller cache.
func (c *Comp) Init(d component.Deps) error {
	c.deps = d
	if d.DB != nil {
		st, err := submit.NewStore(d.DB, d.Config.Store.Table)
		if err != nil {
			return err
		}
		c.store = st
	}

	size := d.Config.Session.CacheSize
	if size < 1 {
		size = defaultCtlSize
	}
	c.ctls = cache.New[string, *form.Controller](size, func(_ string, ctl *form.Controller) {
		ctl.Close()
		metrics.ControllersEvictedTotal.Inc()
	})
	return nil
}

// Migrations returns the submission table DDL when the store is enabled.
func (c *Comp) Migrations() []string {
	if c.store == nil {
		return nil
	}
	return c.store.Migrations()
}

// Close cancels every in-flight submission.
func (c *Comp) Close() {
	if c.ctls != nil {
		c.ctls.Purge()
	}
}

func (c *Comp) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", c.index)

	r.Route("/forms/{variant}", func(r chi.Router) {
		r.Get("/", c.page)
		r.Post("/", c.submitForm)
		r.Post("/reset", c.reset)
	})

	r.Route("/api/forms/{variant}", func(r chi.Router) {
		r.Get("/schema", c.describe)
		r.Post("/validate", c.validateJSON)
		r.Patch("/values", c.setValue)
	})

	return r
}

// -----------------------------------------------------------------------------
// Pages
// -----------------------------------------------------------------------------

type variantCard struct {
	Slug        string
	Name        string
	Description string
	Mode        string
}

type navItem struct {
	Slug    string
	Name    string
	Current bool
}

type formPage struct {
	Slug      string
	Name      string
	Mode      string
	Variants  []navItem
	Fields    template.HTML
	CSRFToken string
	Source    string

	Success   bool
	Busy      bool
	Settled   bool
	HasErrors bool
	Failure   string
}

func (c *Comp) index(w http.ResponseWriter, r *http.Request) {
	var cards []variantCard
	for _, v := range variant.All() {
		cards = append(cards, variantCard{
			Slug:        v.Slug,
			Name:        v.Name,
			Description: v.Description,
			Mode:        v.Mode.String(),
		})
	}
	c.render(w, r, http.StatusOK, "index", "", cards)
}

func (c *Comp) page(w http.ResponseWriter, r *http.Request) {
	v, s, ok := c.lookup(w, r)
	if !ok {
		return
	}
	visitor := session.VisitorID(r.Context())
	snap := c.controller(visitor, v, s).Snapshot()

	tok, err := c.deps.CSRF.Token(visitor)
	if err != nil {
		c.internal(w, r, err)
		return
	}
	fields, err := form.Render(s, snap, form.RenderOptions{CSRFToken: tok})
	if err != nil {
		c.internal(w, r, err)
		return
	}

	data := formPage{
		Slug:      v.Slug,
		Name:      v.Name,
		Mode:      v.Mode.String(),
		Variants:  nav(v.Slug),
		Fields:    fields,
		CSRFToken: tok,
		Source:    v.Source(),
		Success:   snap.State == form.Succeeded,
		Busy:      snap.State == form.Submitting,
		Settled:   snap.State == form.Succeeded || snap.State == form.Failed,
		HasErrors: len(snap.Errors) > 0,
	}
	if snap.State == form.Failed {
		data.Failure = FailureMessage
	}
	c.render(w, r, http.StatusOK, "form", v.Name, data)
}

func (c *Comp) submitForm(w http.ResponseWriter, r *http.Request) {
	v, s, ok := c.lookup(w, r)
	if !ok {
		return
	}
	if !c.parsePost(w, r) {
		return
	}
	visitor := session.VisitorID(r.Context())
	ctl := c.controller(visitor, v, s)

	log := logger.FromContext(r.Context()).With("variant", v.Slug)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(logger.WithContext(r.Context(), log)), submitTimeout)
	defer cancel()

	_, err := ctl.Submit(ctx, record(s, r.PostForm))
	switch {
	case err == nil, errors.Is(err, form.ErrBusy), form.IsSubmissionFailure(err):
	case errors.Is(err, form.ErrClosed):
		log.Infow("controller closed during submit", "visitor", visitor)
	default:
		log.Errorw("submit", "err", err)
	}
	http.Redirect(w, r, "/forms/"+v.Slug, http.StatusSeeOther)
}

func (c *Comp) reset(w http.ResponseWriter, r *http.Request) {
	v, s, ok := c.lookup(w, r)
	if !ok {
		return
	}
	if !c.parsePost(w, r) {
		return
	}
	if err := c.controller(session.VisitorID(r.Context()), v, s).Reset(); err != nil {
		logger.FromContext(r.Context()).Infow("reset", "variant", v.Slug, "err", err)
	}
	http.Redirect(w, r, "/forms/"+v.Slug, http.StatusSeeOther)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// lookup resolves {variant} to its catalogue entry and live schema, writing
// a 404 page when either is missing.
func (c *Comp) lookup(w http.ResponseWriter, r *http.Request) (variant.Variant, *schema.FormSchema, bool) {
	return c.resolve(r, func(status int, msg string) {
		c.render(w, r, status, "error", "Not found", msg)
	})
}

func (c *Comp) resolve(r *http.Request, fail func(status int, msg string)) (variant.Variant, *schema.FormSchema, bool) {
	v, ok := variant.Get(chi.URLParam(r, "variant"))
	if !ok {
		fail(http.StatusNotFound, "There is no such form.")
		return variant.Variant{}, nil, false
	}
	s, ok := v.Schema()
	if !ok {
		fail(http.StatusNotFound, "This form is not loaded.")
		return variant.Variant{}, nil, false
	}
	return v, s, true
}

// parsePost reads the urlencoded body and checks the CSRF token.
func (c *Comp) parsePost(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseForm(); err != nil {
		c.render(w, r, http.StatusBadRequest, "error", "Bad request", "The form could not be read.")
		return false
	}
	if !c.deps.CSRF.Verify(session.VisitorID(r.Context()), r.PostForm.Get("csrf_token")) {
		logger.FromContext(r.Context()).Warnw("csrf rejected", "path", r.URL.Path)
		c.render(w, r, http.StatusForbidden, "error", "Session expired", "Reload the page and submit the form again.")
		return false
	}
	return true
}

// controller returns the visitor's controller for v, replacing one bound to
// an outdated schema.
func (c *Comp) controller(visitor string, v variant.Variant, s *schema.FormSchema) *form.Controller {
	key := visitor + "/" + v.Slug
	mk := func() *form.Controller { return c.newController(v, s) }

	ctl := c.ctls.GetOrAdd(key, mk)
	if ctl.Schema() != s {
		c.ctls.Remove(key)
		ctl = c.ctls.GetOrAdd(key, mk)
	}
	return ctl
}

// newController reads the live config so a SIGHUP reload applies to
// controllers created afterwards.
func (c *Comp) newController(v variant.Variant, s *schema.FormSchema) *form.Controller {
	cfg := config.Get()
	if cfg == nil {
		cfg = c.deps.Config
	}

	stages := []form.Submitter{submit.Delay(cfg.Submit.Delay)}
	if c.store != nil {
		stages = append(stages, c.store.For(s))
	}
	if cfg.Submit.Notify && c.deps.Queue != nil {
		stages = append(stages, submit.Notify(c.deps.Queue, s))
	}

	return form.New(s, submit.Chain(stages...), form.Options{
		Mode:          v.Mode,
		CollectAll:    cfg.Forms.CollectAll,
		SuccessLinger: cfg.Submit.SuccessLinger,
		Now:           c.now,
	})
}

// record keeps the posted values of declared fields.  An unchecked
// checkbox is simply absent, which the validator reads as false.
func record(s *schema.FormSchema, post url.Values) map[string]any {
	rec := make(map[string]any, len(s.Fields()))
	for _, f := range s.Fields() {
		if vals, ok := post[f.Name]; ok && len(vals) > 0 {
			rec[f.Name] = vals[0]
		}
	}
	return rec
}

func nav(current string) []navItem {
	all := variant.All()
	out := make([]navItem, 0, len(all))
	for _, v := range all {
		out = append(out, navItem{Slug: v.Slug, Name: v.Name, Current: v.Slug == current})
	}
	return out
}

func (c *Comp) render(w http.ResponseWriter, r *http.Request, status int, page, title string, body any) {
	p := view.Page{Title: title, Info: requestinfo.FromContext(r.Context()), Body: body}
	if err := view.Render(w, status, page, p); err != nil {
		logger.FromContext(r.Context()).Errorw("render", "page", page, "err", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (c *Comp) internal(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Errorw("registration", "path", r.URL.Path, "err", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Register component at package init.
func init() {
	component.Register(&Comp{})
}
