// internal/form/controller.go
//
// formlab – Form Controller: values, touched/dirty tracking, and the
// submission lifecycle.
//
// Context
//   A Controller owns the state of one live form (one visitor, one variant).
//   It binds an immutable *schema.FormSchema to a Submitter collaborator and
//   drives the lifecycle:
//
//       Idle ──Submit──▶ Submitting ──accepted+ok──▶ Succeeded ─┐
//        ▲                   │  └──accepted+err──▶ Failed      │
//        └──── rejected ─────┘                       │          │
//        ▲                                           │          │
//        └───────────────── Reset / linger ──────────┴──────────┘
//
// Workflow
//   •  Submit snapshots the record into the controller, marks every field
//      touched, and validates.  Rejected records return to Idle without
//      calling the collaborator.
//   •  Accepted records are handed to Submitter.AttemptSubmit outside the
//      lock.  Re-entrant Submit calls see Submitting and get ErrBusy.
//   •  On success the fields revert to their defaults; on failure the
//      entered values are kept and a *SubmissionFailure is returned.
//   •  Close cancels an in-flight submission.  A collaborator that settles
//      afterwards never mutates the controller.
//
// Notes
//   Every exported method is safe for concurrent use.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/yanizio/formlab/internal/logger"
	"github.com/yanizio/formlab/internal/metrics"
	"github.com/yanizio/formlab/internal/schema"
	"github.com/yanizio/formlab/internal/validate"
)

// -----------------------------------------------------------------------------
// Lifecycle and mode
// -----------------------------------------------------------------------------

// State is the submission lifecycle position.
type State int

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Mode selects when validation runs outside of Submit.
type Mode int

const (
	// OnSubmit validates only when Submit is called.
	OnSubmit Mode = iota
	// OnChange additionally re-validates after every SetValue.
	OnChange
)

// ParseMode maps "onSubmit" / "onChange" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "onSubmit":
		return OnSubmit, nil
	case "onChange":
		return OnChange, nil
	}
	return OnSubmit, fmt.Errorf("unknown validation mode %q", s)
}

func (m Mode) String() string {
	if m == OnChange {
		return "onChange"
	}
	return "onSubmit"
}

// -----------------------------------------------------------------------------
// Collaborator
// -----------------------------------------------------------------------------

// Submitter receives accepted records.  A nil error means the submission
// succeeded.
type Submitter interface {
	AttemptSubmit(ctx context.Context, record map[string]any) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, record map[string]any) error

func (f SubmitterFunc) AttemptSubmit(ctx context.Context, record map[string]any) error {
	return f(ctx, record)
}

// Options tunes a Controller.
type Options struct {
	Mode       Mode
	CollectAll bool

	// SuccessLinger returns a Succeeded controller to Idle after the given
	// duration.  Zero keeps Succeeded until Reset or the next Submit.
	SuccessLinger time.Duration

	// Now is the validation reference clock.  Nil means time.Now.
	Now func() time.Time

	// AfterFunc schedules the linger callback and returns its stop func.
	// Nil means time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) (stop func() bool)
}

// -----------------------------------------------------------------------------
// Controller
// -----------------------------------------------------------------------------

// Controller is the stateful half of the validation engine.
type Controller struct {
	schema    *schema.FormSchema
	submitter Submitter
	opts      Options

	mu        sync.Mutex
	state     State
	values    map[string]any
	touched   map[string]bool
	result    validate.Result
	hasResult bool
	failure   *SubmissionFailure
	attempted bool

	closed     bool
	epoch      uint64 // bumps on Close; stale submissions compare against it
	cancel     context.CancelFunc
	stopLinger func() bool
	lingerSeq  uint64 // a fired timer whose seq is stale does nothing
}

// New returns an Idle controller whose values are the schema defaults.
func New(s *schema.FormSchema, sub Submitter, opts Options) *Controller {
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		}
	}
	return &Controller{
		schema:    s,
		submitter: sub,
		opts:      opts,
		values:    s.Defaults(),
		touched:   make(map[string]bool),
	}
}

// Schema returns the bound schema.
func (c *Controller) Schema() *schema.FormSchema { return c.schema }

// Submit validates record and, when accepted, hands it to the collaborator.
// The returned State is the controller state after the call.
func (c *Controller) Submit(ctx context.Context, record map[string]any) (State, error) {
	c.mu.Lock()
	if c.closed {
		st := c.state
		c.mu.Unlock()
		return st, ErrClosed
	}
	if c.state == Submitting {
		c.mu.Unlock()
		metrics.BusyRejectionsTotal.Inc()
		return Submitting, ErrBusy
	}
	c.stopLingerLocked()

	c.values = c.snapshot(record)
	for _, f := range c.schema.Fields() {
		c.touched[f.Name] = true
	}
	c.attempted = true
	c.failure = nil
	c.state = Submitting

	res := validate.Validate(c.schema, c.values, c.validateOpts())
	c.result, c.hasResult = res, true
	countValidation(c.schema.ID(), res)

	log := logger.FromContext(ctx)
	if !res.Accepted() {
		c.state = Idle
		c.mu.Unlock()
		log.Infow("form rejected", "form", c.schema.ID(), "fields", res.FieldNames())
		return Idle, nil
	}

	sctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	epoch := c.epoch
	c.mu.Unlock()

	metrics.SubmissionsInFlight.Inc()
	err := c.submitter.AttemptSubmit(sctx, res.Values)
	metrics.SubmissionsInFlight.Dec()
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || epoch != c.epoch {
		log.Infow("form submission settled after close", "form", c.schema.ID())
		return c.state, ErrClosed
	}
	c.cancel = nil

	if err != nil {
		c.state = Failed
		c.failure = &SubmissionFailure{Form: c.schema.ID(), Err: err}
		metrics.SubmissionsTotal.WithLabelValues(c.schema.ID(), Failed.String()).Inc()
		log.Warnw("form submission failed", "form", c.schema.ID(), "err", err)
		return Failed, c.failure
	}

	c.state = Succeeded
	c.values = c.schema.Defaults()
	c.touched = make(map[string]bool)
	c.attempted = false
	c.scheduleLingerLocked()
	metrics.SubmissionsTotal.WithLabelValues(c.schema.ID(), Succeeded.String()).Inc()
	log.Infow("form submitted", "form", c.schema.ID())
	return Succeeded, nil
}

// Reset returns a settled controller (Succeeded or Failed) to Idle with
// default values.  It is a no-op on Idle and ignored while Submitting.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	switch c.state {
	case Succeeded, Failed:
		c.stopLingerLocked()
		c.clearLocked()
	}
	return nil
}

// SetValue records a user edit.  In OnChange mode the whole record is
// re-validated so VisibleErrors stays current.  Edits are refused with
// ErrBusy while a submission is in flight.
func (c *Controller) SetValue(name string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state == Submitting {
		return ErrBusy
	}
	if !c.schema.Has(name) {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	c.values[name] = v
	c.touched[name] = true

	if c.opts.Mode == OnChange {
		res := validate.Validate(c.schema, c.values, c.validateOpts())
		c.result, c.hasResult = res, true
		countValidation(c.schema.ID(), res)
	}
	return nil
}

// State returns the lifecycle position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentResult returns the latest validation result, if any.
func (c *Controller) CurrentResult() (validate.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.hasResult
}

// Failure returns the collaborator failure while the controller is Failed.
func (c *Controller) Failure() *SubmissionFailure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// Values returns a copy of the current field values.
func (c *Controller) Values() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyValues(c.values)
}

// Touched returns a copy of the touched flags.
func (c *Controller) Touched() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool, len(c.touched))
	for k, v := range c.touched {
		out[k] = v
	}
	return out
}

// Dirty returns the names whose value differs from the default, sorted.
func (c *Controller) Dirty() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirtyLocked()
}

// VisibleErrors returns the latest errors restricted to touched fields.
func (c *Controller) VisibleErrors() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibleLocked()
}

// Snapshot is a consistent read of everything a view needs.
type Snapshot struct {
	State   State
	Values  map[string]any
	Errors  map[string][]string
	Dirty   []string
	Failure string
}

// Snapshot reads state, values, visible errors, and failure under one lock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:  c.state,
		Values: copyValues(c.values),
		Errors: c.visibleLocked(),
		Dirty:  c.dirtyLocked(),
	}
	if c.failure != nil {
		s.Failure = c.failure.Err.Error()
	}
	return s
}

// Close cancels any in-flight submission and stops the linger timer.  It is
// idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.stopLingerLocked()
}

// -----------------------------------------------------------------------------
// Internal helpers (caller holds c.mu)
// -----------------------------------------------------------------------------

func (c *Controller) validateOpts() validate.Options {
	return validate.Options{CollectAll: c.opts.CollectAll, Now: c.opts.Now}
}

// snapshot overlays the declared keys of record on the defaults.
func (c *Controller) snapshot(record map[string]any) map[string]any {
	out := c.schema.Defaults()
	for _, f := range c.schema.Fields() {
		if v, ok := record[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}

func (c *Controller) clearLocked() {
	c.state = Idle
	c.values = c.schema.Defaults()
	c.touched = make(map[string]bool)
	c.result, c.hasResult = validate.Result{}, false
	c.failure = nil
	c.attempted = false
}

func (c *Controller) visibleLocked() map[string][]string {
	if !c.hasResult || c.result.Accepted() {
		return nil
	}
	out := make(map[string][]string)
	for name, msgs := range c.result.Errors {
		if c.attempted || c.touched[name] {
			out[name] = append([]string(nil), msgs...)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (c *Controller) dirtyLocked() []string {
	defaults := c.schema.Defaults()
	var out []string
	for name, v := range c.values {
		if !reflect.DeepEqual(v, defaults[name]) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Controller) scheduleLingerLocked() {
	if c.opts.SuccessLinger <= 0 {
		return
	}
	c.lingerSeq++
	seq := c.lingerSeq
	c.stopLinger = c.opts.AfterFunc(c.opts.SuccessLinger, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || seq != c.lingerSeq || c.state != Succeeded {
			return
		}
		c.stopLinger = nil
		c.clearLocked()
	})
}

func (c *Controller) stopLingerLocked() {
	c.lingerSeq++
	if c.stopLinger != nil {
		c.stopLinger()
		c.stopLinger = nil
	}
}

func copyValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func countValidation(form string, res validate.Result) {
	outcome := "accepted"
	if !res.Accepted() {
		outcome = "rejected"
	}
	metrics.ValidationsTotal.WithLabelValues(form, outcome).Inc()
}
