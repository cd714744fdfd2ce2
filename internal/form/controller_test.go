// internal/form/controller_test.go
//
// Unit-tests for the Controller lifecycle.
//
// Context
// -------
// Collaborators are SubmitterFunc closures.  The blocking collaborator
// parks on a channel so tests can observe the Submitting state and race a
// second Submit (or Close) against it deterministically.
//
// Run: go test ./internal/form -race -v

package form

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yanizio/formlab/internal/schema"
)

func testSchema(t *testing.T) *schema.FormSchema {
	t.Helper()
	req := schema.Constraint{Kind: schema.Required, Message: "Required"}
	s, err := schema.Define([]schema.Field{
		{Name: "email", Constraints: []schema.Constraint{req, {Kind: schema.Email, Message: "Invalid email"}}},
		{Name: "password", Constraints: []schema.Constraint{req, {Kind: schema.MinLength, Param: 8, Message: "Too short"}}},
		{Name: "confirmPassword", Constraints: []schema.Constraint{req}},
		{Name: "terms", Kind: schema.KindBoolean, Constraints: []schema.Constraint{
			{Kind: schema.Equals, Param: true, Message: "You must accept the terms"},
		}},
	}, []schema.Rule{{
		Kind: schema.RuleEqual, Fields: []string{"password", "confirmPassword"},
		Target: "confirmPassword", Message: "Passwords must match",
	}}, schema.WithID("signup"))
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	return s
}

func good() map[string]any {
	return map[string]any{
		"email":           "ada@example.com",
		"password":        "longenough1",
		"confirmPassword": "longenough1",
		"terms":           true,
	}
}

func noop() Submitter {
	return SubmitterFunc(func(context.Context, map[string]any) error { return nil })
}

// blocking returns a collaborator that signals entry on started and waits
// for release (or ctx) before returning result.
func blocking(calls *int32, started chan<- struct{}, release <-chan error) Submitter {
	return SubmitterFunc(func(ctx context.Context, _ map[string]any) error {
		atomic.AddInt32(calls, 1)
		started <- struct{}{}
		select {
		case err := <-release:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func TestSubmit_ValidRecordSucceedsAndResetsFields(t *testing.T) {
	s := testSchema(t)
	var got map[string]any
	c := New(s, SubmitterFunc(func(_ context.Context, r map[string]any) error {
		got = r
		return nil
	}), Options{})

	st, err := c.Submit(context.Background(), good())
	if err != nil || st != Succeeded {
		t.Fatalf("Submit = (%v, %v), want (succeeded, nil)", st, err)
	}
	if diff := cmp.Diff(good(), got); diff != "" {
		t.Fatalf("collaborator record (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Defaults(), c.Values()); diff != "" {
		t.Fatalf("values not reset (-want +got):\n%s", diff)
	}
	if len(c.Dirty()) != 0 {
		t.Fatalf("dirty after success: %v", c.Dirty())
	}
	res, ok := c.CurrentResult()
	if !ok || !res.Accepted() {
		t.Fatalf("CurrentResult = %+v, %v", res, ok)
	}
}

func TestSubmit_RejectedSkipsCollaborator(t *testing.T) {
	var calls int32
	c := New(testSchema(t), SubmitterFunc(func(context.Context, map[string]any) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}), Options{})

	rec := good()
	rec["confirmPassword"] = "mismatch"
	st, err := c.Submit(context.Background(), rec)
	if err != nil || st != Idle {
		t.Fatalf("Submit = (%v, %v), want (idle, nil)", st, err)
	}
	if calls != 0 {
		t.Fatalf("collaborator called %d times", calls)
	}
	want := map[string][]string{"confirmPassword": {"Passwords must match"}}
	if diff := cmp.Diff(want, c.VisibleErrors()); diff != "" {
		t.Fatalf("visible errors (-want +got):\n%s", diff)
	}
	if c.Values()["confirmPassword"] != "mismatch" {
		t.Fatal("entered value lost on rejection")
	}
}

func TestSubmit_MissingTermsFlagsTerms(t *testing.T) {
	c := New(testSchema(t), noop(), Options{})
	rec := good()
	delete(rec, "terms")

	if st, _ := c.Submit(context.Background(), rec); st != Idle {
		t.Fatalf("state = %v, want idle", st)
	}
	errs := c.VisibleErrors()
	if len(errs) != 1 || errs["terms"][0] != "You must accept the terms" {
		t.Fatalf("errors = %v", errs)
	}
}

func TestSubmit_DoubleSubmitCallsCollaboratorOnce(t *testing.T) {
	var calls int32
	started := make(chan struct{}, 1)
	release := make(chan error)
	c := New(testSchema(t), blocking(&calls, started, release), Options{})

	done := make(chan State)
	go func() {
		st, _ := c.Submit(context.Background(), good())
		done <- st
	}()
	<-started

	if c.State() != Submitting {
		t.Fatalf("state = %v, want submitting", c.State())
	}
	st, err := c.Submit(context.Background(), good())
	if !errors.Is(err, ErrBusy) || st != Submitting {
		t.Fatalf("second Submit = (%v, %v), want (submitting, ErrBusy)", st, err)
	}
	if err := c.Reset(); err != nil || c.State() != Submitting {
		t.Fatalf("Reset during submit changed state to %v (err %v)", c.State(), err)
	}

	release <- nil
	if st := <-done; st != Succeeded {
		t.Fatalf("first Submit = %v, want succeeded", st)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("collaborator called %d times, want 1", n)
	}
}

func TestSetValue_RefusedWhileSubmitting(t *testing.T) {
	var calls int32
	started := make(chan struct{}, 1)
	release := make(chan error)
	c := New(testSchema(t), blocking(&calls, started, release), Options{Mode: OnChange})

	done := make(chan State)
	go func() {
		st, _ := c.Submit(context.Background(), good())
		done <- st
	}()
	<-started

	if err := c.SetValue("email", "someone@else.com"); !errors.Is(err, ErrBusy) {
		t.Fatalf("SetValue during submit err = %v, want ErrBusy", err)
	}
	if err := c.SetValue("nope", 1); !errors.Is(err, ErrBusy) {
		t.Fatalf("SetValue unknown field during submit err = %v, want ErrBusy", err)
	}

	release <- errors.New("backend down")
	if st := <-done; st != Failed {
		t.Fatalf("Submit = %v, want failed", st)
	}
	if diff := cmp.Diff(good(), c.Values()); diff != "" {
		t.Fatalf("edit leaked into submitted values (-want +got):\n%s", diff)
	}

	// Editing resumes once the submission has settled.
	if err := c.SetValue("email", "someone@else.com"); err != nil {
		t.Fatalf("SetValue after failure: %v", err)
	}
}

func TestSubmit_FailureKeepsValues(t *testing.T) {
	boom := errors.New("backend down")
	c := New(testSchema(t), SubmitterFunc(func(context.Context, map[string]any) error {
		return boom
	}), Options{})

	st, err := c.Submit(context.Background(), good())
	if st != Failed {
		t.Fatalf("state = %v, want failed", st)
	}
	var sf *SubmissionFailure
	if !errors.As(err, &sf) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want *SubmissionFailure wrapping boom", err)
	}
	if diff := cmp.Diff(good(), c.Values()); diff != "" {
		t.Fatalf("values lost on failure (-want +got):\n%s", diff)
	}
	if c.Snapshot().Failure != "backend down" {
		t.Fatalf("snapshot failure = %q", c.Snapshot().Failure)
	}

	// Submitting again from Failed is allowed.
	if st, err := c.Submit(context.Background(), good()); st != Failed || errors.Is(err, ErrBusy) {
		t.Fatalf("retry = (%v, %v)", st, err)
	}
}

func TestReset(t *testing.T) {
	c := New(testSchema(t), noop(), Options{})

	before := c.Snapshot()
	if err := c.Reset(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, c.Snapshot()); diff != "" {
		t.Fatalf("Reset on idle changed state (-before +after):\n%s", diff)
	}

	// Idle with a rejected result is still Idle; Reset leaves it alone.
	rec := good()
	rec["email"] = "bad"
	_, _ = c.Submit(context.Background(), rec)
	_ = c.Reset()
	if _, ok := c.CurrentResult(); !ok {
		t.Fatal("Reset on idle discarded the result")
	}

	_, _ = c.Submit(context.Background(), good())
	if c.State() != Succeeded {
		t.Fatalf("state = %v", c.State())
	}
	_ = c.Reset()
	if c.State() != Idle {
		t.Fatalf("state after Reset = %v, want idle", c.State())
	}
	if _, ok := c.CurrentResult(); ok {
		t.Fatal("result survived Reset")
	}
}

func TestSuccessLinger(t *testing.T) {
	var fire func()
	var stopped int32
	c := New(testSchema(t), noop(), Options{
		SuccessLinger: 3 * time.Second,
		AfterFunc: func(d time.Duration, f func()) func() bool {
			if d != 3*time.Second {
				t.Errorf("linger = %v", d)
			}
			fire = f
			return func() bool { atomic.AddInt32(&stopped, 1); return true }
		},
	})

	if st, _ := c.Submit(context.Background(), good()); st != Succeeded {
		t.Fatalf("state = %v", st)
	}
	if fire == nil {
		t.Fatal("linger not scheduled")
	}
	fire()
	if c.State() != Idle {
		t.Fatalf("state after linger = %v, want idle", c.State())
	}

	// A stale timer that fires after a new Submit does nothing.
	_, _ = c.Submit(context.Background(), good())
	stale := fire
	_ = c.Reset()
	_, _ = c.Submit(context.Background(), good())
	stale()
	if c.State() != Succeeded {
		t.Fatalf("stale linger moved state to %v", c.State())
	}
	if atomic.LoadInt32(&stopped) == 0 {
		t.Fatal("linger timer never stopped")
	}
}

func TestClose_InFlightSubmissionDoesNotMutate(t *testing.T) {
	var calls int32
	started := make(chan struct{}, 1)
	c := New(testSchema(t), blocking(&calls, started, make(chan error)), Options{})

	done := make(chan error)
	go func() {
		_, err := c.Submit(context.Background(), good())
		done <- err
	}()
	<-started

	c.Close()
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("in-flight Submit err = %v, want ErrClosed", err)
	}
	if st := c.State(); st == Succeeded || st == Failed {
		t.Fatalf("closed controller settled into %v", st)
	}
	if c.Failure() != nil {
		t.Fatal("failure recorded after Close")
	}

	if _, err := c.Submit(context.Background(), good()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after Close err = %v", err)
	}
	if err := c.SetValue("email", "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("SetValue after Close err = %v", err)
	}
	c.Close()
}

func TestSetValue_TouchedDirtyAndOnChange(t *testing.T) {
	c := New(testSchema(t), noop(), Options{Mode: OnChange})

	if err := c.SetValue("nope", 1); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("err = %v, want ErrUnknownField", err)
	}
	if err := c.SetValue("email", "not-an-email"); err != nil {
		t.Fatal(err)
	}

	want := map[string][]string{"email": {"Invalid email"}}
	if diff := cmp.Diff(want, c.VisibleErrors()); diff != "" {
		t.Fatalf("visible errors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"email"}, c.Dirty()); diff != "" {
		t.Fatalf("dirty (-want +got):\n%s", diff)
	}
	if !c.Touched()["email"] || c.Touched()["password"] {
		t.Fatalf("touched = %v", c.Touched())
	}

	_ = c.SetValue("email", "")
	if len(c.Dirty()) != 0 {
		t.Fatalf("dirty after revert = %v", c.Dirty())
	}
}

func TestSetValue_OnSubmitDefersValidation(t *testing.T) {
	c := New(testSchema(t), noop(), Options{})
	_ = c.SetValue("email", "not-an-email")
	if _, ok := c.CurrentResult(); ok {
		t.Fatal("OnSubmit mode validated on change")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": OnSubmit, "onSubmit": OnSubmit, "onChange": OnChange} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("onBlur"); err == nil {
		t.Fatal("ParseMode accepted onBlur")
	}
}
