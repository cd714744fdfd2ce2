// internal/form/errors.go
//
// formlab – Form Controller: error values.
//
// Context
//   Rejected validation is never an error; it is a validate.Result the
//   presentation layer renders inline.  The errors below cover the cases a
//   caller must branch on: a Submit that raced an in-flight submission, a
//   controller that has been closed, and a collaborator that failed after
//   validation accepted the record.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by Submit and SetValue while a submission is in
// flight.
var ErrBusy = errors.New("form: submission already in progress")

// ErrClosed is returned by every mutating call after Close.
var ErrClosed = errors.New("form: controller closed")

// ErrUnknownField is returned by SetValue for a name the schema does not
// declare.
var ErrUnknownField = errors.New("form: unknown field")

// SubmissionFailure wraps the collaborator error that moved the controller
// into Failed.  Check with errors.As; Unwrap exposes the cause.
type SubmissionFailure struct {
	Form string
	Err  error
}

func (e *SubmissionFailure) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Form, e.Err)
}

func (e *SubmissionFailure) Unwrap() error { return e.Err }

// IsSubmissionFailure reports whether err carries a *SubmissionFailure.
func IsSubmissionFailure(err error) bool {
	var sf *SubmissionFailure
	return errors.As(err, &sf)
}
