// internal/submit/chain.go
//
// formlab – Submission collaborators.
//
// Context
//   The Form Controller hands every accepted record to one form.Submitter.
//   This package provides the stages the demo composes into that submitter:
//
//       Chain(Delay(1s), store.For(schema), Notify(queue, schema))
//
//   •  Delay   simulates network latency and honours cancellation.
//   •  Store   persists the record (optional, disabled by default).
//   •  Notify  enqueues a best-effort notification; it never fails the
//              submission.
//
//   Stages run in order and the first error stops the chain.
//
//------------------------------------------------------------------------------

package submit

import (
	"context"
	"fmt"

	"github.com/yanizio/formlab/internal/form"
)

// Chain returns a Submitter running stages in order.  Nil stages are
// skipped so callers can build the list conditionally.
func Chain(stages ...form.Submitter) form.Submitter {
	live := make([]form.Submitter, 0, len(stages))
	for _, s := range stages {
		if s != nil {
			live = append(live, s)
		}
	}
	return form.SubmitterFunc(func(ctx context.Context, record map[string]any) error {
		for i, s := range live {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.AttemptSubmit(ctx, record); err != nil {
				return fmt.Errorf("stage %d: %w", i, err)
			}
		}
		return nil
	})
}
