package submit

import (
	"context"
	"time"

	"github.com/yanizio/formlab/internal/form"
)

// Delay waits d before succeeding, or returns ctx.Err() if the submission
// is cancelled first.  A non-positive d succeeds immediately.
func Delay(d time.Duration) form.Submitter {
	return form.SubmitterFunc(func(ctx context.Context, _ map[string]any) error {
		if d <= 0 {
			return nil
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
