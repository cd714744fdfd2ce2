package submit

import (
	"context"
	"fmt"

	"github.com/yanizio/formlab/internal/form"
	"github.com/yanizio/formlab/internal/logger"
	"github.com/yanizio/formlab/internal/message"
	"github.com/yanizio/formlab/internal/schema"
)

// Notify enqueues a welcome notification for each accepted record.  It is
// best-effort: enqueue failures are logged and the submission still
// succeeds.
func Notify(q *message.Queue, fs *schema.FormSchema) form.Submitter {
	secret := secretFields(fs)
	return form.SubmitterFunc(func(ctx context.Context, record map[string]any) error {
		m := message.Message{
			Kind:    "email",
			Subject: fmt.Sprintf("%s: welcome", fs.Title()),
			Payload: Redact(record, secret),
		}
		if to, ok := record["email"].(string); ok && to != "" {
			m.To = []string{to}
		}
		if name, ok := record["firstName"].(string); ok && name != "" {
			m.Subject = fmt.Sprintf("Welcome, %s", name)
		}

		if err := q.Enqueue(ctx, m); err != nil {
			logger.FromContext(ctx).Warnw("notification dropped", "form", fs.ID(), "err", err)
		}
		return nil
	})
}
