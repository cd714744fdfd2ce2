// internal/submit/store.go
//
// formlab – Submission collaborators: database store stage.
//
// Context
//   When `store.driver` is set, accepted registrations are written to one
//   table as JSON alongside request metadata (browser, country) captured by
//   the requestinfo middleware.  Secret fields (password inputs) are
//   replaced with "[redacted]" before the record leaves the process.
//
//   The table name comes from config and is validated as a plain SQL
//   identifier there; NewStore checks it again because it is interpolated.
//
//------------------------------------------------------------------------------

package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/formlab/internal/form"
	"github.com/yanizio/formlab/internal/logger"
	"github.com/yanizio/formlab/internal/requestinfo"
	"github.com/yanizio/formlab/internal/schema"
)

// Redacted replaces secret values in persisted and queued payloads.
const Redacted = "[redacted]"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// Store persists submissions through sqlx.
type Store struct {
	db    *sqlx.DB
	table string
	now   func() time.Time
	newID func() string
}

// NewStore returns a Store writing to table.
func NewStore(db *sqlx.DB, table string) (*Store, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("store: invalid table name %q", table)
	}
	return &Store{db: db, table: table, now: time.Now, newID: uuid.NewString}, nil
}

// Migrations returns idempotent DDL that works on MySQL and SQLite.
func (s *Store) Migrations() []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id           CHAR(36)     NOT NULL PRIMARY KEY,
	form_id      VARCHAR(64)  NOT NULL,
	submitted_at TIMESTAMP    NOT NULL,
	data         TEXT         NOT NULL,
	user_agent   VARCHAR(255) NOT NULL DEFAULT '',
	country      CHAR(2)      NOT NULL DEFAULT ''
)`, s.table)}
}

// For returns the stage that stores records of form fs.
func (s *Store) For(fs *schema.FormSchema) form.Submitter {
	secret := secretFields(fs)
	query := s.db.Rebind(fmt.Sprintf(
		`INSERT INTO %s (id, form_id, submitted_at, data, user_agent, country) VALUES (?, ?, ?, ?, ?, ?)`,
		s.table))

	return form.SubmitterFunc(func(ctx context.Context, record map[string]any) error {
		data, err := json.Marshal(Redact(record, secret))
		if err != nil {
			return fmt.Errorf("encode submission: %w", err)
		}

		var browser, country string
		if info := requestinfo.FromContext(ctx); info != nil {
			browser = info.UA.Browser
			country = info.Geo.CountryISO
		}

		id := s.newID()
		if _, err := s.db.ExecContext(ctx, query,
			id, fs.ID(), s.now().UTC(), string(data), browser, country,
		); err != nil {
			return fmt.Errorf("store submission: %w", err)
		}
		logger.FromContext(ctx).Infow("submission stored", "form", fs.ID(), "id", id)
		return nil
	})
}

// Redact returns a copy of record with the named fields replaced.
func Redact(record map[string]any, secret map[string]bool) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		if secret[k] {
			out[k] = Redacted
			continue
		}
		out[k] = v
	}
	return out
}

// secretFields lists fields rendered as password inputs.
func secretFields(fs *schema.FormSchema) map[string]bool {
	out := make(map[string]bool)
	for _, f := range fs.Fields() {
		if f.Input == "password" {
			out[f.Name] = true
		}
	}
	return out
}
