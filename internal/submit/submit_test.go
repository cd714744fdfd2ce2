package submit

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/formlab/internal/form"
	"github.com/yanizio/formlab/internal/message"
	"github.com/yanizio/formlab/internal/requestinfo"
	"github.com/yanizio/formlab/internal/schema"
)

func signup() *schema.FormSchema {
	return schema.MustDefine([]schema.Field{
		{Name: "firstName"},
		{Name: "email", Input: "email"},
		{Name: "password", Input: "password"},
	}, nil, schema.WithID("signup"), schema.WithTitle("Sign up"))
}

func record() map[string]any {
	return map[string]any{"firstName": "Ada", "email": "ada@example.com", "password": "longenough1"}
}

// redactedJSON matches the data column when the password is redacted.
type redactedJSON struct{}

func (redactedJSON) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	var m map[string]any
	if json.Unmarshal([]byte(s), &m) != nil {
		return false
	}
	return m["password"] == Redacted && m["email"] == "ada@example.com"
}

func TestStore_InsertsRedactedRecord(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	db := sqlx.NewDb(raw, "mysql")
	defer db.Close()

	st, err := NewStore(db, "form_submission")
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return at }
	st.newID = func() string { return "id-1" }

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO form_submission (id, form_id, submitted_at, data, user_agent, country) VALUES (?, ?, ?, ?, ?, ?)")).
		WithArgs("id-1", "signup", at, redactedJSON{}, "Chrome", "US").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ctx := requestinfo.NewContext(context.Background(), &requestinfo.RequestInfo{
		UA:  requestinfo.UA{Browser: "Chrome"},
		Geo: requestinfo.Geo{CountryISO: "US"},
	})
	if err := st.For(signup()).AttemptSubmit(ctx, record()); err != nil {
		t.Fatalf("AttemptSubmit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStore_ExecErrorFailsSubmission(t *testing.T) {
	raw, mock, _ := sqlmock.New()
	db := sqlx.NewDb(raw, "mysql")
	defer db.Close()
	st, _ := NewStore(db, "form_submission")

	mock.ExpectExec("INSERT INTO form_submission").WillReturnError(errors.New("disk full"))

	err := st.For(signup()).AttemptSubmit(context.Background(), record())
	if err == nil {
		t.Fatal("exec failure was swallowed")
	}
}

func TestNewStore_RejectsBadTable(t *testing.T) {
	if _, err := NewStore(nil, "x; DROP TABLE y"); err == nil {
		t.Fatal("bad table name accepted")
	}
}

func TestStore_Migrations(t *testing.T) {
	st, _ := NewStore(sqlx.NewDb(nil, "mysql"), "subs")
	m := st.Migrations()
	if len(m) != 1 || !regexp.MustCompile(`CREATE TABLE IF NOT EXISTS subs`).MatchString(m[0]) {
		t.Fatalf("migrations = %v", m)
	}
}

func TestNotify_EnqueuesRedactedPayload(t *testing.T) {
	q := message.NewQueue(1, nil)
	if err := Notify(q, signup()).AttemptSubmit(context.Background(), record()); err != nil {
		t.Fatal(err)
	}
	if q.Len() != 1 {
		t.Fatalf("queue len = %d", q.Len())
	}

	// Full queue: still succeeds.
	if err := Notify(q, signup()).AttemptSubmit(context.Background(), record()); err != nil {
		t.Fatalf("full queue failed the submission: %v", err)
	}
}

func TestDelay(t *testing.T) {
	if err := Delay(time.Millisecond).AttemptSubmit(context.Background(), nil); err != nil {
		t.Fatalf("Delay: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Delay(time.Hour).AttemptSubmit(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// No delay means immediate success, whatever ctx holds.
	for _, d := range []time.Duration{0, -time.Second} {
		if err := Delay(d).AttemptSubmit(ctx, nil); err != nil {
			t.Fatalf("Delay(%v) on cancelled ctx: %v", d, err)
		}
	}
}

func TestChain_StopsAtFirstError(t *testing.T) {
	var ran []string
	stage := func(name string, err error) form.Submitter {
		return form.SubmitterFunc(func(context.Context, map[string]any) error {
			ran = append(ran, name)
			return err
		})
	}
	boom := errors.New("boom")

	err := Chain(stage("a", nil), nil, stage("b", boom), stage("c", nil)).
		AttemptSubmit(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, ran); diff != "" {
		t.Fatalf("stages (-want +got):\n%s", diff)
	}
}

func TestRedact(t *testing.T) {
	in := record()
	out := Redact(in, map[string]bool{"password": true})
	if out["password"] != Redacted || in["password"] != "longenough1" {
		t.Fatalf("Redact mutated input or missed field: in=%v out=%v", in, out)
	}
}
