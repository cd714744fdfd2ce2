package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestMigrate(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	db := sqlx.NewDb(raw, MySQL)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS b").WillReturnError(errors.New("denied"))

	err = Migrate(context.Background(), db, []string{
		"CREATE TABLE IF NOT EXISTS a (id INT)",
		"CREATE TABLE IF NOT EXISTS b (id INT)",
	})
	if err == nil {
		t.Fatal("Migrate swallowed the second failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "postgres", "x"); err == nil {
		t.Fatal("postgres accepted")
	}
}

func TestExpandDSN(t *testing.T) {
	got := ExpandDSN("app:{password}@tcp(db:3306)/formlab", "pw")
	if got != "app:pw@tcp(db:3306)/formlab" {
		t.Fatalf("ExpandDSN = %q", got)
	}
}
