// Package database centralises sqlx connection helpers for the optional
// submission store.  Two drivers are linked in: go-sql-driver/mysql (also
// MariaDB and MySQL-wire compatible servers) for deployments, and
// mattn/go-sqlite3 for single-binary local runs.
//
// Public entry points:
//
//	Open(driver, dsn)                               – conservative pool sizes.
//	OpenWithOptions(driver, dsn, maxOpen, maxIdle)  – fine-grained control.
//	Migrate(ctx, db, stmts)                         – idempotent DDL runner.
//
// Both open helpers Ping the database before returning so callers can fail
// fast during bootstrap.  Callers should Close() the returned *sqlx.DB.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Supported driver names.
const (
	MySQL  = "mysql"
	SQLite = "sqlite3"
)

// Open returns a *sqlx.DB with sane defaults: 15 max open, 5 idle, and a
// 30-minute connection lifetime.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, driver, dsn, 15, 5)
}

// OpenWithOptions lets callers tune maxOpen and maxIdle.  SQLite is capped
// at one open connection because it serialises writers anyway.
func OpenWithOptions(ctx context.Context, driver, dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	switch driver {
	case MySQL, SQLite:
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == SQLite {
		maxOpen, maxIdle = 1, 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// ExpandDSN splices password into the `{password}` placeholder of a DSN
// template so the secret can live in Vault while the template lives in YAML.
func ExpandDSN(template, password string) string {
	return strings.ReplaceAll(template, "{password}", password)
}

// Migrate executes stmts in order.  Statements must be idempotent
// (CREATE … IF NOT EXISTS).
func Migrate(ctx context.Context, db *sqlx.DB, stmts []string) error {
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
