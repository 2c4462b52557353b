// Package testdb opens throwaway SQLite databases shaped like the helpdesk
// schema the descriptors run against.
package testdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mirajehossain/deskmigrate/internal/db"
	"github.com/mirajehossain/deskmigrate/internal/dialect"
)

// Helpdesk is the pre-migration shape of the tables the descriptors touch.
var Helpdesk = []string{
	`CREATE TABLE "Companies" ("id" INTEGER PRIMARY KEY, "name" VARCHAR(255) NOT NULL)`,
	`CREATE TABLE "Settings" ("id" INTEGER PRIMARY KEY, "key" VARCHAR(255) NOT NULL, "value" TEXT)`,
	`CREATE TABLE "Whatsapps" ("id" INTEGER PRIMARY KEY, "name" VARCHAR(255) NOT NULL)`,
	`CREATE TABLE "Contacts" ("id" INTEGER PRIMARY KEY, "name" VARCHAR(255) NOT NULL, "number" VARCHAR(255) NOT NULL)`,
}

// SQLite opens an empty database in t.TempDir, closed on cleanup.
func SQLite(t testing.TB) (*sql.DB, dialect.Dialect) {
	t.Helper()
	conn, d, err := db.Open("sqlite", filepath.Join(t.TempDir(), "desk.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, d
}

// Exec runs each statement, failing the test on the first error.
func Exec(t testing.TB, conn *sql.DB, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

// HelpdeskSQLite is SQLite with the Helpdesk tables created.
func HelpdeskSQLite(t testing.TB) (*sql.DB, dialect.Dialect) {
	t.Helper()
	conn, d := SQLite(t)
	Exec(t, conn, Helpdesk...)
	return conn, d
}
