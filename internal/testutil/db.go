// Package testutil provides test fixtures shared across package tests.
package testutil

import (
	"database/sql"
	"testing"

	"osrs-tracker/internal/database"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// OpenTestDB opens an isolated in-memory store with the production
// schema applied and closes it when the test ends.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	// An in-memory database lives on a single connection; a second
	// pooled connection would see an empty schema.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := database.Migrate(db, zerolog.Nop()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
