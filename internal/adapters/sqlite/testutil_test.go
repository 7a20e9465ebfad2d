// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed helpers instead.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/switchboard/internal/adapters/sqlite"
	"github.com/example/switchboard/internal/db"
	"github.com/example/switchboard/internal/ports/secondary"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// The pool is pinned to one connection so every query sees the same memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// seedMessage enqueues a message received at baseTime plus offset and returns its ID.
func seedMessage(t *testing.T, repo *sqlite.MessageRepository, sourceID, externalID string, offset time.Duration) string {
	t.Helper()
	id, err := repo.Enqueue(context.Background(), &secondary.MessageRecord{
		SourceID:   sourceID,
		ExternalID: externalID,
		SenderID:   "alice",
		Body:       "hello from " + externalID,
		ReceivedAt: baseTime.Add(offset),
	})
	if err != nil {
		t.Fatalf("failed to seed message: %v", err)
	}
	return id
}
