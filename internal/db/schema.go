package db

import "database/sql"

// SchemaSQL is the complete schema for a fresh store.
// This schema reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Repository
// tests load it through GetSchemaSQL(), so a column referenced by the
// repositories but missing here fails the tests with "no such column".
//
// Timestamps are stored as INTEGER unix nanoseconds; 0 means unset.
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
const SchemaSQL = `
-- Messages (inbound queue and lifecycle state)
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL UNIQUE,
	source_id TEXT NOT NULL,
	external_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	body TEXT NOT NULL,
	received_at INTEGER NOT NULL,
	state TEXT NOT NULL CHECK(state IN (
		'queued', 'awaiting_decision', 'drafting', 'manual_draft', 'reviewing', 'editing',
		'sending', 'failed_draft', 'ignored', 'sent', 'send_failed'
	)) DEFAULT 'queued',
	state_version INTEGER NOT NULL DEFAULT 0,
	final_response TEXT NOT NULL DEFAULT '',
	pending_feedback TEXT NOT NULL DEFAULT '',
	send_attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	next_attempt_at INTEGER NOT NULL DEFAULT 0,
	sent_at INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(source_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_state_order ON messages(state, received_at, seq);

-- Drafts (append-only history per message)
CREATE TABLE IF NOT EXISTS drafts (
	id TEXT PRIMARY KEY,
	message_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	origin TEXT NOT NULL CHECK(origin IN ('ai', 'manual')),
	created_at INTEGER NOT NULL,
	FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE,
	UNIQUE(message_id, position)
);

-- Conversation turns (one per sent message)
CREATE TABLE IF NOT EXISTS conversation_turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL UNIQUE,
	source_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	inbound TEXT NOT NULL,
	response TEXT NOT NULL,
	sent_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_contact ON conversation_turns(source_id, sender_id, id);

-- Events (audit trail)
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL,
	actor_id TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	from_state TEXT NOT NULL DEFAULT '',
	to_state TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_message ON events(message_id, id);
`

// InitSchema brings the database up to the latest schema version.
func InitSchema(database *sql.DB) error {
	return RunMigrations(database)
}

// GetSchemaSQL returns the authoritative schema.
func GetSchemaSQL() string {
	return SchemaSQL
}
