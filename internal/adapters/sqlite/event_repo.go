package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/switchboard/internal/ports/secondary"
)

// EventRepository implements secondary.EventRepository with SQLite.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create persists an event and fills in its ID.
func (r *EventRepository) Create(ctx context.Context, event *secondary.EventRecord) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO events (message_id, actor_id, action, from_state, to_state, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.MessageID, event.ActorID, event.Action, event.FromState, event.ToState, event.Detail, toNanos(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		event.ID = id
	}
	return nil
}

// List returns events, oldest first.
func (r *EventRepository) List(ctx context.Context, filters secondary.EventFilters) ([]*secondary.EventRecord, error) {
	query := "SELECT id, message_id, actor_id, action, from_state, to_state, detail, created_at FROM events WHERE 1=1"
	var args []any

	if filters.MessageID != "" {
		query += " AND message_id = ?"
		args = append(args, filters.MessageID)
	}

	query += " ORDER BY id ASC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*secondary.EventRecord
	for rows.Next() {
		var (
			e       secondary.EventRecord
			created int64
		)
		if err := rows.Scan(&e.ID, &e.MessageID, &e.ActorID, &e.Action, &e.FromState, &e.ToState, &e.Detail, &created); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.CreatedAt = fromNanos(created)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Ensure EventRepository implements the interface.
var _ secondary.EventRepository = (*EventRepository)(nil)
