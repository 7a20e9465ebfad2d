// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ports/secondary"
)

// MessageRepository implements secondary.MessageRepository with SQLite.
type MessageRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewMessageRepository creates a new SQLite message repository.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db, now: time.Now}
}

const messageColumns = `id, seq, source_id, external_id, sender_id, body, received_at, state, state_version,
	final_response, pending_feedback, send_attempts, last_error, next_attempt_at, sent_at, created_at, updated_at`

// Enqueue persists a new queued message.
func (r *MessageRepository) Enqueue(ctx context.Context, record *secondary.MessageRecord) (string, error) {
	var id string
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM messages WHERE source_id = ? AND external_id = ?",
			record.SourceID, record.ExternalID,
		).Scan(&existing)
		if err == nil {
			return &message.DuplicateError{SourceID: record.SourceID, ExternalID: record.ExternalID, ExistingID: existing}
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check duplicate: %w", err)
		}

		var seq int64
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM messages").Scan(&seq); err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		now := r.now()
		received := record.ReceivedAt
		if received.IsZero() {
			received = now
		}
		id = fmt.Sprintf("MSG-%04d", seq)

		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (id, seq, source_id, external_id, sender_id, body, received_at, state, state_version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			id, seq, record.SourceID, record.ExternalID, record.SenderID, record.Body,
			toNanos(received), string(message.InitialState()), toNanos(now), toNanos(now),
		)
		if err != nil {
			return fmt.Errorf("failed to enqueue message: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetByID retrieves a message with its draft history.
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*secondary.MessageRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	record, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, &message.NotFoundError{MessageID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	drafts, err := r.loadDrafts(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	record.Drafts = drafts
	return record, nil
}

// List retrieves messages in FIFO order, optionally filtered by state.
func (r *MessageRepository) List(ctx context.Context, filters secondary.MessageFilters) ([]*secondary.MessageRecord, error) {
	query := "SELECT " + messageColumns + " FROM messages"
	var args []any

	if len(filters.States) > 0 {
		placeholders := make([]string, len(filters.States))
		for i, s := range filters.States {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += " WHERE state IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query += " ORDER BY received_at ASC, seq ASC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var records []*secondary.MessageRecord
	for rows.Next() {
		record, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	rows.Close()

	for _, record := range records {
		drafts, err := r.loadDrafts(ctx, r.db, record.ID)
		if err != nil {
			return nil, err
		}
		record.Drafts = drafts
	}
	return records, nil
}

// SetState performs the check-and-set state change.
func (r *MessageRepository) SetState(ctx context.Context, id, from string, expectVersion int64, to string) (int64, error) {
	var newVersion int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var (
			current string
			version int64
		)
		err := tx.QueryRowContext(ctx, "SELECT state, state_version FROM messages WHERE id = ?", id).Scan(&current, &version)
		if err == sql.ErrNoRows {
			return &message.NotFoundError{MessageID: id}
		}
		if err != nil {
			return fmt.Errorf("failed to read state: %w", err)
		}

		result, err := message.ApplyTransition(id, message.State(current), version, message.State(from), expectVersion, message.State(to))
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE messages SET state = ?, state_version = ?, updated_at = ? WHERE id = ? AND state = ? AND state_version = ?",
			string(result.To), result.NewVersion, toNanos(r.now()), id, from, expectVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to update state: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return &message.InvalidTransitionError{
				MessageID: id,
				From:      message.State(from),
				To:        message.State(to),
				Reason:    "state changed concurrently",
				Stale:     true,
			}
		}
		newVersion = result.NewVersion
		return nil
	})
	return newVersion, err
}

// NextPending returns the oldest queued message.
func (r *MessageRepository) NextPending(ctx context.Context) (*secondary.MessageRecord, error) {
	return r.first(ctx, []string{string(message.StateQueued)})
}

// FindActive returns the message holding the active slot.
func (r *MessageRepository) FindActive(ctx context.Context) (*secondary.MessageRecord, error) {
	var states []string
	for _, s := range message.ActiveStates() {
		states = append(states, string(s))
	}
	return r.first(ctx, states)
}

// AppendDraft adds a draft if the caller's version is current.
func (r *MessageRepository) AppendDraft(ctx context.Context, id string, expectVersion int64, draft secondary.DraftRecord) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var (
			state   string
			version int64
		)
		err := tx.QueryRowContext(ctx, "SELECT state, state_version FROM messages WHERE id = ?", id).Scan(&state, &version)
		if err == sql.ErrNoRows {
			return &message.NotFoundError{MessageID: id}
		}
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
		if version != expectVersion {
			return &message.InvalidTransitionError{
				MessageID: id,
				From:      message.State(state),
				To:        message.State(state),
				Reason:    fmt.Sprintf("stale state version %d (current %d)", expectVersion, version),
				Stale:     true,
			}
		}

		var position int
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), 0) + 1 FROM drafts WHERE message_id = ?", id).Scan(&position); err != nil {
			return fmt.Errorf("failed to allocate draft position: %w", err)
		}

		created := draft.CreatedAt
		if created.IsZero() {
			created = r.now()
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO drafts (id, message_id, position, text, note, origin, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			draft.ID, id, position, draft.Text, draft.Note, draft.Origin, toNanos(created),
		)
		if err != nil {
			return fmt.Errorf("failed to append draft: %w", err)
		}
		return touch(ctx, tx, id, r.now())
	})
}

// SetFinalResponse records the approved text of a message in review.
func (r *MessageRepository) SetFinalResponse(ctx context.Context, id, text string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE messages SET final_response = ?, updated_at = ? WHERE id = ? AND state = ?",
		text, toNanos(r.now()), id, string(message.StateReviewing),
	)
	if err != nil {
		return fmt.Errorf("failed to set final response: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		rec, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return finalResponseFrozen(rec.ID, rec.State)
	}
	return nil
}

func finalResponseFrozen(id, state string) error {
	return &message.InvalidTransitionError{
		MessageID: id,
		From:      message.State(state),
		To:        message.StateSending,
		Reason:    "the response can only change in review",
	}
}

// SetFeedback records the pending revision note.
func (r *MessageRepository) SetFeedback(ctx context.Context, id, note string) error {
	return r.exec(ctx, id, "failed to set feedback",
		"UPDATE messages SET pending_feedback = ?, updated_at = ? WHERE id = ?",
		note, toNanos(r.now()), id,
	)
}

// RecordSendAttempt stores dispatch bookkeeping.
func (r *MessageRepository) RecordSendAttempt(ctx context.Context, id string, attempts int, lastErr string, nextAttemptAt time.Time) error {
	return r.exec(ctx, id, "failed to record send attempt",
		"UPDATE messages SET send_attempts = ?, last_error = ?, next_attempt_at = ?, updated_at = ? WHERE id = ?",
		attempts, lastErr, toNanos(nextAttemptAt), toNanos(r.now()), id,
	)
}

// MarkSent records the delivery time.
func (r *MessageRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	return r.exec(ctx, id, "failed to mark message sent",
		"UPDATE messages SET sent_at = ?, next_attempt_at = 0, last_error = '', updated_at = ? WHERE id = ?",
		toNanos(sentAt), toNanos(r.now()), id,
	)
}

// Clear deletes every message, draft, turn and event. Used when a local
// session stops.
func (r *MessageRepository) Clear(ctx context.Context) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"drafts", "messages", "conversation_turns", "events"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

func (r *MessageRepository) first(ctx context.Context, states []string) (*secondary.MessageRecord, error) {
	records, err := r.List(ctx, secondary.MessageFilters{States: states, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (r *MessageRepository) exec(ctx context.Context, id, failure, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", failure, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &message.NotFoundError{MessageID: id}
	}
	return nil
}

func (r *MessageRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *MessageRepository) loadDrafts(ctx context.Context, q querier, id string) ([]secondary.DraftRecord, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, text, note, origin, created_at FROM drafts WHERE message_id = ? ORDER BY position ASC",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}
	defer rows.Close()

	var drafts []secondary.DraftRecord
	for rows.Next() {
		var (
			d       secondary.DraftRecord
			created int64
		)
		if err := rows.Scan(&d.ID, &d.Text, &d.Note, &d.Origin, &created); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		d.CreatedAt = fromNanos(created)
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*secondary.MessageRecord, error) {
	var (
		record                                                  secondary.MessageRecord
		receivedAt, nextAttemptAt, sentAt, createdAt, updatedAt int64
	)
	err := s.Scan(
		&record.ID, &record.Seq, &record.SourceID, &record.ExternalID, &record.SenderID, &record.Body,
		&receivedAt, &record.State, &record.StateVersion,
		&record.FinalResponse, &record.PendingFeedback, &record.SendAttempts, &record.LastError,
		&nextAttemptAt, &sentAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.ReceivedAt = fromNanos(receivedAt)
	record.NextAttemptAt = fromNanos(nextAttemptAt)
	record.SentAt = fromNanos(sentAt)
	record.CreatedAt = fromNanos(createdAt)
	record.UpdatedAt = fromNanos(updatedAt)
	return &record, nil
}

func touch(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, "UPDATE messages SET updated_at = ? WHERE id = ?", toNanos(now), id); err != nil {
		return fmt.Errorf("failed to touch message: %w", err)
	}
	return nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Ensure MessageRepository implements the interface.
var _ secondary.MessageRepository = (*MessageRepository)(nil)
