package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/switchboard/internal/ports/secondary"
)

// ConversationRepository implements secondary.ConversationRepository with SQLite.
type ConversationRepository struct {
	db *sql.DB
}

// NewConversationRepository creates a new SQLite conversation repository.
func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Append adds a turn. A turn for an already recorded message is ignored.
func (r *ConversationRepository) Append(ctx context.Context, turn *secondary.TurnRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversation_turns (message_id, source_id, sender_id, inbound, response, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.MessageID, turn.SourceID, turn.SenderID, turn.Inbound, turn.Response, toNanos(turn.SentAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent turns for a contact, oldest first.
func (r *ConversationRepository) Recent(ctx context.Context, sourceID, senderID string, limit int) ([]*secondary.TurnRecord, error) {
	query := `
		SELECT message_id, source_id, sender_id, inbound, response, sent_at
		FROM conversation_turns
		WHERE source_id = ? AND sender_id = ?
		ORDER BY id DESC`
	args := []any{sourceID, senderID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	defer rows.Close()

	var turns []*secondary.TurnRecord
	for rows.Next() {
		var (
			t      secondary.TurnRecord
			sentAt int64
		)
		if err := rows.Scan(&t.MessageID, &t.SourceID, &t.SenderID, &t.Inbound, &t.Response, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation turn: %w", err)
		}
		t.SentAt = fromNanos(sentAt)
		turns = append(turns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	// newest first from the query; callers want oldest first
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Ensure ConversationRepository implements the interface.
var _ secondary.ConversationRepository = (*ConversationRepository)(nil)
