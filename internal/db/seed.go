package db

import (
	"database/sql"
	"fmt"
	"time"
)

// SeedFixtures populates the database with a small queue of development
// messages, one per built-in platform, plus one that already went out so the
// conversation history is not empty.
func SeedFixtures(database *sql.DB) error {
	base := time.Now().Add(-time.Hour)

	messages := []struct {
		source, external, sender, body string
	}{
		{"linkedin", "seed-li-1", "recruiter_anna", "Hi! I came across your profile and would love to connect about a senior role."},
		{"gmail", "seed-gm-1", "team@example.com", "Reminder: the quarterly planning doc needs your comments by Friday."},
		{"telegram", "seed-tg-1", "sam", "are we still on for climbing tonight?"},
		{"facebook", "seed-fb-1", "aunt_mel", "Saw the photos from your trip, looks amazing!"},
		{"instagram", "seed-ig-1", "studio.lumen", "Love your latest post! Would you be up for a collab?"},
	}

	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	defer tx.Rollback()

	for i, m := range messages {
		seq := int64(i + 1)
		at := base.Add(time.Duration(i) * time.Minute).UnixNano()
		if _, err := tx.Exec(
			`INSERT INTO messages (id, seq, source_id, external_id, sender_id, body, received_at, state, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 'queued', ?, ?)`,
			fmt.Sprintf("MSG-%04d", seq), seq, m.source, m.external, m.sender, m.body, at, at, at,
		); err != nil {
			return fmt.Errorf("seed messages: %w", err)
		}
	}

	sentAt := base.Add(-24 * time.Hour).UnixNano()
	if _, err := tx.Exec(
		`INSERT INTO conversation_turns (message_id, source_id, sender_id, inbound, response, sent_at)
		 VALUES ('MSG-SEED-0', 'telegram', 'sam', 'climbing this week?', 'yes! thursday works', ?)`,
		sentAt,
	); err != nil {
		return fmt.Errorf("seed conversation: %w", err)
	}

	return tx.Commit()
}
