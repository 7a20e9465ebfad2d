package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/switchboard/internal/ports/secondary"
)

type turnDoc struct {
	SourceID string    `firestore:"source_id"`
	SenderID string    `firestore:"sender_id"`
	Inbound  string    `firestore:"inbound"`
	Response string    `firestore:"response"`
	SentAt   time.Time `firestore:"sent_at"`
}

// ConversationStore implements secondary.ConversationRepository on Firestore.
// Turns are keyed by message ID, so a second append for a message is a no-op.
type ConversationStore struct {
	c *Client
}

// NewConversationStore creates a ConversationStore.
func NewConversationStore(c *Client) *ConversationStore {
	return &ConversationStore{c: c}
}

// Append adds a turn.
func (s *ConversationStore) Append(ctx context.Context, turn *secondary.TurnRecord) error {
	_, err := s.c.col(turnsCollection).Doc(turn.MessageID).Create(ctx, turnDoc{
		SourceID: turn.SourceID,
		SenderID: turn.SenderID,
		Inbound:  turn.Inbound,
		Response: turn.Response,
		SentAt:   turn.SentAt,
	})
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent turns for a contact, oldest first.
func (s *ConversationStore) Recent(ctx context.Context, sourceID, senderID string, limit int) ([]*secondary.TurnRecord, error) {
	q := s.c.col(turnsCollection).
		Where("source_id", "==", sourceID).
		Where("sender_id", "==", senderID).
		OrderBy("sent_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var turns []*secondary.TurnRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		var doc turnDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode turn: %w", err)
		}
		turns = append(turns, &secondary.TurnRecord{
			MessageID: snap.Ref.ID,
			SourceID:  doc.SourceID,
			SenderID:  doc.SenderID,
			Inbound:   doc.Inbound,
			Response:  doc.Response,
			SentAt:    doc.SentAt,
		})
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

var _ secondary.ConversationRepository = (*ConversationStore)(nil)
