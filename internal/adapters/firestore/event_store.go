package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/example/switchboard/internal/ports/secondary"
)

type eventDoc struct {
	Seq       int64     `firestore:"seq"`
	MessageID string    `firestore:"message_id"`
	ActorID   string    `firestore:"actor_id"`
	Action    string    `firestore:"action"`
	FromState string    `firestore:"from_state"`
	ToState   string    `firestore:"to_state"`
	Detail    string    `firestore:"detail"`
	CreatedAt time.Time `firestore:"created_at"`
}

// EventStore implements secondary.EventRepository on Firestore.
type EventStore struct {
	c *Client
}

// NewEventStore creates an EventStore.
func NewEventStore(c *Client) *EventStore {
	return &EventStore{c: c}
}

// Create persists an event and fills in its ID.
func (s *EventStore) Create(ctx context.Context, event *secondary.EventRecord) error {
	return s.c.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		seq, writeSeq, err := s.c.nextSeq(tx, eventsCollection)
		if err != nil {
			return err
		}
		if err := writeSeq(); err != nil {
			return err
		}
		err = tx.Create(s.c.col(eventsCollection).Doc(fmt.Sprintf("EVT-%08d", seq)), eventDoc{
			Seq:       seq,
			MessageID: event.MessageID,
			ActorID:   event.ActorID,
			Action:    event.Action,
			FromState: event.FromState,
			ToState:   event.ToState,
			Detail:    event.Detail,
			CreatedAt: event.CreatedAt,
		})
		if err != nil {
			return err
		}
		event.ID = seq
		return nil
	})
}

// List returns events, oldest first.
func (s *EventStore) List(ctx context.Context, filters secondary.EventFilters) ([]*secondary.EventRecord, error) {
	q := s.c.col(eventsCollection).Query
	if filters.MessageID != "" {
		q = q.Where("message_id", "==", filters.MessageID)
	}
	q = q.OrderBy("seq", firestore.Asc)
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*secondary.EventRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		var doc eventDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		out = append(out, &secondary.EventRecord{
			ID:        doc.Seq,
			MessageID: doc.MessageID,
			ActorID:   doc.ActorID,
			Action:    doc.Action,
			FromState: doc.FromState,
			ToState:   doc.ToState,
			Detail:    doc.Detail,
			CreatedAt: doc.CreatedAt,
		})
	}
	return out, nil
}

var _ secondary.EventRepository = (*EventStore)(nil)
