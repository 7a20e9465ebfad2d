package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ports/secondary"
)

type draftDoc struct {
	ID        string    `firestore:"id"`
	Text      string    `firestore:"text"`
	Note      string    `firestore:"note"`
	Origin    string    `firestore:"origin"`
	CreatedAt time.Time `firestore:"created_at"`
}

type messageDoc struct {
	Seq             int64      `firestore:"seq"`
	SourceID        string     `firestore:"source_id"`
	ExternalID      string     `firestore:"external_id"`
	SenderID        string     `firestore:"sender_id"`
	Body            string     `firestore:"body"`
	ReceivedAt      time.Time  `firestore:"received_at"`
	State           string     `firestore:"state"`
	StateVersion    int64      `firestore:"state_version"`
	Drafts          []draftDoc `firestore:"drafts"`
	FinalResponse   string     `firestore:"final_response"`
	PendingFeedback string     `firestore:"pending_feedback"`
	SendAttempts    int        `firestore:"send_attempts"`
	LastError       string     `firestore:"last_error"`
	NextAttemptAt   time.Time  `firestore:"next_attempt_at"`
	SentAt          time.Time  `firestore:"sent_at"`
	CreatedAt       time.Time  `firestore:"created_at"`
	UpdatedAt       time.Time  `firestore:"updated_at"`
}

// MessageStore implements secondary.MessageRepository on Firestore.
// Every read-modify-write runs in a Firestore transaction.
type MessageStore struct {
	c *Client
}

// NewMessageStore creates a MessageStore.
func NewMessageStore(c *Client) *MessageStore {
	return &MessageStore{c: c}
}

// Enqueue persists a new queued message.
func (s *MessageStore) Enqueue(ctx context.Context, record *secondary.MessageRecord) (string, error) {
	var id string
	err := s.c.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		keyRef := s.c.col(dedupCollection).Doc(dedupKey(record.SourceID, record.ExternalID))
		snap, err := tx.Get(keyRef)
		if err == nil {
			existing, _ := snap.DataAt("message_id")
			existingID, _ := existing.(string)
			return &message.DuplicateError{SourceID: record.SourceID, ExternalID: record.ExternalID, ExistingID: existingID}
		}
		if !isNotFound(err) {
			return fmt.Errorf("failed to check duplicate: %w", err)
		}

		seq, writeSeq, err := s.c.nextSeq(tx, messagesCollection)
		if err != nil {
			return err
		}

		now := s.c.now()
		received := record.ReceivedAt
		if received.IsZero() {
			received = now
		}
		id = fmt.Sprintf("MSG-%04d", seq)
		doc := messageDoc{
			Seq:        seq,
			SourceID:   record.SourceID,
			ExternalID: record.ExternalID,
			SenderID:   record.SenderID,
			Body:       record.Body,
			ReceivedAt: received,
			State:      string(message.InitialState()),
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := writeSeq(); err != nil {
			return err
		}
		if err := tx.Create(keyRef, map[string]any{"message_id": id}); err != nil {
			return err
		}
		return tx.Create(s.c.col(messagesCollection).Doc(id), doc)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetByID retrieves a message with its draft history.
func (s *MessageStore) GetByID(ctx context.Context, id string) (*secondary.MessageRecord, error) {
	snap, err := s.c.col(messagesCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, &message.NotFoundError{MessageID: id}
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return decodeMessage(snap)
}

// List retrieves messages in FIFO order.
func (s *MessageStore) List(ctx context.Context, filters secondary.MessageFilters) ([]*secondary.MessageRecord, error) {
	q := s.c.col(messagesCollection).Query
	if len(filters.States) > 0 {
		q = q.Where("state", "in", filters.States)
	}
	q = q.OrderBy("received_at", firestore.Asc).OrderBy("seq", firestore.Asc)
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*secondary.MessageRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		rec, err := decodeMessage(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// SetState performs the check-and-set state change.
func (s *MessageStore) SetState(ctx context.Context, id, from string, expectVersion int64, to string) (int64, error) {
	var newVersion int64
	err := s.mutate(ctx, id, func(doc *messageDoc) ([]firestore.Update, error) {
		result, err := message.ApplyTransition(id, message.State(doc.State), doc.StateVersion, message.State(from), expectVersion, message.State(to))
		if err != nil {
			return nil, err
		}
		newVersion = result.NewVersion
		return []firestore.Update{
			{Path: "state", Value: string(result.To)},
			{Path: "state_version", Value: result.NewVersion},
		}, nil
	})
	return newVersion, err
}

// NextPending returns the oldest queued message.
func (s *MessageStore) NextPending(ctx context.Context) (*secondary.MessageRecord, error) {
	return s.first(ctx, []string{string(message.StateQueued)})
}

// FindActive returns the message holding the active slot.
func (s *MessageStore) FindActive(ctx context.Context) (*secondary.MessageRecord, error) {
	var states []string
	for _, st := range message.ActiveStates() {
		states = append(states, string(st))
	}
	return s.first(ctx, states)
}

// AppendDraft adds a draft if the caller's version is current.
func (s *MessageStore) AppendDraft(ctx context.Context, id string, expectVersion int64, draft secondary.DraftRecord) error {
	return s.mutate(ctx, id, func(doc *messageDoc) ([]firestore.Update, error) {
		if doc.StateVersion != expectVersion {
			return nil, &message.InvalidTransitionError{
				MessageID: id,
				From:      message.State(doc.State),
				To:        message.State(doc.State),
				Reason:    fmt.Sprintf("stale state version %d (current %d)", expectVersion, doc.StateVersion),
				Stale:     true,
			}
		}
		created := draft.CreatedAt
		if created.IsZero() {
			created = s.c.now()
		}
		return []firestore.Update{{
			Path: "drafts",
			Value: firestore.ArrayUnion(draftDoc{
				ID:        draft.ID,
				Text:      draft.Text,
				Note:      draft.Note,
				Origin:    draft.Origin,
				CreatedAt: created,
			}),
		}}, nil
	})
}

// SetFinalResponse records the approved text of a message in review.
func (s *MessageStore) SetFinalResponse(ctx context.Context, id, text string) error {
	return s.mutate(ctx, id, func(doc *messageDoc) ([]firestore.Update, error) {
		if doc.State != string(message.StateReviewing) {
			return nil, &message.InvalidTransitionError{MessageID: id, From: message.State(doc.State), To: message.StateSending, Reason: "the response can only change in review"}
		}
		return []firestore.Update{{Path: "final_response", Value: text}}, nil
	})
}

// SetFeedback records the pending revision note.
func (s *MessageStore) SetFeedback(ctx context.Context, id, note string) error {
	return s.mutate(ctx, id, func(doc *messageDoc) ([]firestore.Update, error) {
		return []firestore.Update{{Path: "pending_feedback", Value: note}}, nil
	})
}

// RecordSendAttempt stores dispatch bookkeeping.
func (s *MessageStore) RecordSendAttempt(ctx context.Context, id string, attempts int, lastErr string, nextAttemptAt time.Time) error {
	return s.mutate(ctx, id, func(doc *messageDoc) ([]firestore.Update, error) {
		return []firestore.Update{
			{Path: "send_attempts", Value: attempts},
			{Path: "last_error", Value: lastErr},
			{Path: "next_attempt_at", Value: nextAttemptAt},
		}, nil
	})
}

// MarkSent records the delivery time.
func (s *MessageStore) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	return s.mutate(ctx, id, func(doc *messageDoc) ([]firestore.Update, error) {
		return []firestore.Update{
			{Path: "sent_at", Value: sentAt},
			{Path: "next_attempt_at", Value: time.Time{}},
			{Path: "last_error", Value: ""},
		}, nil
	})
}

// mutate reads the message and applies the updates fn returns, in one transaction.
func (s *MessageStore) mutate(ctx context.Context, id string, fn func(doc *messageDoc) ([]firestore.Update, error)) error {
	ref := s.c.col(messagesCollection).Doc(id)
	return s.c.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return &message.NotFoundError{MessageID: id}
			}
			return fmt.Errorf("failed to read message: %w", err)
		}
		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("failed to decode message: %w", err)
		}
		updates, err := fn(&doc)
		if err != nil {
			return err
		}
		updates = append(updates, firestore.Update{Path: "updated_at", Value: s.c.now()})
		return tx.Update(ref, updates)
	})
}

func (s *MessageStore) first(ctx context.Context, states []string) (*secondary.MessageRecord, error) {
	records, err := s.List(ctx, secondary.MessageFilters{States: states, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func decodeMessage(snap *firestore.DocumentSnapshot) (*secondary.MessageRecord, error) {
	var doc messageDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", snap.Ref.ID, err)
	}
	rec := &secondary.MessageRecord{
		ID:              snap.Ref.ID,
		Seq:             doc.Seq,
		SourceID:        doc.SourceID,
		ExternalID:      doc.ExternalID,
		SenderID:        doc.SenderID,
		Body:            doc.Body,
		ReceivedAt:      doc.ReceivedAt,
		State:           doc.State,
		StateVersion:    doc.StateVersion,
		FinalResponse:   doc.FinalResponse,
		PendingFeedback: doc.PendingFeedback,
		SendAttempts:    doc.SendAttempts,
		LastError:       doc.LastError,
		NextAttemptAt:   zeroIfEpoch(doc.NextAttemptAt),
		SentAt:          zeroIfEpoch(doc.SentAt),
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	for _, d := range doc.Drafts {
		rec.Drafts = append(rec.Drafts, secondary.DraftRecord{
			ID:        d.ID,
			Text:      d.Text,
			Note:      d.Note,
			Origin:    d.Origin,
			CreatedAt: d.CreatedAt,
		})
	}
	return rec, nil
}

// zeroIfEpoch maps Firestore's rendering of an unset timestamp back to the zero time.
func zeroIfEpoch(t time.Time) time.Time {
	if t.IsZero() || t.Year() <= 1 {
		return time.Time{}
	}
	return t
}

func isNotFound(err error) bool {
	return err != nil && status.Code(err) == codes.NotFound
}

var _ secondary.MessageRepository = (*MessageStore)(nil)
