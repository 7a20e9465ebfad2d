// Package memory contains in-process implementations of the persistence ports.
// Everything here lives only as long as the process (ephemeral mode).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ports/secondary"
)

type dedupKey struct {
	sourceID   string
	externalID string
}

// MessageStore implements secondary.MessageRepository in memory.
type MessageStore struct {
	mu       sync.RWMutex
	seq      int64
	messages map[string]*secondary.MessageRecord
	seen     map[dedupKey]string
}

// NewMessageStore creates an empty MessageStore.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[string]*secondary.MessageRecord),
		seen:     make(map[dedupKey]string),
	}
}

// Enqueue persists a new queued message.
func (s *MessageStore) Enqueue(ctx context.Context, record *secondary.MessageRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey{record.SourceID, record.ExternalID}
	if existing, ok := s.seen[key]; ok {
		return "", &message.DuplicateError{SourceID: record.SourceID, ExternalID: record.ExternalID, ExistingID: existing}
	}

	s.seq++
	now := time.Now()
	stored := *record
	stored.ID = fmt.Sprintf("MSG-%04d", s.seq)
	stored.Seq = s.seq
	stored.State = string(message.InitialState())
	stored.StateVersion = 0
	stored.Drafts = nil
	if stored.ReceivedAt.IsZero() {
		stored.ReceivedAt = now
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.messages[stored.ID] = &stored
	s.seen[key] = stored.ID
	return stored.ID, nil
}

// GetByID retrieves a copy of a message.
func (s *MessageStore) GetByID(ctx context.Context, id string) (*secondary.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.messages[id]
	if !ok {
		return nil, &message.NotFoundError{MessageID: id}
	}
	return clone(rec), nil
}

// List retrieves messages in FIFO order.
func (s *MessageStore) List(ctx context.Context, filters secondary.MessageFilters) ([]*secondary.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*secondary.MessageRecord
	for _, rec := range s.sorted() {
		if !matchesState(rec.State, filters.States) {
			continue
		}
		out = append(out, clone(rec))
		if filters.Limit > 0 && len(out) >= filters.Limit {
			break
		}
	}
	return out, nil
}

// SetState performs the check-and-set state change.
func (s *MessageStore) SetState(ctx context.Context, id, from string, expectVersion int64, to string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.messages[id]
	if !ok {
		return 0, &message.NotFoundError{MessageID: id}
	}
	result, err := message.ApplyTransition(id, message.State(rec.State), rec.StateVersion, message.State(from), expectVersion, message.State(to))
	if err != nil {
		return 0, err
	}
	rec.State = string(result.To)
	rec.StateVersion = result.NewVersion
	rec.UpdatedAt = time.Now()
	return result.NewVersion, nil
}

// NextPending returns the oldest queued message.
func (s *MessageStore) NextPending(ctx context.Context) (*secondary.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.sorted() {
		if rec.State == string(message.StateQueued) {
			return clone(rec), nil
		}
	}
	return nil, nil
}

// FindActive returns the message holding the active slot.
func (s *MessageStore) FindActive(ctx context.Context) (*secondary.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.sorted() {
		if message.IsActive(message.State(rec.State)) {
			return clone(rec), nil
		}
	}
	return nil, nil
}

// AppendDraft adds a draft if the caller's version is current.
func (s *MessageStore) AppendDraft(ctx context.Context, id string, expectVersion int64, draft secondary.DraftRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.messages[id]
	if !ok {
		return &message.NotFoundError{MessageID: id}
	}
	if rec.StateVersion != expectVersion {
		return &message.InvalidTransitionError{
			MessageID: id,
			From:      message.State(rec.State),
			To:        message.State(rec.State),
			Reason:    fmt.Sprintf("stale state version %d (current %d)", expectVersion, rec.StateVersion),
			Stale:     true,
		}
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now()
	}
	rec.Drafts = append(rec.Drafts, draft)
	rec.UpdatedAt = time.Now()
	return nil
}

// SetFinalResponse records the approved text of a message in review.
func (s *MessageStore) SetFinalResponse(ctx context.Context, id, text string) error {
	return s.update(id, func(rec *secondary.MessageRecord) error {
		if rec.State != string(message.StateReviewing) {
			return &message.InvalidTransitionError{MessageID: id, From: message.State(rec.State), To: message.StateSending, Reason: "the response can only change in review"}
		}
		rec.FinalResponse = text
		return nil
	})
}

// SetFeedback records the pending revision note.
func (s *MessageStore) SetFeedback(ctx context.Context, id, note string) error {
	return s.update(id, func(rec *secondary.MessageRecord) error {
		rec.PendingFeedback = note
		return nil
	})
}

// RecordSendAttempt stores dispatch bookkeeping.
func (s *MessageStore) RecordSendAttempt(ctx context.Context, id string, attempts int, lastErr string, nextAttemptAt time.Time) error {
	return s.update(id, func(rec *secondary.MessageRecord) error {
		rec.SendAttempts = attempts
		rec.LastError = lastErr
		rec.NextAttemptAt = nextAttemptAt
		return nil
	})
}

// MarkSent records the delivery time.
func (s *MessageStore) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	return s.update(id, func(rec *secondary.MessageRecord) error {
		rec.SentAt = sentAt
		rec.NextAttemptAt = time.Time{}
		rec.LastError = ""
		return nil
	})
}

// Clear drops every message. Used when an ephemeral session stops.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make(map[string]*secondary.MessageRecord)
	s.seen = make(map[dedupKey]string)
}

func (s *MessageStore) update(id string, fn func(rec *secondary.MessageRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.messages[id]
	if !ok {
		return &message.NotFoundError{MessageID: id}
	}
	if err := fn(rec); err != nil {
		return err
	}
	rec.UpdatedAt = time.Now()
	return nil
}

// sorted returns records by received time, then enqueue order. Caller holds the lock.
func (s *MessageStore) sorted() []*secondary.MessageRecord {
	out := make([]*secondary.MessageRecord, 0, len(s.messages))
	for _, rec := range s.messages {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func matchesState(state string, states []string) bool {
	if len(states) == 0 {
		return true
	}
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

func clone(rec *secondary.MessageRecord) *secondary.MessageRecord {
	out := *rec
	out.Drafts = append([]secondary.DraftRecord(nil), rec.Drafts...)
	return &out
}

// Ensure MessageStore implements the interface.
var _ secondary.MessageRepository = (*MessageStore)(nil)
