package memory

import (
	"context"
	"sync"

	"github.com/example/switchboard/internal/ports/secondary"
)

type contactKey struct {
	sourceID string
	senderID string
}

// ConversationStore implements secondary.ConversationRepository in memory.
type ConversationStore struct {
	mu       sync.RWMutex
	turns    map[contactKey][]*secondary.TurnRecord
	recorded map[string]bool
}

// NewConversationStore creates an empty ConversationStore.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		turns:    make(map[contactKey][]*secondary.TurnRecord),
		recorded: make(map[string]bool),
	}
}

// Append adds a turn once per message.
func (s *ConversationStore) Append(ctx context.Context, turn *secondary.TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recorded[turn.MessageID] {
		return nil
	}
	key := contactKey{turn.SourceID, turn.SenderID}
	t := *turn
	s.turns[key] = append(s.turns[key], &t)
	s.recorded[turn.MessageID] = true
	return nil
}

// Recent returns the last limit turns for a contact.
func (s *ConversationStore) Recent(ctx context.Context, sourceID, senderID string, limit int) ([]*secondary.TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[contactKey{sourceID, senderID}]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]*secondary.TurnRecord, len(turns))
	copy(out, turns)
	return out, nil
}

// Clear drops all history.
func (s *ConversationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = make(map[contactKey][]*secondary.TurnRecord)
	s.recorded = make(map[string]bool)
}

var _ secondary.ConversationRepository = (*ConversationStore)(nil)
