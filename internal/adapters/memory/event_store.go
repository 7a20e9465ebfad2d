package memory

import (
	"context"
	"sync"
	"time"

	"github.com/example/switchboard/internal/ports/secondary"
)

// EventStore implements secondary.EventRepository in memory.
type EventStore struct {
	mu     sync.RWMutex
	nextID int64
	events []*secondary.EventRecord
}

// NewEventStore creates an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Create appends an event.
func (s *EventStore) Create(ctx context.Context, event *secondary.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e := *event
	e.ID = s.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.events = append(s.events, &e)
	return nil
}

// List returns events, oldest first.
func (s *EventStore) List(ctx context.Context, filters secondary.EventFilters) ([]*secondary.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*secondary.EventRecord
	for _, e := range s.events {
		if filters.MessageID != "" && e.MessageID != filters.MessageID {
			continue
		}
		c := *e
		out = append(out, &c)
		if filters.Limit > 0 && len(out) >= filters.Limit {
			break
		}
	}
	return out, nil
}

// Clear drops all events.
func (s *EventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
}

var _ secondary.EventRepository = (*EventStore)(nil)
