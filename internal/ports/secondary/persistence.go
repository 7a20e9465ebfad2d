// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"
)

// MessageRepository defines the secondary port for message persistence.
// Implementations report lifecycle failures with the typed errors of
// internal/core/message (DuplicateError, InvalidTransitionError, NotFoundError).
type MessageRepository interface {
	// Enqueue persists a new message in the queued state and returns its ID.
	// A (SourceID, ExternalID) pair seen before yields a DuplicateError.
	Enqueue(ctx context.Context, record *MessageRecord) (string, error)

	// GetByID retrieves a message with its draft history.
	GetByID(ctx context.Context, id string) (*MessageRecord, error)

	// List retrieves messages matching the given filters, oldest first.
	List(ctx context.Context, filters MessageFilters) ([]*MessageRecord, error)

	// SetState moves a message from -> to when its state version still
	// equals expectVersion, and returns the new version.
	SetState(ctx context.Context, id, from string, expectVersion int64, to string) (int64, error)

	// NextPending returns the oldest queued message, or nil when none is waiting.
	NextPending(ctx context.Context) (*MessageRecord, error)

	// FindActive returns the message in an active state, or nil.
	FindActive(ctx context.Context) (*MessageRecord, error)

	// AppendDraft adds a draft when the state version still equals expectVersion.
	AppendDraft(ctx context.Context, id string, expectVersion int64, draft DraftRecord) error

	// SetFinalResponse records the approved text. It may only change while
	// the message is in reviewing; after that it is frozen.
	SetFinalResponse(ctx context.Context, id, text string) error

	// SetFeedback records the pending revision note (empty clears it).
	SetFeedback(ctx context.Context, id, note string) error

	// RecordSendAttempt stores dispatch bookkeeping after an attempt.
	RecordSendAttempt(ctx context.Context, id string, attempts int, lastErr string, nextAttemptAt time.Time) error

	// MarkSent records the delivery time.
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
}

// MessageRecord represents a message as stored in persistence.
type MessageRecord struct {
	ID              string
	Seq             int64 // enqueue order, FIFO tie-breaker
	SourceID        string
	ExternalID      string
	SenderID        string
	Body            string
	ReceivedAt      time.Time
	State           string
	StateVersion    int64
	Drafts          []DraftRecord
	FinalResponse   string
	PendingFeedback string
	SendAttempts    int
	LastError       string
	NextAttemptAt   time.Time
	SentAt          time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LatestDraft returns the most recent draft, or nil.
func (r *MessageRecord) LatestDraft() *DraftRecord {
	if len(r.Drafts) == 0 {
		return nil
	}
	return &r.Drafts[len(r.Drafts)-1]
}

// DraftRecord is one entry of a message's draft history.
type DraftRecord struct {
	ID        string
	Text      string
	Note      string // revision note that produced this draft
	Origin    string // "ai" or "manual"
	CreatedAt time.Time
}

// Draft origins.
const (
	DraftOriginAI     = "ai"
	DraftOriginManual = "manual"
)

// MessageFilters contains filter options for querying messages.
type MessageFilters struct {
	States []string
	Limit  int
}

// ConversationRepository stores the per-contact conversation history.
type ConversationRepository interface {
	// Append adds a turn. A second append for the same message is ignored.
	Append(ctx context.Context, turn *TurnRecord) error

	// Recent returns up to limit most recent turns for a contact, oldest first.
	Recent(ctx context.Context, sourceID, senderID string, limit int) ([]*TurnRecord, error)
}

// TurnRecord is one completed exchange with a contact.
type TurnRecord struct {
	MessageID string
	SourceID  string
	SenderID  string
	Inbound   string
	Response  string
	SentAt    time.Time
}

// ProfileRepository provides read-only person profiles.
type ProfileRepository interface {
	// Get returns the profile for a sender, or nil when none is known.
	Get(ctx context.Context, senderID string) (*ProfileRecord, error)
}

// ProfileRecord describes a known contact.
type ProfileRecord struct {
	SenderID     string
	DisplayName  string
	Relationship string
	Style        string
	Notes        string
}

// EventRepository persists the audit trail.
type EventRepository interface {
	// Create persists an event.
	Create(ctx context.Context, event *EventRecord) error

	// List returns events, oldest first.
	List(ctx context.Context, filters EventFilters) ([]*EventRecord, error)
}

// EventRecord is one audit entry.
type EventRecord struct {
	ID        int64
	MessageID string
	ActorID   string
	Action    string
	FromState string
	ToState   string
	Detail    string
	CreatedAt time.Time
}

// EventFilters contains filter options for querying events.
type EventFilters struct {
	MessageID string
	Limit     int
}
