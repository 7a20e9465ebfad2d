package secondary

import (
	"context"
	"time"
)

// SourceAdapter is the network client for one external communication source.
type SourceAdapter interface {
	// SourceID returns the stable identifier of the source (e.g. "gmail").
	SourceID() string

	// Poll fetches messages the source has not delivered before, as far as it knows.
	Poll(ctx context.Context) ([]InboundItem, error)

	// Send delivers text to a recipient on the source.
	Send(ctx context.Context, recipientID, text string) error
}

// InboundItem is a candidate message reported by a source adapter.
type InboundItem struct {
	ExternalID string
	SenderID   string
	Body       string
	ReceivedAt time.Time
}

// PermanentError marks a send failure that must not be retried.
// Adapters wrap errors with it; dispatch checks with errors.As.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// DraftingService is the text-generation backend.
type DraftingService interface {
	// Complete returns generated text for a prompt.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is the prompt sent to a drafting service.
type CompletionRequest struct {
	System    string
	User      string
	MaxLength int
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Notification is an operator-facing event.
type Notification struct {
	Kind      string // new_message, draft_ready, send_confirmed, error
	MessageID string
	SourceID  string
	SenderID  string
	Text      string
	ErrorKind string
	At        time.Time
}
