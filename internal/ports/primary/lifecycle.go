package primary

import (
	"context"
	"time"
)

// LifecycleService defines the primary port for operator commands.
// An empty MessageID in a request means "the active message".
type LifecycleService interface {
	// ActivateNext moves the oldest queued message into awaiting_decision.
	// Returns nil when the queue is empty.
	ActivateNext(ctx context.Context) (*Message, error)

	// Decide applies the operator's decision on an activated message.
	Decide(ctx context.Context, req DecideRequest) (*Message, error)

	// Review applies a review action on a drafted message.
	Review(ctx context.Context, req ReviewRequest) (*Message, error)

	// SubmitFeedback supplies the revision note for a message in editing.
	// Blank feedback returns the message to review unchanged.
	SubmitFeedback(ctx context.Context, messageID, text string) (*Message, error)

	// SubmitManual supplies the operator-written answer for a message in manual_draft.
	SubmitManual(ctx context.Context, messageID, text string) (*Message, error)

	// Resend retries delivery of a send_failed message.
	Resend(ctx context.Context, messageID string) (*Message, error)

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, messageID string) (*Message, error)

	// ListMessages lists messages, optionally filtered by state.
	ListMessages(ctx context.Context, filters MessageFilters) ([]*Message, error)

	// ActiveMessage returns the active message, or nil.
	ActiveMessage(ctx context.Context) (*Message, error)

	// History returns the audit trail of a message.
	History(ctx context.Context, messageID string) ([]*Event, error)

	// Recover rebuilds in-memory state after a restart.
	Recover(ctx context.Context) (*RecoveryReport, error)
}

// Decision actions.
const (
	DecisionGenerate = "generate"
	DecisionIgnore   = "ignore"
	DecisionManual   = "manual"
)

// Review actions.
const (
	ReviewApprove    = "approve"
	ReviewEdit       = "edit"
	ReviewRegenerate = "regenerate"
)

// DecideRequest contains parameters for Decide.
type DecideRequest struct {
	MessageID string
	Action    string // generate, ignore, manual
	Text      string // manual answer; empty waits for SubmitManual
}

// ReviewRequest contains parameters for Review.
type ReviewRequest struct {
	MessageID string
	Action    string // approve, edit, regenerate
	Feedback  string // edit note; empty waits for SubmitFeedback
}

// MessageFilters contains filter options for listing messages.
type MessageFilters struct {
	States []string
	Limit  int
}

// Message represents a message at the port boundary.
type Message struct {
	ID              string
	SourceID        string
	ExternalID      string
	SenderID        string
	Body            string
	ReceivedAt      time.Time
	State           string
	StateVersion    int64
	Drafts          []Draft
	FinalResponse   string
	PendingFeedback string
	SendAttempts    int
	LastError       string
	NextAttemptAt   time.Time
	SentAt          time.Time
}

// LatestDraft returns the most recent draft text, or "".
func (m *Message) LatestDraft() string {
	if len(m.Drafts) == 0 {
		return ""
	}
	return m.Drafts[len(m.Drafts)-1].Text
}

// Draft is one entry of a message's draft history.
type Draft struct {
	ID        string
	Text      string
	Note      string
	Origin    string
	CreatedAt time.Time
}

// Event is one audit entry.
type Event struct {
	MessageID string
	ActorID   string
	Action    string
	From      string
	To        string
	Detail    string
	At        time.Time
}

// RecoveryReport summarizes what Recover found.
type RecoveryReport struct {
	ActiveID        string
	FailedDrafts    []string // drafting messages moved to failed_draft
	PendingSends    []string // sending messages left for the retry loop
	QueuedRemaining int
}
