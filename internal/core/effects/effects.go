// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// Notification kinds delivered to the operator.
const (
	NotifyNewMessage    = "new_message"
	NotifyDraftReady    = "draft_ready"
	NotifySendConfirmed = "send_confirmed"
	NotifyError         = "error"
)

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// NotifyEffect represents an operator notification.
type NotifyEffect struct {
	Kind      string // one of the Notify* constants
	MessageID string
	SourceID  string
	SenderID  string
	Text      string
	ErrorKind string // only for NotifyError
}

func (e NotifyEffect) EffectType() string { return "notify" }

// AuditEffect represents an entry in the message audit trail.
type AuditEffect struct {
	MessageID string
	Action    string // e.g., "enqueue", "transition", "draft", "send_attempt"
	From      string
	To        string
	Detail    string
}

func (e AuditEffect) EffectType() string { return "audit" }

// CompositeEffect holds multiple effects to be executed in sequence.
type CompositeEffect struct {
	Effects []Effect
}

func (e CompositeEffect) EffectType() string { return "composite" }

// NoEffect represents an operation that produces no side effects.
type NoEffect struct{}

func (e NoEffect) EffectType() string { return "none" }
