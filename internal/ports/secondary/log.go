package secondary

import "context"

// EventWriter defines the interface for writing audit log entries.
// Implementations extract the actor from context.
type EventWriter interface {
	// LogTransition logs a state change of a message.
	LogTransition(ctx context.Context, messageID, from, to, detail string) error

	// LogEvent logs any other action on a message (enqueue, draft, send attempt).
	LogEvent(ctx context.Context, messageID, action, detail string) error
}
