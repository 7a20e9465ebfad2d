package sqlite

import (
	"context"
	"time"

	"github.com/example/switchboard/internal/ctxutil"
	"github.com/example/switchboard/internal/ports/secondary"
)

// LogWriterAdapter implements secondary.EventWriter on top of any EventRepository.
type LogWriterAdapter struct {
	eventRepo secondary.EventRepository
	now       func() time.Time
}

// NewLogWriterAdapter creates a new LogWriterAdapter.
func NewLogWriterAdapter(eventRepo secondary.EventRepository) *LogWriterAdapter {
	return &LogWriterAdapter{
		eventRepo: eventRepo,
		now:       time.Now,
	}
}

// LogTransition logs a state change of a message.
func (w *LogWriterAdapter) LogTransition(ctx context.Context, messageID, from, to, detail string) error {
	return w.writeLog(ctx, messageID, "transition", from, to, detail)
}

// LogEvent logs any other action on a message.
func (w *LogWriterAdapter) LogEvent(ctx context.Context, messageID, action, detail string) error {
	return w.writeLog(ctx, messageID, action, "", "", detail)
}

// writeLog writes a log entry with common logic.
func (w *LogWriterAdapter) writeLog(ctx context.Context, messageID, action, from, to, detail string) error {
	actorID := ctxutil.ActorFromContext(ctx)
	if actorID == "" {
		actorID = ctxutil.ActorSystem
	}

	record := &secondary.EventRecord{
		MessageID: messageID,
		ActorID:   actorID,
		Action:    action,
		FromState: from,
		ToState:   to,
		Detail:    detail,
		CreatedAt: w.now(),
	}
	return w.eventRepo.Create(ctx, record)
}

// Ensure LogWriterAdapter implements the interface
var _ secondary.EventWriter = (*LogWriterAdapter)(nil)
