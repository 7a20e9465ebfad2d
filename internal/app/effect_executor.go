// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/switchboard/internal/core/effects"
	"github.com/example/switchboard/internal/observability"
	"github.com/example/switchboard/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// DefaultEffectExecutor implements EffectExecutor with real I/O.
type DefaultEffectExecutor struct {
	notifier secondary.Notifier
	events   secondary.EventWriter
	logger   *slog.Logger
	now      func() time.Time
}

// NewEffectExecutor creates a new DefaultEffectExecutor.
// notifier and events may be nil; the matching effects are then skipped.
func NewEffectExecutor(notifier secondary.Notifier, events secondary.EventWriter, logger *slog.Logger) *DefaultEffectExecutor {
	if logger == nil {
		logger = observability.Logger()
	}
	return &DefaultEffectExecutor{
		notifier: notifier,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute processes a slice of effects in sequence. A failing effect does not
// stop the rest; all failures are returned together.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	var errs []error
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			errs = append(errs, fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err))
		}
	}
	return errors.Join(errs...)
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.NotifyEffect:
		return e.executeNotify(ctx, typed)
	case effects.AuditEffect:
		return e.executeAudit(ctx, typed)
	case effects.CompositeEffect:
		return e.Execute(ctx, typed.Effects)
	case effects.NoEffect:
		return nil
	case effects.LogEffect:
		e.executeLog(ctx, typed)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *DefaultEffectExecutor) executeNotify(ctx context.Context, eff effects.NotifyEffect) error {
	if e.notifier == nil {
		return nil
	}
	return e.notifier.Notify(ctx, secondary.Notification{
		Kind:      eff.Kind,
		MessageID: eff.MessageID,
		SourceID:  eff.SourceID,
		SenderID:  eff.SenderID,
		Text:      eff.Text,
		ErrorKind: eff.ErrorKind,
		At:        e.now(),
	})
}

func (e *DefaultEffectExecutor) executeAudit(ctx context.Context, eff effects.AuditEffect) error {
	if e.events == nil {
		return nil
	}
	if eff.Action == "transition" {
		return e.events.LogTransition(ctx, eff.MessageID, eff.From, eff.To, eff.Detail)
	}
	return e.events.LogEvent(ctx, eff.MessageID, eff.Action, eff.Detail)
}

func (e *DefaultEffectExecutor) executeLog(ctx context.Context, eff effects.LogEffect) {
	attrs := make([]any, 0, len(eff.Fields)*2)
	for k, v := range eff.Fields {
		attrs = append(attrs, k, v)
	}
	observability.LoggerFromContext(ctx, e.logger).Log(ctx, observability.ParseLevel(eff.Level), eff.Message, attrs...)
}
