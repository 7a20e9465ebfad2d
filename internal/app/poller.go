package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ctxutil"
	"github.com/example/switchboard/internal/observability"
	"github.com/example/switchboard/internal/ports/primary"
	"github.com/example/switchboard/internal/ports/secondary"
)

// Intake accepts inbound messages into the queue.
type Intake interface {
	Enqueue(ctx context.Context, sourceID string, item secondary.InboundItem) (string, error)
}

// Poller implements primary.PollerService.
type Poller struct {
	registry *Registry
	intake   Intake
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPoller creates a new Poller.
func NewPoller(registry *Registry, intake Intake, timeout time.Duration, logger *slog.Logger) *Poller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = observability.Logger()
	}
	return &Poller{registry: registry, intake: intake, timeout: timeout, logger: logger}
}

// sourceError marks a failure of the source itself, as opposed to the store.
type sourceError struct {
	sourceID string
	err      error
}

func (e *sourceError) Error() string { return fmt.Sprintf("poll %s: %v", e.sourceID, e.err) }

func (e *sourceError) Unwrap() error { return e.err }

// PollOnce polls a single source and enqueues what it reports.
// Items already tracked are counted as duplicates, not errors.
func (p *Poller) PollOnce(ctx context.Context, sourceID string) (*primary.PollResult, error) {
	desc, ok := p.registry.Get(sourceID)
	if !ok {
		return nil, fmt.Errorf("unknown source %q", sourceID)
	}
	if !desc.CanPoll {
		return nil, fmt.Errorf("source %q cannot be polled", sourceID)
	}
	ctx = ctxutil.WithActorID(ctx, ctxutil.ActorPoller)

	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	items, err := desc.Adapter.Poll(pollCtx)
	cancel()
	if err != nil {
		return nil, &sourceError{sourceID: sourceID, err: err}
	}

	result := &primary.PollResult{SourceID: sourceID, Fetched: len(items)}
	for _, item := range items {
		id, err := p.intake.Enqueue(ctx, sourceID, item)
		var dup *message.DuplicateError
		switch {
		case errors.As(err, &dup):
			result.Duplicates++
		case err != nil:
			return result, fmt.Errorf("failed to enqueue %s/%s: %w", sourceID, item.ExternalID, err)
		default:
			result.Enqueued = append(result.Enqueued, id)
		}
	}
	return result, nil
}

// Run polls every pollable source on its own loop until ctx is done.
// A failing source waits its error interval before the next tick; a store
// failure stops every loop.
func (p *Poller) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, desc := range p.registry.Pollable() {
		desc := desc
		g.Go(func() error {
			return p.loop(gctx, desc)
		})
	}
	return g.Wait()
}

// Sources lists the registered sources.
func (p *Poller) Sources() []primary.SourceInfo {
	return p.registry.Infos()
}

func (p *Poller) loop(ctx context.Context, desc SourceDescriptor) error {
	log := p.logger.With("source_id", desc.SourceID)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		wait := desc.Interval
		res, err := p.PollOnce(ctx, desc.SourceID)
		var srcErr *sourceError
		switch {
		case errors.As(err, &srcErr):
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("poll failed", "error", err, "retry_in", desc.ErrorInterval)
			wait = desc.ErrorInterval
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case len(res.Enqueued) > 0:
			log.Info("new messages", "count", len(res.Enqueued), "duplicates", res.Duplicates)
		}
		timer.Reset(wait)
	}
}

// Ensure Poller implements the interface.
var _ primary.PollerService = (*Poller)(nil)
