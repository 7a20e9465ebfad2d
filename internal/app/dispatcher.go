package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/switchboard/internal/core/dispatch"
	"github.com/example/switchboard/internal/core/effects"
	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ctxutil"
	"github.com/example/switchboard/internal/observability"
	"github.com/example/switchboard/internal/ports/primary"
	"github.com/example/switchboard/internal/ports/secondary"
)

var errNoFinalResponse = errors.New("no approved response recorded")

// SendTransitioner applies the outcome of a send to the lifecycle.
type SendTransitioner interface {
	CompleteSend(ctx context.Context, messageID string, version int64, sentAt time.Time) error
	FailSend(ctx context.Context, messageID string, version int64, cause error) error
}

// Dispatcher implements primary.DispatchService.
// At most one send per message is in flight; a message stays in sending
// while automatic retries remain.
type Dispatcher struct {
	messages    secondary.MessageRepository
	registry    *Registry
	transitions SendTransitioner
	executor    EffectExecutor
	policy      dispatch.RetryPolicy
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	inflight map[string]bool
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(
	messages secondary.MessageRepository,
	registry *Registry,
	transitions SendTransitioner,
	executor EffectExecutor,
	policy dispatch.RetryPolicy,
	timeout time.Duration,
	logger *slog.Logger,
) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if policy.MaxAttempts <= 0 {
		policy = dispatch.DefaultRetryPolicy()
	}
	if logger == nil {
		logger = observability.Logger()
	}
	return &Dispatcher{
		messages:    messages,
		registry:    registry,
		transitions: transitions,
		executor:    executor,
		policy:      policy,
		timeout:     timeout,
		logger:      logger,
		now:         time.Now,
		inflight:    make(map[string]bool),
	}
}

// Send delivers the final response of a message in sending.
func (d *Dispatcher) Send(ctx context.Context, messageID string) (*primary.SendResult, error) {
	return d.send(ctx, messageID, d.now())
}

// ProcessDue re-attempts every sending message whose retry is due.
func (d *Dispatcher) ProcessDue(ctx context.Context, now time.Time) ([]*primary.SendResult, error) {
	recs, err := d.messages.List(ctx, secondary.MessageFilters{States: []string{string(message.StateSending)}})
	if err != nil {
		return nil, fmt.Errorf("failed to list sending messages: %w", err)
	}

	var results []*primary.SendResult
	for _, rec := range recs {
		if !dispatch.IsDue(rec.NextAttemptAt, now) || d.isInflight(rec.ID) {
			continue
		}
		res, err := d.send(ctx, rec.ID, now)
		var invalid *message.InvalidTransitionError
		if errors.As(err, &invalid) {
			// another caller finished this message after the listing
			observability.LoggerFromContext(ctx, d.logger).Warn("skipping message", "message_id", rec.ID, "error", err)
			continue
		}
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// RunRetryLoop calls ProcessDue every tick until ctx is done.
func (d *Dispatcher) RunRetryLoop(ctx context.Context, tick time.Duration) error {
	ctx = ctxutil.WithActorID(ctx, ctxutil.ActorDispatcher)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		if _, err := d.ProcessDue(ctx, d.now()); err != nil && ctx.Err() == nil {
			return fmt.Errorf("retry loop: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, messageID string, now time.Time) (*primary.SendResult, error) {
	// the slot is taken before reading so the record cannot go stale under us
	if !d.acquire(messageID) {
		return &primary.SendResult{MessageID: messageID, Status: string(dispatch.StatusInProgress)}, nil
	}
	defer d.release(messageID)

	rec, err := d.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	switch message.State(rec.State) {
	case message.StateSent:
		return resultFrom(rec, dispatch.StatusSent), nil
	case message.StateSending:
	default:
		return nil, &message.InvalidTransitionError{
			MessageID: rec.ID,
			From:      message.State(rec.State),
			To:        message.StateSent,
			Reason:    "message is not being sent",
		}
	}

	if !dispatch.IsDue(rec.NextAttemptAt, now) {
		return resultFrom(rec, dispatch.StatusRetrying), nil
	}
	return d.attempt(ctx, rec)
}

func (d *Dispatcher) attempt(ctx context.Context, rec *secondary.MessageRecord) (*primary.SendResult, error) {
	log := observability.LoggerFromContext(ctx, d.logger).With("message_id", rec.ID, "source_id", rec.SourceID)
	attempts := rec.SendAttempts + 1

	var sendErr error
	adapter, err := d.registry.Sender(rec.SourceID)
	switch {
	case err != nil:
		sendErr = &secondary.PermanentError{Err: err}
	case rec.FinalResponse == "":
		sendErr = &secondary.PermanentError{Err: errNoFinalResponse}
	default:
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		sendErr = adapter.Send(sendCtx, rec.SenderID, rec.FinalResponse)
		cancel()
	}

	// outcomes are recorded even if the caller went away mid-send
	ctx = context.WithoutCancel(ctx)
	now := d.now()

	if sendErr == nil {
		if err := d.messages.RecordSendAttempt(ctx, rec.ID, attempts, "", time.Time{}); err != nil {
			return nil, fmt.Errorf("failed to record send attempt: %w", err)
		}
		if err := d.transitions.CompleteSend(ctx, rec.ID, rec.StateVersion, now); err != nil {
			log.Error("delivered but could not record completion", "error", err)
			return nil, err
		}
		log.Info("message sent", "attempts", attempts)
		return &primary.SendResult{MessageID: rec.ID, Status: string(dispatch.StatusSent), Attempts: attempts, SentAt: now}, nil
	}

	var permanent *secondary.PermanentError
	retryable := !errors.As(sendErr, &permanent)
	decision := dispatch.PlanRetry(d.policy, attempts, retryable, now)

	if err := d.messages.RecordSendAttempt(ctx, rec.ID, attempts, sendErr.Error(), decision.NextAttemptAt); err != nil {
		return nil, fmt.Errorf("failed to record send attempt: %w", err)
	}
	d.audit(ctx, rec.ID, fmt.Sprintf("attempt %d failed: %v", attempts, sendErr))

	result := &primary.SendResult{
		MessageID:     rec.ID,
		Attempts:      attempts,
		NextAttemptAt: decision.NextAttemptAt,
		Error:         sendErr.Error(),
	}
	if !decision.Exhausted {
		log.Warn("send failed, will retry", "attempts", attempts, "retry_in", decision.Delay, "error", sendErr)
		result.Status = string(dispatch.StatusRetrying)
		return result, nil
	}

	cause := &message.SendError{SourceID: rec.SourceID, Attempts: attempts, Retryable: retryable, Err: sendErr}
	if err := d.transitions.FailSend(ctx, rec.ID, rec.StateVersion, cause); err != nil {
		return nil, err
	}
	log.Error("send failed, giving up", "attempts", attempts, "error", sendErr)
	result.Status = string(dispatch.StatusFailed)
	return result, nil
}

func (d *Dispatcher) audit(ctx context.Context, messageID, detail string) {
	if d.executor == nil {
		return
	}
	eff := effects.AuditEffect{MessageID: messageID, Action: "send_attempt", Detail: detail}
	if err := d.executor.Execute(ctx, []effects.Effect{eff}); err != nil {
		observability.LoggerFromContext(ctx, d.logger).Warn("effect execution failed", "error", err)
	}
}

func (d *Dispatcher) acquire(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inflight[id] {
		return false
	}
	d.inflight[id] = true
	return true
}

func (d *Dispatcher) release(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, id)
}

func (d *Dispatcher) isInflight(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight[id]
}

func resultFrom(rec *secondary.MessageRecord, status dispatch.SendStatus) *primary.SendResult {
	return &primary.SendResult{
		MessageID:     rec.ID,
		Status:        string(status),
		Attempts:      rec.SendAttempts,
		SentAt:        rec.SentAt,
		NextAttemptAt: rec.NextAttemptAt,
		Error:         rec.LastError,
	}
}

// Ensure Dispatcher implements the interface.
var _ primary.DispatchService = (*Dispatcher)(nil)
