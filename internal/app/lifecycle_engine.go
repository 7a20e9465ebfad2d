package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/switchboard/internal/core/effects"
	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ctxutil"
	"github.com/example/switchboard/internal/observability"
	"github.com/example/switchboard/internal/ports/primary"
	"github.com/example/switchboard/internal/ports/secondary"
)

// Drafter produces a draft for a message in drafting and appends it to the
// draft history, guarded by the state version the draft was requested at.
type Drafter interface {
	Draft(ctx context.Context, rec *secondary.MessageRecord, version int64, feedback string) (*secondary.DraftRecord, error)
}

// Sender delivers the final response of a message in sending.
type Sender interface {
	Send(ctx context.Context, messageID string) (*primary.SendResult, error)
}

// JobRunner starts a background job. The default runs it on a goroutine.
type JobRunner func(job func())

// LifecycleDeps groups the collaborators of a LifecycleEngine.
type LifecycleDeps struct {
	Messages      secondary.MessageRepository
	Conversations secondary.ConversationRepository
	Events        secondary.EventRepository
	Drafter       Drafter
	Executor      EffectExecutor
	Logger        *slog.Logger
	Runner        JobRunner
	Now           func() time.Time
}

// LifecycleEngine implements primary.LifecycleService.
// It owns the active message: activeID changes only under mu, together with
// the store check-and-set. Effects and background jobs start after mu is released.
type LifecycleEngine struct {
	mu       sync.Mutex
	activeID string

	messages      secondary.MessageRepository
	conversations secondary.ConversationRepository
	events        secondary.EventRepository
	drafter       Drafter
	sender        Sender
	executor      EffectExecutor
	logger        *slog.Logger
	runner        JobRunner
	now           func() time.Time

	jobs      sync.WaitGroup
	jobMu     sync.Mutex
	jobSeq    uint64
	inflight  map[string]inflightJob
	closeOnce sync.Once
}

type inflightJob struct {
	token  uint64
	cancel context.CancelFunc
}

// batch collects what a command produced while holding the lock.
type batch struct {
	effects []effects.Effect
	jobs    []func()
}

// NewLifecycleEngine creates a new LifecycleEngine.
func NewLifecycleEngine(deps LifecycleDeps) *LifecycleEngine {
	e := &LifecycleEngine{
		messages:      deps.Messages,
		conversations: deps.Conversations,
		events:        deps.Events,
		drafter:       deps.Drafter,
		executor:      deps.Executor,
		logger:        deps.Logger,
		runner:        deps.Runner,
		now:           deps.Now,
		inflight:      make(map[string]inflightJob),
	}
	if e.logger == nil {
		e.logger = observability.Logger()
	}
	if e.runner == nil {
		e.runner = func(job func()) { go job() }
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// SetSender attaches the dispatcher. It is set once during wiring because the
// dispatcher reports its outcome back through the engine.
func (e *LifecycleEngine) SetSender(s Sender) {
	e.sender = s
}

// ActiveID returns the ID of the active message, or "".
func (e *LifecycleEngine) ActiveID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeID
}

// Enqueue records a new inbound message from a source.
func (e *LifecycleEngine) Enqueue(ctx context.Context, sourceID string, item secondary.InboundItem) (string, error) {
	rec := &secondary.MessageRecord{
		SourceID:   sourceID,
		ExternalID: item.ExternalID,
		SenderID:   item.SenderID,
		Body:       item.Body,
		ReceivedAt: item.ReceivedAt,
	}
	id, err := e.messages.Enqueue(ctx, rec)
	if err != nil {
		return "", err
	}
	e.flush(ctx, &batch{effects: message.EnqueuePlan{
		MessageID: id,
		SourceID:  sourceID,
		SenderID:  item.SenderID,
		Body:      item.Body,
	}.Effects()})
	return id, nil
}

// ActivateNext moves the oldest queued message into awaiting_decision.
func (e *LifecycleEngine) ActivateNext(ctx context.Context) (*primary.Message, error) {
	return e.command(ctx, func(b *batch) (*secondary.MessageRecord, error) {
		if e.activeID != "" {
			return nil, &message.QueueBusyError{ActiveID: e.activeID}
		}
		next, err := e.messages.NextPending(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read queue: %w", err)
		}
		if next == nil {
			return nil, nil
		}
		if err := e.transition(ctx, b, next, message.StateAwaitingDecision, transitionNote{}); err != nil {
			return nil, err
		}
		return next, nil
	})
}

// Decide applies generate, ignore or manual to an activated message.
func (e *LifecycleEngine) Decide(ctx context.Context, req primary.DecideRequest) (*primary.Message, error) {
	return e.command(ctx, func(b *batch) (*secondary.MessageRecord, error) {
		rec, err := e.resolve(ctx, req.MessageID)
		if err != nil {
			return nil, err
		}
		state := message.State(rec.State)
		dctx := message.DecisionContext{MessageID: rec.ID, State: state}
		guard := message.CanDecide(dctx)
		if req.Action == primary.DecisionIgnore {
			// ignoring also abandons a draft still being generated
			guard = message.CanIgnore(dctx)
		}
		if err := guardError(rec, state, guard); err != nil {
			return nil, err
		}

		switch req.Action {
		case primary.DecisionIgnore:
			e.cancelJob(rec.ID)
			err = e.transition(ctx, b, rec, message.StateIgnored, transitionNote{})
		case primary.DecisionGenerate:
			err = e.startDrafting(ctx, b, rec, "")
		case primary.DecisionManual:
			err = e.transition(ctx, b, rec, message.StateManualDraft, transitionNote{})
			if err == nil && strings.TrimSpace(req.Text) != "" {
				err = e.submitManual(ctx, b, rec, req.Text)
			}
		default:
			return nil, fmt.Errorf("unknown decision %q", req.Action)
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	})
}

// Review applies approve, edit or regenerate to a drafted message.
func (e *LifecycleEngine) Review(ctx context.Context, req primary.ReviewRequest) (*primary.Message, error) {
	return e.command(ctx, func(b *batch) (*secondary.MessageRecord, error) {
		rec, err := e.resolve(ctx, req.MessageID)
		if err != nil {
			return nil, err
		}
		state := message.State(rec.State)
		rc := message.ReviewContext{MessageID: rec.ID, State: state, DraftCount: len(rec.Drafts)}

		switch req.Action {
		case primary.ReviewApprove:
			if err := guardError(rec, state, message.CanApprove(rc)); err != nil {
				return nil, err
			}
			err = e.approve(ctx, b, rec)
		case primary.ReviewEdit:
			if state != message.StateReviewing {
				return nil, &message.InvalidTransitionError{MessageID: rec.ID, From: state, To: message.StateEditing, Reason: "only a reviewed draft can be edited"}
			}
			err = e.transition(ctx, b, rec, message.StateEditing, transitionNote{})
			if err == nil && strings.TrimSpace(req.Feedback) != "" {
				err = e.submitFeedback(ctx, b, rec, req.Feedback)
			}
		case primary.ReviewRegenerate:
			if err := guardError(rec, state, message.CanRegenerate(rc)); err != nil {
				return nil, err
			}
			err = e.startDrafting(ctx, b, rec, "")
		default:
			return nil, fmt.Errorf("unknown review action %q", req.Action)
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	})
}

// SubmitFeedback supplies the revision note of a message in editing.
func (e *LifecycleEngine) SubmitFeedback(ctx context.Context, messageID, text string) (*primary.Message, error) {
	return e.command(ctx, func(b *batch) (*secondary.MessageRecord, error) {
		rec, err := e.resolve(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if err := e.submitFeedback(ctx, b, rec, text); err != nil {
			return nil, err
		}
		return rec, nil
	})
}

// SubmitManual supplies the answer of a message in manual_draft.
func (e *LifecycleEngine) SubmitManual(ctx context.Context, messageID, text string) (*primary.Message, error) {
	return e.command(ctx, func(b *batch) (*secondary.MessageRecord, error) {
		rec, err := e.resolve(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if err := e.submitManual(ctx, b, rec, text); err != nil {
			return nil, err
		}
		return rec, nil
	})
}

// Resend retries delivery of a send_failed message. It takes the active slot.
func (e *LifecycleEngine) Resend(ctx context.Context, messageID string) (*primary.Message, error) {
	return e.command(ctx, func(b *batch) (*secondary.MessageRecord, error) {
		rec, err := e.resolve(ctx, messageID)
		if err != nil {
			return nil, err
		}
		state := message.State(rec.State)
		if state == message.StateSendFailed && e.activeID != "" && e.activeID != rec.ID {
			return nil, &message.QueueBusyError{ActiveID: e.activeID}
		}
		guard := message.CanResend(message.ResendContext{
			MessageID:     rec.ID,
			State:         state,
			ActiveID:      e.activeID,
			FinalResponse: rec.FinalResponse,
		})
		if err := guardError(rec, state, guard); err != nil {
			return nil, err
		}
		if err := e.messages.RecordSendAttempt(ctx, rec.ID, 0, rec.LastError, time.Time{}); err != nil {
			return nil, fmt.Errorf("failed to reset send attempts: %w", err)
		}
		rec.SendAttempts = 0
		rec.NextAttemptAt = time.Time{}
		if err := e.transition(ctx, b, rec, message.StateSending, transitionNote{detail: "manual resend"}); err != nil {
			return nil, err
		}
		e.startSend(ctx, b, rec.ID)
		return rec, nil
	})
}

// GetMessage retrieves a message by ID.
func (e *LifecycleEngine) GetMessage(ctx context.Context, messageID string) (*primary.Message, error) {
	e.mu.Lock()
	rec, err := e.resolve(ctx, messageID)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return toMessage(rec), nil
}

// ListMessages lists messages in FIFO order.
func (e *LifecycleEngine) ListMessages(ctx context.Context, filters primary.MessageFilters) ([]*primary.Message, error) {
	recs, err := e.messages.List(ctx, secondary.MessageFilters{States: filters.States, Limit: filters.Limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	out := make([]*primary.Message, 0, len(recs))
	for _, r := range recs {
		out = append(out, toMessage(r))
	}
	return out, nil
}

// ActiveMessage returns the active message, or nil.
func (e *LifecycleEngine) ActiveMessage(ctx context.Context) (*primary.Message, error) {
	e.mu.Lock()
	id := e.activeID
	e.mu.Unlock()
	if id == "" {
		return nil, nil
	}
	rec, err := e.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toMessage(rec), nil
}

// History returns the audit trail of a message.
func (e *LifecycleEngine) History(ctx context.Context, messageID string) ([]*primary.Event, error) {
	if e.events == nil {
		return nil, nil
	}
	e.mu.Lock()
	rec, err := e.resolve(ctx, messageID)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	recs, err := e.events.List(ctx, secondary.EventFilters{MessageID: rec.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	out := make([]*primary.Event, 0, len(recs))
	for _, r := range recs {
		out = append(out, &primary.Event{
			MessageID: r.MessageID,
			ActorID:   r.ActorID,
			Action:    r.Action,
			From:      r.FromState,
			To:        r.ToState,
			Detail:    r.Detail,
			At:        r.CreatedAt,
		})
	}
	return out, nil
}

// Recover rebuilds the active slot from the store after a restart.
// Messages found in drafting lost their call and move to failed_draft;
// messages found in sending are left for the dispatcher's retry loop.
func (e *LifecycleEngine) Recover(ctx context.Context) (*primary.RecoveryReport, error) {
	ctx = ctxutil.WithActorID(ctx, ctxutil.ActorSystem)
	b := &batch{}
	report := &primary.RecoveryReport{}

	e.mu.Lock()
	err := func() error {
		drafting, err := e.messages.List(ctx, secondary.MessageFilters{States: []string{string(message.StateDrafting)}})
		if err != nil {
			return fmt.Errorf("failed to list drafting messages: %w", err)
		}
		for _, rec := range drafting {
			note := transitionNote{detail: "drafting interrupted by restart", kind: message.KindDrafting}
			if err := e.transition(ctx, b, rec, message.StateFailedDraft, note); err != nil {
				return err
			}
			report.FailedDrafts = append(report.FailedDrafts, rec.ID)
		}

		sending, err := e.messages.List(ctx, secondary.MessageFilters{States: []string{string(message.StateSending)}})
		if err != nil {
			return fmt.Errorf("failed to list sending messages: %w", err)
		}
		for _, rec := range sending {
			report.PendingSends = append(report.PendingSends, rec.ID)
		}

		active, err := e.messages.FindActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to find active message: %w", err)
		}
		e.activeID = ""
		if active != nil {
			e.activeID = active.ID
		}
		report.ActiveID = e.activeID

		queued, err := e.messages.List(ctx, secondary.MessageFilters{States: []string{string(message.StateQueued)}})
		if err != nil {
			return fmt.Errorf("failed to count queue: %w", err)
		}
		report.QueuedRemaining = len(queued)
		return nil
	}()
	e.mu.Unlock()

	e.flush(ctx, b)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// CompleteSend records a successful delivery. The conversation turn is
// appended only by the caller whose check-and-set wins.
func (e *LifecycleEngine) CompleteSend(ctx context.Context, messageID string, version int64, sentAt time.Time) error {
	_, err := e.command(ctx, func(b *batch) (*secondary.MessageRecord, error) {
		rec, err := e.callbackRecord(ctx, messageID, version, message.StateSent)
		if err != nil {
			return nil, err
		}
		if err := e.transition(ctx, b, rec, message.StateSent, transitionNote{}); err != nil {
			return nil, err
		}
		if err := e.messages.MarkSent(ctx, rec.ID, sentAt); err != nil {
			return nil, fmt.Errorf("failed to record send time: %w", err)
		}
		if e.conversations != nil {
			err := e.conversations.Append(ctx, &secondary.TurnRecord{
				MessageID: rec.ID,
				SourceID:  rec.SourceID,
				SenderID:  rec.SenderID,
				Inbound:   rec.Body,
				Response:  rec.FinalResponse,
				SentAt:    sentAt,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to append conversation turn: %w", err)
			}
		}
		return rec, nil
	})
	return err
}

// FailSend moves a message whose retries are exhausted to send_failed.
func (e *LifecycleEngine) FailSend(ctx context.Context, messageID string, version int64, cause error) error {
	_, err := e.command(ctx, func(b *batch) (*secondary.MessageRecord, error) {
		rec, err := e.callbackRecord(ctx, messageID, version, message.StateSendFailed)
		if err != nil {
			return nil, err
		}
		note := transitionNote{kind: message.KindSend}
		if cause != nil {
			note.detail = cause.Error()
		}
		if err := e.transition(ctx, b, rec, message.StateSendFailed, note); err != nil {
			return nil, err
		}
		return rec, nil
	})
	return err
}

// Wait blocks until every background job has finished.
func (e *LifecycleEngine) Wait() {
	e.jobs.Wait()
}

// Close cancels in-flight drafting and send calls and waits for them.
func (e *LifecycleEngine) Close() {
	e.closeOnce.Do(func() {
		e.jobMu.Lock()
		for id, j := range e.inflight {
			j.cancel()
			delete(e.inflight, id)
		}
		e.jobMu.Unlock()
	})
	e.jobs.Wait()
}

// ============================================================================
// Internals (callers hold mu unless noted)
// ============================================================================

type transitionNote struct {
	detail string
	kind   message.ErrorKind
}

// command runs fn under the engine lock, then executes effects and starts jobs.
func (e *LifecycleEngine) command(ctx context.Context, fn func(b *batch) (*secondary.MessageRecord, error)) (*primary.Message, error) {
	if ctxutil.ActorFromContext(ctx) == "" {
		ctx = ctxutil.WithActorID(ctx, ctxutil.ActorOperator)
	}
	b := &batch{}

	e.mu.Lock()
	rec, err := fn(b)
	e.mu.Unlock()

	e.flush(ctx, b)
	if err != nil || rec == nil {
		return nil, err
	}
	return toMessage(rec), nil
}

// flush runs collected effects and starts jobs. Called without mu.
func (e *LifecycleEngine) flush(ctx context.Context, b *batch) {
	if len(b.effects) > 0 && e.executor != nil {
		if err := e.executor.Execute(ctx, b.effects); err != nil {
			observability.LoggerFromContext(ctx, e.logger).Warn("effect execution failed", "error", err)
		}
	}
	for _, job := range b.jobs {
		e.jobs.Add(1)
		job := job
		e.runner(func() {
			defer e.jobs.Done()
			job()
		})
	}
}

// resolve loads a message; an empty id means the active message.
func (e *LifecycleEngine) resolve(ctx context.Context, id string) (*secondary.MessageRecord, error) {
	if id == "" {
		if e.activeID == "" {
			return nil, message.ErrNoActiveMessage
		}
		id = e.activeID
	}
	return e.messages.GetByID(ctx, id)
}

// callbackRecord loads a message for an asynchronous result and rejects the
// result when the message moved on since the job started.
func (e *LifecycleEngine) callbackRecord(ctx context.Context, id string, version int64, to message.State) (*secondary.MessageRecord, error) {
	rec, err := e.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.StateVersion != version {
		return nil, &message.InvalidTransitionError{
			MessageID: id,
			From:      message.State(rec.State),
			To:        to,
			Reason:    fmt.Sprintf("stale state version %d (current %d)", version, rec.StateVersion),
			Stale:     true,
		}
	}
	return rec, nil
}

// transition performs the check-and-set and keeps activeID in step with it.
func (e *LifecycleEngine) transition(ctx context.Context, b *batch, rec *secondary.MessageRecord, to message.State, note transitionNote) error {
	from := message.State(rec.State)
	if message.ClaimsSlot(from, to) {
		guard := message.CanActivate(message.ActivationContext{ActiveID: e.activeID, MessageID: rec.ID})
		if !guard.Allowed {
			return &message.QueueBusyError{ActiveID: e.activeID}
		}
	}

	version, err := e.messages.SetState(ctx, rec.ID, rec.State, rec.StateVersion, string(to))
	if err != nil {
		return err
	}
	rec.State = string(to)
	rec.StateVersion = version

	if message.IsActive(to) {
		e.activeID = rec.ID
	} else if e.activeID == rec.ID {
		e.activeID = ""
	}

	plan := message.TransitionPlan{
		MessageID: rec.ID,
		SourceID:  rec.SourceID,
		SenderID:  rec.SenderID,
		From:      from,
		To:        to,
		Detail:    note.detail,
		ErrorKind: note.kind,
	}
	switch to {
	case message.StateReviewing:
		if d := rec.LatestDraft(); d != nil {
			plan.Preview = d.Text
		}
	case message.StateSent:
		plan.Preview = rec.FinalResponse
	case message.StateFailedDraft, message.StateSendFailed:
		plan.Preview = note.detail
	}
	b.effects = append(b.effects, plan.Effects()...)
	return nil
}

func (e *LifecycleEngine) startDrafting(ctx context.Context, b *batch, rec *secondary.MessageRecord, feedback string) error {
	if e.drafter == nil {
		return fmt.Errorf("no drafting service configured")
	}
	if err := e.messages.SetFeedback(ctx, rec.ID, feedback); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	rec.PendingFeedback = feedback
	if err := e.transition(ctx, b, rec, message.StateDrafting, transitionNote{detail: feedback}); err != nil {
		return err
	}
	id, version := rec.ID, rec.StateVersion
	jobCtx, done := e.beginJob(ctx, id, ctxutil.ActorDrafter)
	b.jobs = append(b.jobs, func() {
		defer done()
		e.runDraft(jobCtx, id, version, feedback)
	})
	return nil
}

func (e *LifecycleEngine) submitFeedback(ctx context.Context, b *batch, rec *secondary.MessageRecord, text string) error {
	state := message.State(rec.State)
	if state != message.StateEditing {
		return &message.InvalidTransitionError{MessageID: rec.ID, From: state, To: message.StateDrafting, Reason: "message is not waiting for feedback"}
	}
	if strings.TrimSpace(text) == "" {
		return e.transition(ctx, b, rec, message.StateReviewing, transitionNote{detail: "no feedback"})
	}
	return e.startDrafting(ctx, b, rec, strings.TrimSpace(text))
}

func (e *LifecycleEngine) submitManual(ctx context.Context, b *batch, rec *secondary.MessageRecord, text string) error {
	state := message.State(rec.State)
	if err := guardError(rec, message.StateReviewing, message.CanSubmitManual(message.DecisionContext{MessageID: rec.ID, State: state}, text)); err != nil {
		return err
	}
	d := secondary.DraftRecord{
		ID:        newDraftID(),
		Text:      strings.TrimSpace(text),
		Origin:    secondary.DraftOriginManual,
		CreatedAt: e.now(),
	}
	if err := e.messages.AppendDraft(ctx, rec.ID, rec.StateVersion, d); err != nil {
		return err
	}
	rec.Drafts = append(rec.Drafts, d)
	b.effects = append(b.effects, effects.AuditEffect{MessageID: rec.ID, Action: "draft", Detail: "manual " + d.ID})
	return e.transition(ctx, b, rec, message.StateReviewing, transitionNote{})
}

func (e *LifecycleEngine) approve(ctx context.Context, b *batch, rec *secondary.MessageRecord) error {
	final := rec.LatestDraft().Text
	// the text is written while still in review so sending never sees it empty
	if err := e.messages.SetFinalResponse(ctx, rec.ID, final); err != nil {
		return fmt.Errorf("failed to record final response: %w", err)
	}
	rec.FinalResponse = final
	if err := e.transition(ctx, b, rec, message.StateSending, transitionNote{}); err != nil {
		return err
	}
	e.startSend(ctx, b, rec.ID)
	return nil
}

func (e *LifecycleEngine) startSend(ctx context.Context, b *batch, id string) {
	if e.sender == nil {
		// no dispatcher attached: the retry loop of a serving process picks it up
		return
	}
	jobCtx, done := e.beginJob(ctx, id, ctxutil.ActorDispatcher)
	b.jobs = append(b.jobs, func() {
		defer done()
		if _, err := e.sender.Send(jobCtx, id); err != nil {
			observability.LoggerFromContext(jobCtx, e.logger).Error("send failed", "message_id", id, "error", err)
		}
	})
}

// beginJob registers an in-flight job for a message, cancelling any older one.
// The job context outlives the command that started it.
func (e *LifecycleEngine) beginJob(ctx context.Context, id, actor string) (context.Context, func()) {
	jobCtx, cancel := context.WithCancel(ctxutil.WithActorID(context.WithoutCancel(ctx), actor))

	e.jobMu.Lock()
	if old, ok := e.inflight[id]; ok {
		old.cancel()
	}
	e.jobSeq++
	token := e.jobSeq
	e.inflight[id] = inflightJob{token: token, cancel: cancel}
	e.jobMu.Unlock()

	return jobCtx, func() {
		cancel()
		e.jobMu.Lock()
		if cur, ok := e.inflight[id]; ok && cur.token == token {
			delete(e.inflight, id)
		}
		e.jobMu.Unlock()
	}
}

func (e *LifecycleEngine) cancelJob(id string) {
	e.jobMu.Lock()
	defer e.jobMu.Unlock()
	if j, ok := e.inflight[id]; ok {
		j.cancel()
		delete(e.inflight, id)
	}
}

// runDraft executes a drafting call outside the lock and applies the outcome.
func (e *LifecycleEngine) runDraft(ctx context.Context, id string, version int64, feedback string) {
	log := observability.LoggerFromContext(ctx, e.logger).With("message_id", id)

	rec, err := e.messages.GetByID(ctx, id)
	if err != nil {
		log.Error("failed to load message for drafting", "error", err)
		return
	}
	if rec.StateVersion != version {
		log.Debug("drafting request is stale", "version", version, "current", rec.StateVersion)
		return
	}

	d, draftErr := e.drafter.Draft(ctx, rec, version, feedback)
	if draftErr == nil {
		e.executeQuiet(ctx, []effects.Effect{effects.AuditEffect{MessageID: id, Action: "draft", Detail: "ai " + d.ID}})
	}

	// recording the outcome must survive cancellation of the call
	ctx = context.WithoutCancel(ctx)
	_, err = e.command(ctx, func(b *batch) (*secondary.MessageRecord, error) {
		cur, err := e.callbackRecord(ctx, id, version, message.StateReviewing)
		if err != nil {
			return nil, err
		}
		if draftErr != nil {
			note := transitionNote{detail: draftErr.Error(), kind: message.KindDrafting}
			return cur, e.transition(ctx, b, cur, message.StateFailedDraft, note)
		}
		if err := e.messages.SetFeedback(ctx, id, ""); err != nil {
			return nil, fmt.Errorf("failed to clear feedback: %w", err)
		}
		cur.PendingFeedback = ""
		return cur, e.transition(ctx, b, cur, message.StateReviewing, transitionNote{detail: feedback})
	})
	switch {
	case message.IsStale(err):
		log.Debug("dropping stale drafting result")
	case err != nil:
		log.Error("failed to apply drafting result", "error", err)
	case draftErr != nil:
		log.Warn("drafting failed", "error", draftErr)
	}
}

func (e *LifecycleEngine) executeQuiet(ctx context.Context, effs []effects.Effect) {
	if e.executor == nil {
		return
	}
	if err := e.executor.Execute(ctx, effs); err != nil {
		observability.LoggerFromContext(ctx, e.logger).Warn("effect execution failed", "error", err)
	}
}

// guardError converts a failed guard into an InvalidTransitionError.
func guardError(rec *secondary.MessageRecord, to message.State, g message.GuardResult) error {
	if g.Allowed {
		return nil
	}
	return &message.InvalidTransitionError{
		MessageID: rec.ID,
		From:      message.State(rec.State),
		To:        to,
		Reason:    g.Reason,
	}
}

func toMessage(rec *secondary.MessageRecord) *primary.Message {
	m := &primary.Message{
		ID:              rec.ID,
		SourceID:        rec.SourceID,
		ExternalID:      rec.ExternalID,
		SenderID:        rec.SenderID,
		Body:            rec.Body,
		ReceivedAt:      rec.ReceivedAt,
		State:           rec.State,
		StateVersion:    rec.StateVersion,
		FinalResponse:   rec.FinalResponse,
		PendingFeedback: rec.PendingFeedback,
		SendAttempts:    rec.SendAttempts,
		LastError:       rec.LastError,
		NextAttemptAt:   rec.NextAttemptAt,
		SentAt:          rec.SentAt,
	}
	for _, d := range rec.Drafts {
		m.Drafts = append(m.Drafts, primary.Draft{
			ID:        d.ID,
			Text:      d.Text,
			Note:      d.Note,
			Origin:    d.Origin,
			CreatedAt: d.CreatedAt,
		})
	}
	return m
}

// Ensure LifecycleEngine implements the interface.
var _ primary.LifecycleService = (*LifecycleEngine)(nil)
