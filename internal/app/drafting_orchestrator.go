package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/switchboard/internal/core/draft"
	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/observability"
	"github.com/example/switchboard/internal/ports/secondary"
)

// DraftingOptions tunes the drafting orchestrator.
type DraftingOptions struct {
	Timeout      time.Duration
	HistoryTurns int
	MaxLength    int
	Style        draft.StyleProfile
}

// DraftingOrchestrator builds prompts, calls the drafting service and stores
// the result in the draft history. It never touches the final response.
type DraftingOrchestrator struct {
	messages      secondary.MessageRepository
	conversations secondary.ConversationRepository
	profiles      secondary.ProfileRepository
	service       secondary.DraftingService
	opts          DraftingOptions
	logger        *slog.Logger
	now           func() time.Time
}

// NewDraftingOrchestrator creates a new DraftingOrchestrator.
// conversations and profiles may be nil.
func NewDraftingOrchestrator(
	messages secondary.MessageRepository,
	conversations secondary.ConversationRepository,
	profiles secondary.ProfileRepository,
	service secondary.DraftingService,
	opts DraftingOptions,
	logger *slog.Logger,
) *DraftingOrchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = draft.DefaultMaxLength
	}
	if logger == nil {
		logger = observability.Logger()
	}
	return &DraftingOrchestrator{
		messages:      messages,
		conversations: conversations,
		profiles:      profiles,
		service:       service,
		opts:          opts,
		logger:        logger,
		now:           time.Now,
	}
}

// Draft generates a draft for rec. With feedback, the most recent draft is revised.
func (o *DraftingOrchestrator) Draft(ctx context.Context, rec *secondary.MessageRecord, version int64, feedback string) (*secondary.DraftRecord, error) {
	input, err := o.promptInput(ctx, rec, feedback)
	if err != nil {
		return nil, err
	}
	prompt := draft.BuildPrompt(input)

	callCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	started := o.now()
	text, err := o.service.Complete(callCtx, secondary.CompletionRequest{
		System:    prompt.System,
		User:      prompt.User,
		MaxLength: o.opts.MaxLength,
	})
	if err != nil {
		return nil, classifyDraftingError(callCtx, err)
	}

	clean, ok := draft.Normalize(text, o.opts.MaxLength)
	if !ok {
		return nil, &message.DraftingError{Kind: message.DraftingInvalidResponse, Err: errors.New("empty response")}
	}

	d := secondary.DraftRecord{
		ID:        newDraftID(),
		Text:      clean,
		Note:      feedback,
		Origin:    secondary.DraftOriginAI,
		CreatedAt: o.now(),
	}
	if err := o.messages.AppendDraft(ctx, rec.ID, version, d); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx, o.logger).Info("draft generated",
		"message_id", rec.ID,
		"draft_id", d.ID,
		"revision", feedback != "",
		"elapsed", o.now().Sub(started))
	return &d, nil
}

func (o *DraftingOrchestrator) promptInput(ctx context.Context, rec *secondary.MessageRecord, feedback string) (draft.PromptInput, error) {
	in := draft.PromptInput{
		SourceID:  rec.SourceID,
		SenderID:  rec.SenderID,
		Body:      rec.Body,
		Style:     o.opts.Style,
		Feedback:  feedback,
		MaxLength: o.opts.MaxLength,
	}
	if feedback != "" {
		if latest := rec.LatestDraft(); latest != nil {
			in.PreviousDraft = latest.Text
		}
	}

	if o.conversations != nil && o.opts.HistoryTurns > 0 {
		turns, err := o.conversations.Recent(ctx, rec.SourceID, rec.SenderID, o.opts.HistoryTurns)
		if err != nil {
			return in, fmt.Errorf("failed to load conversation: %w", err)
		}
		for _, t := range turns {
			in.History = append(in.History, draft.Turn{Inbound: t.Inbound, Response: t.Response})
		}
	}

	if o.profiles != nil {
		p, err := o.profiles.Get(ctx, rec.SenderID)
		if err != nil {
			return in, fmt.Errorf("failed to load profile: %w", err)
		}
		if p != nil {
			in.Person = &draft.PersonHints{
				DisplayName:  p.DisplayName,
				Relationship: p.Relationship,
				Style:        p.Style,
				Notes:        p.Notes,
			}
		}
	}
	return in, nil
}

// classifyDraftingError maps a drafting-service failure onto a DraftingError.
func classifyDraftingError(callCtx context.Context, err error) error {
	var de *message.DraftingError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &message.DraftingError{Kind: message.DraftingTimeout, Err: err}
	}
	return &message.DraftingError{Kind: message.DraftingUnavailable, Err: err}
}

func newDraftID() string {
	return "DRAFT-" + uuid.NewString()[:8]
}
