package message

import (
	"fmt"

	"github.com/example/switchboard/internal/core/effects"
)

// TransitionPlan describes the side effects of a committed state change.
type TransitionPlan struct {
	MessageID string
	SourceID  string
	SenderID  string
	From      State
	To        State
	Detail    string    // free-form audit detail (feedback, error text)
	ErrorKind ErrorKind // set for failed_draft / send_failed
	Preview   string    // text carried into notifications
}

// Effects returns the effects for this transition: an audit entry always,
// plus an operator notification for the states the operator must react to.
func (p TransitionPlan) Effects() []effects.Effect {
	effs := []effects.Effect{
		effects.AuditEffect{
			MessageID: p.MessageID,
			Action:    "transition",
			From:      string(p.From),
			To:        string(p.To),
			Detail:    p.Detail,
		},
	}

	switch p.To {
	case StateReviewing:
		effs = append(effs, p.notify(effects.NotifyDraftReady, ""))
	case StateSent:
		effs = append(effs, p.notify(effects.NotifySendConfirmed, ""))
	case StateFailedDraft:
		effs = append(effs, p.notify(effects.NotifyError, p.kindOr(KindDrafting)))
	case StateSendFailed:
		effs = append(effs, p.notify(effects.NotifyError, p.kindOr(KindSend)))
	}

	effs = append(effs, effects.LogEffect{
		Level:   "info",
		Message: fmt.Sprintf("message %s: %s -> %s", p.MessageID, p.From, p.To),
		Fields:  map[string]any{"message_id": p.MessageID, "source_id": p.SourceID},
	})
	return effs
}

func (p TransitionPlan) kindOr(fallback ErrorKind) string {
	if p.ErrorKind != "" {
		return string(p.ErrorKind)
	}
	return string(fallback)
}

func (p TransitionPlan) notify(kind, errorKind string) effects.NotifyEffect {
	return effects.NotifyEffect{
		Kind:      kind,
		MessageID: p.MessageID,
		SourceID:  p.SourceID,
		SenderID:  p.SenderID,
		Text:      p.Preview,
		ErrorKind: errorKind,
	}
}

// EnqueuePlan describes the side effects of accepting a new inbound message.
type EnqueuePlan struct {
	MessageID string
	SourceID  string
	SenderID  string
	Body      string
}

// NewMessagePreviewLimit bounds the body preview in new-message alerts.
const NewMessagePreviewLimit = 100

// ActivationPreviewLimit bounds the body preview shown on activation.
const ActivationPreviewLimit = 200

// Effects returns the audit entry and new-message notification.
func (p EnqueuePlan) Effects() []effects.Effect {
	return []effects.Effect{
		effects.AuditEffect{
			MessageID: p.MessageID,
			Action:    "enqueue",
			To:        string(StateQueued),
			Detail:    p.SourceID,
		},
		effects.NotifyEffect{
			Kind:      effects.NotifyNewMessage,
			MessageID: p.MessageID,
			SourceID:  p.SourceID,
			SenderID:  p.SenderID,
			Text:      Preview(p.Body, NewMessagePreviewLimit),
		},
	}
}

// Preview truncates text to limit runes, marking the cut with "...".
func Preview(text string, limit int) string {
	r := []rune(text)
	if limit <= 0 || len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}
