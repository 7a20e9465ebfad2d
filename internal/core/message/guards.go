package message

import (
	"fmt"
	"strings"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Human-readable reason (populated when not allowed)
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// ActivationContext describes the active slot at the time of a claim.
type ActivationContext struct {
	ActiveID  string // message currently holding the slot, empty if free
	MessageID string // message that wants the slot
}

// CanActivate evaluates whether a message may take the active slot.
// Rule: only one message is active at a time; re-claiming your own slot is fine.
func CanActivate(ctx ActivationContext) GuardResult {
	if ctx.ActiveID != "" && ctx.ActiveID != ctx.MessageID {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("message %s is still active - finish the current message first", ctx.ActiveID),
		}
	}
	return GuardResult{Allowed: true}
}

// DecisionContext carries the state needed to decide on a message.
type DecisionContext struct {
	MessageID string
	State     State
}

// CanDecide evaluates whether the operator can make a decision on a message.
// Rule: decisions are taken on a freshly activated message or after a failed draft.
func CanDecide(ctx DecisionContext) GuardResult {
	if ctx.State != StateAwaitingDecision && ctx.State != StateFailedDraft {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("message %s is %s - decisions are made on an activated message", ctx.MessageID, ctx.State),
		}
	}
	return GuardResult{Allowed: true}
}

// CanIgnore evaluates whether the operator can drop a message without replying.
// Rule: any decision point, or while a draft is still being generated.
func CanIgnore(ctx DecisionContext) GuardResult {
	if ctx.State == StateDrafting {
		return GuardResult{Allowed: true}
	}
	return CanDecide(ctx)
}

// ReviewContext carries the state needed for review actions.
type ReviewContext struct {
	MessageID  string
	State      State
	DraftCount int
}

// CanApprove evaluates whether the latest draft can be approved for sending.
// Rule: the message must be under review and have at least one draft.
func CanApprove(ctx ReviewContext) GuardResult {
	if ctx.State != StateReviewing {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("message %s is %s - only a reviewed draft can be approved", ctx.MessageID, ctx.State),
		}
	}
	if ctx.DraftCount == 0 {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("message %s has no draft to approve", ctx.MessageID),
		}
	}
	return GuardResult{Allowed: true}
}

// CanRegenerate evaluates whether a full regeneration can be requested.
// Rule: from review, or as the retry after a failed draft.
func CanRegenerate(ctx ReviewContext) GuardResult {
	if ctx.State != StateReviewing && ctx.State != StateFailedDraft {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("message %s is %s - nothing to regenerate", ctx.MessageID, ctx.State),
		}
	}
	return GuardResult{Allowed: true}
}

// CanSubmitManual evaluates a manually written answer.
// Rule: the message must be waiting for manual text, and the text must not be blank.
func CanSubmitManual(ctx DecisionContext, text string) GuardResult {
	if ctx.State != StateManualDraft {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("message %s is %s - it is not waiting for a manual answer", ctx.MessageID, ctx.State),
		}
	}
	if strings.TrimSpace(text) == "" {
		return GuardResult{
			Allowed: false,
			Reason:  "manual answer text is required",
		}
	}
	return GuardResult{Allowed: true}
}

// ResendContext carries the state needed for a manual resend.
type ResendContext struct {
	MessageID     string
	State         State
	ActiveID      string
	FinalResponse string
}

// CanResend evaluates whether a failed send can be retried by hand.
// Rule: only send_failed messages with a final response, and only when the
// active slot is free.
func CanResend(ctx ResendContext) GuardResult {
	if ctx.State != StateSendFailed {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("message %s is %s - only send_failed messages can be resent", ctx.MessageID, ctx.State),
		}
	}
	if ctx.FinalResponse == "" {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("message %s has no final response", ctx.MessageID),
		}
	}
	return CanActivate(ActivationContext{ActiveID: ctx.ActiveID, MessageID: ctx.MessageID})
}
