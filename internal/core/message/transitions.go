// Package message contains the pure business logic for the message lifecycle.
// This is part of the Functional Core - no I/O, only pure functions.
package message

import "fmt"

// State represents the lifecycle state of a queued message.
type State string

const (
	StateQueued           State = "queued"
	StateAwaitingDecision State = "awaiting_decision"
	StateDrafting         State = "drafting"
	StateManualDraft      State = "manual_draft"
	StateReviewing        State = "reviewing"
	StateEditing          State = "editing"
	StateSending          State = "sending"
	StateFailedDraft      State = "failed_draft"
	StateIgnored          State = "ignored"
	StateSent             State = "sent"
	StateSendFailed       State = "send_failed"
)

// transitions is the complete lifecycle table. Anything not listed is rejected.
var transitions = map[State][]State{
	StateQueued:           {StateAwaitingDecision},
	StateAwaitingDecision: {StateIgnored, StateDrafting, StateManualDraft},
	StateDrafting:         {StateReviewing, StateFailedDraft, StateIgnored},
	StateReviewing:        {StateEditing, StateSending, StateDrafting},
	StateEditing:          {StateDrafting, StateReviewing},
	StateManualDraft:      {StateReviewing},
	StateSending:          {StateSent, StateSendFailed},
	StateFailedDraft:      {StateDrafting, StateManualDraft, StateIgnored},
	StateSendFailed:       {StateSending},
}

// AllStates returns every lifecycle state in workflow order.
func AllStates() []State {
	return []State{
		StateQueued,
		StateAwaitingDecision,
		StateDrafting,
		StateManualDraft,
		StateReviewing,
		StateEditing,
		StateSending,
		StateFailedDraft,
		StateIgnored,
		StateSent,
		StateSendFailed,
	}
}

// ActiveStates returns the states that occupy the operator's attention.
// At most one message may be in any of these at a time.
func ActiveStates() []State {
	return []State{
		StateAwaitingDecision,
		StateDrafting,
		StateManualDraft,
		StateReviewing,
		StateEditing,
		StateSending,
		StateFailedDraft,
	}
}

// ParseState converts a stored string into a State.
func ParseState(s string) (State, error) {
	for _, st := range AllStates() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown message state %q", s)
}

// InitialState returns the state of a freshly enqueued message.
func InitialState() State {
	return StateQueued
}

// IsActive reports whether a message in state s holds the active slot.
func IsActive(s State) bool {
	for _, st := range ActiveStates() {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a final state. send_failed is not terminal:
// it can be resent manually.
func IsTerminal(s State) bool {
	return s == StateIgnored || s == StateSent
}

// CanTransition reports whether the lifecycle table allows from -> to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ClaimsSlot reports whether moving from -> to takes the active slot, i.e. the
// message was idle (queued or send_failed) and becomes active.
func ClaimsSlot(from, to State) bool {
	return !IsActive(from) && IsActive(to)
}

// TransitionResult captures the outcome of a validated state change.
type TransitionResult struct {
	From       State
	To         State
	NewVersion int64
	Claims     bool // the message takes the active slot
	Releases   bool // the message gives the active slot back
}

// ApplyTransition validates a state change against the lifecycle table and the
// caller's view of the record. current/currentVersion describe the stored
// record; from/expectVersion describe what the caller believes. Any mismatch
// means the caller acted on stale data and the change is rejected.
func ApplyTransition(id string, current State, currentVersion int64, from State, expectVersion int64, to State) (TransitionResult, error) {
	if current != from {
		return TransitionResult{}, &InvalidTransitionError{
			MessageID: id,
			From:      current,
			To:        to,
			Reason:    fmt.Sprintf("message is %s, not %s", current, from),
		}
	}
	if currentVersion != expectVersion {
		return TransitionResult{}, &InvalidTransitionError{
			MessageID: id,
			From:      current,
			To:        to,
			Reason:    fmt.Sprintf("stale state version %d (current %d)", expectVersion, currentVersion),
			Stale:     true,
		}
	}
	if !CanTransition(from, to) {
		return TransitionResult{}, &InvalidTransitionError{
			MessageID: id,
			From:      from,
			To:        to,
			Reason:    "transition not allowed",
		}
	}
	return TransitionResult{
		From:       from,
		To:         to,
		NewVersion: currentVersion + 1,
		Claims:     ClaimsSlot(from, to),
		Releases:   IsActive(from) && !IsActive(to),
	}, nil
}
