package message

import (
	"errors"
	"fmt"
)

// ErrorKind classifies lifecycle errors for notifications and exit codes.
type ErrorKind string

const (
	KindDuplicate         ErrorKind = "duplicate"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindQueueBusy         ErrorKind = "queue_busy"
	KindDrafting          ErrorKind = "drafting_error"
	KindSend              ErrorKind = "send_error"
	KindNotFound          ErrorKind = "not_found"
	KindInternal          ErrorKind = "internal"
)

// DuplicateError is returned by Enqueue when the source already reported the
// external ID. Pollers treat it as "already tracked".
type DuplicateError struct {
	SourceID   string
	ExternalID string
	ExistingID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate message %s/%s (tracked as %s)", e.SourceID, e.ExternalID, e.ExistingID)
}

// InvalidTransitionError guards the lifecycle table and concurrent writers.
// Stale is set when the caller's state version is out of date.
type InvalidTransitionError struct {
	MessageID string
	From      State
	To        State
	Reason    string
	Stale     bool
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move message %s from %s to %s: %s", e.MessageID, e.From, e.To, e.Reason)
}

// QueueBusyError is returned when an activation is attempted while another
// message is active.
type QueueBusyError struct {
	ActiveID string
}

func (e *QueueBusyError) Error() string {
	return fmt.Sprintf("message %s is still active - finish the current message first", e.ActiveID)
}

// DraftingKind categorizes drafting-service failures.
type DraftingKind string

const (
	DraftingTimeout         DraftingKind = "timeout"
	DraftingQuota           DraftingKind = "quota"
	DraftingInvalidResponse DraftingKind = "invalid_response"
	DraftingUnavailable     DraftingKind = "unavailable"
)

// DraftingError wraps a drafting-service failure.
type DraftingError struct {
	Kind DraftingKind
	Err  error
}

func (e *DraftingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("drafting failed (%s)", e.Kind)
	}
	return fmt.Sprintf("drafting failed (%s): %v", e.Kind, e.Err)
}

func (e *DraftingError) Unwrap() error {
	return e.Err
}

// SendError wraps an outbound delivery failure.
type SendError struct {
	SourceID  string
	Attempts  int
	Retryable bool
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send via %s failed after %d attempt(s): %v", e.SourceID, e.Attempts, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ErrNoActiveMessage is returned when a command targets the active message
// and none is active.
var ErrNoActiveMessage = errors.New("no active message - use next to activate one")

// NotFoundError is returned when a message ID does not exist.
type NotFoundError struct {
	MessageID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("message %s not found", e.MessageID)
}

// KindOf maps an error onto its lifecycle kind.
func KindOf(err error) ErrorKind {
	var (
		dup      *DuplicateError
		invalid  *InvalidTransitionError
		busy     *QueueBusyError
		drafting *DraftingError
		send     *SendError
		notFound *NotFoundError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &dup):
		return KindDuplicate
	case errors.As(err, &invalid):
		return KindInvalidTransition
	case errors.As(err, &busy):
		return KindQueueBusy
	case errors.As(err, &drafting):
		return KindDrafting
	case errors.As(err, &send):
		return KindSend
	case errors.As(err, &notFound), errors.Is(err, ErrNoActiveMessage):
		return KindNotFound
	default:
		return KindInternal
	}
}

// IsStale reports whether err is a rejected write from an outdated caller.
func IsStale(err error) bool {
	var invalid *InvalidTransitionError
	return errors.As(err, &invalid) && invalid.Stale
}

// OperatorHint renders an error the way the control surface should show it.
func OperatorHint(err error) string {
	switch KindOf(err) {
	case KindQueueBusy:
		return "Finish the current message first."
	case KindInvalidTransition:
		return "That action is not available right now - try again."
	case KindDrafting:
		return "Drafting failed. Regenerate, answer manually or ignore."
	case KindSend:
		return "Sending failed. Use resend to try again."
	case KindNotFound:
		return "No such message."
	default:
		return "Something went wrong."
	}
}
