// Package notify contains the operator-facing notifiers.
package notify

import (
	"fmt"

	"github.com/example/switchboard/internal/core/effects"
	"github.com/example/switchboard/internal/ports/secondary"
)

// Format renders a notification as a single line.
func Format(n secondary.Notification) string {
	switch n.Kind {
	case effects.NotifyNewMessage:
		return fmt.Sprintf("new message %s from %s on %s: %s", n.MessageID, n.SenderID, n.SourceID, n.Text)
	case effects.NotifyDraftReady:
		return fmt.Sprintf("draft ready for %s: %s", n.MessageID, n.Text)
	case effects.NotifySendConfirmed:
		return fmt.Sprintf("sent %s to %s on %s", n.MessageID, n.SenderID, n.SourceID)
	case effects.NotifyError:
		if n.Text == "" {
			return fmt.Sprintf("%s on %s", n.ErrorKind, n.MessageID)
		}
		return fmt.Sprintf("%s on %s: %s", n.ErrorKind, n.MessageID, n.Text)
	default:
		return fmt.Sprintf("%s %s: %s", n.Kind, n.MessageID, n.Text)
	}
}
