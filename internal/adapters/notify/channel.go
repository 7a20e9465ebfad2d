package notify

import (
	"context"

	"github.com/example/switchboard/internal/ports/secondary"
)

// ChannelNotifier hands notifications to an interactive surface.
// A full channel drops the notification instead of blocking the engine.
type ChannelNotifier struct {
	ch chan secondary.Notification
}

// NewChannelNotifier creates a notifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	return &ChannelNotifier{ch: make(chan secondary.Notification, buffer)}
}

// Notify implements secondary.Notifier.
func (c *ChannelNotifier) Notify(ctx context.Context, n secondary.Notification) error {
	select {
	case c.ch <- n:
	default:
	}
	return nil
}

// C returns the receive side.
func (c *ChannelNotifier) C() <-chan secondary.Notification {
	return c.ch
}

var _ secondary.Notifier = (*ChannelNotifier)(nil)
