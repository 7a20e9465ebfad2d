package notify

import (
	"context"
	"errors"

	"github.com/example/switchboard/internal/ports/secondary"
)

// Multi fans a notification out to several notifiers.
type Multi []secondary.Notifier

// Notify delivers to every notifier and joins their failures.
func (m Multi) Notify(ctx context.Context, n secondary.Notification) error {
	var errs []error
	for _, target := range m {
		if target == nil {
			continue
		}
		if err := target.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ secondary.Notifier = Multi(nil)
