package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/example/switchboard/internal/core/effects"
	"github.com/example/switchboard/internal/ports/secondary"
)

// WriterNotifier prints notifications to a writer, one per line.
type WriterNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriterNotifier creates a notifier writing to out.
func NewWriterNotifier(out io.Writer) *WriterNotifier {
	return &WriterNotifier{out: out}
}

// Notify implements secondary.Notifier.
func (w *WriterNotifier) Notify(ctx context.Context, n secondary.Notification) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := fmt.Fprintf(w.out, "%s %s\n", badge(n.Kind), Format(n))
	return err
}

func badge(kind string) string {
	switch kind {
	case effects.NotifyNewMessage:
		return color.New(color.FgCyan).Sprint("[new]")
	case effects.NotifyDraftReady:
		return color.New(color.FgHiMagenta).Sprint("[draft]")
	case effects.NotifySendConfirmed:
		return color.New(color.FgGreen).Sprint("[sent]")
	case effects.NotifyError:
		return color.New(color.FgRed).Sprint("[error]")
	default:
		return color.New(color.FgYellow).Sprintf("[%s]", kind)
	}
}

var _ secondary.Notifier = (*WriterNotifier)(nil)
