package notify

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/GianlucaP106/gotmux/gotmux"

	"github.com/example/switchboard/internal/ports/secondary"
)

// TmuxNotifier shows notifications in the status line of a tmux session.
type TmuxNotifier struct {
	tmux    *gotmux.Tmux
	session string
	display func(ctx context.Context, session, text string) error
}

// NewTmuxNotifier creates a notifier for the named session.
func NewTmuxNotifier(session string) (*TmuxNotifier, error) {
	tmux, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to create tmux client: %w", err)
	}
	return &TmuxNotifier{tmux: tmux, session: session, display: displayMessage}, nil
}

// SessionExists checks if the target tmux session exists.
func (t *TmuxNotifier) SessionExists() bool {
	sessions, err := t.tmux.ListSessions()
	if err != nil {
		return false
	}
	for _, s := range sessions {
		if s.Name == t.session {
			return true
		}
	}
	return false
}

// Notify implements secondary.Notifier. A missing session is not an error;
// the operator may simply not be attached.
func (t *TmuxNotifier) Notify(ctx context.Context, n secondary.Notification) error {
	if !t.SessionExists() {
		return nil
	}
	return t.display(ctx, t.session, "switchboard: "+Format(n))
}

// displayMessage shells out because gotmux has no display-message wrapper.
func displayMessage(ctx context.Context, session, text string) error {
	if err := exec.CommandContext(ctx, "tmux", "display-message", "-t", session, text).Run(); err != nil {
		return fmt.Errorf("failed to display tmux message: %w", err)
	}
	return nil
}

// AttachInstructions tells the operator where tmux notifications for session appear.
func AttachInstructions(session string) string {
	return fmt.Sprintf("Notifications appear in the status line of session %q.\n"+
		"Attach with: tmux attach -t %s\n", session, session)
}

var _ secondary.Notifier = (*TmuxNotifier)(nil)
