// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing, output formatting,
// but delegate business logic to services.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ports/primary"
)

// MessageAdapter is a thin adapter that translates CLI operations to LifecycleService calls.
// It depends only on the LifecycleService interface, enabling easy testing with mocks.
type MessageAdapter struct {
	service primary.LifecycleService
	out     io.Writer
}

// NewMessageAdapter creates a new MessageAdapter with the given service.
func NewMessageAdapter(service primary.LifecycleService, out io.Writer) *MessageAdapter {
	return &MessageAdapter{
		service: service,
		out:     out,
	}
}

// List lists messages with an optional state filter.
func (a *MessageAdapter) List(ctx context.Context, states []string, limit int) error {
	for _, s := range states {
		if _, err := message.ParseState(s); err != nil {
			return err
		}
	}

	msgs, err := a.service.ListMessages(ctx, primary.MessageFilters{States: states, Limit: limit})
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}

	if len(msgs) == 0 {
		fmt.Fprintln(a.out, "No messages found")
		return nil
	}

	counts := make(map[string]int)
	fmt.Fprintf(a.out, "\n%-10s %-18s %-10s %-14s %s\n", "ID", "STATE", "SOURCE", "SENDER", "BODY")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────────────")
	for _, m := range msgs {
		counts[m.State]++
		fmt.Fprintf(a.out, "%-10s %-18s %-10s %-14s %s\n", m.ID, stateColor(m.State).Sprint(m.State), m.SourceID, m.SenderID, message.Preview(m.Body, 40))
	}
	fmt.Fprintln(a.out)

	var summary []string
	for _, s := range message.AllStates() {
		if n := counts[string(s)]; n > 0 {
			summary = append(summary, fmt.Sprintf("%s: %d", s, n))
		}
	}
	fmt.Fprintln(a.out, strings.Join(summary, "  "))
	return nil
}

// Show displays details for a single message.
func (a *MessageAdapter) Show(ctx context.Context, messageID string) (*primary.Message, error) {
	var (
		m   *primary.Message
		err error
	)
	if messageID == "" {
		m, err = a.service.ActiveMessage(ctx)
		if err == nil && m == nil {
			fmt.Fprintln(a.out, "No active message")
			return nil, nil
		}
	} else {
		m, err = a.service.GetMessage(ctx, messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	a.printMessage(m)
	return m, nil
}

func (a *MessageAdapter) printMessage(m *primary.Message) {
	fmt.Fprintf(a.out, "\nMessage:  %s\n", m.ID)
	fmt.Fprintf(a.out, "State:    %s (v%d)\n", stateColor(m.State).Sprint(m.State), m.StateVersion)
	fmt.Fprintf(a.out, "From:     %s on %s\n", m.SenderID, m.SourceID)
	fmt.Fprintf(a.out, "Received: %s\n", m.ReceivedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(a.out, "Body:     %s\n", m.Body)
	for i, d := range m.Drafts {
		label := fmt.Sprintf("Draft %d (%s)", i+1, d.Origin)
		if d.Note != "" {
			label += fmt.Sprintf(" after %q", d.Note)
		}
		fmt.Fprintf(a.out, "%s: %s\n", label, d.Text)
	}
	if m.FinalResponse != "" {
		fmt.Fprintf(a.out, "Final:    %s\n", m.FinalResponse)
	}
	if m.SendAttempts > 0 {
		fmt.Fprintf(a.out, "Attempts: %d\n", m.SendAttempts)
	}
	if m.LastError != "" {
		fmt.Fprintf(a.out, "Error:    %s\n", m.LastError)
	}
	if !m.NextAttemptAt.IsZero() {
		fmt.Fprintf(a.out, "Retry at: %s\n", m.NextAttemptAt.Format("15:04:05"))
	}
	if !m.SentAt.IsZero() {
		fmt.Fprintf(a.out, "Sent:     %s\n", m.SentAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(a.out)
}

// Next activates the oldest queued message.
func (a *MessageAdapter) Next(ctx context.Context) error {
	m, err := a.service.ActivateNext(ctx)
	if err != nil {
		return err
	}
	if m == nil {
		fmt.Fprintln(a.out, "No messages waiting")
		return nil
	}
	fmt.Fprintf(a.out, "✓ Activated %s\n", m.ID)
	a.printMessage(m)
	return nil
}

// Decide applies a decision to a message (empty ID means the active one).
func (a *MessageAdapter) Decide(ctx context.Context, messageID, action, text string) error {
	switch action {
	case primary.DecisionGenerate, primary.DecisionIgnore, primary.DecisionManual:
	default:
		return fmt.Errorf("decision must be generate, ignore or manual, got %q", action)
	}

	m, err := a.service.Decide(ctx, primary.DecideRequest{MessageID: messageID, Action: action, Text: text})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ %s is now %s\n", m.ID, m.State)
	return nil
}

// Review applies a review action to a drafted message.
func (a *MessageAdapter) Review(ctx context.Context, messageID, action, feedback string) error {
	switch action {
	case primary.ReviewApprove, primary.ReviewEdit, primary.ReviewRegenerate:
	default:
		return fmt.Errorf("review action must be approve, edit or regenerate, got %q", action)
	}

	m, err := a.service.Review(ctx, primary.ReviewRequest{MessageID: messageID, Action: action, Feedback: feedback})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ %s is now %s\n", m.ID, m.State)
	return nil
}

// Feedback supplies the revision note for a message in editing.
func (a *MessageAdapter) Feedback(ctx context.Context, messageID, text string) error {
	m, err := a.service.SubmitFeedback(ctx, messageID, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ %s is now %s\n", m.ID, m.State)
	return nil
}

// Manual supplies the operator's own answer.
func (a *MessageAdapter) Manual(ctx context.Context, messageID, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("answer text is required")
	}
	m, err := a.service.SubmitManual(ctx, messageID, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ %s is now %s\n", m.ID, m.State)
	return nil
}

// Resend retries delivery of a send_failed message.
func (a *MessageAdapter) Resend(ctx context.Context, messageID string) error {
	m, err := a.service.Resend(ctx, messageID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Resending %s (%s)\n", m.ID, m.State)
	return nil
}

// History prints the audit trail of a message.
func (a *MessageAdapter) History(ctx context.Context, messageID string) error {
	events, err := a.service.History(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(events) == 0 {
		fmt.Fprintln(a.out, "No events")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-20s %-11s %-13s %s\n", "TIME", "ACTOR", "ACTION", "DETAIL")
	for _, e := range events {
		detail := e.Detail
		if e.From != "" || e.To != "" {
			detail = strings.TrimSpace(fmt.Sprintf("%s -> %s %s", e.From, e.To, e.Detail))
		}
		fmt.Fprintf(a.out, "%-20s %-11s %-13s %s\n", e.At.Format("2006-01-02 15:04:05"), e.ActorID, e.Action, detail)
	}
	fmt.Fprintln(a.out)
	return nil
}

func stateColor(state string) *color.Color {
	switch message.State(state) {
	case message.StateSent:
		return color.New(color.FgGreen)
	case message.StateSendFailed, message.StateFailedDraft:
		return color.New(color.FgRed)
	case message.StateIgnored:
		return color.New(color.Faint)
	case message.StateQueued:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgYellow)
	}
}
