package console

import (
	"fmt"
	"strings"

	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ports/primary"
)

// ActivationPreviewLimit bounds the body shown when a message is activated.
const ActivationPreviewLimit = 200

// RenderMessage renders a message and what the operator can do next.
func RenderMessage(m *primary.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] from %s on %s\n", m.ID, m.State, m.SenderID, m.SourceID)
	fmt.Fprintf(&b, "  %s\n", message.Preview(m.Body, ActivationPreviewLimit))

	if d := m.LatestDraft(); d != "" {
		fmt.Fprintf(&b, "draft #%d:\n  %s\n", len(m.Drafts), d)
	}
	if m.FinalResponse != "" && m.State != string(message.StateReviewing) {
		fmt.Fprintf(&b, "final:\n  %s\n", m.FinalResponse)
	}
	if m.SendAttempts > 0 {
		fmt.Fprintf(&b, "send attempts: %d", m.SendAttempts)
		if m.LastError != "" {
			fmt.Fprintf(&b, " (last error: %s)", m.LastError)
		}
		b.WriteString("\n")
	}
	if hint := nextStepHint(message.State(m.State)); hint != "" {
		b.WriteString(hint)
	}
	return strings.TrimRight(b.String(), "\n")
}

func nextStepHint(s message.State) string {
	switch s {
	case message.StateAwaitingDecision:
		return "-> /generate, /manual or /ignore"
	case message.StateDrafting:
		return "-> drafting... (/ignore to drop it)"
	case message.StateReviewing:
		return "-> /approve, /edit or /regen"
	case message.StateEditing:
		return "-> type your revision note"
	case message.StateManualDraft:
		return "-> type your answer"
	case message.StateFailedDraft:
		return "-> /regen, /manual or /ignore"
	case message.StateSending:
		return "-> sending..."
	case message.StateSendFailed:
		return "-> /resend to try again"
	}
	return ""
}

// RenderQueue renders a message list with a per-state count.
func RenderQueue(msgs []*primary.Message) string {
	if len(msgs) == 0 {
		return "queue is empty"
	}
	counts := make(map[string]int)
	var b strings.Builder
	for _, m := range msgs {
		counts[m.State]++
		fmt.Fprintf(&b, "%s  %-17s %-10s %-12s %s\n", m.ID, m.State, m.SourceID, m.SenderID, message.Preview(m.Body, 40))
	}
	var summary []string
	for _, s := range message.AllStates() {
		if n := counts[string(s)]; n > 0 {
			summary = append(summary, fmt.Sprintf("%s=%d", s, n))
		}
	}
	b.WriteString(strings.Join(summary, " "))
	return b.String()
}

// RenderHistory renders an audit trail.
func RenderHistory(events []*primary.Event) string {
	if len(events) == 0 {
		return "no events"
	}
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "%s  %-10s %-10s", e.At.Format("15:04:05"), e.ActorID, e.Action)
		if e.From != "" || e.To != "" {
			fmt.Fprintf(&b, " %s -> %s", e.From, e.To)
		}
		if e.Detail != "" {
			fmt.Fprintf(&b, "  %s", e.Detail)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
