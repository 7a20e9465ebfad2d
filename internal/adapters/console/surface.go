package console

import (
	"context"
	"errors"

	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ctxutil"
	"github.com/example/switchboard/internal/ports/primary"
)

// ErrQuit is returned by Execute for /quit.
var ErrQuit = errors.New("quit")

// unresolved are the states /queue lists.
var unresolved = []string{
	string(message.StateQueued),
	string(message.StateAwaitingDecision),
	string(message.StateDrafting),
	string(message.StateManualDraft),
	string(message.StateReviewing),
	string(message.StateEditing),
	string(message.StateSending),
	string(message.StateFailedDraft),
	string(message.StateSendFailed),
}

// Surface maps commands onto the lifecycle service.
type Surface struct {
	lifecycle primary.LifecycleService
}

// NewSurface creates a Surface.
func NewSurface(lifecycle primary.LifecycleService) *Surface {
	return &Surface{lifecycle: lifecycle}
}

// ActiveState returns the state of the active message, or "".
func (s *Surface) ActiveState(ctx context.Context) message.State {
	m, err := s.lifecycle.ActiveMessage(ctx)
	if err != nil || m == nil {
		return ""
	}
	return message.State(m.State)
}

// Handle parses and executes one input line.
func (s *Surface) Handle(ctx context.Context, line string) (string, error) {
	cmd, err := ParseCommand(line, s.ActiveState(ctx))
	if err != nil {
		return "", err
	}
	return s.Execute(ctx, cmd)
}

// Execute runs a command as the operator and renders the outcome.
func (s *Surface) Execute(ctx context.Context, cmd Command) (string, error) {
	ctx = ctxutil.WithActorID(ctx, ctxutil.ActorOperator)

	var (
		m   *primary.Message
		err error
	)
	switch cmd.Name {
	case CmdHelp:
		return HelpText, nil
	case CmdQuit:
		return "", ErrQuit
	case CmdQueue:
		msgs, err := s.lifecycle.ListMessages(ctx, primary.MessageFilters{States: unresolved})
		if err != nil {
			return "", err
		}
		return RenderQueue(msgs), nil
	case CmdHistory:
		id, err := s.targetID(ctx, cmd.Arg)
		if err != nil {
			return "", err
		}
		events, err := s.lifecycle.History(ctx, id)
		if err != nil {
			return "", err
		}
		return RenderHistory(events), nil
	case CmdNext:
		m, err = s.lifecycle.ActivateNext(ctx)
		if err == nil && m == nil {
			return "no messages waiting", nil
		}
	case CmdShow:
		if cmd.Arg != "" {
			m, err = s.lifecycle.GetMessage(ctx, cmd.Arg)
		} else {
			m, err = s.lifecycle.ActiveMessage(ctx)
			if err == nil && m == nil {
				return "no active message", nil
			}
		}
	case CmdGenerate:
		m, err = s.lifecycle.Decide(ctx, primary.DecideRequest{Action: primary.DecisionGenerate})
	case CmdIgnore:
		m, err = s.lifecycle.Decide(ctx, primary.DecideRequest{Action: primary.DecisionIgnore})
	case CmdManual:
		if cmd.Arg != "" && s.ActiveState(ctx) == message.StateManualDraft {
			m, err = s.lifecycle.SubmitManual(ctx, "", cmd.Arg)
		} else {
			m, err = s.lifecycle.Decide(ctx, primary.DecideRequest{Action: primary.DecisionManual, Text: cmd.Arg})
		}
	case CmdApprove:
		m, err = s.lifecycle.Review(ctx, primary.ReviewRequest{Action: primary.ReviewApprove})
	case CmdEdit:
		if cmd.Arg != "" && s.ActiveState(ctx) == message.StateEditing {
			m, err = s.lifecycle.SubmitFeedback(ctx, "", cmd.Arg)
		} else {
			m, err = s.lifecycle.Review(ctx, primary.ReviewRequest{Action: primary.ReviewEdit, Feedback: cmd.Arg})
		}
	case CmdRegen:
		m, err = s.lifecycle.Review(ctx, primary.ReviewRequest{Action: primary.ReviewRegenerate})
	case CmdFeedback:
		m, err = s.lifecycle.SubmitFeedback(ctx, "", cmd.Arg)
	case CmdResend:
		m, err = s.lifecycle.Resend(ctx, cmd.Arg)
	default:
		return "", errors.New("unknown command")
	}
	if err != nil {
		return "", err
	}
	return RenderMessage(m), nil
}

func (s *Surface) targetID(ctx context.Context, arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	m, err := s.lifecycle.ActiveMessage(ctx)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", message.ErrNoActiveMessage
	}
	return m.ID, nil
}

// DescribeError renders err for the operator.
func DescribeError(err error) string {
	if message.KindOf(err) == message.KindInternal {
		return err.Error()
	}
	return message.OperatorHint(err) + " (" + err.Error() + ")"
}
