// Package console is the operator's control surface: a chat-style command
// language over primary.LifecycleService, served either as a bubbletea TUI
// or as a plain line loop.
package console

import (
	"fmt"
	"strings"

	"github.com/example/switchboard/internal/core/message"
)

// Command names.
const (
	CmdNext     = "next"
	CmdGenerate = "generate"
	CmdIgnore   = "ignore"
	CmdManual   = "manual"
	CmdApprove  = "approve"
	CmdEdit     = "edit"
	CmdRegen    = "regen"
	CmdFeedback = "feedback"
	CmdResend   = "resend"
	CmdShow     = "show"
	CmdQueue    = "queue"
	CmdHistory  = "history"
	CmdHelp     = "help"
	CmdQuit     = "quit"
)

// Command is one parsed operator input.
type Command struct {
	Name string
	Arg  string
}

var aliases = map[string]string{
	"n":          CmdNext,
	"g":          CmdGenerate,
	"gen":        CmdGenerate,
	"i":          CmdIgnore,
	"m":          CmdManual,
	"a":          CmdApprove,
	"ok":         CmdApprove,
	"e":          CmdEdit,
	"r":          CmdRegen,
	"regenerate": CmdRegen,
	"f":          CmdFeedback,
	"s":          CmdShow,
	"q":          CmdQueue,
	"h":          CmdHelp,
	"?":          CmdHelp,
	"exit":       CmdQuit,
}

var known = map[string]bool{
	CmdNext: true, CmdGenerate: true, CmdIgnore: true, CmdManual: true,
	CmdApprove: true, CmdEdit: true, CmdRegen: true, CmdFeedback: true,
	CmdResend: true, CmdShow: true, CmdQueue: true, CmdHistory: true,
	CmdHelp: true, CmdQuit: true,
}

// ParseCommand turns an input line into a Command. Slash commands are
// recognized anywhere; free text is read as the revision note while the
// active message is in editing and as the answer while it is in manual_draft.
func ParseCommand(line string, activeState message.State) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("empty input")
	}

	if strings.HasPrefix(line, "/") {
		name, arg, _ := strings.Cut(line[1:], " ")
		name = strings.ToLower(name)
		if full, ok := aliases[name]; ok {
			name = full
		}
		if !known[name] {
			return Command{}, fmt.Errorf("unknown command /%s - type /help", name)
		}
		cmd := Command{Name: name, Arg: strings.TrimSpace(arg)}
		if cmd.Name == CmdResend && cmd.Arg == "" {
			return Command{}, fmt.Errorf("usage: /resend <message-id>")
		}
		return cmd, nil
	}

	switch activeState {
	case message.StateEditing:
		return Command{Name: CmdFeedback, Arg: line}, nil
	case message.StateManualDraft:
		return Command{Name: CmdManual, Arg: line}, nil
	default:
		return Command{}, fmt.Errorf("commands start with / - type /help")
	}
}

// HelpText lists the commands.
const HelpText = `/next              activate the oldest queued message
/generate          draft a reply with the drafting service
/ignore            drop the message
/manual [text]     answer yourself (text can follow on the next line)
/approve           send the current draft
/edit [note]       revise the draft (note can follow on the next line)
/regen             draft again from scratch
/feedback <note>   revision note while editing
/resend <id>       retry a message whose send failed
/show [id]         show the active or given message
/queue             list unresolved messages
/history [id]      audit trail of a message
/quit              leave`
