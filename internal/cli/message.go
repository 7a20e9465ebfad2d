package cli

import (
	"strings"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/switchboard/internal/adapters/cli"
	"github.com/example/switchboard/internal/ctxutil"
	"github.com/example/switchboard/internal/wire"
)

// operatorCmd wraps a run function that needs the message adapter, running
// as the operator actor.
func operatorCmd(cmd *cobra.Command, run func(cmd *cobra.Command, args []string, adapter *cliadapter.MessageAdapter) error) *cobra.Command {
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		adapter, err := wire.MessageAdapterWithOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		cmd.SetContext(ctxutil.WithActorID(cmd.Context(), ctxutil.ActorOperator))
		return run(cmd, args, adapter)
	}
	return cmd
}

// withIDFlag lets a command target a message other than the active one.
func withIDFlag(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String("id", "", "message ID (defaults to the active message)")
	return cmd
}

// NextCmd returns the next command
func NextCmd() *cobra.Command {
	return operatorCmd(&cobra.Command{
		Use:   "next",
		Short: "Activate the oldest queued message",
		Args:  cobra.NoArgs,
	}, func(cmd *cobra.Command, args []string, a *cliadapter.MessageAdapter) error {
		return a.Next(cmd.Context())
	})
}

// DecideCmd returns the decide command
func DecideCmd() *cobra.Command {
	return withIDFlag(operatorCmd(&cobra.Command{
		Use:   "decide <generate|ignore|manual> [text...]",
		Short: "Decide how to handle the active message",
		Long: `Decide how to handle the active message:

  generate   draft a reply with the drafting provider
  ignore     close the message without replying
  manual     write the reply yourself (text may follow)`,
		Example: `  switchboard decide generate
  switchboard decide manual "Thursday works, see you then"`,
		Args: cobra.MinimumNArgs(1),
	}, func(cmd *cobra.Command, args []string, a *cliadapter.MessageAdapter) error {
		id, _ := cmd.Flags().GetString("id")
		return a.Decide(cmd.Context(), id, args[0], strings.Join(args[1:], " "))
	}))
}

// ReviewCmd returns the review command
func ReviewCmd() *cobra.Command {
	return withIDFlag(operatorCmd(&cobra.Command{
		Use:   "review <approve|edit|regenerate> [feedback...]",
		Short: "Review the latest draft of the active message",
		Example: `  switchboard review approve
  switchboard review regenerate "shorter, less formal"`,
		Args: cobra.MinimumNArgs(1),
	}, func(cmd *cobra.Command, args []string, a *cliadapter.MessageAdapter) error {
		id, _ := cmd.Flags().GetString("id")
		return a.Review(cmd.Context(), id, args[0], strings.Join(args[1:], " "))
	}))
}

// FeedbackCmd returns the feedback command
func FeedbackCmd() *cobra.Command {
	return withIDFlag(operatorCmd(&cobra.Command{
		Use:   "feedback <text...>",
		Short: "Send edit feedback and redraft",
		Args:  cobra.MinimumNArgs(1),
	}, func(cmd *cobra.Command, args []string, a *cliadapter.MessageAdapter) error {
		id, _ := cmd.Flags().GetString("id")
		return a.Feedback(cmd.Context(), id, strings.Join(args, " "))
	}))
}

// ManualCmd returns the manual command
func ManualCmd() *cobra.Command {
	return withIDFlag(operatorCmd(&cobra.Command{
		Use:   "manual <text...>",
		Short: "Submit a hand-written reply",
		Args:  cobra.MinimumNArgs(1),
	}, func(cmd *cobra.Command, args []string, a *cliadapter.MessageAdapter) error {
		id, _ := cmd.Flags().GetString("id")
		return a.Manual(cmd.Context(), id, strings.Join(args, " "))
	}))
}

// ResendCmd returns the resend command
func ResendCmd() *cobra.Command {
	return operatorCmd(&cobra.Command{
		Use:   "resend <message-id>",
		Short: "Retry a message whose send failed",
		Args:  cobra.ExactArgs(1),
	}, func(cmd *cobra.Command, args []string, a *cliadapter.MessageAdapter) error {
		return a.Resend(cmd.Context(), args[0])
	})
}

// HistoryCmd returns the history command
func HistoryCmd() *cobra.Command {
	return operatorCmd(&cobra.Command{
		Use:   "history [message-id]",
		Short: "Show the audit trail of a message",
		Args:  cobra.MaximumNArgs(1),
	}, func(cmd *cobra.Command, args []string, a *cliadapter.MessageAdapter) error {
		return a.History(cmd.Context(), optionalArg(args))
	})
}
