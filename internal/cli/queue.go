package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/switchboard/internal/wire"
)

// QueueCmd returns the queue command
func QueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the message queue",
	}
	cmd.AddCommand(queueListCmd())
	cmd.AddCommand(queueShowCmd())
	return cmd
}

func queueListCmd() *cobra.Command {
	var (
		states []string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages, oldest first",
		Example: `  switchboard queue list
  switchboard queue list --state queued --state send_failed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := wire.MessageAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return adapter.List(cmd.Context(), states, limit)
		},
	}
	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "filter by state (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of messages")
	return cmd
}

func queueShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [message-id]",
		Short: "Show a message and its drafts (defaults to the active message)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := wire.MessageAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = adapter.Show(cmd.Context(), optionalArg(args))
			return err
		},
	}
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
