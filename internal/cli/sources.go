package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/switchboard/internal/ctxutil"
	"github.com/example/switchboard/internal/wire"
)

// SourcesCmd returns the sources command
func SourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured message sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := wire.SourceAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			adapter.List()
			return nil
		},
	}
}

// PollCmd returns the poll command
func PollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll [source-id]",
		Short: "Poll sources once and enqueue new messages",
		Long: `Poll one source, or every pollable source when none is given, and enqueue
whatever they return. Messages already in the store are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// polled messages must outlive this process
			if _, err := wire.GetDurable(); err != nil {
				return err
			}
			adapter, err := wire.SourceAdapterWithOutput(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx := ctxutil.WithActorID(cmd.Context(), ctxutil.ActorPoller)
			return adapter.Poll(ctx, optionalArg(args))
		},
	}
}
