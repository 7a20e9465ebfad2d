// Package cli implements the switchboard command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/switchboard/internal/version"
	"github.com/example/switchboard/internal/wire"
)

// RootCmd returns the switchboard root command with every subcommand attached.
func RootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "switchboard",
		Short:   "Switchboard - one review queue for every inbox",
		Version: version.String(),
		Long: `Switchboard collects incoming messages from several sources into a single
review queue. Each message is decided, drafted, reviewed and sent back to
where it came from, one at a time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				wire.SetConfigPath(configPath)
			}
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return wire.Shutdown()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.switchboard/config.yaml)")

	root.AddCommand(InitCmd())
	root.AddCommand(ServeCmd())
	root.AddCommand(QueueCmd())
	root.AddCommand(NextCmd())
	root.AddCommand(DecideCmd())
	root.AddCommand(ReviewCmd())
	root.AddCommand(FeedbackCmd())
	root.AddCommand(ManualCmd())
	root.AddCommand(ResendCmd())
	root.AddCommand(HistoryCmd())
	root.AddCommand(PollCmd())
	root.AddCommand(SourcesCmd())

	return root
}
