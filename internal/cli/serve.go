package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/switchboard/internal/adapters/console"
	"github.com/example/switchboard/internal/observability"
	"github.com/example/switchboard/internal/ports/secondary"
	"github.com/example/switchboard/internal/wire"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	var (
		plain   bool
		logFile string
		noPoll  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll every source and open the operator console",
		Long: `Run the pollers and the send retry loop, and open the operator console.
The console is a full-screen TUI on a terminal; --plain (or a non-terminal
stdin) falls back to a line-oriented prompt. Stopping serve in ephemeral
mode discards every message.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := wire.LoadConfig()
			if err != nil {
				return err
			}

			// the TUI owns the terminal, so logs go to a file
			logOut := io.Writer(os.Stderr)
			if logFile == "" {
				logFile = cfg.Logging.File
			}
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			tui := !plain && isatty.IsTerminal(os.Stdin.Fd())
			if tui && logFile == "" {
				logOut = io.Discard
			}
			logger := observability.Configure(observability.Options{
				Format: cfg.Logging.Format,
				Level:  cfg.Logging.Level,
				Output: logOut,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := wire.Build(ctx, cfg, wire.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer c.Close()

			report, err := c.Engine.Recover(ctx)
			if err != nil {
				return fmt.Errorf("failed to recover: %w", err)
			}
			logger.Info("switchboard started",
				"mode", cfg.Store.Mode,
				"sources", len(cfg.Sources),
				"queued", report.QueuedRemaining,
				"active", report.ActiveID,
				"failed_drafts", len(report.FailedDrafts),
				"pending_sends", len(report.PendingSends))

			front := func(ctx context.Context, surface *console.Surface, notes <-chan secondary.Notification) error {
				if tui {
					return console.RunTUI(ctx, surface, notes)
				}
				return console.RunLines(ctx, surface, cmd.InOrStdin(), cmd.OutOrStdout(), notes)
			}
			return serve(ctx, c, front, !noPoll)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "use the line prompt instead of the TUI")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	cmd.Flags().BoolVar(&noPoll, "no-poll", false, "do not poll sources (work the existing queue)")
	return cmd
}

// frontEnd runs the operator surface until the operator leaves.
type frontEnd func(ctx context.Context, surface *console.Surface, notes <-chan secondary.Notification) error

// serve runs the pollers, the retry loop and the front end together. The
// first to stop with an error stops the others; the front end returning
// normally ends the whole run.
func serve(ctx context.Context, c *wire.Components, front frontEnd, poll bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if poll {
		g.Go(func() error {
			return c.Poller.Run(gctx)
		})
	}
	g.Go(func() error {
		return c.Dispatcher.RunRetryLoop(gctx, c.Config.Dispatch.RetryTick.D())
	})
	g.Go(func() error {
		defer cancel()
		return front(gctx, c.Surface(), c.Notifications.C())
	})
	return g.Wait()
}
