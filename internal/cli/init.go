package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/switchboard/internal/adapters/notify"
	"github.com/example/switchboard/internal/adapters/sqlite"
	"github.com/example/switchboard/internal/config"
	"github.com/example/switchboard/internal/db"
	"github.com/example/switchboard/internal/wire"
)

type initOptions struct {
	force bool
	seed  bool
	reset bool
}

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and prepare the durable store",
		Long: `Write ~/.switchboard/config.yaml (or --config) with defaults when it does not
exist yet. In durable SQLite mode the database is created or migrated, and
--seed fills it with a few development messages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := wire.ConfigPath()
			if err != nil {
				return err
			}
			return runInit(cmd.Context(), cmd.OutOrStdout(), path, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing config file")
	cmd.Flags().BoolVar(&opts.seed, "seed", false, "insert development messages into the durable store")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "delete every message from the durable store")
	return cmd
}

func runInit(ctx context.Context, out io.Writer, path string, opts initOptions) error {
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if exists && !opts.force {
		fmt.Fprintf(out, "Config already exists at %s\n", path)
	} else {
		if err := config.Save(path, config.Default()); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote default config to %s\n", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if cfg.Store.Mode != config.ModeDurable || cfg.Store.Backend != config.BackendSQLite {
		if opts.seed || opts.reset {
			return errors.New("--seed and --reset need store.mode: durable with the sqlite backend")
		}
		printNextSteps(out, cfg, "switchboard serve")
		return nil
	}

	dbPath := cfg.Store.Path
	if dbPath == "" {
		if dbPath, err = db.DefaultPath(); err != nil {
			return err
		}
	}
	database, err := db.Open(cfg.Store.SQLiteDriver, dbPath)
	if err != nil {
		return err
	}
	defer database.Close()
	fmt.Fprintf(out, "✓ Database ready at %s\n", dbPath)

	if opts.reset {
		if err := sqlite.NewMessageRepository(database).Clear(ctx); err != nil {
			return fmt.Errorf("failed to reset store: %w", err)
		}
		fmt.Fprintln(out, "✓ Store cleared")
	}
	if opts.seed {
		if err := db.SeedFixtures(database); err != nil {
			return fmt.Errorf("failed to seed store (try --reset): %w", err)
		}
		fmt.Fprintln(out, "✓ Seeded development messages")
	}

	printNextSteps(out, cfg, "switchboard queue list", "switchboard serve")
	return nil
}

func printNextSteps(out io.Writer, cfg *config.Config, steps ...string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	for _, step := range steps {
		fmt.Fprintf(out, "  %s\n", step)
	}
	if cfg.Notify.TmuxSession != "" {
		fmt.Fprintln(out)
		fmt.Fprint(out, notify.AttachInstructions(cfg.Notify.TmuxSession))
	}
}
