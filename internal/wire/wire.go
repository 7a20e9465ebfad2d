// Package wire provides dependency injection for the switchboard application.
// It builds the stores, adapters and services described by the configuration,
// and keeps a lazily-initialized singleton for the CLI.
package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	cliadapter "github.com/example/switchboard/internal/adapters/cli"
	"github.com/example/switchboard/internal/adapters/console"
	"github.com/example/switchboard/internal/adapters/drafting"
	fsadapter "github.com/example/switchboard/internal/adapters/firestore"
	"github.com/example/switchboard/internal/adapters/memory"
	"github.com/example/switchboard/internal/adapters/notify"
	"github.com/example/switchboard/internal/adapters/profiles"
	"github.com/example/switchboard/internal/adapters/source"
	"github.com/example/switchboard/internal/adapters/sqlite"
	"github.com/example/switchboard/internal/app"
	"github.com/example/switchboard/internal/config"
	"github.com/example/switchboard/internal/core/dispatch"
	"github.com/example/switchboard/internal/core/draft"
	"github.com/example/switchboard/internal/db"
	"github.com/example/switchboard/internal/observability"
	"github.com/example/switchboard/internal/ports/secondary"
)

// ErrEphemeralOneShot is returned when a one-shot command runs against the
// ephemeral store, which only lives inside a running serve process.
var ErrEphemeralOneShot = errors.New("the ephemeral store only exists inside 'switchboard serve' - set store.mode: durable to use one-shot commands")

// Components is the assembled application.
type Components struct {
	Config        *config.Config
	Logger        *slog.Logger
	Registry      *app.Registry
	Engine        *app.LifecycleEngine
	Dispatcher    *app.Dispatcher
	Poller        *app.Poller
	Notifications *notify.ChannelNotifier

	closers []func() error
}

// Options adjusts Build for tests and alternate front ends.
type Options struct {
	// Notifiers receive every notification besides the console channel.
	Notifiers []secondary.Notifier
	// NotificationBuffer sizes the console channel.
	NotificationBuffer int
	Logger             *slog.Logger
}

type stores struct {
	messages      secondary.MessageRepository
	conversations secondary.ConversationRepository
	events        secondary.EventRepository
	closers       []func() error
}

// Build assembles every component from cfg.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.Logger()
	}

	st, err := buildStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c := &Components{Config: cfg, Logger: logger, closers: st.closers}

	fail := func(err error) (*Components, error) {
		c.Close()
		return nil, err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return fail(err)
	}
	c.Registry = registry

	service, err := buildDrafting(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	var profileRepo secondary.ProfileRepository
	if cfg.ProfilesFile != "" {
		p, err := profiles.LoadYAML(cfg.ProfilesFile)
		if err != nil {
			return fail(err)
		}
		profileRepo = p
	}

	buffer := opts.NotificationBuffer
	if buffer <= 0 {
		buffer = 64
	}
	c.Notifications = notify.NewChannelNotifier(buffer)
	notifiers := notify.Multi{c.Notifications}
	notifiers = append(notifiers, opts.Notifiers...)
	if session := cfg.Notify.TmuxSession; session != "" {
		tn, err := notify.NewTmuxNotifier(session)
		if err != nil {
			logger.Warn("tmux notifications disabled", "session", session, "error", err)
		} else {
			notifiers = append(notifiers, tn)
		}
	}

	executor := app.NewEffectExecutor(notifiers, sqlite.NewLogWriterAdapter(st.events), logger)

	drafter := app.NewDraftingOrchestrator(st.messages, st.conversations, profileRepo, service, app.DraftingOptions{
		Timeout:      cfg.Drafting.Timeout.D(),
		HistoryTurns: cfg.Drafting.HistoryTurns,
		MaxLength:    cfg.Drafting.MaxLength,
		Style: draft.StyleProfile{
			WritingStyle:      cfg.Style.WritingStyle,
			PersonalityTraits: cfg.Style.PersonalityTraits,
			Interests:         cfg.Style.Interests,
			ResponseRules:     cfg.Style.ResponseRules,
		},
	}, logger)

	c.Engine = app.NewLifecycleEngine(app.LifecycleDeps{
		Messages:      st.messages,
		Conversations: st.conversations,
		Events:        st.events,
		Drafter:       drafter,
		Executor:      executor,
		Logger:        logger,
	})

	c.Dispatcher = app.NewDispatcher(st.messages, registry, c.Engine, executor, dispatch.RetryPolicy{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseDelay:   cfg.Dispatch.BaseBackoff.D(),
		MaxDelay:    cfg.Dispatch.MaxBackoff.D(),
	}, cfg.Dispatch.Timeout.D(), logger)
	c.Engine.SetSender(c.Dispatcher)

	c.Poller = app.NewPoller(registry, c.Engine, cfg.Dispatch.Timeout.D(), logger)
	return c, nil
}

func buildStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Store.Mode == config.ModeEphemeral {
		messages := memory.NewMessageStore()
		conversations := memory.NewConversationStore()
		events := memory.NewEventStore()
		// local mode forgets everything at stop
		discard := func() error {
			messages.Clear()
			conversations.Clear()
			events.Clear()
			return nil
		}
		return &stores{messages: messages, conversations: conversations, events: events, closers: []func() error{discard}}, nil
	}

	switch cfg.Store.Backend {
	case config.BackendFirestore:
		client, err := fsadapter.NewClient(ctx, cfg.Store.FirestoreProject, cfg.Store.FirestorePrefix)
		if err != nil {
			return nil, err
		}
		return &stores{
			messages:      fsadapter.NewMessageStore(client),
			conversations: fsadapter.NewConversationStore(client),
			events:        fsadapter.NewEventStore(client),
			closers:       []func() error{client.Close},
		}, nil

	default:
		path := cfg.Store.Path
		if path == "" {
			p, err := db.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		database, err := db.Open(cfg.Store.SQLiteDriver, path)
		if err != nil {
			return nil, err
		}
		return &stores{
			messages:      sqlite.NewMessageRepository(database),
			conversations: sqlite.NewConversationRepository(database),
			events:        sqlite.NewEventRepository(database),
			closers:       []func() error{database.Close},
		}, nil
	}
}

func buildRegistry(cfg *config.Config) (*app.Registry, error) {
	descs := make([]app.SourceDescriptor, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		var (
			adapter secondary.SourceAdapter
			err     error
		)
		switch sc.Kind {
		case config.SourceSpool:
			adapter, err = source.NewSpool(sc.ID, sc.Inbox, sc.Outbox)
		default:
			adapter, err = source.NewSimulated(sc.ID, source.SimulatedOptions{
				Seed:            sc.Seed,
				Probability:     sc.Probability,
				Slot:            sc.Slot.D(),
				SendFailureRate: sc.SendFailureRate,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create source %s: %w", sc.ID, err)
		}
		descs = append(descs, app.SourceDescriptor{
			SourceID:      sc.ID,
			Kind:          sc.Kind,
			CanPoll:       sc.Polls(),
			CanSend:       sc.Sends(),
			Interval:      sc.Interval.D(),
			ErrorInterval: sc.ErrorInterval.D(),
			Adapter:       adapter,
		})
	}
	return app.NewRegistry(descs...)
}

func buildDrafting(ctx context.Context, cfg *config.Config) (secondary.DraftingService, error) {
	if cfg.Drafting.Provider == config.ProviderGemini {
		return drafting.NewGeminiService(ctx, drafting.GeminiOptions{
			APIKey:   cfg.Drafting.APIKey,
			Project:  cfg.Drafting.Project,
			Location: cfg.Drafting.Location,
			Model:    cfg.Drafting.Model,
		})
	}
	return drafting.NewMockService(0), nil
}

// Surface returns the console surface over the engine.
func (c *Components) Surface() *console.Surface {
	return console.NewSurface(c.Engine)
}

// Close stops background jobs and releases the stores. In ephemeral mode
// this also discards every message.
func (c *Components) Close() error {
	if c.Engine != nil {
		c.Engine.Close()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// ============================================================================
// CLI singleton
// ============================================================================

var (
	configPath string
	components *Components
	initErr    error
	once       sync.Once
)

// SetConfigPath selects the configuration file. It must be called before
// the first accessor.
func SetConfigPath(path string) {
	configPath = path
}

// ConfigPath returns the selected or default configuration path.
func ConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// LoadConfig loads the selected configuration file.
func LoadConfig() (*config.Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// initComponents builds the singleton. This is called once via sync.Once.
func initComponents() {
	cfg, err := LoadConfig()
	if err != nil {
		initErr = err
		return
	}
	observability.Configure(observability.Options{Format: cfg.Logging.Format, Level: cfg.Logging.Level})
	ctx := context.Background()
	components, initErr = Build(ctx, cfg, Options{})
	if initErr != nil || cfg.Store.Mode != config.ModeDurable {
		return
	}
	// one-shot commands pick up the active message left by an earlier run
	if _, err := components.Engine.Recover(ctx); err != nil {
		initErr = fmt.Errorf("failed to recover: %w", err)
	}
}

// Get returns the singleton Components.
func Get() (*Components, error) {
	once.Do(initComponents)
	return components, initErr
}

// GetDurable returns the singleton, refusing the ephemeral store.
func GetDurable() (*Components, error) {
	c, err := Get()
	if err != nil {
		return nil, err
	}
	if c.Config.Store.Mode == config.ModeEphemeral {
		return nil, ErrEphemeralOneShot
	}
	return c, nil
}

// Shutdown waits for background work started by one-shot commands and
// releases the singleton, if it was built.
func Shutdown() error {
	if components == nil {
		return nil
	}
	components.Engine.Wait()
	return components.Close()
}

// MessageAdapter returns a new MessageAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func MessageAdapter() (*cliadapter.MessageAdapter, error) {
	return MessageAdapterWithOutput(os.Stdout)
}

// MessageAdapterWithOutput returns a new MessageAdapter writing to the given output.
func MessageAdapterWithOutput(out io.Writer) (*cliadapter.MessageAdapter, error) {
	c, err := GetDurable()
	if err != nil {
		return nil, err
	}
	return cliadapter.NewMessageAdapter(c.Engine, out), nil
}

// SourceAdapter returns a new SourceAdapter writing to stdout.
func SourceAdapter() (*cliadapter.SourceAdapter, error) {
	return SourceAdapterWithOutput(os.Stdout)
}

// SourceAdapterWithOutput returns a new SourceAdapter writing to the given output.
func SourceAdapterWithOutput(out io.Writer) (*cliadapter.SourceAdapter, error) {
	c, err := Get()
	if err != nil {
		return nil, err
	}
	return cliadapter.NewSourceAdapter(c.Poller, out), nil
}
