// Package config loads the switchboard configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store modes.
const (
	ModeEphemeral = "ephemeral" // memory store, discarded at stop
	ModeDurable   = "durable"
)

// Durable store backends.
const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// Source kinds.
const (
	SourceSimulated = "simulated"
	SourceSpool     = "spool"
)

// Drafting providers.
const (
	ProviderMock   = "mock"
	ProviderGemini = "gemini"
)

// Config is the whole configuration file.
type Config struct {
	Store        StoreConfig    `yaml:"store"`
	Drafting     DraftingConfig `yaml:"drafting"`
	Style        StyleConfig    `yaml:"style"`
	ProfilesFile string         `yaml:"profiles_file,omitempty"`
	Dispatch     DispatchConfig `yaml:"dispatch"`
	Sources      []SourceConfig `yaml:"sources"`
	Notify       NotifyConfig   `yaml:"notify"`
	Logging      LoggingConfig  `yaml:"logging"`
}

// StoreConfig selects where messages live.
type StoreConfig struct {
	Mode             string `yaml:"mode"`
	Backend          string `yaml:"backend,omitempty"`
	SQLiteDriver     string `yaml:"sqlite_driver,omitempty"` // sqlite3 (cgo) or sqlite (pure Go)
	Path             string `yaml:"path,omitempty"`
	FirestoreProject string `yaml:"firestore_project,omitempty"`
	FirestorePrefix  string `yaml:"firestore_prefix,omitempty"`
}

// DraftingConfig configures the drafting service.
type DraftingConfig struct {
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model,omitempty"`
	APIKey       string   `yaml:"api_key,omitempty"`
	Project      string   `yaml:"project,omitempty"`
	Location     string   `yaml:"location,omitempty"`
	Timeout      Duration `yaml:"timeout"`
	HistoryTurns int      `yaml:"history_turns"`
	MaxLength    int      `yaml:"max_length"`
}

// StyleConfig is the operator's writing style.
type StyleConfig struct {
	WritingStyle      string   `yaml:"writing_style"`
	PersonalityTraits []string `yaml:"personality_traits,omitempty"`
	Interests         []string `yaml:"interests,omitempty"`
	ResponseRules     []string `yaml:"response_rules,omitempty"`
}

// DispatchConfig bounds send retries.
type DispatchConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseBackoff Duration `yaml:"base_backoff"`
	MaxBackoff  Duration `yaml:"max_backoff"`
	Timeout     Duration `yaml:"timeout"`
	RetryTick   Duration `yaml:"retry_tick"`
}

// SourceConfig registers one source.
type SourceConfig struct {
	ID            string   `yaml:"id"`
	Kind          string   `yaml:"kind"`
	Interval      Duration `yaml:"interval"`
	ErrorInterval Duration `yaml:"error_interval,omitempty"`
	CanPoll       *bool    `yaml:"can_poll,omitempty"`
	CanSend       *bool    `yaml:"can_send,omitempty"`

	// simulated
	Seed            uint64   `yaml:"seed,omitempty"`
	Probability     float64  `yaml:"probability,omitempty"`
	Slot            Duration `yaml:"slot,omitempty"`
	SendFailureRate float64  `yaml:"send_failure_rate,omitempty"`

	// spool
	Inbox  string `yaml:"inbox,omitempty"`
	Outbox string `yaml:"outbox,omitempty"`
}

// Polls reports whether the source is polled. Defaults to true.
func (s SourceConfig) Polls() bool {
	return s.CanPoll == nil || *s.CanPoll
}

// Sends reports whether the source accepts replies. Defaults to true.
func (s SourceConfig) Sends() bool {
	return s.CanSend == nil || *s.CanSend
}

// NotifyConfig configures operator notifications besides the console.
type NotifyConfig struct {
	TmuxSession string `yaml:"tmux_session,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Format string `yaml:"format"` // text or json
	Level  string `yaml:"level"`
	File   string `yaml:"file,omitempty"`
}

// Duration is a time.Duration written as "30s" in YAML.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// MarshalYAML writes the duration in Go notation.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts "1m30s" style strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns a configuration that runs the five simulated sources
// against the ephemeral store with the mock drafting service.
func Default() *Config {
	cfg := &Config{
		Store: StoreConfig{
			Mode:         ModeEphemeral,
			Backend:      BackendSQLite,
			SQLiteDriver: "sqlite3",
		},
		Drafting: DraftingConfig{
			Provider:     ProviderMock,
			Model:        "gemini-2.5-flash",
			Location:     "us-central1",
			Timeout:      Duration(30 * time.Second),
			HistoryTurns: 6,
			MaxLength:    500,
		},
		Style: StyleConfig{
			WritingStyle:      "friendly and professional",
			PersonalityTraits: []string{"helpful", "concise"},
			ResponseRules:     []string{"keep replies short", "never promise dates"},
		},
		Dispatch: DispatchConfig{
			MaxAttempts: 3,
			BaseBackoff: Duration(5 * time.Second),
			MaxBackoff:  Duration(2 * time.Minute),
			Timeout:     Duration(30 * time.Second),
			RetryTick:   Duration(time.Second),
		},
		Logging: LoggingConfig{Format: "text", Level: "info"},
	}
	for i, id := range []string{"linkedin", "gmail", "telegram", "facebook", "instagram"} {
		cfg.Sources = append(cfg.Sources, SourceConfig{
			ID:            id,
			Kind:          SourceSimulated,
			Interval:      Duration(30 * time.Second),
			ErrorInterval: Duration(60 * time.Second),
			Seed:          uint64(i + 1),
		})
	}
	return cfg
}

// DefaultPath returns ~/.switchboard/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".switchboard", "config.yaml"), nil
}

// Load reads the configuration at path on top of Default and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		// sources from the file replace the defaults rather than merging
		cfg.Sources = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if cfg.Sources == nil {
			cfg.Sources = Default().Sources
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnv overlays SWITCHBOARD_* variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := map[string]*string{
		"SWITCHBOARD_MODE":              &c.Store.Mode,
		"SWITCHBOARD_STORE_BACKEND":     &c.Store.Backend,
		"SWITCHBOARD_SQLITE_DRIVER":     &c.Store.SQLiteDriver,
		"SWITCHBOARD_DB_PATH":           &c.Store.Path,
		"SWITCHBOARD_FIRESTORE_PROJECT": &c.Store.FirestoreProject,
		"SWITCHBOARD_DRAFTING_PROVIDER": &c.Drafting.Provider,
		"SWITCHBOARD_GEMINI_API_KEY":    &c.Drafting.APIKey,
		"SWITCHBOARD_GEMINI_MODEL":      &c.Drafting.Model,
		"SWITCHBOARD_GCP_PROJECT":       &c.Drafting.Project,
		"SWITCHBOARD_GCP_LOCATION":      &c.Drafting.Location,
		"SWITCHBOARD_PROFILES_FILE":     &c.ProfilesFile,
		"SWITCHBOARD_TMUX_SESSION":      &c.Notify.TmuxSession,
		"SWITCHBOARD_LOG_FORMAT":        &c.Logging.Format,
		"SWITCHBOARD_LOG_LEVEL":         &c.Logging.Level,
	}
	for key, dst := range str {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("SWITCHBOARD_MAX_SEND_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SWITCHBOARD_MAX_SEND_ATTEMPTS: %w", err)
		}
		c.Dispatch.MaxAttempts = n
	}
	if v := getenv("SWITCHBOARD_DRAFTING_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SWITCHBOARD_DRAFTING_TIMEOUT: %w", err)
		}
		c.Drafting.Timeout = Duration(d)
	}
	return nil
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Store.Mode {
	case ModeEphemeral:
	case ModeDurable:
		switch c.Store.Backend {
		case BackendSQLite:
			if d := c.Store.SQLiteDriver; d != "sqlite3" && d != "sqlite" {
				add("store.sqlite_driver must be sqlite3 or sqlite, got %q", d)
			}
		case BackendFirestore:
			if c.Store.FirestoreProject == "" {
				add("store.firestore_project is required for the firestore backend")
			}
		default:
			add("store.backend must be %s or %s, got %q", BackendSQLite, BackendFirestore, c.Store.Backend)
		}
	default:
		add("store.mode must be %s or %s, got %q", ModeEphemeral, ModeDurable, c.Store.Mode)
	}

	switch c.Drafting.Provider {
	case ProviderMock:
	case ProviderGemini:
		if c.Drafting.APIKey == "" && c.Drafting.Project == "" {
			add("drafting: gemini needs api_key or project")
		}
	default:
		add("drafting.provider must be %s or %s, got %q", ProviderMock, ProviderGemini, c.Drafting.Provider)
	}
	if c.Drafting.Timeout <= 0 {
		add("drafting.timeout must be positive")
	}
	if c.Drafting.HistoryTurns < 0 {
		add("drafting.history_turns must not be negative")
	}

	if c.Dispatch.MaxAttempts < 1 {
		add("dispatch.max_attempts must be at least 1")
	}
	if c.Dispatch.BaseBackoff <= 0 || c.Dispatch.MaxBackoff < c.Dispatch.BaseBackoff {
		add("dispatch: need 0 < base_backoff <= max_backoff")
	}
	if c.Dispatch.RetryTick <= 0 {
		add("dispatch.retry_tick must be positive")
	}

	seen := make(map[string]bool)
	for i, s := range c.Sources {
		label := s.ID
		if label == "" {
			label = "#" + strconv.Itoa(i)
			add("sources[%d]: id is required", i)
		}
		if seen[s.ID] {
			add("source %s: duplicate id", label)
		}
		seen[s.ID] = true

		switch s.Kind {
		case SourceSimulated:
			if s.Probability < 0 || s.Probability > 1 || s.SendFailureRate < 0 || s.SendFailureRate > 1 {
				add("source %s: probabilities must be within [0, 1]", label)
			}
		case SourceSpool:
			if s.Inbox == "" && s.Polls() {
				add("source %s: spool inbox is required", label)
			}
			if s.Outbox == "" && s.Sends() {
				add("source %s: spool outbox is required", label)
			}
		default:
			add("source %s: kind must be %s or %s, got %q", label, SourceSimulated, SourceSpool, s.Kind)
		}
		if s.Polls() && s.Interval <= 0 {
			add("source %s: interval must be positive", label)
		}
	}

	if f := strings.ToLower(c.Logging.Format); f != "" && f != "text" && f != "json" {
		add("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return errors.Join(errs...)
}
