package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Sources) != 5 {
		t.Errorf("expected 5 default sources, got %d", len(cfg.Sources))
	}
	if cfg.Store.Mode != ModeEphemeral {
		t.Errorf("expected ephemeral default, got %s", cfg.Store.Mode)
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".switchboard", "config.yaml")

	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Drafting.Provider != ProviderMock {
		t.Errorf("expected defaults, got provider %s", cfg.Drafting.Provider)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
store:
  mode: durable
  backend: sqlite
  sqlite_driver: sqlite
  path: /tmp/sb.db
drafting:
  provider: mock
  timeout: 10s
  history_turns: 3
  max_length: 200
dispatch:
  max_attempts: 5
  base_backoff: 1s
  max_backoff: 30s
  timeout: 5s
  retry_tick: 500ms
sources:
  - id: support
    kind: spool
    interval: 15s
    inbox: /tmp/in
    outbox: /tmp/out
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Store.Mode != ModeDurable || cfg.Store.SQLiteDriver != "sqlite" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Drafting.Timeout.D() != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.Drafting.Timeout.D())
	}
	if cfg.Dispatch.RetryTick.D() != 500*time.Millisecond {
		t.Errorf("expected 500ms retry tick, got %v", cfg.Dispatch.RetryTick.D())
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].ID != "support" {
		t.Errorf("expected file sources to replace defaults, got %+v", cfg.Sources)
	}
	// style was not in the file and keeps its default
	if cfg.Style.WritingStyle == "" {
		t.Error("expected default style to survive")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("drafting:\n  timeout: soon\n"), 0644)

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Store.Mode = ModeDurable
	cfg.Notify.TmuxSession = "ops"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Store.Mode != ModeDurable || loaded.Notify.TmuxSession != "ops" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if loaded.Dispatch.BaseBackoff != cfg.Dispatch.BaseBackoff {
		t.Errorf("expected base backoff %v, got %v", cfg.Dispatch.BaseBackoff.D(), loaded.Dispatch.BaseBackoff.D())
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SWITCHBOARD_MODE":              "durable",
		"SWITCHBOARD_DB_PATH":           "/data/sb.db",
		"SWITCHBOARD_GEMINI_API_KEY":    "key",
		"SWITCHBOARD_DRAFTING_PROVIDER": "gemini",
		"SWITCHBOARD_MAX_SEND_ATTEMPTS": "7",
		"SWITCHBOARD_DRAFTING_TIMEOUT":  "45s",
	}
	cfg := Default()
	if err := cfg.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}

	if cfg.Store.Mode != ModeDurable || cfg.Store.Path != "/data/sb.db" {
		t.Errorf("store overrides not applied: %+v", cfg.Store)
	}
	if cfg.Drafting.Provider != ProviderGemini || cfg.Drafting.APIKey != "key" {
		t.Errorf("drafting overrides not applied: %+v", cfg.Drafting)
	}
	if cfg.Dispatch.MaxAttempts != 7 || cfg.Drafting.Timeout.D() != 45*time.Second {
		t.Errorf("numeric overrides not applied")
	}

	bad := Default()
	if err := bad.applyEnv(func(k string) string {
		if k == "SWITCHBOARD_MAX_SEND_ATTEMPTS" {
			return "many"
		}
		return ""
	}); err == nil {
		t.Error("expected error for non-numeric attempts")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "bad mode", mutate: func(c *Config) { c.Store.Mode = "forever" }, wantErr: "store.mode"},
		{name: "bad driver", mutate: func(c *Config) { c.Store.Mode = ModeDurable; c.Store.SQLiteDriver = "pg" }, wantErr: "sqlite_driver"},
		{name: "firestore without project", mutate: func(c *Config) { c.Store.Mode = ModeDurable; c.Store.Backend = BackendFirestore }, wantErr: "firestore_project"},
		{name: "gemini without credentials", mutate: func(c *Config) { c.Drafting.Provider = ProviderGemini }, wantErr: "api_key or project"},
		{name: "zero attempts", mutate: func(c *Config) { c.Dispatch.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "backoff order", mutate: func(c *Config) { c.Dispatch.MaxBackoff = Duration(time.Second) }, wantErr: "base_backoff"},
		{name: "duplicate source", mutate: func(c *Config) { c.Sources = append(c.Sources, c.Sources[0]) }, wantErr: "duplicate id"},
		{name: "unknown kind", mutate: func(c *Config) { c.Sources[0].Kind = "carrier-pigeon" }, wantErr: "kind must be"},
		{name: "spool without inbox", mutate: func(c *Config) { c.Sources[0].Kind = SourceSpool; c.Sources[0].Outbox = "/out" }, wantErr: "inbox"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Store.Mode = "x"
	cfg.Drafting.Provider = "y"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "store.mode") || !strings.Contains(err.Error(), "drafting.provider") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}

func TestSourceConfig_Capabilities(t *testing.T) {
	no := false
	s := SourceConfig{CanSend: &no}
	if !s.Polls() || s.Sends() {
		t.Errorf("expected polls=true sends=false, got %v %v", s.Polls(), s.Sends())
	}
}
