package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v2"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider.APIKey != "${OPENAI_API_KEY}" {
		t.Error("expected OpenAI API key placeholder")
	}
	if cfg.Extraction.MaxInputBytes != 512*1024 || cfg.Extraction.PreviewChars != 500 {
		t.Errorf("unexpected extraction defaults: %+v", cfg.Extraction)
	}
}

func TestDefaultEntries(t *testing.T) {
	requiredKeys := []string{
		"provider.base_url",
		"provider.model",
		"provider.vision_model",
		"provider.api_key",
		"provider.temperature",
		"provider.max_tokens",
		"provider.rate_limit",
		"provider.max_retries",
		"provider.timeout_seconds",
		"provider.structured_output",
		"extraction.max_input_bytes",
		"extraction.preview_chars",
		"logging.level",
		"watch.inbox",
		"watch.poll_existing",
	}

	keys := make(map[string]bool)
	for _, e := range DefaultEntries() {
		if e.Description == "" {
			t.Errorf("key %s has no description", e.Key)
		}
		keys[e.Key] = true
	}
	for _, key := range requiredKeys {
		if !keys[key] {
			t.Errorf("DefaultEntries() missing required key: %s", key)
		}
	}

	t.Run("GetDefault", func(t *testing.T) {
		entry := GetDefault("provider.model")
		if entry == nil || entry.Value != "gpt-4o" {
			t.Errorf("GetDefault() = %+v, want gpt-4o", entry)
		}
		if GetDefault("does.not.exist") != nil {
			t.Error("GetDefault() should be nil for unknown key")
		}
	})
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestConversions(t *testing.T) {
	t.Setenv("TEST_EXAMSCAN_KEY", "sk-test")

	cfg := DefaultConfig()
	cfg.Provider.APIKey = "${TEST_EXAMSCAN_KEY}"
	cfg.Provider.BaseURL = "http://localhost:8080/v1"

	oc := cfg.OpenAIConfig()
	if oc.APIKey != "sk-test" || oc.BaseURL != "http://localhost:8080/v1" || oc.Timeout != 120*time.Second {
		t.Errorf("unexpected OpenAI config: %+v", oc)
	}
	if oc.MaxRetries != 0 {
		t.Error("transport retries should stay off")
	}

	if rc := cfg.RetryConfig(nil); rc.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", rc.Attempts)
	}
	cfg.Provider.MaxRetries = -3
	if rc := cfg.RetryConfig(nil); rc.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", rc.Attempts)
	}

	ec := cfg.ExtractConfig(nil)
	if ec.MaxInputBytes != cfg.Extraction.MaxInputBytes || ec.PreviewChars != cfg.Extraction.PreviewChars {
		t.Errorf("unexpected extract config: %+v", ec)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
provider:
  model: "test-model"
extraction:
  preview_chars: 42
`)
		mgr, err := NewManager(configFile, quietLogger())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Provider.Model != "test-model" {
			t.Errorf("expected test-model, got %s", cfg.Provider.Model)
		}
		if cfg.Extraction.PreviewChars != 42 {
			t.Errorf("expected 42, got %d", cfg.Extraction.PreviewChars)
		}
		// Unset keys keep defaults
		if cfg.Provider.VisionModel != "gpt-4o" || cfg.Extraction.MaxInputBytes != 512*1024 {
			t.Errorf("defaults not applied: %+v", cfg)
		}
		if mgr.ConfigFile() != configFile {
			t.Errorf("ConfigFile() = %q, want %q", mgr.ConfigFile(), configFile)
		}
	})

	t.Run("missing file in search dirs uses defaults", func(t *testing.T) {
		mgr, err := NewManager("", quietLogger(), t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if mgr.Get().Logging.Level != "info" {
			t.Errorf("expected default log level, got %q", mgr.Get().Logging.Level)
		}
	})

	t.Run("explicit file that does not parse", func(t *testing.T) {
		configFile := writeConfig(t, "provider: [unclosed\n")
		if _, err := NewManager(configFile, quietLogger()); err == nil {
			t.Error("expected error for malformed config file")
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("EXAMSCAN_PROVIDER_MODEL", "env-model")
		configFile := writeConfig(t, "provider:\n  model: file-model\n")

		mgr, err := NewManager(configFile, quietLogger())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Provider.Model; got != "env-model" {
			t.Errorf("expected env-model, got %s", got)
		}
	})
}

func TestManager_Lookup(t *testing.T) {
	configFile := writeConfig(t, "logging:\n  level: debug\n")
	mgr, err := NewManager(configFile, quietLogger())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	entry, err := mgr.Lookup("logging.level")
	if err != nil || entry.Value != "debug" {
		t.Errorf("Lookup() = %+v, %v", entry, err)
	}
	if _, err := mgr.Lookup("nope"); !errors.Is(err, ErrNoDefault) {
		t.Errorf("Lookup(unknown) error = %v, want ErrNoDefault", err)
	}
	if got := len(mgr.Values()); got != len(DefaultEntries()) {
		t.Errorf("Values() returned %d entries, want %d", got, len(DefaultEntries()))
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "logging:\n  level: info\n"), quietLogger())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	// Register multiple callbacks
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "logging:\n  level: info\n"), quietLogger())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	// Call Get concurrently to verify no race conditions
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Logging.Level
			}
			done <- struct{}{}
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, `
extraction:
  preview_chars: 100
`)
	mgr, err := NewManager(configFile, quietLogger())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if got := mgr.Get().Extraction.PreviewChars; got != 100 {
		t.Errorf("initial value mismatch: expected 100, got %d", got)
	}

	// Track callback invocations
	var callbackCount atomic.Int32
	var lastValue atomic.Int64

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(int64(cfg.Extraction.PreviewChars))
	})

	// Start watching
	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	newContent := `
extraction:
  preview_chars: 200
`
	if err := os.WriteFile(configFile, []byte(newContent), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lastValue.Load() == 200 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Extraction.PreviewChars; got != 200 {
		t.Errorf("config not updated: expected 200, got %d", got)
	}
	if v := lastValue.Load(); v != 200 {
		t.Errorf("callback received wrong value: expected 200, got %d", v)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not YAML: %v", err)
	}
	if cfg.Provider.Model != DefaultConfig().Provider.Model {
		t.Errorf("unexpected model %q", cfg.Provider.Model)
	}

	mgr, err := NewManager(path, quietLogger())
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if mgr.Get().Provider.APIKey != "${OPENAI_API_KEY}" {
		t.Errorf("API key placeholder lost: %q", mgr.Get().Provider.APIKey)
	}
}
