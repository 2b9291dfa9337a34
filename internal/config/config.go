package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/examscan/internal/extract"
	"github.com/jackzampolin/examscan/internal/providers"
)

// EnvPrefix prefixes environment overrides: EXAMSCAN_PROVIDER_MODEL
// overrides provider.model.
const EnvPrefix = "EXAMSCAN"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	logger    *slog.Logger
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml then searchDirs.
func NewManager(cfgFile string, logger *slog.Logger, searchDirs ...string) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cm := &Manager{
		v:         viper.New(),
		logger:    logger,
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile, searchDirs); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string, searchDirs []string) error {
	for _, entry := range DefaultEntries() {
		cm.v.SetDefault(entry.Key, entry.Value)
	}

	// Environment variables with EXAMSCAN_ prefix
	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		for _, dir := range searchDirs {
			cm.v.AddConfigPath(dir)
		}
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the configuration was read from, or empty
// when only defaults and environment are in effect.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. A reload that fails
// to parse keeps the previous configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.logger.Warn("config reload failed, keeping previous", "file", e.Name, "error", err)
			return
		}
		cm.logger.Info("config reloaded", "file", e.Name)

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// Values returns every known key with its effective value.
func (cm *Manager) Values() []Entry {
	defaults := DefaultEntries()
	out := make([]Entry, 0, len(defaults))
	for _, d := range defaults {
		out = append(out, Entry{Key: d.Key, Value: cm.v.Get(d.Key), Description: d.Description})
	}
	return out
}

// Lookup returns the effective value of one known key.
func (cm *Manager) Lookup(key string) (*Entry, error) {
	d := GetDefault(key)
	if d == nil {
		return nil, fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return &Entry{Key: key, Value: cm.v.Get(key), Description: d.Description}, nil
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// OpenAIConfig converts the provider section for providers.NewOpenAIClient.
// It resolves ${ENV_VAR} references in the API key.
func (c *Config) OpenAIConfig() providers.OpenAIConfig {
	return providers.OpenAIConfig{
		APIKey:    ResolveEnvVars(c.Provider.APIKey),
		BaseURL:   c.Provider.BaseURL,
		Model:     c.Provider.Model,
		RateLimit: c.Provider.RateLimit,
		Timeout:   time.Duration(c.Provider.TimeoutSeconds) * time.Second,
	}
}

// RetryConfig converts provider.max_retries into retry bounds. The count
// is retries after the first attempt.
func (c *Config) RetryConfig(logger *slog.Logger) providers.RetryConfig {
	attempts := c.Provider.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	return providers.RetryConfig{Attempts: uint(attempts), Logger: logger}
}

// ExtractConfig converts the extraction section for extract.New.
func (c *Config) ExtractConfig(logger *slog.Logger) extract.Config {
	return extract.Config{
		MaxInputBytes: c.Extraction.MaxInputBytes,
		PreviewChars:  c.Extraction.PreviewChars,
		Logger:        logger,
	}
}

// LogLevel parses logging.level; unknown values mean info.
func (c *Config) LogLevel() slog.Level {
	return ParseLevel(c.Logging.Level)
}

// ParseLevel parses debug, info, warn or error. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# examscan configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell (or a .env file): export OPENAI_API_KEY=xxx
# Any key can be overridden with EXAMSCAN_<SECTION>_<KEY>, e.g. EXAMSCAN_PROVIDER_MODEL

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
