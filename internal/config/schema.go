package config

// Config holds examscan configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Provider   ProviderCfg   `mapstructure:"provider" yaml:"provider"`
	Extraction ExtractionCfg `mapstructure:"extraction" yaml:"extraction"`
	Logging    LoggingCfg    `mapstructure:"logging" yaml:"logging"`
	Watch      WatchCfg      `mapstructure:"watch" yaml:"watch"`
}

// ProviderCfg configures the OpenAI-compatible model endpoint.
type ProviderCfg struct {
	BaseURL          string  `mapstructure:"base_url" yaml:"base_url"`         // Empty for api.openai.com
	Model            string  `mapstructure:"model" yaml:"model"`               // Text model (enrich)
	VisionModel      string  `mapstructure:"vision_model" yaml:"vision_model"` // Image model (analyze)
	APIKey           string  `mapstructure:"api_key" yaml:"api_key"`           // Supports ${ENV_VAR} syntax
	Temperature      float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens        int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	RateLimit        int     `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	MaxRetries       int     `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	StructuredOutput bool    `mapstructure:"structured_output" yaml:"structured_output"`
}

// ExtractionCfg bounds the extraction pipeline.
type ExtractionCfg struct {
	MaxInputBytes int `mapstructure:"max_input_bytes" yaml:"max_input_bytes"`
	PreviewChars  int `mapstructure:"preview_chars" yaml:"preview_chars"`
}

// LoggingCfg selects the log level: debug, info, warn or error.
type LoggingCfg struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// WatchCfg configures `examscan watch`.
type WatchCfg struct {
	Inbox        string `mapstructure:"inbox" yaml:"inbox"`                 // Empty for {home}/inbox
	PollExisting bool   `mapstructure:"poll_existing" yaml:"poll_existing"` // Process files already in the inbox at start
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderCfg{
			Model:          "gpt-4o",
			VisionModel:    "gpt-4o",
			APIKey:         "${OPENAI_API_KEY}",
			Temperature:    0.2,
			MaxTokens:      4096,
			RateLimit:      60,
			MaxRetries:     3,
			TimeoutSeconds: 120,
		},
		Extraction: ExtractionCfg{
			MaxInputBytes: 512 * 1024,
			PreviewChars:  500,
		},
		Logging: LoggingCfg{
			Level: "info",
		},
	}
}
