package config

import "errors"

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// Entry is one documented configuration key.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns every configuration key with its default value.
// Viper defaults are seeded from this list, so a key missing here cannot
// be overridden from the environment.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	return []Entry{
		// ===================
		// Provider
		// ===================
		{
			Key:         "provider.base_url",
			Value:       d.Provider.BaseURL,
			Description: "OpenAI-compatible API base URL (empty for api.openai.com)",
		},
		{
			Key:         "provider.model",
			Value:       d.Provider.Model,
			Description: "Text model used to answer extracted questions",
		},
		{
			Key:         "provider.vision_model",
			Value:       d.Provider.VisionModel,
			Description: "Vision model used to read exam paper images",
		},
		{
			Key:         "provider.api_key",
			Value:       d.Provider.APIKey,
			Description: "API key (uses environment variable)",
		},
		{
			Key:         "provider.temperature",
			Value:       d.Provider.Temperature,
			Description: "Sampling temperature",
		},
		{
			Key:         "provider.max_tokens",
			Value:       d.Provider.MaxTokens,
			Description: "Maximum completion tokens per call (0 for provider default)",
		},
		{
			Key:         "provider.rate_limit",
			Value:       d.Provider.RateLimit,
			Description: "Rate limit in requests per minute",
		},
		{
			Key:         "provider.max_retries",
			Value:       d.Provider.MaxRetries,
			Description: "Maximum retry attempts for failed model calls",
		},
		{
			Key:         "provider.timeout_seconds",
			Value:       d.Provider.TimeoutSeconds,
			Description: "HTTP timeout in seconds for model calls",
		},
		{
			Key:         "provider.structured_output",
			Value:       d.Provider.StructuredOutput,
			Description: "Send the document JSON schema as the response format",
		},

		// ===================
		// Extraction
		// ===================
		{
			Key:         "extraction.max_input_bytes",
			Value:       d.Extraction.MaxInputBytes,
			Description: "Responses longer than this are truncated before extraction",
		},
		{
			Key:         "extraction.preview_chars",
			Value:       d.Extraction.PreviewChars,
			Description: "Characters kept from each end of a failed response",
		},

		// ===================
		// Logging / watch
		// ===================
		{
			Key:         "logging.level",
			Value:       d.Logging.Level,
			Description: "Log level: debug, info, warn or error",
		},
		{
			Key:         "watch.inbox",
			Value:       d.Watch.Inbox,
			Description: "Directory watched for saved responses (empty for {home}/inbox)",
		},
		{
			Key:         "watch.poll_existing",
			Value:       d.Watch.PollExisting,
			Description: "Process responses already in the inbox when watch starts",
		},
	}
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}
