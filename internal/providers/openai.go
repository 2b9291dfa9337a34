package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o"
	defaultImageMIME   = "image/jpeg"
)

// OpenAIConfig holds configuration for the OpenAI-compatible chat client.
// Any server speaking the chat completions API works via BaseURL.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string        // Optional; OpenAI when empty
	Model      string        // Default model when a request names none
	RateLimit  int           // Requests per minute (default: 60)
	MaxRetries int           // SDK transport retries (default: 0, see ChatWithRetry)
	Timeout    time.Duration // HTTP timeout (default: 120s)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIClient implements LLMClient using the official OpenAI SDK.
type OpenAIClient struct {
	model   string
	limiter *RateLimiter
	client  openai.Client
}

// NewOpenAIClient creates a new OpenAI-compatible chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 60
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:   cfg.Model,
		limiter: NewRateLimiter(cfg.RateLimit),
		client:  openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Model returns the configured default model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// RateLimiter exposes the client's limiter for status reporting.
func (c *OpenAIClient) RateLimiter() *RateLimiter {
	return c.limiter
}

// Chat sends a chat completion request. A non-nil error is always paired
// with a result describing the failure.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	result := &ChatResult{Provider: OpenAIName, Attempts: 1}

	if req == nil || len(req.Messages) == 0 {
		err := fmt.Errorf("at least one message is required")
		return failResult(result, "invalid_request", err, start), err
	}

	result.RequestID = req.RequestID
	if result.RequestID == "" {
		result.RequestID = uuid.New().String()
	}

	params, err := c.buildParams(req)
	if err != nil {
		return failResult(result, "invalid_request", err, start), err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return failResult(result, "context_cancelled", err, start), err
	}
	result.QueueTime = time.Since(start)

	var reqOpts []option.RequestOption
	if req.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(req.Timeout))
	}

	execStart := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	result.ExecutionTime = time.Since(execStart)
	if err != nil {
		err = mapOpenAIError(err)
		if rle, ok := IsRateLimitError(err); ok {
			c.limiter.Record429(rle.RetryAfter)
			result.RetryAfter = rle.RetryAfter
			return failResult(result, "rate_limit", err, start), err
		}
		return failResult(result, "http_error", err, start), err
	}

	result.ModelUsed = resp.Model
	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.TotalTokens = int(resp.Usage.TotalTokens)

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return failResult(result, "empty_response", ErrEmptyResponse, start), ErrEmptyResponse
	}

	result.Success = true
	result.Content = resp.Choices[0].Message.Content
	result.FinishReason = string(resp.Choices[0].FinishReason)
	result.TotalTime = time.Since(start)
	return result, nil
}

func (c *OpenAIClient) buildParams(req *ChatRequest) (openai.ChatCompletionNewParams, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	for _, m := range req.Messages {
		msg, err := messageParam(m)
		if err != nil {
			return params, err
		}
		params.Messages = append(params.Messages, msg)
	}

	rf, ok, err := responseFormatParam(req.ResponseFormat)
	if err != nil {
		return params, err
	}
	if ok {
		params.ResponseFormat = rf
	}
	return params, nil
}

func messageParam(m Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case "system":
		return openai.SystemMessage(m.Content), nil
	case "assistant":
		return openai.AssistantMessage(m.Content), nil
	case "user", "":
		if len(m.Images) == 0 {
			return openai.UserMessage(m.Content), nil
		}
		mime := m.ImageMIME
		if mime == "" {
			mime = defaultImageMIME
		}
		parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(m.Content)}
		for _, img := range m.Images {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img),
			}))
		}
		return openai.UserMessage(parts), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported message role %q", m.Role)
	}
}

func failResult(result *ChatResult, errType string, err error, start time.Time) *ChatResult {
	result.Success = false
	result.ErrorType = errType
	result.ErrorMessage = err.Error()
	result.TotalTime = time.Since(start)
	return result
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("OpenAI rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		return &StatusError{Provider: "OpenAI", StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	return err
}

var _ LLMClient = (*OpenAIClient)(nil)
