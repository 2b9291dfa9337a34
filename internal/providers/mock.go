package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string

	// Responses, when set, are returned in order; the last one repeats.
	Responses []string
	// Errors, when set, are returned in order for the first len(Errors)
	// requests; a nil entry means that request succeeds.
	Errors []error

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []*ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat returns the configured response or error.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := int(c.requestCount.Add(1))

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		Attempts:  1,
	}
	if req != nil {
		result.ModelUsed = req.Model
	}

	if c.ShouldFail {
		return c.fail(result, start, fmt.Errorf("mock client configured to fail"))
	}
	if c.FailAfter > 0 && count > c.FailAfter {
		return c.fail(result, start, fmt.Errorf("mock client failed after %d requests", c.FailAfter))
	}
	if count <= len(c.Errors) && c.Errors[count-1] != nil {
		return c.fail(result, start, c.Errors[count-1])
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			result.ErrorType = "context_cancelled"
			result.ErrorMessage = ctx.Err().Error()
			result.TotalTime = time.Since(start)
			return result, ctx.Err()
		}
	}

	result.Success = true
	result.Content = c.responseFor(count)
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	// Simulate token counting
	if req != nil {
		for _, m := range req.Messages {
			result.PromptTokens += len(m.Content) / 4
		}
	}
	result.CompletionTokens = len(result.Content) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens

	return result, nil
}

func (c *MockClient) responseFor(count int) string {
	if len(c.Responses) == 0 {
		return c.ResponseText
	}
	if count > len(c.Responses) {
		return c.Responses[len(c.Responses)-1]
	}
	return c.Responses[count-1]
}

func (c *MockClient) fail(result *ChatResult, start time.Time, err error) (*ChatResult, error) {
	result.Success = false
	result.ErrorType = "mock_failure"
	if _, ok := IsRateLimitError(err); ok {
		result.ErrorType = "rate_limit"
	}
	result.ErrorMessage = err.Error()
	result.TotalTime = time.Since(start)
	return result, err
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns the requests received so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset clears the request counter and history.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)
