package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryConfig bounds ChatWithRetry.
type RetryConfig struct {
	Attempts uint          // Total attempts including the first (default: 3)
	Delay    time.Duration // Base backoff delay (default: 1s)
	MaxDelay time.Duration // Cap on any single wait (default: 30s)
	Logger   *slog.Logger
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts == 0 {
		c.Attempts = 3
	}
	if c.Delay <= 0 {
		c.Delay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// ChatWithRetry calls client.Chat until it succeeds, the error is not
// retryable, attempts run out, or ctx is done. Rate-limit errors wait for
// the provider's Retry-After when one was sent. The returned result is
// the last one received, with Attempts set to the number of calls made.
func ChatWithRetry(ctx context.Context, client LLMClient, req *ChatRequest, cfg RetryConfig) (*ChatResult, error) {
	cfg = cfg.withDefaults()

	var (
		last     *ChatResult
		attempts int
	)
	_, err := retry.DoWithData(
		func() (struct{}, error) {
			attempts++
			result, err := client.Chat(ctx, req)
			if result != nil {
				last = result
			}
			if err == nil {
				return struct{}{}, nil
			}
			if !retryable(ctx, result, err) {
				return struct{}{}, retry.Unrecoverable(err)
			}
			return struct{}{}, err
		},
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts),
		retry.Delay(cfg.Delay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retryAfterDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			cfg.Logger.Warn("chat request failed, retrying",
				"provider", client.Name(),
				"attempt", n+1,
				"max_attempts", cfg.Attempts,
				"error", err)
		}),
	)

	if last == nil {
		last = &ChatResult{Provider: client.Name()}
		if err != nil {
			last.ErrorType = "no_result"
			last.ErrorMessage = err.Error()
		}
	}
	last.Attempts = attempts
	return last, err
}

// retryAfterDelay honours a provider's Retry-After and otherwise backs off
// exponentially from the configured base delay.
func retryAfterDelay(n uint, err error, config *retry.Config) time.Duration {
	if rle, ok := IsRateLimitError(err); ok && rle.RetryAfter > 0 {
		return rle.RetryAfter
	}
	return retry.BackOffDelay(n, err, config)
}

func retryable(ctx context.Context, result *ChatResult, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if result != nil && result.ErrorType == "invalid_request" {
		return false
	}
	if _, ok := IsRateLimitError(err); ok {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
