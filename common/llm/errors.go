package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// ProviderError is a provider failure normalised across SDKs.
// Status is the HTTP status code, 0 when the provider answered without one
// (for example an empty choice list).
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func wrapOpenAIError(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &ProviderError{Provider: ProviderOpenAI, Status: apiErr.StatusCode, Message: msg, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func wrapAnthropicError(op string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: ProviderAnthropic, Status: apiErr.StatusCode, Message: http.StatusText(apiErr.StatusCode), Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryable reports whether err is worth trying again later: rate limits, server errors
// and network failures are, client errors and cancellations are not.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch {
		case provErr.Status == 429:
			slog.WarnContext(ctx, "llm rate limited",
				"provider", provErr.Provider,
				"status_code", provErr.Status)
			return true
		case provErr.Status >= 500:
			slog.WarnContext(ctx, "llm server error",
				"provider", provErr.Provider,
				"status_code", provErr.Status)
			return true
		case provErr.Status == 0:
			return true
		default:
			slog.DebugContext(ctx, "llm client error, not retryable",
				"provider", provErr.Provider,
				"status_code", provErr.Status)
			return false
		}
	}

	// Network errors (no API response) are generally retryable
	return true
}
