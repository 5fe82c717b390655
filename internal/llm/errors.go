package llm

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var (
	// ErrUpstream wraps any failure returned by the model provider.
	ErrUpstream = errors.New("llm upstream error")

	// ErrRateLimited is an upstream error that may succeed on retry.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrUpstream)

	// ErrEmptyResponse is returned when the model produced neither text nor
	// operation requests.
	ErrEmptyResponse = fmt.Errorf("%w: empty response", ErrUpstream)
)

// classify wraps a provider error with ErrRateLimited or ErrUpstream.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstream) {
		return err
	}
	if IsRateLimit(err) {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// IsRateLimit reports whether err signals provider throttling.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr != nil && apiErr.Code == 429 {
		return true
	}
	// genai also returns APIError by value; its message carries the code.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted")
}
