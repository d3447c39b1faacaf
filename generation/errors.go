package generation

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorClass represents whether a generation failure should be retried.
type ErrorClass int

const (
	// ErrorClassRetryable indicates a transient failure (retried with backoff).
	ErrorClassRetryable ErrorClass = iota
	// ErrorClassFatal indicates a permanent failure (not retried).
	ErrorClassFatal
)

func (ec ErrorClass) String() string {
	if ec == ErrorClassFatal {
		return "fatal"
	}
	return "retryable"
}

// Classify sorts generation-backend errors into retryable vs fatal.
//
// Fatal: bad credentials, malformed/oversized requests, missing model;
// retrying reproduces the same failure.
// Retryable: rate limiting, server errors, network hiccups, timeouts.
// Unknown errors default to retryable so a novel transient doesn't drop the
// user's question on the first hiccup.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassRetryable
	}
	if errors.Is(err, context.Canceled) {
		return ErrorClassFatal
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return ErrorClassRetryable
		case apiErr.HTTPStatusCode >= 500:
			return ErrorClassRetryable
		case apiErr.HTTPStatusCode >= 400:
			return ErrorClassFatal
		}
	}

	lower := strings.ToLower(err.Error())
	fatalPatterns := []string{
		"invalid api key",
		"incorrect api key",
		"context length",
		"model not found",
		"unauthorized",
		"401",
		"403",
	}
	for _, p := range fatalPatterns {
		if strings.Contains(lower, p) {
			return ErrorClassFatal
		}
	}
	return ErrorClassRetryable
}

// IsRetryable reports whether the error should trigger another attempt.
func IsRetryable(err error) bool {
	return Classify(err) == ErrorClassRetryable
}
