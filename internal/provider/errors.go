package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Stable error codes surfaced to API clients. Handlers map them 1:1 onto
// HTTP responses.
const (
	CodeInsufficientQuota     = "INSUFFICIENT_QUOTA"
	CodeInvalidAPIKey         = "INVALID_API_KEY"
	CodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	CodeContextLengthExceeded = "CONTEXT_LENGTH_EXCEEDED"
	CodeInternalError         = "INTERNAL_ERROR"
)

// Error is a classified upstream failure. Status is the HTTP status the API
// should answer with, not necessarily the status the upstream returned.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: %s (%s)", e.Message, e.Code)
}

// AsError extracts a *Error from err, wrapping unclassified failures as
// INTERNAL_ERROR so callers always get a stable code.
func AsError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Code: CodeInternalError, Status: http.StatusInternalServerError, Message: err.Error()}
}

// classify maps an upstream HTTP status and error body onto a stable code.
// No retries happen at this layer; the caller sees exactly one outcome per
// request.
func classify(status int, upstreamMsg string) *Error {
	lower := strings.ToLower(upstreamMsg)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Code: CodeInvalidAPIKey, Status: http.StatusUnauthorized, Message: "Invalid API key"}
	case status == http.StatusTooManyRequests && (strings.Contains(lower, "quota") || strings.Contains(lower, "billing")):
		return &Error{Code: CodeInsufficientQuota, Status: http.StatusTooManyRequests, Message: "Upstream quota exhausted"}
	case status == http.StatusTooManyRequests:
		return &Error{Code: CodeRateLimitExceeded, Status: http.StatusTooManyRequests, Message: "Upstream rate limit exceeded"}
	case status == http.StatusBadRequest && (strings.Contains(lower, "context length") ||
		strings.Contains(lower, "context_length") ||
		strings.Contains(lower, "maximum context") ||
		strings.Contains(lower, "prompt is too long")):
		return &Error{Code: CodeContextLengthExceeded, Status: http.StatusBadRequest, Message: "Conversation too long for the model"}
	default:
		msg := upstreamMsg
		if msg == "" {
			msg = fmt.Sprintf("upstream returned status %d", status)
		}
		return &Error{Code: CodeInternalError, Status: http.StatusInternalServerError, Message: msg}
	}
}

// transportError wraps network-level failures (DNS, timeouts, refused
// connections). Context cancellation passes through untouched so callers
// can distinguish client disconnects.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Code: CodeInternalError, Status: http.StatusInternalServerError, Message: err.Error()}
}
