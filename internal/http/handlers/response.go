// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the shared response utilities: the structured error
// envelope, success helpers, and the SSE frame writer used by the streaming
// chat endpoint. Every endpoint failure goes through fail() so clients get a
// stable machine-readable code next to the human-readable message, and 5xx
// responses are logged with request context.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "chat not found"
//	}
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adiva-ai/chat-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// RequestID echoes the X-Request-ID header so server logs can be correlated
// with client-side errors. Code is a stable machine-readable string (see
// errors.go); Message is safe for display to users.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"chat not found"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), used by the router for NoRoute and
// NoMethod fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// sseWriter serializes streaming frames onto an open text/event-stream
// response, flushing after every frame so proxies and browsers see tokens as
// they arrive.
type sseWriter struct {
	c       *gin.Context
	flusher http.Flusher
}

// newSSEWriter prepares the response for server-sent events. Returns nil when
// the underlying writer cannot flush (streaming would silently buffer).
func newSSEWriter(c *gin.Context) *sseWriter {
	fl, okFl := c.Writer.(http.Flusher)
	if !okFl {
		return nil
	}
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	return &sseWriter{c: c, flusher: fl}
}

// send writes one "data: <json>\n\n" frame and flushes.
func (w *sseWriter) send(frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := w.c.Writer.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.c.Writer.Write(payload); err != nil {
		return err
	}
	if _, err := w.c.Writer.Write([]byte("\n\n")); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}
