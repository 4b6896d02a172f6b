// Package provider implements the upstream AI adapters. Two disjoint model
// families are supported behind one interface: an OpenAI-style
// chat-completions client and an Anthropic-style messages client. The Router
// dispatches per request based on the model id.
//
// All adapters normalize their responses into Result: generated text plus
// token usage, with absent upstream usage normalized to zeros so callers
// never deal with nil counters. Upstream failures are converted into *Error
// values carrying a stable code and HTTP status (see errors.go).
package provider

import "context"

// Message roles, shared across both families.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ImageData is an inline base64-encoded image attached to a user message.
type ImageData struct {
	MIME string // e.g. "image/png"
	Data string // base64 payload, no data: prefix
}

// Message is one turn of the conversation window handed to an adapter.
// A leading system turn is permitted; adapters translate it into their
// family's native shape.
type Message struct {
	Role    string
	Content string
	Image   *ImageData
}

// Request is a normalized generation request.
type Request struct {
	Model       string
	Messages    []Message // optional system first, then history, then the new turn
	MaxTokens   int
	Temperature *float64 // nil means provider default
}

// Usage carries token counts as reported upstream. Zero values mean the
// provider did not report usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a normalized generation response.
type Result struct {
	Text  string
	Model string
	Usage Usage
}

// Chunk is one streaming increment. Done is set exactly once, on the final
// chunk, which may also carry the usage totals when the upstream reported
// them.
type Chunk struct {
	Text  string
	Done  bool
	Usage *Usage
}

// Client generates completions for one model family.
type Client interface {
	// Complete performs a blocking generation.
	Complete(ctx context.Context, req Request) (*Result, error)

	// Stream performs a streaming generation, invoking emit for every chunk
	// in order. A non-nil error from emit aborts the stream and is returned.
	Stream(ctx context.Context, req Request, emit func(Chunk) error) error
}
