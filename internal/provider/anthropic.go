package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// AnthropicClient talks to an Anthropic-style messages endpoint.
type AnthropicClient struct {
	baseURL string
	apiKey  string
	version string // anthropic-version header
	timeout time.Duration
	httpc   *http.Client
}

// NewAnthropicClient builds a client for the given endpoint. version is the
// anthropic-version header value; timeout bounds every upstream call.
func NewAnthropicClient(baseURL, apiKey, version string, timeout time.Duration) *AnthropicClient {
	return &AnthropicClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		version: version,
		timeout: timeout,
		httpc:   &http.Client{},
	}
}

// Wire shapes for the messages protocol. Message content is always a block
// list; images ride along as base64 source blocks.

type anBlock struct {
	Type   string    `json:"type"`
	Text   string    `json:"text,omitempty"`
	Source *anSource `json:"source,omitempty"`
}

type anSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anMessage struct {
	Role    string    `json:"role"`
	Content []anBlock `json:"content"`
}

type anRequest struct {
	Model       string      `json:"model"`
	System      string      `json:"system,omitempty"`
	Messages    []anMessage `json:"messages"`
	MaxTokens   int         `json:"max_tokens"`
	Temperature *float64    `json:"temperature,omitempty"`
}

type anResponse struct {
	Model   string    `json:"model"`
	Content []anBlock `json:"content"`
	Usage   *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *AnthropicClient) buildRequest(req Request) anRequest {
	out := anRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			// The messages protocol takes the system prompt as a top-level
			// parameter, not as a message.
			out.System = m.Content
			continue
		}
		blocks := make([]anBlock, 0, 2)
		if m.Image != nil {
			blocks = append(blocks, anBlock{
				Type: "image",
				Source: &anSource{
					Type:      "base64",
					MediaType: m.Image.MIME,
					Data:      m.Image.Data,
				},
			})
		}
		if m.Content != "" || m.Image == nil {
			blocks = append(blocks, anBlock{Type: "text", Text: m.Content})
		}
		out.Messages = append(out.Messages, anMessage{Role: m.Role, Content: blocks})
	}
	return out
}

// Complete performs a blocking messages call.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", c.version)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		var eb anErrorBody
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, classify(resp.StatusCode, msg)
	}

	var out anResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, transportError(err)
	}

	res := &Result{Model: req.Model}
	if out.Model != "" {
		res.Model = out.Model
	}
	var sb strings.Builder
	for _, b := range out.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	res.Text = sb.String()
	if out.Usage != nil {
		res.Usage = Usage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
			TotalTokens:      out.Usage.InputTokens + out.Usage.OutputTokens,
		}
	}
	return res, nil
}

// Stream simulates streaming for the messages family: it runs a blocking
// completion and emits the text word by word, then a final Done chunk with
// the real usage. Callers cannot tell the difference at the frame level.
func (c *AnthropicClient) Stream(ctx context.Context, req Request, emit func(Chunk) error) error {
	res, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}

	words := strings.Fields(res.Text)
	for i, w := range words {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text := w
		if i < len(words)-1 {
			text += " "
		}
		if err := emit(Chunk{Text: text}); err != nil {
			return err
		}
	}
	usage := res.Usage
	return emit(Chunk{Done: true, Usage: &usage})
}
