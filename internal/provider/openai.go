package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	httpc   *http.Client
}

// NewOpenAIClient builds a client for the given endpoint. timeout bounds
// every upstream call; pass the configured provider timeout.
func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration) *OpenAIClient {
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		httpc:   &http.Client{},
	}
}

// Wire shapes for the chat-completions protocol.

type oaMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or []oaContentPart for vision
}

type oaContentPart struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL *oaImageURL `json:"image_url,omitempty"`
}

type oaImageURL struct {
	URL string `json:"url"`
}

type oaRequest struct {
	Model               string          `json:"model"`
	Messages            []oaMessage     `json:"messages"`
	MaxTokens           int             `json:"max_tokens,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
	Stream              bool            `json:"stream,omitempty"`
	StreamOptions       *oaStreamOption `json:"stream_options,omitempty"`
}

type oaStreamOption struct {
	IncludeUsage bool `json:"include_usage"`
}

type oaResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

type oaStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

type oaErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// isGPT5 reports whether the model only accepts the fixed default
// temperature and the max_completion_tokens parameter name.
func isGPT5(model string) bool { return strings.HasPrefix(model, "gpt-5") }

func (c *OpenAIClient) buildRequest(req Request, stream bool) oaRequest {
	msgs := make([]oaMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Image != nil {
			msgs = append(msgs, oaMessage{
				Role: m.Role,
				Content: []oaContentPart{
					{Type: "text", Text: m.Content},
					{Type: "image_url", ImageURL: &oaImageURL{
						URL: fmt.Sprintf("data:%s;base64,%s", m.Image.MIME, m.Image.Data),
					}},
				},
			})
			continue
		}
		msgs = append(msgs, oaMessage{Role: m.Role, Content: m.Content})
	}

	out := oaRequest{Model: req.Model, Messages: msgs, Stream: stream}
	if isGPT5(req.Model) {
		// gpt-5 models reject custom temperature and the max_tokens name.
		out.MaxCompletionTokens = req.MaxTokens
	} else {
		out.MaxTokens = req.MaxTokens
		out.Temperature = req.Temperature
	}
	if stream {
		out.StreamOptions = &oaStreamOption{IncludeUsage: true}
	}
	return out
}

func (c *OpenAIClient) post(ctx context.Context, body oaRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		var eb oaErrorBody
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, classify(resp.StatusCode, msg)
	}
	return resp, nil
}

// Complete performs a blocking chat-completions call.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, c.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, transportError(err)
	}

	res := &Result{Model: req.Model}
	if out.Model != "" {
		res.Model = out.Model
	}
	if len(out.Choices) > 0 {
		res.Text = out.Choices[0].Message.Content
	}
	if out.Usage != nil {
		res.Usage = *out.Usage
	}
	return res, nil
}

// Stream performs a streaming chat-completions call, emitting one Chunk per
// content delta and a final Done chunk carrying usage when reported.
func (c *OpenAIClient) Stream(ctx context.Context, req Request, emit func(Chunk) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, c.buildRequest(req, true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var usage *Usage
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}
		var chunk oaStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // tolerate malformed keep-alive frames
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if err := emit(Chunk{Text: chunk.Choices[0].Delta.Content}); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return transportError(err)
	}
	return emit(Chunk{Done: true, Usage: usage})
}
