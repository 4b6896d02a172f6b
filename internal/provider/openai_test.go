package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func float64p(v float64) *float64 { return &v }

func TestOpenAIComplete_HappyPath(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello back"}},
			},
			"usage": map[string]any{"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "test-key", 5*time.Second)
	res, err := c.Complete(context.Background(), Request{
		Model:       "gpt-4o-mini",
		Messages:    []Message{{Role: RoleSystem, Content: "be brief"}, {Role: RoleUser, Content: "hi"}},
		MaxTokens:   256,
		Temperature: float64p(0.5),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Text != "hello back" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Usage.TotalTokens != 10 || res.Usage.PromptTokens != 7 {
		t.Errorf("Usage = %+v", res.Usage)
	}
	if captured["max_tokens"] != float64(256) {
		t.Errorf("max_tokens = %v", captured["max_tokens"])
	}
	if captured["temperature"] != 0.5 {
		t.Errorf("temperature = %v", captured["temperature"])
	}
	if _, ok := captured["max_completion_tokens"]; ok {
		t.Error("non-gpt-5 request must not send max_completion_tokens")
	}
}

func TestOpenAIComplete_GPT5ParamRewrite(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "k", 5*time.Second)
	_, err := c.Complete(context.Background(), Request{
		Model:       "gpt-5-nano",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens:   512,
		Temperature: float64p(0.9),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if captured["max_completion_tokens"] != float64(512) {
		t.Errorf("max_completion_tokens = %v", captured["max_completion_tokens"])
	}
	if _, ok := captured["max_tokens"]; ok {
		t.Error("gpt-5 request must not send max_tokens")
	}
	if _, ok := captured["temperature"]; ok {
		t.Error("gpt-5 request must drop custom temperature")
	}
}

func TestOpenAIComplete_UsageAbsentNormalizesToZeros(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "no usage here"}}},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "k", 5*time.Second)
	res, err := c.Complete(context.Background(), Request{Model: "gpt-4o-mini", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Usage != (Usage{}) {
		t.Errorf("Usage = %+v, want zeros", res.Usage)
	}
}

func TestOpenAIComplete_ImageBecomesDataURL(t *testing.T) {
	var captured struct {
		Messages []struct {
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "a cat"}}},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "k", 5*time.Second)
	_, err := c.Complete(context.Background(), Request{
		Model: "gpt-4o-mini",
		Messages: []Message{{
			Role:    RoleUser,
			Content: "what is this?",
			Image:   &ImageData{MIME: "image/png", Data: "aGk="},
		}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	var parts []map[string]any
	if err := json.Unmarshal(captured.Messages[0].Content, &parts); err != nil {
		t.Fatalf("content should be a part list: %v", err)
	}
	if len(parts) != 2 || parts[1]["type"] != "image_url" {
		t.Fatalf("parts = %+v", parts)
	}
	url := parts[1]["image_url"].(map[string]any)["url"].(string)
	if url != "data:image/png;base64,aGk=" {
		t.Errorf("url = %q", url)
	}
}

func TestOpenAIComplete_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		message    string
		wantCode   string
		wantStatus int
	}{
		{"invalid key", 401, "Incorrect API key provided", CodeInvalidAPIKey, 401},
		{"quota", 429, "You exceeded your current quota", CodeInsufficientQuota, 429},
		{"rate limit", 429, "Rate limit reached for requests", CodeRateLimitExceeded, 429},
		{"context length", 400, "This model's maximum context length is 128000 tokens", CodeContextLengthExceeded, 400},
		{"server error", 500, "The server had an error", CodeInternalError, 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": tc.message},
				})
			}))
			defer srv.Close()

			c := NewOpenAIClient(srv.URL, "k", 5*time.Second)
			_, err := c.Complete(context.Background(), Request{Model: "gpt-4o-mini", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *Error
			if !errors.As(err, &pe) {
				t.Fatalf("error type %T", err)
			}
			if pe.Code != tc.wantCode || pe.Status != tc.wantStatus {
				t.Errorf("got %s/%d, want %s/%d", pe.Code, pe.Status, tc.wantCode, tc.wantStatus)
			}
		})
	}
}

func TestOpenAIStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)
		if req["stream"] != true {
			t.Error("stream flag not set")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[],"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}`,
		}
		for _, f := range frames {
			io.WriteString(w, "data: "+f+"\n\n")
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "k", 5*time.Second)
	var got strings.Builder
	var final *Chunk
	err := c.Stream(context.Background(), Request{Model: "gpt-4o-mini", Messages: []Message{{Role: RoleUser, Content: "hi"}}},
		func(ch Chunk) error {
			if ch.Done {
				final = &ch
				return nil
			}
			got.WriteString(ch.Text)
			return nil
		})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got.String() != "Hello" {
		t.Errorf("text = %q", got.String())
	}
	if final == nil || final.Usage == nil || final.Usage.TotalTokens != 6 {
		t.Errorf("final = %+v", final)
	}
}

func TestOpenAIStream_EmitErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "k", 5*time.Second)
	sentinel := errors.New("client went away")
	err := c.Stream(context.Background(), Request{Model: "gpt-4o-mini", Messages: []Message{{Role: RoleUser, Content: "hi"}}},
		func(Chunk) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want sentinel", err)
	}
}
