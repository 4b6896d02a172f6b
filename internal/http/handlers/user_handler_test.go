package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func authedReq(method, path, body, token string) *http.Request {
	var req *http.Request
	if body != "" {
		req = jsonReq(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// seedChat sends one authed chat message and returns the created chat id.
func seedChat(t *testing.T, hn *harness, token, message string) string {
	t.Helper()
	w := hn.do(authedReq(http.MethodPost, "/chat", `{"message":"`+message+`"}`, token))
	if w.Code != http.StatusOK {
		t.Fatalf("seed chat = %d (body: %s)", w.Code, w.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.ChatID
}

func TestListChats_ETagNotModified(t *testing.T) {
	hn := newHarness(t, stubProvider{reply: "ok"})
	token := registerUser(t, hn, "etag@example.com")
	seedChat(t, hn, token, "first message")

	w := hn.do(authedReq(http.MethodGet, "/chats", "", token))
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag header")
	}

	// Same state, matching tag: 304 with no body.
	req := authedReq(http.MethodGet, "/chats", "", token)
	req.Header.Set("If-None-Match", etag)
	w = hn.do(req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("matching etag = %d, want 304", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("304 carried a body: %s", w.Body.String())
	}

	// New chat invalidates the tag.
	seedChat(t, hn, token, "second message")
	req = authedReq(http.MethodGet, "/chats", "", token)
	req.Header.Set("If-None-Match", etag)
	w = hn.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("stale etag = %d, want 200", w.Code)
	}
	if w.Header().Get("ETag") == etag {
		t.Fatalf("ETag did not change after a new chat")
	}
}

func TestChatTitleAndSearch(t *testing.T) {
	hn := newHarness(t, stubProvider{reply: "ok"})
	token := registerUser(t, hn, "titles@example.com")
	chatID := seedChat(t, hn, token, "tell me about lighthouses")

	// Rename
	w := hn.do(authedReq(http.MethodPut, "/chats/"+chatID+"/title", `{"title":"Lighthouse talk"}`, token))
	if w.Code != http.StatusNoContent {
		t.Fatalf("rename = %d (body: %s)", w.Code, w.Body.String())
	}

	// Search finds it by the new title.
	w = hn.do(authedReq(http.MethodGet, "/chats/search?q=lighthouse", "", token))
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var found []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &found); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("search results = %d, want 1", len(found))
	}

	// Missing query is a 400.
	if w = hn.do(authedReq(http.MethodGet, "/chats/search", "", token)); w.Code != http.StatusBadRequest {
		t.Fatalf("empty query = %d, want 400", w.Code)
	}

	// Renaming someone else's chat id is a 404, not a leak.
	other := uuid.NewString()
	if w = hn.do(authedReq(http.MethodPut, "/chats/"+other+"/title", `{"title":"x"}`, token)); w.Code != http.StatusNotFound {
		t.Fatalf("foreign rename = %d, want 404", w.Code)
	}

	// Malformed id is a 400.
	if w = hn.do(authedReq(http.MethodPut, "/chats/not-a-uuid/title", `{"title":"x"}`, token)); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d, want 400", w.Code)
	}
}

func TestArchiveRestoreDelete(t *testing.T) {
	hn := newHarness(t, stubProvider{reply: "ok"})
	token := registerUser(t, hn, "archive@example.com")
	chatID := seedChat(t, hn, token, "archive me")

	countListed := func() int {
		w := hn.do(authedReq(http.MethodGet, "/chats", "", token))
		if w.Code != http.StatusOK {
			t.Fatalf("list = %d", w.Code)
		}
		var list ListChatsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return len(list.Chats)
	}

	if n := countListed(); n != 1 {
		t.Fatalf("before archive: %d chats", n)
	}

	if w := hn.do(authedReq(http.MethodPost, "/chats/"+chatID+"/archive", "", token)); w.Code != http.StatusNoContent {
		t.Fatalf("archive = %d", w.Code)
	}
	if n := countListed(); n != 0 {
		t.Fatalf("after archive: %d chats, want 0", n)
	}

	// Archived chats remain directly addressable.
	if w := hn.do(authedReq(http.MethodGet, "/chats/"+chatID, "", token)); w.Code != http.StatusOK {
		t.Fatalf("get archived = %d", w.Code)
	}

	if w := hn.do(authedReq(http.MethodPost, "/chats/"+chatID+"/restore", "", token)); w.Code != http.StatusNoContent {
		t.Fatalf("restore = %d", w.Code)
	}
	if n := countListed(); n != 1 {
		t.Fatalf("after restore: %d chats, want 1", n)
	}

	if w := hn.do(authedReq(http.MethodDelete, "/chats/"+chatID, "", token)); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := hn.do(authedReq(http.MethodGet, "/chats/"+chatID, "", token)); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted = %d, want 404", w.Code)
	}
}

func TestGetChat_IncludesTranscript(t *testing.T) {
	hn := newHarness(t, stubProvider{reply: "the answer"})
	token := registerUser(t, hn, "transcript@example.com")
	chatID := seedChat(t, hn, token, "a question")

	w := hn.do(authedReq(http.MethodGet, "/chats/"+chatID, "", token))
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var resp ChatWithMessages
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Chat.ID != chatID {
		t.Fatalf("chat id = %q", resp.Chat.ID)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("messages = %d, want user + assistant", len(resp.Messages))
	}
	if resp.Messages[0].Role != "user" || resp.Messages[1].Role != "assistant" {
		t.Fatalf("roles = %q, %q", resp.Messages[0].Role, resp.Messages[1].Role)
	}
}

func TestUserSettingsLifecycle(t *testing.T) {
	hn := newHarness(t, stubProvider{reply: "ok"})
	token := registerUser(t, hn, "prefs@example.com")

	// Defaults on first read.
	w := hn.do(authedReq(http.MethodGet, "/settings", "", token))
	if w.Code != http.StatusOK {
		t.Fatalf("get settings = %d", w.Code)
	}

	// Partial update: model and theme change, the rest keeps defaults.
	w = hn.do(authedReq(http.MethodPut, "/settings",
		`{"defaultModel":"claude-sonnet-4-20250514","theme":"dark"}`, token))
	if w.Code != http.StatusOK {
		t.Fatalf("update settings = %d (body: %s)", w.Code, w.Body.String())
	}
	var doc struct {
		Preferences struct {
			Theme    string `json:"theme"`
			Language string `json:"language"`
		} `json:"preferences"`
		AISettings struct {
			DefaultModel     string `json:"defaultModel"`
			DefaultMaxTokens int    `json:"defaultMaxTokens"`
		} `json:"aiSettings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.AISettings.DefaultModel != "claude-sonnet-4-20250514" || doc.Preferences.Theme != "dark" {
		t.Fatalf("patched doc = %+v", doc)
	}
	if doc.Preferences.Language != "en" || doc.AISettings.DefaultMaxTokens != 1000 {
		t.Fatalf("untouched fields changed: %+v", doc)
	}

	// Out-of-range temperature is refused.
	w = hn.do(authedReq(http.MethodPut, "/settings", `{"temperature":3.5}`, token))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad temperature = %d, want 400", w.Code)
	}

	// Reset restores defaults.
	w = hn.do(authedReq(http.MethodDelete, "/settings", "", token))
	if w.Code != http.StatusOK {
		t.Fatalf("reset = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.AISettings.DefaultModel != "" || doc.Preferences.Theme != "system" {
		t.Fatalf("reset doc = %+v", doc)
	}
}
