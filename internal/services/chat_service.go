// Package services – ChatService
//
// This file implements ChatService, the application-level component that
// turns an inbound message into an upstream generation and records the
// conversation. Guest traffic lives in the in-memory conversation store;
// registered users get persistent chats with auto-generated titles.
//
// Partial-failure rule: the user turn is recorded before the upstream call
// and is never rolled back when the call fails. A retry therefore sees the
// failed attempt in its history.
//
// Observability: public methods are OpenTelemetry-instrumented; token usage
// and upstream failures feed the Prometheus AI counters.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/adiva-ai/chat-backend/internal/conversation"
	"github.com/adiva-ai/chat-backend/internal/domain"
	"github.com/adiva-ai/chat-backend/internal/observability"
	"github.com/adiva-ai/chat-backend/internal/provider"
	"github.com/adiva-ai/chat-backend/internal/repo"
)

// Fallback replies substituted for blank upstream text.
const (
	FallbackReply      = "Sorry, I could not generate a response. Please try again."
	FallbackImageReply = "Sorry, I could not process that image. Please try again."
)

const (
	defaultTitleNew = "New chat"
	titleMaxWords   = 8
)

// GenInput carries one generation request into the service.
type GenInput struct {
	Message        string
	Model          string // requested, may be empty or disallowed
	SystemPrompt   string // caller prompt, appended to the global template
	MaxTokens      int    // 0 means policy default
	Image          *provider.ImageData
	ConversationID string // guest conversation id; blank starts a new one
	ChatID         string // authed chat id; blank starts a new chat
}

// Reply is the normalized generation outcome.
type Reply struct {
	Text           string
	Model          string
	Usage          provider.Usage
	ConversationID string // guest flows
	ChatID         string // authed flows
	Title          string // authed flows
	MessageCount   int    // authed flows: messages now in the chat
}

// ChatService coordinates policy, history, the provider call, and recording.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Provider generates completions (routed by model family).
	Provider provider.Client
	// Guests holds anonymous conversation history.
	Guests *conversation.Store
	// Settings serves the global policy document.
	Settings *SettingsService

	// TitleLocale drives casing of auto-generated titles.
	TitleLocale language.Tag
	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// RespondGuest runs one guest turn: resolve policy, build the window from
// the in-memory history, call upstream, and record both turns. The quota
// gate runs in the handler before this is called.
func (s *ChatService) RespondGuest(ctx context.Context, in GenInput) (*Reply, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "RespondGuest")
	defer span.End()

	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, ErrEmptyPrompt
	}

	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	eff := ResolveEffectiveSettings(in.Model, in.SystemPrompt, in.MaxTokens, nil, settings)
	span.SetAttributes(attribute.String("ai.model", eff.Model))

	convID := in.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	history, _ := s.Guests.History(convID)

	window := conversation.BuildMessages(eff.SystemPrompt, history, msg, in.Image)

	// Record the user turn before calling upstream; never rolled back.
	s.Guests.Append(convID, provider.RoleUser, msg)

	res, err := s.complete(ctx, provider.Request{
		Model:     eff.Model,
		Messages:  window,
		MaxTokens: eff.MaxTokens,
	}, in.Image != nil)
	if err != nil {
		return nil, err
	}

	s.Guests.Append(convID, provider.RoleAssistant, res.Text)
	return &Reply{
		Text:           res.Text,
		Model:          res.Model,
		Usage:          res.Usage,
		ConversationID: convID,
	}, nil
}

// RespondUser runs one authed turn against a persistent chat, creating the
// chat (with an auto title) when ChatID is blank.
func (s *ChatService) RespondUser(ctx context.Context, userID string, in GenInput) (*Reply, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "RespondUser",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, ErrEmptyPrompt
	}

	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	userDoc, err := s.userSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	eff := ResolveEffectiveSettings(in.Model, in.SystemPrompt, in.MaxTokens, userDoc, settings)
	span.SetAttributes(attribute.String("ai.model", eff.Model))

	chat, history, err := s.chatAndHistory(ctx, userID, in.ChatID, msg, eff.Model)
	if err != nil {
		return nil, err
	}

	window := conversation.BuildMessages(eff.SystemPrompt, history, msg, in.Image)

	// Record the user turn before calling upstream; never rolled back.
	if _, err := repo.CreateMessage(ctx, s.DB, chat.ID, provider.RoleUser, msg, "", repo.Usage{}); err != nil {
		return nil, err
	}

	res, err := s.complete(ctx, provider.Request{
		Model:     eff.Model,
		Messages:  window,
		MaxTokens: eff.MaxTokens,
	}, in.Image != nil)
	if err != nil {
		return nil, err
	}

	if _, err := repo.CreateMessage(ctx, s.DB, chat.ID, provider.RoleAssistant, res.Text, res.Model, repo.Usage{
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
	}); err != nil {
		return nil, err
	}
	_ = repo.TouchChat(ctx, s.DB, chat.ID, userID, res.Model)

	count, err := repo.CountMessages(ctx, s.DB, chat.ID)
	if err != nil {
		return nil, err
	}
	return &Reply{
		Text:         res.Text,
		Model:        res.Model,
		Usage:        res.Usage,
		ChatID:       chat.ID,
		Title:        chat.Title,
		MessageCount: int(count),
	}, nil
}

// StreamGuest is RespondGuest with a streaming upstream call. emit receives
// every chunk in order; the final chunk carries Done and usage. Turns are
// recorded exactly as in the blocking path.
func (s *ChatService) StreamGuest(ctx context.Context, in GenInput, emit func(provider.Chunk) error) (*Reply, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "StreamGuest")
	defer span.End()

	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, ErrEmptyPrompt
	}

	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	eff := ResolveEffectiveSettings(in.Model, in.SystemPrompt, in.MaxTokens, nil, settings)

	convID := in.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	history, _ := s.Guests.History(convID)
	window := conversation.BuildMessages(eff.SystemPrompt, history, msg, in.Image)

	s.Guests.Append(convID, provider.RoleUser, msg)

	text, usage, err := s.stream(ctx, provider.Request{
		Model:     eff.Model,
		Messages:  window,
		MaxTokens: eff.MaxTokens,
	}, emit)
	if err != nil {
		return nil, err
	}

	s.Guests.Append(convID, provider.RoleAssistant, text)
	return &Reply{Text: text, Model: eff.Model, Usage: usage, ConversationID: convID}, nil
}

// StreamUser is RespondUser with a streaming upstream call.
func (s *ChatService) StreamUser(ctx context.Context, userID string, in GenInput, emit func(provider.Chunk) error) (*Reply, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "StreamUser",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, ErrEmptyPrompt
	}

	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	userDoc, err := s.userSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	eff := ResolveEffectiveSettings(in.Model, in.SystemPrompt, in.MaxTokens, userDoc, settings)

	chat, history, err := s.chatAndHistory(ctx, userID, in.ChatID, msg, eff.Model)
	if err != nil {
		return nil, err
	}
	window := conversation.BuildMessages(eff.SystemPrompt, history, msg, in.Image)

	if _, err := repo.CreateMessage(ctx, s.DB, chat.ID, provider.RoleUser, msg, "", repo.Usage{}); err != nil {
		return nil, err
	}

	text, usage, err := s.stream(ctx, provider.Request{
		Model:     eff.Model,
		Messages:  window,
		MaxTokens: eff.MaxTokens,
	}, emit)
	if err != nil {
		return nil, err
	}

	if _, err := repo.CreateMessage(ctx, s.DB, chat.ID, provider.RoleAssistant, text, eff.Model, repo.Usage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}); err != nil {
		return nil, err
	}
	_ = repo.TouchChat(ctx, s.DB, chat.ID, userID, eff.Model)

	return &Reply{Text: text, Model: eff.Model, Usage: usage, ChatID: chat.ID, Title: chat.Title}, nil
}

// Generate runs a one-off generation with policy checks and no history or
// persistence. Backs the direct model invocation endpoint.
func (s *ChatService) Generate(ctx context.Context, userDoc *domain.UserSettingsDoc, in GenInput) (*Reply, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, ErrEmptyPrompt
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	eff := ResolveEffectiveSettings(in.Model, in.SystemPrompt, in.MaxTokens, userDoc, settings)

	res, err := s.complete(ctx, provider.Request{
		Model:     eff.Model,
		Messages:  conversation.BuildMessages(eff.SystemPrompt, nil, msg, in.Image),
		MaxTokens: eff.MaxTokens,
	}, in.Image != nil)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: res.Text, Model: res.Model, Usage: res.Usage}, nil
}

// --- guest conversation inspection ---

// GuestHistory returns the stored turns of a guest conversation.
func (s *ChatService) GuestHistory(convID string) ([]provider.Message, error) {
	h, ok := s.Guests.History(convID)
	if !ok {
		return nil, ErrConversationNotFound
	}
	return h, nil
}

// DeleteGuestConversation drops a guest conversation from the store.
func (s *ChatService) DeleteGuestConversation(convID string) error {
	if !s.Guests.Delete(convID) {
		return ErrConversationNotFound
	}
	return nil
}

// ListGuestConversations summarizes the stored guest conversations.
func (s *ChatService) ListGuestConversations() []conversation.Info {
	return s.Guests.List()
}

// --- authed chat management ---

// ListPage returns a page of the user's chats plus the total count.
func (s *ChatService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountChats(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}
	items, err := repo.ListChatsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// GetWithMessages loads one chat and its full transcript.
func (s *ChatService) GetWithMessages(ctx context.Context, userID, chatID string) (*domain.Chat, []domain.Message, error) {
	chat, err := repo.GetChat(ctx, s.DB, chatID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrChatNotFound
		}
		return nil, nil, err
	}
	msgs, err := repo.ListMessages(ctx, s.DB, chatID, 0)
	if err != nil {
		return nil, nil, err
	}
	return chat, msgs, nil
}

// UpdateTitle renames a chat, enforcing ownership.
func (s *ChatService) UpdateTitle(ctx context.Context, userID, chatID, title string) error {
	title = normalizeTitle(title)
	if title == "" {
		title = "Untitled"
	}
	if err := repo.UpdateChatTitle(ctx, s.DB, chatID, userID, s.clipTitle(title)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return nil
}

// Delete soft-deletes a chat, enforcing ownership.
func (s *ChatService) Delete(ctx context.Context, userID, chatID string) error {
	if err := repo.DeleteChat(ctx, s.DB, chatID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return nil
}

// SetArchived archives or restores a chat, enforcing ownership.
func (s *ChatService) SetArchived(ctx context.Context, userID, chatID string, archived bool) error {
	if err := repo.SetChatArchived(ctx, s.DB, chatID, userID, archived); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return nil
}

// Search finds the user's chats whose title matches the query.
func (s *ChatService) Search(ctx context.Context, userID, query string, limit int) ([]domain.Chat, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Chat{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return repo.SearchChats(ctx, s.DB, userID, query, limit)
}

// --- internals ---

// complete runs a blocking upstream call and applies the blank-text fallback.
func (s *ChatService) complete(ctx context.Context, req provider.Request, hasImage bool) (*provider.Result, error) {
	res, err := s.Provider.Complete(ctx, req)
	if err != nil {
		observability.RecordAIError(provider.AsError(err).Code)
		return nil, err
	}
	if strings.TrimSpace(res.Text) == "" {
		if hasImage {
			res.Text = FallbackImageReply
		} else {
			res.Text = FallbackReply
		}
	}
	observability.RecordAIUsage(req.Model, res.Usage.PromptTokens, res.Usage.CompletionTokens)
	return res, nil
}

// stream runs a streaming upstream call, accumulating the full text and the
// final usage while forwarding chunks to emit.
func (s *ChatService) stream(ctx context.Context, req provider.Request, emit func(provider.Chunk) error) (string, provider.Usage, error) {
	var sb strings.Builder
	var usage provider.Usage
	err := s.Provider.Stream(ctx, req, func(ch provider.Chunk) error {
		if ch.Usage != nil {
			usage = *ch.Usage
		}
		if !ch.Done {
			sb.WriteString(ch.Text)
		}
		return emit(ch)
	})
	if err != nil {
		observability.RecordAIError(provider.AsError(err).Code)
		return "", provider.Usage{}, err
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		text = FallbackReply
	}
	observability.RecordAIUsage(req.Model, usage.PromptTokens, usage.CompletionTokens)
	return text, usage, nil
}

// chatAndHistory resolves the target chat (creating one with an auto title
// when chatID is blank) and loads the recent history window.
func (s *ChatService) chatAndHistory(ctx context.Context, userID, chatID, firstMsg, model string) (*domain.Chat, []provider.Message, error) {
	if chatID == "" {
		title := s.titleFromPrompt(firstMsg)
		if title == "" {
			title = defaultTitleNew
		}
		chat, err := repo.CreateChat(ctx, s.DB, userID, title, model)
		if err != nil {
			return nil, nil, err
		}
		observability.RecordConversationStarted()
		return chat, nil, nil
	}

	chat, err := repo.GetChat(ctx, s.DB, chatID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrChatNotFound
		}
		return nil, nil, err
	}
	msgs, err := repo.ListRecentMessages(ctx, s.DB, chatID, conversation.HistoryLimit)
	if err != nil {
		return nil, nil, err
	}
	history := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, provider.Message{Role: m.Role, Content: m.Content})
	}
	return chat, history, nil
}

// userSettings loads the caller's settings document, tolerating absence.
func (s *ChatService) userSettings(ctx context.Context, userID string) (*domain.UserSettingsDoc, error) {
	row, err := repo.GetOrCreateUserSettings(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	doc := row.Settings
	return &doc, nil
}

// titleFromPrompt derives a concise title from the first prompt.
func (s *ChatService) titleFromPrompt(prompt string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(strings.TrimSpace(prompt)), -1)
	if len(toks) == 0 {
		return ""
	}
	caser := cases.Title(s.titleLocale())
	out := make([]string, 0, titleMaxWords)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) >= titleMaxWords {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return s.clipTitle(strings.Join(out, " "))
}

// clipTitle truncates a title to the configured maximum rune length.
func (s *ChatService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return string([]rune(title)[:max])
	}
	return title
}

func (s *ChatService) titleLocale() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// titleWordRE extracts Unicode letters with optional trailing numbers.
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// titleStopWords is a minimal English stop-word set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
}
