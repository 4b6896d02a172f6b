// Chat HTTP handlers.
//
// This file exposes the conversational endpoints:
//   - POST /chat              (blocking generation)
//   - POST /chat/stream       (SSE token stream)
//   - POST /chat-with-image   (multipart, vision models)
//   - GET/DELETE /conversations[...]  (guest conversation management)
//
// All three chat endpoints serve guests and registered users from the same
// route. Identity decides the path: a bearer token routes to persistent
// chats, otherwise the guest cookie routes to the in-memory store behind the
// quota gate. Handlers are transport-thin: they validate input, call
// application services, and translate results into HTTP responses.
package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adiva-ai/chat-backend/internal/http/middleware"
	"github.com/adiva-ai/chat-backend/internal/provider"
	"github.com/adiva-ai/chat-backend/internal/services"
)

// MaxImageBytes caps uploaded chat images (multipart file part).
const MaxImageBytes = 10 << 20 // 10 MiB

// imageMIMEs lists the accepted upload content types.
var imageMIMEs = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
	"image/gif":  {},
}

// Handlers groups the HTTP endpoints and their service dependencies.
type Handlers struct {
	Chat         *services.ChatService
	Auth         *services.AuthService
	Quota        *services.GuestQuotaService
	Settings     *services.SettingsService
	UserSettings *services.UserSettingsService
	Analytics    *services.AnalyticsService
}

// New constructs a Handlers instance bound to the given services.
func New(
	chat *services.ChatService,
	auth *services.AuthService,
	quota *services.GuestQuotaService,
	settings *services.SettingsService,
	userSettings *services.UserSettingsService,
	analytics *services.AnalyticsService,
) *Handlers {
	return &Handlers{
		Chat:         chat,
		Auth:         auth,
		Quota:        quota,
		Settings:     settings,
		UserSettings: userSettings,
		Analytics:    analytics,
	}
}

//
// DTOs
//

// ChatRequest is the JSON payload for /chat and /chat/stream.
type ChatRequest struct {
	// Message is the user's prompt (required).
	Message string `json:"message" binding:"required" example:"Explain token buckets"`
	// Model optionally requests a specific model; disallowed values fall
	// back to the configured default.
	Model string `json:"model" example:"gpt-5-nano"`
	// SystemPrompt is appended to the global system prompt template.
	SystemPrompt string `json:"systemPrompt"`
	// MaxTokens caps the completion; 0 uses the policy default.
	MaxTokens int `json:"maxTokens"`
	// ConversationID continues a guest conversation (guests only).
	ConversationID string `json:"conversationId"`
	// ChatID continues a persistent chat (authenticated users only).
	ChatID string `json:"chatId"`
}

// TokenUsage reports upstream token consumption for one generation.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ChatResponse is the blocking generation result.
type ChatResponse struct {
	Response       string     `json:"response"`
	Model          string     `json:"model"`
	Usage          TokenUsage `json:"usage"`
	ConversationID string     `json:"conversationId,omitempty"`
	ChatID         string     `json:"chatId,omitempty"`
	Title          string     `json:"title,omitempty"`
	MessageCount   int        `json:"messageCount,omitempty"`
	// Guest quota state, present on guest responses only.
	GuestMessageCount int `json:"guestMessageCount,omitempty"`
	GuestMessageLimit int `json:"guestMessageLimit,omitempty"`
}

// streamFrame is one SSE payload on /chat/stream.
type streamFrame struct {
	Type           string      `json:"type"` // content | done | error
	Content        string      `json:"content,omitempty"`
	Done           bool        `json:"done,omitempty"`
	ConversationID string      `json:"conversationId,omitempty"`
	ChatID         string      `json:"chatId,omitempty"`
	Model          string      `json:"model,omitempty"`
	Usage          *TokenUsage `json:"usage,omitempty"`
	Code           string      `json:"code,omitempty"`
	Message        string      `json:"message,omitempty"`
}

// ConversationSummary describes one guest conversation in list responses.
type ConversationSummary struct {
	ID           string `json:"id"`
	Preview      string `json:"preview"`
	MessageCount int    `json:"messageCount"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func usageDTO(u provider.Usage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

//
// Helpers
//

// failChatErr translates service and provider errors into HTTP responses.
// In debug mode the raw upstream error rides along in a detail field;
// release builds expose only the stable code and message.
func failChatErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyPrompt):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message must not be empty")
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
	default:
		perr := provider.AsError(err)
		if gin.IsDebugging() {
			c.AbortWithStatusJSON(perr.Status, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       perr.Code,
				"message":    perr.Message,
				"detail":     err.Error(),
			})
			return
		}
		fail(c, perr.Status, perr.Code, perr.Message)
	}
}

// guestConvKey namespaces guest conversation ids by guest identity so one
// visitor can never address another visitor's history.
func guestConvKey(guestID, convID string) string { return guestID + "/" + convID }

// gateGuest runs the quota gate for an anonymous request. On denial it writes
// the 401 guest-login-required envelope (including the limit so clients can
// render it) and returns ok=false.
func (h *Handlers) gateGuest(c *gin.Context) (guestID string, count, limit int, okOut bool) {
	guestID = middleware.GuestIDFrom(c)
	if guestID == "" {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "guest identity missing")
		return "", 0, 0, false
	}
	settings, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "settings unavailable")
		return "", 0, 0, false
	}
	dec, err := h.Quota.CheckAndConsume(c.Request.Context(), guestID, settings.GuestLimits.MaxChats)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "quota check failed")
		return "", 0, 0, false
	}
	if !dec.Allowed {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       ErrCodeGuestLoginRequired,
			"message":    "guest message limit reached, please sign in to continue",
			"limit":      dec.MaxChats,
		})
		return "", 0, 0, false
	}
	return guestID, dec.Usage.ChatCount, dec.MaxChats, true
}

//
// Chat endpoints
//

// PostChat godoc
// @ID          postChat
// @Summary     Send a chat message
// @Description Generates an assistant reply. Guests are quota-gated by cookie; authenticated users write to persistent chats.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ChatRequest  true  "Chat payload"
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Guest quota exhausted or bad token"
// @Failure     429  {object}  handlers.ErrorResponse "Upstream quota or rate limit"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /chat [post]
func (h *Handlers) PostChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.respond(c, req, nil)
}

// respond runs the blocking generation for either identity class. img is the
// optional uploaded image (set by PostChatWithImage).
func (h *Handlers) respond(c *gin.Context, req ChatRequest, img *provider.ImageData) {
	ctx := c.Request.Context()
	in := services.GenInput{
		Message:      req.Message,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Image:        img,
		ChatID:       req.ChatID,
	}

	if uid := middleware.AuthedUserID(c); uid != "" {
		rep, err := h.Chat.RespondUser(ctx, uid, in)
		if err != nil {
			failChatErr(c, err)
			return
		}
		ok(c, http.StatusOK, ChatResponse{
			Response:     rep.Text,
			Model:        rep.Model,
			Usage:        usageDTO(rep.Usage),
			ChatID:       rep.ChatID,
			Title:        rep.Title,
			MessageCount: rep.MessageCount,
		})
		return
	}

	guestID, count, limit, okG := h.gateGuest(c)
	if !okG {
		return
	}
	convID := strings.TrimSpace(req.ConversationID)
	if convID == "" {
		convID = uuid.NewString()
	}
	in.ConversationID = guestConvKey(guestID, convID)

	rep, err := h.Chat.RespondGuest(ctx, in)
	if err != nil {
		failChatErr(c, err)
		return
	}
	ok(c, http.StatusOK, ChatResponse{
		Response:          rep.Text,
		Model:             rep.Model,
		Usage:             usageDTO(rep.Usage),
		ConversationID:    convID,
		GuestMessageCount: count,
		GuestMessageLimit: limit,
	})
}

// PostChatStream godoc
// @ID          postChatStream
// @Summary     Send a chat message (streaming)
// @Description Streams the reply as server-sent events. Frames are JSON: {"type":"content"|"done"|"error", ...}.
// @Tags        Chat
// @Accept      json
// @Produce     text/event-stream
// @Param       body  body  handlers.ChatRequest  true  "Chat payload"
// @Success     200  {string}  string "SSE stream"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Guest quota exhausted or bad token"
// @Router      /chat/stream [post]
func (h *Handlers) PostChatStream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message must not be empty")
		return
	}
	ctx := c.Request.Context()
	uid := middleware.AuthedUserID(c)

	// Resolve identity and quota before committing to the SSE response, so
	// failures up to this point are ordinary JSON errors.
	var guestID, convID string
	if uid == "" {
		gid, _, _, okG := h.gateGuest(c)
		if !okG {
			return
		}
		guestID = gid
		convID = strings.TrimSpace(req.ConversationID)
		if convID == "" {
			convID = uuid.NewString()
		}
	}

	w := newSSEWriter(c)
	if w == nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "streaming unsupported")
		return
	}

	emit := func(ch provider.Chunk) error {
		if ch.Done {
			return nil // the done frame is written after the service returns
		}
		return w.send(streamFrame{Type: "content", Content: ch.Text})
	}

	in := services.GenInput{
		Message:      req.Message,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		ChatID:       req.ChatID,
	}

	var rep *services.Reply
	var err error
	if uid != "" {
		rep, err = h.Chat.StreamUser(ctx, uid, in, emit)
	} else {
		in.ConversationID = guestConvKey(guestID, convID)
		rep, err = h.Chat.StreamGuest(ctx, in, emit)
	}
	if err != nil {
		perr := provider.AsError(err)
		_ = w.send(streamFrame{Type: "error", Code: perr.Code, Message: perr.Message})
		return
	}

	usage := usageDTO(rep.Usage)
	done := streamFrame{
		Type:   "done",
		Done:   true,
		Model:  rep.Model,
		Usage:  &usage,
		ChatID: rep.ChatID,
	}
	if uid == "" {
		done.ConversationID = convID
	}
	_ = w.send(done)
}

// PostChatWithImage godoc
// @ID          postChatWithImage
// @Summary     Send a chat message with an image
// @Description Multipart endpoint for vision requests. Accepts an image file part plus the usual chat fields.
// @Tags        Chat
// @Accept      multipart/form-data
// @Produce     json
// @Param       message  formData  string  true   "User prompt"
// @Param       model    formData  string  false  "Requested model"
// @Param       image    formData  file    true   "Image (png/jpeg/webp/gif, max 10 MiB)"
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request or unsupported image"
// @Failure     403  {object}  handlers.ErrorResponse "Image upload disabled"
// @Failure     413  {object}  handlers.ErrorResponse "Image too large"
// @Router      /chat-with-image [post]
func (h *Handlers) PostChatWithImage(c *gin.Context) {
	settings, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "settings unavailable")
		return
	}
	if !settings.FeatureToggles.ImageUpload {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "image upload is disabled")
		return
	}

	req := ChatRequest{
		Message:        c.PostForm("message"),
		Model:          c.PostForm("model"),
		SystemPrompt:   c.PostForm("systemPrompt"),
		ConversationID: c.PostForm("conversationId"),
		ChatID:         c.PostForm("chatId"),
	}
	if strings.TrimSpace(req.Message) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message must not be empty")
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "image file part required")
		return
	}
	if file.Size > MaxImageBytes {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "image exceeds 10 MiB")
		return
	}

	src, err := file.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable image part")
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, MaxImageBytes+1))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable image part")
		return
	}
	if len(data) > MaxImageBytes {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "image exceeds 10 MiB")
		return
	}

	// Trust the bytes, not the declared header.
	mime := http.DetectContentType(data)
	if _, allowed := imageMIMEs[mime]; !allowed {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unsupported image type "+mime)
		return
	}

	h.respond(c, req, &provider.ImageData{
		MIME: mime,
		Data: base64.StdEncoding.EncodeToString(data),
	})
}

//
// Guest conversation endpoints
//

// ListConversations godoc
// @ID          listConversations
// @Summary     List guest conversations
// @Description Returns the caller's in-memory conversations, most recent first.
// @Tags        Conversations
// @Produce     json
// @Success     200  {array}  handlers.ConversationSummary
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	guestID := middleware.GuestIDFrom(c)
	prefix := guestConvKey(guestID, "")
	out := make([]ConversationSummary, 0, 4)
	for _, info := range h.Chat.ListGuestConversations() {
		if !strings.HasPrefix(info.ID, prefix) {
			continue
		}
		out = append(out, ConversationSummary{
			ID:           strings.TrimPrefix(info.ID, prefix),
			Preview:      info.Preview,
			MessageCount: info.MessageCount,
			CreatedAt:    info.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:    info.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	ok(c, http.StatusOK, out)
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Fetch one guest conversation transcript
// @Tags        Conversations
// @Produce     json
// @Param       id  path  string  true  "Conversation ID"
// @Success     200  {array}   provider.Message
// @Failure     404  {object}  handlers.ErrorResponse "Conversation not found"
// @Router      /conversations/{id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	guestID := middleware.GuestIDFrom(c)
	hist, err := h.Chat.GuestHistory(guestConvKey(guestID, c.Param("id")))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		return
	}
	ok(c, http.StatusOK, hist)
}

// DeleteConversation godoc
// @ID          deleteConversation
// @Summary     Delete a guest conversation
// @Tags        Conversations
// @Param       id  path  string  true  "Conversation ID"
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse "Conversation not found"
// @Router      /conversations/{id} [delete]
func (h *Handlers) DeleteConversation(c *gin.Context) {
	guestID := middleware.GuestIDFrom(c)
	if err := h.Chat.DeleteGuestConversation(guestConvKey(guestID, c.Param("id"))); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		return
	}
	noContent(c)
}
