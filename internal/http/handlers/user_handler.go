// Chat management HTTP handlers (authenticated users).
//
// This file exposes REST endpoints over persistent chats:
//   - GET    /chats               (list, paginated, weak ETag support)
//   - GET    /chats/search        (title search)
//   - GET    /chats/{id}          (chat + transcript)
//   - PUT    /chats/{id}/title    (rename)
//   - POST   /chats/{id}/archive  (hide from the default list)
//   - POST   /chats/{id}/restore  (unhide)
//   - DELETE /chats/{id}          (soft delete)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adiva-ai/chat-backend/internal/domain"
	"github.com/adiva-ai/chat-backend/internal/http/middleware"
	"github.com/adiva-ai/chat-backend/internal/repo"
	"github.com/adiva-ai/chat-backend/internal/services"
)

//
// DTOs
//

// UpdateChatTitleRequest is the JSON payload for renaming a chat.
type UpdateChatTitleRequest struct {
	// Title is the new chat name (1-255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Trip planning"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListChatsResponse wraps a page of chats and pagination information.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

// ChatWithMessages is a chat resource plus its full transcript.
type ChatWithMessages struct {
	Chat     domain.Chat      `json:"chat"`
	Messages []domain.Message `json:"messages"`
}

//
// Helpers
//

// atoiDefault parses s as an int, falling back to def on empty or bad input.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = atoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = atoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// chatIDParam validates the :id path segment.
func chatIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return "", false
	}
	return id, true
}

// failChatMgmtErr maps chat management errors onto HTTP responses.
func failChatMgmtErr(c *gin.Context, err error) {
	if errors.Is(err, services.ErrChatNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "chat operation failed")
}

//
// Handlers
//

// ListChats godoc
// @ID          listChats
// @Summary     List chats (paginated)
// @Description Returns a page of the user's chats, newest activity first. Supports weak ETag via If-None-Match and may return 304. Archived chats are excluded.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"      minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"   minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListChatsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.AuthedUserID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := repo.ChatsStats(ctx, h.Chat.DB, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"chats:%s:%d:%d"`, uid, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.Chat.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list chats")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListChatsResponse{
		Chats: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// SearchChats godoc
// @ID          searchChats
// @Summary     Search chats by title
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
// @Param       q      query  string  true   "Search query"
// @Param       limit  query  int     false  "Max results"  default(20)
// @Success     200  {array}  domain.Chat
// @Router      /chats/search [get]
func (h *Handlers) SearchChats(c *gin.Context) {
	uid := middleware.AuthedUserID(c)
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query parameter q is required")
		return
	}
	items, err := h.Chat.Search(c.Request.Context(), uid, q, atoiDefault(c.Query("limit"), 20))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "search failed")
		return
	}
	ok(c, http.StatusOK, items)
}

// GetChat godoc
// @ID          getChat
// @Summary     Fetch a chat with its transcript
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Chat ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.ChatWithMessages
// @Failure     404  {object}  handlers.ErrorResponse "Chat not found"
// @Router      /chats/{id} [get]
func (h *Handlers) GetChat(c *gin.Context) {
	id, okID := chatIDParam(c)
	if !okID {
		return
	}
	chat, msgs, err := h.Chat.GetWithMessages(c.Request.Context(), middleware.AuthedUserID(c), id)
	if err != nil {
		failChatMgmtErr(c, err)
		return
	}
	ok(c, http.StatusOK, ChatWithMessages{Chat: *chat, Messages: msgs})
}

// UpdateChatTitle godoc
// @ID          updateChatTitle
// @Summary     Rename a chat
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                           true  "Chat ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateChatTitleRequest  true  "New title"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Router      /chats/{id}/title [put]
func (h *Handlers) UpdateChatTitle(c *gin.Context) {
	id, okID := chatIDParam(c)
	if !okID {
		return
	}
	var req UpdateChatTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1-255 chars)")
		return
	}
	if err := h.Chat.UpdateTitle(c.Request.Context(), middleware.AuthedUserID(c), id, req.Title); err != nil {
		failChatMgmtErr(c, err)
		return
	}
	noContent(c)
}

// ArchiveChat godoc
// @ID          archiveChat
// @Summary     Archive a chat
// @Tags        Chats
// @Security    BearerAuth
// @Param       id  path  string  true  "Chat ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Router      /chats/{id}/archive [post]
func (h *Handlers) ArchiveChat(c *gin.Context) {
	h.setArchived(c, true)
}

// RestoreChat godoc
// @ID          restoreChat
// @Summary     Restore an archived chat
// @Tags        Chats
// @Security    BearerAuth
// @Param       id  path  string  true  "Chat ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Router      /chats/{id}/restore [post]
func (h *Handlers) RestoreChat(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *Handlers) setArchived(c *gin.Context, archived bool) {
	id, okID := chatIDParam(c)
	if !okID {
		return
	}
	if err := h.Chat.SetArchived(c.Request.Context(), middleware.AuthedUserID(c), id, archived); err != nil {
		failChatMgmtErr(c, err)
		return
	}
	noContent(c)
}

// DeleteChat godoc
// @ID          deleteChat
// @Summary     Delete a chat
// @Tags        Chats
// @Security    BearerAuth
// @Param       id  path  string  true  "Chat ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Router      /chats/{id} [delete]
func (h *Handlers) DeleteChat(c *gin.Context) {
	id, okID := chatIDParam(c)
	if !okID {
		return
	}
	if err := h.Chat.Delete(c.Request.Context(), middleware.AuthedUserID(c), id); err != nil {
		failChatMgmtErr(c, err)
		return
	}
	noContent(c)
}
