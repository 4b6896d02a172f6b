// Model catalog HTTP handlers.
//
// This file exposes the model discovery and direct invocation endpoints:
//   - GET  /ai-models        (catalog filtered by admin allow-list)
//   - GET  /ai-models/{id}   (one catalog entry)
//   - POST /generate         (one-off generation, no history or persistence)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adiva-ai/chat-backend/internal/http/middleware"
	"github.com/adiva-ai/chat-backend/internal/provider"
	"github.com/adiva-ai/chat-backend/internal/services"
)

// GenerateRequest is the JSON payload for the direct invocation endpoint.
type GenerateRequest struct {
	Prompt       string `json:"prompt" binding:"required" example:"Write a haiku about queues"`
	Model        string `json:"model" example:"claude-sonnet-4-20250514"`
	SystemPrompt string `json:"systemPrompt"`
	MaxTokens    int    `json:"maxTokens"`
}

// GenerateResponse is the direct invocation result.
type GenerateResponse struct {
	Response string     `json:"response"`
	Model    string     `json:"model"`
	Usage    TokenUsage `json:"usage"`
}

// allowedCatalog filters the static catalog through the admin allow-list.
func (h *Handlers) allowedCatalog(c *gin.Context) ([]provider.ModelInfo, error) {
	settings, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]struct{}, len(settings.AllowedModels))
	for _, id := range settings.AllowedModels {
		allowed[id] = struct{}{}
	}
	out := make([]provider.ModelInfo, 0, len(allowed))
	for _, info := range provider.Catalog() {
		if _, okM := allowed[info.ID]; okM {
			out = append(out, info)
		}
	}
	return out, nil
}

// ListModels godoc
// @ID          listModels
// @Summary     List available models
// @Description Returns the model catalog restricted to the admin allow-list.
// @Tags        Models
// @Produce     json
// @Success     200  {array}  provider.ModelInfo
// @Router      /ai-models [get]
func (h *Handlers) ListModels(c *gin.Context) {
	models, err := h.allowedCatalog(c)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load model catalog")
		return
	}
	ok(c, http.StatusOK, models)
}

// GetModel godoc
// @ID          getModel
// @Summary     Fetch one model entry
// @Tags        Models
// @Produce     json
// @Param       id  path  string  true  "Model ID"  example(gpt-5-nano)
// @Success     200  {object}  provider.ModelInfo
// @Failure     404  {object}  handlers.ErrorResponse "Unknown or disallowed model"
// @Router      /ai-models/{id} [get]
func (h *Handlers) GetModel(c *gin.Context) {
	models, err := h.allowedCatalog(c)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load model catalog")
		return
	}
	id := c.Param("id")
	for _, info := range models {
		if info.ID == id {
			ok(c, http.StatusOK, info)
			return
		}
	}
	fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown model")
}

// Generate godoc
// @ID          generate
// @Summary     One-off generation
// @Description Runs a single prompt through the policy-resolved model without touching any conversation history.
// @Tags        Models
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.GenerateRequest  true  "Generation payload"
// @Success     200  {object}  handlers.GenerateResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Router      /generate [post]
func (h *Handlers) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prompt is required")
		return
	}

	userDoc, err := h.UserSettings.Get(c.Request.Context(), middleware.AuthedUserID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load settings")
		return
	}

	rep, err := h.Chat.Generate(c.Request.Context(), &userDoc, services.GenInput{
		Message:      req.Prompt,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
	})
	if err != nil {
		failChatErr(c, err)
		return
	}
	ok(c, http.StatusOK, GenerateResponse{
		Response: rep.Text,
		Model:    rep.Model,
		Usage:    usageDTO(rep.Usage),
	})
}
