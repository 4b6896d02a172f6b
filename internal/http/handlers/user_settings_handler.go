// Per-user settings HTTP handlers.
//
// This file exposes the authenticated user's preference document:
//   - GET    /settings   (current document, defaults on first read)
//   - PUT    /settings   (partial update)
//   - DELETE /settings   (reset to defaults)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adiva-ai/chat-backend/internal/http/middleware"
	"github.com/adiva-ai/chat-backend/internal/services"
)

// GetUserSettings godoc
// @ID          getUserSettings
// @Summary     Current user settings
// @Tags        Settings
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.UserSettingsDoc
// @Router      /settings [get]
func (h *Handlers) GetUserSettings(c *gin.Context) {
	doc, err := h.UserSettings.Get(c.Request.Context(), middleware.AuthedUserID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load settings")
		return
	}
	ok(c, http.StatusOK, doc)
}

// UpdateUserSettings godoc
// @ID          updateUserSettings
// @Summary     Update user settings
// @Description Applies a partial update; omitted fields keep their current value.
// @Tags        Settings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  services.UserSettingsPatch  true  "Settings patch"
// @Success     200  {object}  domain.UserSettingsDoc
// @Failure     400  {object}  handlers.ErrorResponse "Out-of-range value"
// @Router      /settings [put]
func (h *Handlers) UpdateUserSettings(c *gin.Context) {
	var patch services.UserSettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	doc, err := h.UserSettings.Update(c.Request.Context(), middleware.AuthedUserID(c), patch)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSettings) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "settings value out of range")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not save settings")
		return
	}
	ok(c, http.StatusOK, doc)
}

// ResetUserSettings godoc
// @ID          resetUserSettings
// @Summary     Reset user settings to defaults
// @Tags        Settings
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.UserSettingsDoc
// @Router      /settings [delete]
func (h *Handlers) ResetUserSettings(c *gin.Context) {
	doc, err := h.UserSettings.Reset(c.Request.Context(), middleware.AuthedUserID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not reset settings")
		return
	}
	ok(c, http.StatusOK, doc)
}
