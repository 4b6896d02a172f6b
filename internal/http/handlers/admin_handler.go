// Admin HTTP handlers.
//
// This file exposes the admin-only surface:
//   - GET /admin/settings    (global policy document plus audit metadata)
//   - PUT /admin/settings    (step-up-verified partial update)
//   - GET /admin/users       (account list, paginated)
//   - GET /admin/analytics   (usage rollup, gated by feature toggle)
//
// Settings writes require step-up confirmation: the caller re-types the
// confirmation phrase and their own password in the same request. The check
// happens in the service so a compromised session token alone cannot flip
// global policy.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adiva-ai/chat-backend/internal/http/middleware"
	"github.com/adiva-ai/chat-backend/internal/repo"
	"github.com/adiva-ai/chat-backend/internal/services"
)

//
// DTOs
//

// SettingsConfirmation is the step-up block on settings writes.
type SettingsConfirmation struct {
	// Text must be the exact phrase "CONFIRM".
	Text string `json:"text" binding:"required" example:"CONFIRM"`
	// Password is the calling admin's own password, re-verified server-side.
	Password string `json:"password" binding:"required"`
}

// UpdateSettingsRequest is the JSON payload for PUT /admin/settings.
type UpdateSettingsRequest struct {
	Settings     services.SettingsPatch `json:"settings"`
	Confirmation SettingsConfirmation   `json:"confirmation" binding:"required"`
}

// AdminSettingsResponse wraps the settings document with audit metadata.
type AdminSettingsResponse struct {
	Settings  any       `json:"settings"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AdminUserView is the account shape shown to admins.
type AdminUserView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// ListUsersResponse wraps a page of accounts and pagination information.
type ListUsersResponse struct {
	Users      []AdminUserView `json:"users"`
	Pagination Pagination      `json:"pagination"`
}

//
// Handlers
//

// GetAdminSettings godoc
// @ID          getAdminSettings
// @Summary     Global settings
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.AdminSettingsResponse
// @Failure     403  {object}  handlers.ErrorResponse "Admin role required"
// @Router      /admin/settings [get]
func (h *Handlers) GetAdminSettings(c *gin.Context) {
	row, err := h.Settings.GetRow(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load settings")
		return
	}
	ok(c, http.StatusOK, AdminSettingsResponse{
		Settings:  row.Settings,
		UpdatedBy: row.UpdatedBy,
		UpdatedAt: row.UpdatedAt,
	})
}

// UpdateAdminSettings godoc
// @ID          updateAdminSettings
// @Summary     Update global settings (step-up verified)
// @Description Applies a partial update after re-verifying the admin's password and the confirmation phrase. Nothing is written when the step-up fails.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.UpdateSettingsRequest  true  "Settings patch with confirmation"
// @Success     200  {object}  handlers.AdminSettingsResponse
// @Failure     400  {object}  handlers.ErrorResponse "Invalid settings value"
// @Failure     401  {object}  handlers.ErrorResponse "Step-up confirmation failed"
// @Router      /admin/settings [put]
func (h *Handlers) UpdateAdminSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "settings patch and confirmation are required")
		return
	}

	admin, err := h.Auth.GetUser(c.Request.Context(), middleware.AuthedUserID(c))
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "account not found")
		return
	}

	doc, err := h.Settings.Update(c.Request.Context(), admin, req.Settings,
		req.Confirmation.Text, req.Confirmation.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBadConfirmation):
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "confirmation failed")
		case errors.Is(err, services.ErrInvalidSettings):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "settings value out of range")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not save settings")
		}
		return
	}
	ok(c, http.StatusOK, AdminSettingsResponse{
		Settings:  doc,
		UpdatedBy: admin.Email,
		UpdatedAt: time.Now().UTC(),
	})
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List accounts (paginated)
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListUsersResponse
// @Router      /admin/users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	total, err := repo.CountUsers(ctx, h.Auth.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list users")
		return
	}
	users, err := repo.ListUsersPage(ctx, h.Auth.DB, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list users")
		return
	}

	views := make([]AdminUserView, 0, len(users))
	for _, u := range users {
		views = append(views, AdminUserView{
			ID:          u.ID,
			Email:       u.Email,
			Name:        u.Name,
			Role:        u.Role,
			CreatedAt:   u.CreatedAt,
			LastLoginAt: u.LastLoginAt,
		})
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListUsersResponse{
		Users: views,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetAnalytics godoc
// @ID          getAnalytics
// @Summary     Usage analytics rollup
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  services.Summary
// @Failure     403  {object}  handlers.ErrorResponse "Analytics disabled"
// @Router      /admin/analytics [get]
func (h *Handlers) GetAnalytics(c *gin.Context) {
	sum, err := h.Analytics.Summarize(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrFeatureDisabled) {
			fail(c, http.StatusForbidden, ErrCodeForbidden, "analytics is disabled")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not build analytics")
		return
	}
	ok(c, http.StatusOK, sum)
}
