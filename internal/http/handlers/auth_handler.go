// Authentication HTTP handlers.
//
// This file exposes account endpoints:
//   - POST /auth/register  (create account, returns a session token)
//   - POST /auth/login     (password login, lockout-aware)
//   - GET  /auth/me        (current account, requires bearer token)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adiva-ai/chat-backend/internal/domain"
	"github.com/adiva-ai/chat-backend/internal/http/middleware"
	"github.com/adiva-ai/chat-backend/internal/services"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for account creation.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email" example:"ada@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"correct-horse-battery"`
	Name     string `json:"name" binding:"required,min=1,max=100" example:"Ada"`
}

// LoginRequest is the JSON payload for password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"ada@example.com"`
	Password string `json:"password" binding:"required" example:"correct-horse-battery"`
}

// UserView is the account shape returned to clients. The password hash and
// lockout bookkeeping never leave the server.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResponse carries a session token and the account it belongs to.
type AuthResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

func userView(u *domain.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

//
// Handlers
//

// Register godoc
// @ID          register
// @Summary     Create an account
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RegisterRequest  true  "Registration payload"
// @Success     201  {object}  handlers.AuthResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse "Email already registered"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email, password (8+ chars) and name are required")
		return
	}

	user, token, err := h.Auth.Register(c.Request.Context(), req.Email, req.Password, strings.TrimSpace(req.Name))
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			fail(c, http.StatusConflict, ErrCodeConflict, "email already registered")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create account")
		return
	}
	ok(c, http.StatusCreated, AuthResponse{Token: token, User: userView(user)})
}

// Login godoc
// @ID          login
// @Summary     Password login
// @Description Exchanges credentials for a session token. Five consecutive failures lock the account for two hours.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Login payload"
// @Success     200  {object}  handlers.AuthResponse
// @Failure     401  {object}  handlers.ErrorResponse "Invalid credentials"
// @Failure     423  {object}  handlers.ErrorResponse "Account temporarily locked"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}

	user, token, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountLocked):
			fail(c, http.StatusLocked, ErrCodeAccountLocked, "account temporarily locked, try again later")
		case errors.Is(err, services.ErrInvalidCredentials):
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid email or password")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "login failed")
		}
		return
	}
	ok(c, http.StatusOK, AuthResponse{Token: token, User: userView(user)})
}

// Me godoc
// @ID          me
// @Summary     Current account
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.UserView
// @Failure     401  {object}  handlers.ErrorResponse "Missing or invalid token"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	uid := middleware.AuthedUserID(c)
	user, err := h.Auth.GetUser(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "account not found")
		return
	}
	ok(c, http.StatusOK, userView(user))
}
