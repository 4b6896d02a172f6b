// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. Tokens are signed JWTs
// issued by the auth service at register/login time. Three flavors cover the
// API surface:
//
//   - RequireAuth()  rejects requests without a valid token (user endpoints).
//   - RequireAdmin() additionally requires the admin role (admin endpoints).
//   - OptionalAuth() decodes the token when present and passes through
//     otherwise (the chat endpoints serve both guests and users).
//
// On success the middleware stores the subject under the "userID" context key
// and the role under "userRole", which downstream logging and rate limiting
// already consume.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adiva-ai/chat-backend/internal/domain"
	"github.com/adiva-ai/chat-backend/internal/services"
)

const (
	userIDKey   = "userID"
	userRoleKey = "userRole"
)

// bearerToken extracts the token from an "Authorization: Bearer <jwt>" header.
// Returns "" when the header is absent or malformed.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// authError writes the standard 401 envelope without importing the handlers
// package (which would cycle).
func authError(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}

// RequireAuth validates the bearer token and injects the caller's identity
// into the Gin context. Requests without a valid token are rejected with 401.
func RequireAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			authError(c, "authentication required")
			return
		}
		claims, err := auth.ParseToken(tok)
		if err != nil {
			authError(c, "invalid or expired token")
			return
		}
		c.Set(userIDKey, claims.Subject)
		c.Set(userRoleKey, claims.Role)
		c.Next()
	}
}

// RequireAdmin validates the bearer token and requires the admin role.
// The role check runs before anything downstream: callers without a valid
// token get 401, authenticated non-admins get 403, and only admins reach
// the endpoint handler.
func RequireAdmin(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			authError(c, "authentication required")
			return
		}
		claims, err := auth.ParseToken(tok)
		if err != nil {
			authError(c, "invalid or expired token")
			return
		}
		if claims.Role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "forbidden",
				"message":    "admin role required",
			})
			return
		}
		c.Set(userIDKey, claims.Subject)
		c.Set(userRoleKey, claims.Role)
		c.Next()
	}
}

// OptionalAuth decodes a bearer token when one is supplied and silently
// continues otherwise. An invalid token is still a hard 401 so clients learn
// about expiry instead of being quietly demoted to guest quota.
func OptionalAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			c.Next()
			return
		}
		claims, err := auth.ParseToken(tok)
		if err != nil {
			authError(c, "invalid or expired token")
			return
		}
		c.Set(userIDKey, claims.Subject)
		c.Set(userRoleKey, claims.Role)
		c.Next()
	}
}

// AuthedUserID returns the authenticated user id, or "" for guest requests.
func AuthedUserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
