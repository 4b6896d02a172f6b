// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file manages the guest identity cookie. Anonymous visitors are keyed
// by an opaque UUID stored in an httpOnly "guest_id" cookie; the quota ledger
// and the in-memory conversation store both hang off that id.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// GuestCookieName is the cookie carrying the anonymous visitor id.
	GuestCookieName = "guest_id"

	guestIDKey = "guestID"
)

// GuestCookieOptions controls how the guest_id cookie is minted.
type GuestCookieOptions struct {
	// MaxAge is the cookie lifetime, fixed at first contact.
	MaxAge time.Duration
	// Secure marks the cookie HTTPS-only. On in production.
	Secure bool
}

// GuestID reads the guest_id cookie, minting a fresh UUID when the request
// carries none, and stores the value under the "guestID" context key. The
// cookie is written only when a new id is minted; returning visitors keep
// their original cookie and expiry. Authenticated requests pass through
// untouched; their identity comes from the bearer token.
func GuestID(opts GuestCookieOptions) gin.HandlerFunc {
	maxAge := int(opts.MaxAge / time.Second)
	return func(c *gin.Context) {
		if AuthedUserID(c) != "" {
			c.Next()
			return
		}

		gid, err := c.Cookie(GuestCookieName)
		minted := err != nil || !validGuestID(gid)
		if minted {
			gid = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     GuestCookieName,
				Value:    gid,
				Path:     "/",
				MaxAge:   maxAge,
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(guestIDKey, gid)
		c.Next()
	}
}

// GuestIDFrom returns the guest id attached by GuestID, or "".
func GuestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(guestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// validGuestID rejects tampered cookie values; only UUIDs are accepted.
func validGuestID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
