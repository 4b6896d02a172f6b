package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func guestRouter(opts GuestCookieOptions) *gin.Engine {
	r := gin.New()
	r.Use(GuestID(opts))
	r.GET("/g", func(c *gin.Context) { c.String(http.StatusOK, GuestIDFrom(c)) })
	return r
}

func guestCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	res := w.Result()
	defer res.Body.Close()
	for _, ck := range res.Cookies() {
		if ck.Name == GuestCookieName {
			return ck
		}
	}
	t.Fatalf("no %s cookie in response", GuestCookieName)
	return nil
}

func TestGuestID_MintsAndReusesCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := guestRouter(GuestCookieOptions{MaxAge: 30 * 24 * time.Hour})

	// First visit mints a UUID cookie.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/g", nil))
	ck := guestCookie(t, w)
	if _, err := uuid.Parse(ck.Value); err != nil {
		t.Fatalf("cookie value %q is not a UUID: %v", ck.Value, err)
	}
	if !ck.HttpOnly || ck.SameSite != http.SameSiteLaxMode || ck.Path != "/" {
		t.Fatalf("cookie attributes wrong: %+v", ck)
	}
	if ck.MaxAge != int((30 * 24 * time.Hour).Seconds()) {
		t.Fatalf("MaxAge = %d", ck.MaxAge)
	}
	if w.Body.String() != ck.Value {
		t.Fatalf("context id %q != cookie %q", w.Body.String(), ck.Value)
	}

	// Second visit with the cookie keeps the same identity and does not
	// write Set-Cookie again; the expiry stays fixed from first contact.
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/g", nil)
	req.AddCookie(&http.Cookie{Name: GuestCookieName, Value: ck.Value})
	r.ServeHTTP(w2, req)
	if w2.Body.String() != ck.Value {
		t.Fatalf("identity changed across requests: %q != %q", w2.Body.String(), ck.Value)
	}
	res := w2.Result()
	defer res.Body.Close()
	if len(res.Cookies()) != 0 {
		t.Fatalf("returning visitor should get no Set-Cookie, got %v", res.Cookies())
	}
}

func TestGuestID_RejectsTamperedCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := guestRouter(GuestCookieOptions{MaxAge: time.Hour})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/g", nil)
	req.AddCookie(&http.Cookie{Name: GuestCookieName, Value: "'; DROP TABLE guests;--"})
	r.ServeHTTP(w, req)

	got := guestCookie(t, w).Value
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("tampered cookie not replaced: %q", got)
	}
}

func TestGuestID_SecureFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := guestRouter(GuestCookieOptions{MaxAge: time.Hour, Secure: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/g", nil))
	if !guestCookie(t, w).Secure {
		t.Fatal("Secure attribute not set")
	}
}

func TestGuestID_SkipsAuthedRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(userIDKey, "user-1"); c.Next() })
	r.Use(GuestID(GuestCookieOptions{MaxAge: time.Hour}))
	r.GET("/g", func(c *gin.Context) { c.String(http.StatusOK, GuestIDFrom(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/g", nil))
	if w.Body.String() != "" {
		t.Fatalf("authed request should carry no guest id, got %q", w.Body.String())
	}
	res := w.Result()
	defer res.Body.Close()
	if len(res.Cookies()) != 0 {
		t.Fatalf("no cookie expected for authed request, got %v", res.Cookies())
	}
}
