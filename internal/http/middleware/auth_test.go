package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/adiva-ai/chat-backend/internal/repo"
	"github.com/adiva-ai/chat-backend/internal/services"
)

func newAuthService(t *testing.T) *services.AuthService {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth_mw_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &services.AuthService{
		DB:         db,
		JWTSecret:  []byte("mw-test-secret"),
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := newAuthService(t)
	_, token, err := auth.Register(context.Background(), "mw@example.com", "pw", "MW")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	r := gin.New()
	r.Use(RequireAuth(auth))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, AuthedUserID(c))
	})

	// No token.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token -> %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["code"] != "unauthorized" {
		t.Fatalf("body = %s (err %v)", w.Body.String(), err)
	}

	// Garbage token.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token -> %d", w.Code)
	}

	// Valid token.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() == "" {
		t.Fatalf("valid token -> %d %q", w.Code, w.Body.String())
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := newAuthService(t)
	ctx := context.Background()

	_, userToken, err := auth.Register(ctx, "plain@example.com", "pw", "Plain")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	admin, err := repo.CreateUser(ctx, auth.DB, "boss@example.com", string(hash), "Boss", "admin")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	_, adminToken, err := auth.Login(ctx, admin.Email, "pw")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}

	var handlerRuns int
	r := gin.New()
	r.Use(RequireAdmin(auth))
	r.GET("/admin", func(c *gin.Context) {
		handlerRuns++
		c.Status(http.StatusOK)
	})

	// Missing token never reaches the handler.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token on admin route -> %d", w.Code)
	}

	// Neither does a valid non-admin token: 403 with zero handler execution.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("user token on admin route -> %d", w.Code)
	}
	if handlerRuns != 0 {
		t.Fatalf("admin handler ran %d times for non-admin callers", handlerRuns)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || handlerRuns != 1 {
		t.Fatalf("admin token -> %d (runs %d)", w.Code, handlerRuns)
	}
}

func TestOptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := newAuthService(t)
	u, token, err := auth.Register(context.Background(), "opt@example.com", "pw", "Opt")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	r := gin.New()
	r.Use(OptionalAuth(auth))
	r.GET("/chat", func(c *gin.Context) { c.String(http.StatusOK, AuthedUserID(c)) })

	// Anonymous passes through with no identity.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat", nil))
	if w.Code != http.StatusOK || w.Body.String() != "" {
		t.Fatalf("anonymous -> %d %q", w.Code, w.Body.String())
	}

	// Token is honored when present.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Body.String() != u.ID {
		t.Fatalf("authed identity = %q, want %q", w.Body.String(), u.ID)
	}

	// A bad token is rejected rather than silently demoted to guest.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token -> %d", w.Code)
	}
}
