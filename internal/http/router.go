// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	_ "github.com/adiva-ai/chat-backend/docs"
	"github.com/adiva-ai/chat-backend/internal/config"
	"github.com/adiva-ai/chat-backend/internal/conversation"
	"github.com/adiva-ai/chat-backend/internal/http/handlers"
	"github.com/adiva-ai/chat-backend/internal/http/middleware"
	"github.com/adiva-ai/chat-backend/internal/provider"
	"github.com/adiva-ai/chat-backend/internal/services"
)

// maxImageBody caps multipart uploads on the image endpoint: the 10 MiB
// image plus headroom for the other form fields.
const maxImageBody = handlers.MaxImageBytes + (2 << 20)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, and then mounts
// the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. Rate limiter (per user/IP)
//  7. CORS and Security headers
//  8. Response compression (SSE and metrics excluded)
//
// Body size limits are applied per group rather than globally: JSON routes
// get 1 MiB, the image upload route gets maxImageBody.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, prov provider.Client, guests *conversation.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 6) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 7) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORS.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag"},
			// Guest identity rides a cookie, so credentialed CORS is
			// required when an allowlist is configured.
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// 8) Compress JSON responses. SSE must stay unbuffered and Prometheus
	// negotiates its own encoding.
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		apiBase + "/chat/stream",
		"/metrics",
	})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs (off by default)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db/provider/guest store
	settingsSvc := services.NewSettingsService(db, cfg.SettingsCacheTTL)
	authSvc := &services.AuthService{
		DB:         db,
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
		TokenTTL:   cfg.Auth.JWTTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}
	quotaSvc := &services.GuestQuotaService{
		DB:              db,
		Window:          cfg.Guest.CookieMaxAge,
		DefaultMaxChats: cfg.Guest.DefaultMaxChats,
	}
	chatSvc := &services.ChatService{
		DB:          db,
		Provider:    prov,
		Guests:      guests,
		Settings:    settingsSvc,
		TitleLocale: language.English,
		TitleMaxLen: 60,
	}
	userSettingsSvc := &services.UserSettingsService{DB: db}
	analyticsSvc := &services.AnalyticsService{DB: db, Settings: settingsSvc}

	h := handlers.New(chatSvc, authSvc, quotaSvc, settingsSvc, userSettingsSvc, analyticsSvc)

	guestCookie := middleware.GuestCookieOptions{
		MaxAge: cfg.Guest.CookieMaxAge,
		Secure: cfg.Guest.SecureCookie,
	}

	// Public API
	api := groupWithPrefix(r, apiBase)
	api.Use(limitBody(1 << 20))
	{
		// Accounts
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.GET("/auth/me", middleware.RequireAuth(authSvc), h.Me)

		// Model catalog (public, filtered by the admin allow-list)
		api.GET("/ai-models", h.ListModels)
		api.GET("/ai-models/:id", h.GetModel)

		// Conversational endpoints: shared by guests and registered users.
		// A bearer token routes to persistent chats, otherwise the guest
		// cookie routes to the in-memory store behind the quota gate.
		chat := api.Group("", middleware.OptionalAuth(authSvc), middleware.GuestID(guestCookie))
		{
			chat.POST("/chat", h.PostChat)
			chat.POST("/chat/stream", h.PostChatStream)
			chat.GET("/conversations", h.ListConversations)
			chat.GET("/conversations/:id", h.GetConversation)
			chat.DELETE("/conversations/:id", h.DeleteConversation)
		}

		// Authenticated surface
		user := api.Group("", middleware.RequireAuth(authSvc))
		{
			user.POST("/generate", h.Generate)

			user.GET("/chats", h.ListChats)
			user.GET("/chats/search", h.SearchChats)
			user.GET("/chats/:id", h.GetChat)
			user.PUT("/chats/:id/title", h.UpdateChatTitle)
			user.POST("/chats/:id/archive", h.ArchiveChat)
			user.POST("/chats/:id/restore", h.RestoreChat)
			user.DELETE("/chats/:id", h.DeleteChat)

			user.GET("/settings", h.GetUserSettings)
			user.PUT("/settings", h.UpdateUserSettings)
			user.DELETE("/settings", h.ResetUserSettings)
		}

		// Admin surface
		admin := api.Group("/admin", middleware.RequireAdmin(authSvc))
		{
			admin.GET("/settings", h.GetAdminSettings)
			admin.PUT("/settings", h.UpdateAdminSettings)
			admin.GET("/users", h.ListUsers)
			admin.GET("/analytics", h.GetAnalytics)
		}
	}

	// Image uploads carry multi-megabyte bodies, so the route sits outside
	// the 1 MiB group with its own cap.
	upload := groupWithPrefix(r, apiBase)
	upload.Use(limitBody(maxImageBody),
		middleware.OptionalAuth(authSvc), middleware.GuestID(guestCookie))
	upload.POST("/chat-with-image", h.PostChatWithImage)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
