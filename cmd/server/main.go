// Command server runs the chat backend HTTP API.
//
// Startup order: environment + config, logging, tracing, database,
// provider adapters, guest conversation store, HTTP router. Shutdown is
// graceful: in-flight requests drain before the process exits.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adiva-ai/chat-backend/internal/config"
	"github.com/adiva-ai/chat-backend/internal/conversation"
	httpapi "github.com/adiva-ai/chat-backend/internal/http"
	"github.com/adiva-ai/chat-backend/internal/observability"
	"github.com/adiva-ai/chat-backend/internal/provider"
	"github.com/adiva-ai/chat-backend/internal/repo"
	"github.com/adiva-ai/chat-backend/internal/services"
	"github.com/adiva-ai/chat-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 10 * time.Second

// @title           Adiva Chat Backend API
// @version         1.0
// @description     Chat backend proxying OpenAI and Anthropic models with guest quotas, accounts, and admin policy.
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ver := sysutil.FirstNonEmpty(os.Getenv("SERVICE_VERSION"), version)
	log.Info().Str("version", ver).Str("mode", cfg.GinMode).Msg("starting chat backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing setup failed")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	prov := provider.NewRouter(
		provider.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.ProviderTimeout),
		provider.NewAnthropicClient(cfg.Anthropic.BaseURL, cfg.Anthropic.APIKey, cfg.AnthropicVersion, cfg.ProviderTimeout),
	)

	guests, err := conversation.NewStore(cfg.Guest.ConversationCap, cfg.Guest.HistoryPerConvo)
	if err != nil {
		log.Fatal().Err(err).Msg("guest store setup failed")
	}

	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, prov, guests, cfg)

	// Expired guest usage rows are purged in the background for the life
	// of the process.
	sweeper := &services.GuestQuotaService{
		DB:              db,
		Window:          cfg.Guest.CookieMaxAge,
		DefaultMaxChats: cfg.Guest.DefaultMaxChats,
	}
	go sweeper.RunSweeper(ctx, cfg.Guest.SweepInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout, // 0 keeps SSE connections open
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("stopped")
}
