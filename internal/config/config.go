// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// logging, database paths, upstream AI providers, authentication, guest
// limits, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists the origins allowed to call the API from a browser. An
// empty list means allow-all without credentials.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig feeds the security-header middleware.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig controls the OpenTelemetry trace exporter.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "adiva-chat-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// ProviderConfig holds credentials and the endpoint for one upstream
// AI provider.
type ProviderConfig struct {
	APIKey  string // provider API key
	BaseURL string // scheme+host, no trailing slash
}

// AuthConfig defines session token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string        // JWT_SECRET (required outside debug mode)
	JWTTTL     time.Duration // session token lifetime
	BcryptCost int           // bcrypt work factor
}

// GuestConfig defines anonymous-visitor bookkeeping settings.
type GuestConfig struct {
	CookieMaxAge    time.Duration // guest_id cookie and usage-record lifetime
	SweepInterval   time.Duration // how often expired usage records are purged
	ConversationCap int           // max guest conversations held in memory (LRU)
	HistoryPerConvo int           // turns retained per guest conversation
	SecureCookie    bool          // Secure attribute on guest_id (production)
	DefaultMaxChats int           // fallback guest message ceiling
}

// Config is the full runtime configuration, loaded once at startup.
type Config struct {
	// Server
	Port              string // listen port, no colon
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration // 0 disables (SSE holds connections open)
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath           string        // SQLite path
	SettingsCacheTTL time.Duration // admin-settings read cache TTL

	// Upstream providers
	OpenAI           ProviderConfig
	Anthropic        ProviderConfig
	AnthropicVersion string        // anthropic-version request header
	ProviderTimeout  time.Duration // deadline on every upstream call

	// Auth & guests
	Auth  AuthConfig
	Guest GuestConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// IsProduction reports whether the server runs in release mode. It controls
// the Secure cookie attribute and error-detail suppression.
func (c Config) IsProduction() bool { return c.GinMode == "release" }

// MustLoad is Load for main: configuration errors are fatal at startup.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, fills in defaults, normalizes, and validates.
func Load() (Config, error) {
	ginMode := strings.ToLower(getenv("GIN_MODE", "release"))

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 0),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           ginMode,

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// App
		DBPath:           getenv("DB_PATH", "app.db"),
		SettingsCacheTTL: getdur("SETTINGS_CACHE_TTL", 30*time.Second),

		// Upstream providers
		OpenAI: ProviderConfig{
			APIKey:  getenv("OPENAI_API_KEY", ""),
			BaseURL: trimBaseURL(getenv("OPENAI_BASE_URL", "https://api.openai.com")),
		},
		Anthropic: ProviderConfig{
			APIKey:  getenv("ANTHROPIC_API_KEY", ""),
			BaseURL: trimBaseURL(getenv("ANTHROPIC_BASE_URL", "https://api.anthropic.com")),
		},
		AnthropicVersion: getenv("ANTHROPIC_VERSION", "2023-06-01"),
		ProviderTimeout:  getdur("PROVIDER_TIMEOUT", 60*time.Second),

		// Auth & guests
		Auth: AuthConfig{
			JWTSecret:  getenv("JWT_SECRET", ""),
			JWTTTL:     getdur("JWT_TTL", 7*24*time.Hour),
			BcryptCost: getint("BCRYPT_COST", 12),
		},
		Guest: GuestConfig{
			CookieMaxAge:    getdur("GUEST_COOKIE_MAX_AGE", 30*24*time.Hour),
			SweepInterval:   getdur("GUEST_SWEEP_INTERVAL", time.Hour),
			ConversationCap: getint("GUEST_CONVERSATION_CAP", 512),
			HistoryPerConvo: getint("GUEST_HISTORY_PER_CONVO", 10),
			SecureCookie:    getbool("GUEST_COOKIE_SECURE", ginMode == "release"),
			DefaultMaxChats: getint("GUEST_MAX_CHATS_DEFAULT", 5),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "adiva-chat-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.WriteTimeout < 0 {
		return cfg, errors.New("WRITE_TIMEOUT must be >= 0 (0 disables)")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.SettingsCacheTTL < 0 {
		return cfg, errors.New("SETTINGS_CACHE_TTL must be >= 0")
	}
	if cfg.ProviderTimeout <= 0 {
		return cfg, errors.New("PROVIDER_TIMEOUT must be > 0")
	}
	if cfg.GinMode != "debug" && strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return cfg, errors.New("JWT_SECRET must be set outside debug mode")
	}
	if cfg.Auth.JWTTTL <= 0 {
		return cfg, errors.New("JWT_TTL must be > 0")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return cfg, errors.New("BCRYPT_COST must be in [4,31]")
	}
	if cfg.Guest.CookieMaxAge <= 0 {
		return cfg, errors.New("GUEST_COOKIE_MAX_AGE must be > 0")
	}
	if cfg.Guest.SweepInterval <= 0 {
		return cfg, errors.New("GUEST_SWEEP_INTERVAL must be > 0")
	}
	if cfg.Guest.ConversationCap < 1 {
		return cfg, errors.New("GUEST_CONVERSATION_CAP must be >= 1")
	}
	if cfg.Guest.HistoryPerConvo < 1 {
		return cfg, errors.New("GUEST_HISTORY_PER_CONVO must be >= 1")
	}
	if cfg.Guest.DefaultMaxChats < 1 {
		return cfg, errors.New("GUEST_MAX_CHATS_DEFAULT must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Env readers. Unset, empty, and unparsable values all fall back to the
// default so a typo degrades to known behavior instead of a crash.

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// trimBaseURL strips trailing slashes so callers can append paths directly.
func trimBaseURL(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}

// normalizeBasePath ensures a leading '/' and strips any trailing '/'
// (except for the bare root path).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
