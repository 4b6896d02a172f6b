package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLogger swaps the global logger for a buffer for the duration of the
// test so assertions can inspect the emitted JSON lines.
func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) {
		if v, ok := c.Get(requestIDKey); !ok || v == "" {
			t.Fatal("request id missing from context")
		}
		c.Status(http.StatusNoContent)
	})

	// Absent header: a fresh id is generated and echoed back.
	w := serve(r, httptest.NewRequest(http.MethodGet, "/rid", nil))
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("no generated id on the response")
	}

	// Incoming ids survive, regardless of header casing.
	for _, header := range []string{requestIDHeader, strings.ToLower(requestIDHeader)} {
		req := httptest.NewRequest(http.MethodGet, "/rid", nil)
		req.Header.Set(header, "req-7")
		if got := serve(r, req).Header().Get(requestIDHeader); got != "req-7" {
			t.Fatalf("header %q: propagated id = %q, want req-7", header, got)
		}
	}
}

func TestLogger_LevelPerOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/fine", func(c *gin.Context) { c.String(http.StatusOK, "hi") })
	r.GET("/broken", func(c *gin.Context) {
		_ = c.Error(errBoom{})
		c.Status(http.StatusBadRequest)
	})

	serve(r, httptest.NewRequest(http.MethodGet, "/fine", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/gone", nil)) // 404, raw path fallback
	serve(r, httptest.NewRequest(http.MethodGet, "/broken", nil))

	logs := buf.String()
	for _, want := range []string{
		`"level":"info"`, `"path":"/fine"`,
		`"level":"warn"`, `"path":"/gone"`,
		`"level":"error"`,
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("missing %s in:\n%s", want, logs)
		}
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestRecovery_JSON500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/panic", func(*gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("panic not logged:\n%s", buf.String())
	}
}

func TestRecovery_PanicAfterWriteLeavesBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("too late")
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/late", nil))
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("JSON error body written over a partial response: %q", w.Body.String())
	}
}

func TestLoggerFrom_ScopedAndFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Without Logger() installed the fallback carries no request fields.
	buf := captureLogger(t)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("bare")
		c.Status(http.StatusOK)
	})
	serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	if out := buf.String(); !strings.Contains(out, `"message":"bare"`) || strings.Contains(out, `"request_id"`) {
		t.Fatalf("fallback logger output wrong:\n%s", out)
	}

	// With Logger() the scoped logger carries the correlation id.
	buf = captureLogger(t)
	r = gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/x", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("scoped")
		c.Status(http.StatusOK)
	})
	serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	if out := buf.String(); !strings.Contains(out, `"message":"scoped"`) || !strings.Contains(out, `"request_id"`) {
		t.Fatalf("scoped logger output wrong:\n%s", out)
	}
}

func TestCtxStrAndClip(t *testing.T) {
	if ctxStr("x") != "x" || ctxStr(42) != "" || ctxStr(nil) != "" {
		t.Fatal("ctxStr conversions wrong")
	}
	if clip("short", 10) != "short" {
		t.Fatal("clip touched a short string")
	}
	if got := clip("abcdefgh", 5); got != "abcde…" {
		t.Fatalf("clip = %q", got)
	}
	if clip("abc", 0) != "abc" {
		t.Fatal("clip with max 0 should be a no-op")
	}
}
