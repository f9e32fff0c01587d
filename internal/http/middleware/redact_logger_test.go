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

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("bad log line: %v (%s)", err, buf.String())
	}
	return m
}

const (
	fakeAppleReceipt = "MIITtgYJKoZIhvcNAQcCoIITpzCCE6MCAQExCzAJBgUrDgMCGgUAMIIDVwYJKoZIhvcNAQcBoIIDSASCA0Qxgg=="
	fakePlayToken    = "opaque-token-up-to-150-chars.AO-J1Oy3pVWAbcdefghijklmnopqrstuvwxyz0123456789"
)

func TestRedactQuery(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"kind=out&page=2", "kind=out&page=2"},
		{"receipt=" + fakeAppleReceipt + "&page=1", "receipt=[REDACTED]&page=1"},
		{"purchaseToken=abc", "purchaseToken=[REDACTED]"},
		{"who=a.b+tag@example.com", "who=[REDACTED:email]"},
		{"key=123e4567-e89b-12d3-a456-426614174000", "key=[REDACTED:id]"},
		{"blob=" + fakePlayToken, "blob=[REDACTED:token]"},
	}
	for _, tc := range cases {
		if got := redactQuery(tc.in); got != tc.want {
			t.Fatalf("redactQuery(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactingLogger_MasksCredentialsAndReceipts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-resp"); c.Next() })
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/wallets/:name/history", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/wallets/gems/history?kind=in&token=tok123", nil)
	req.Header.Set("Authorization", "Bearer ya29.secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set("X-Debug-Receipt", fakeAppleReceipt)
	req.Header.Set("X-User-ID", "a@b.com")
	req.Header.Set("X-Request-ID", "rid-req")
	r.ServeHTTP(httptest.NewRecorder(), req)

	m := lastLogLine(t, buf)
	if m["level"] != "info" || m["path"] != "/wallets/:name/history" || m["request_id"] != "rid-resp" {
		t.Fatalf("unexpected log: %v", m)
	}
	if m["query"] != "kind=in&token=[REDACTED]" {
		t.Fatalf("query=%v", m["query"])
	}
	h, _ := m["headers"].(map[string]any)
	want := map[string]string{
		"Authorization":   "[REDACTED]",
		"Cookie":          "[REDACTED]",
		"X-Api-Key":       "[REDACTED]",
		"X-Debug-Receipt": "[REDACTED:token]",
		"X-User-Id":       "[REDACTED:email]",
	}
	for k, v := range want {
		if h[k] != v {
			t.Fatalf("header %s=%v want %q (all: %v)", k, h[k], v, h)
		}
	}
	if strings.Contains(buf.String(), "topsecret") || strings.Contains(buf.String(), "MIITtg") {
		t.Fatalf("secret leaked: %s", buf.String())
	}
}

func TestRedactingLogger_LevelsErrorsAndRequestIDFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusConflict) })
	r.GET("/error", func(c *gin.Context) {
		_ = c.Error(errSentinel{})
		c.Status(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/warn", nil)
	req.Header.Set("X-Request-ID", "rid-warn")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if m := lastLogLine(t, buf); m["level"] != "warn" || m["request_id"] != "rid-warn" {
		t.Fatalf("warn log: %v", m)
	}

	req = httptest.NewRequest(http.MethodGet, "/error", nil)
	req.Header.Set("X-Request-ID", "rid-err")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if m := lastLogLine(t, buf); m["level"] != "error" || m["request_id"] != "rid-err" || m["errors"] == nil {
		t.Fatalf("error log: %v", m)
	}
}

func TestRedactingLogger_ContextLoggerCarriesRequestIDAndWallet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(RedactingLogger(RedactOptions{}))
	r.POST("/wallets/:name/spend", func(c *gin.Context) {
		log.Ctx(c.Request.Context()).Info().Msg("wallet debited")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/wallets/gems/spend", nil)
	req.Header.Set("X-Request-ID", "rid-spend")
	r.ServeHTTP(httptest.NewRecorder(), req)

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad line %q", line)
		}
		if m["message"] == "wallet debited" {
			if m["request_id"] != "rid-spend" || m["wallet"] != "gems" {
				t.Fatalf("context logger fields: %v", m)
			}
			return
		}
	}
	t.Fatalf("service log not found: %s", buf.String())
}
