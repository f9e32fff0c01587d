package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(t *testing.T, opt SecurityOptions, pre gin.HandlerFunc, req *http.Request) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/api/v1/wallets/:name/balance", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecurity(t, SecurityOptions{}, nil, httptest.NewRequest(http.MethodGet, "/health", nil))

	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	if h.Get("Permissions-Policy") != "" || h.Get("Cache-Control") != "" || h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("unexpected optional headers: %#v", h)
	}
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID, Idempotency-Replayed" {
		t.Fatalf("expose headers=%q", got)
	}
}

func TestSecurityHeaders_NoStoreOnlyForPrivatePrefixes(t *testing.T) {
	opt := SecurityOptions{NoStorePrefixes: []string{"/api/v1/wallets/", ""}}

	h := serveSecurity(t, opt, nil, httptest.NewRequest(http.MethodGet, "/api/v1/wallets/gems/balance", nil))
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("wallet route must not be cacheable: %#v", h)
	}

	h = serveSecurity(t, opt, nil, httptest.NewRequest(http.MethodGet, "/health", nil))
	if h.Get("Cache-Control") != "" {
		t.Fatalf("health must stay cacheable: %#v", h)
	}
}

func TestSecurityHeaders_ExposeMergesWithoutDuplicates(t *testing.T) {
	pre := func(c *gin.Context) {
		c.Header("Access-Control-Expose-Headers", "X-Request-Id,Content-Length")
		c.Next()
	}
	h := serveSecurity(t, SecurityOptions{ExposeHeaders: []string{"Retry-After"}}, pre,
		httptest.NewRequest(http.MethodGet, "/health", nil))

	want := "X-Request-Id,Content-Length, Idempotency-Replayed, Retry-After"
	if got := h.Get("Access-Control-Expose-Headers"); got != want {
		t.Fatalf("expose=%q want %q", got, want)
	}
}

func TestSecurityHeaders_PolicyAndHSTS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.TLS = &tls.ConnectionState{}
	h := serveSecurity(t, SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour, EnablePolicy: true}, nil, req)

	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if got := h.Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("hsts=%q", got)
	}

	// Default max age, HTTPS via proxy.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	h = serveSecurity(t, SecurityOptions{EnableHSTS: true}, nil, req)
	if got := h.Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("default hsts=%q", got)
	}

	// Never over plain HTTP.
	h = serveSecurity(t, SecurityOptions{EnableHSTS: true}, nil, httptest.NewRequest(http.MethodGet, "/health", nil))
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("hsts over http")
	}
}

func Test_isHTTPS(t *testing.T) {
	if isHTTPS(httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Fatalf("plain HTTP should not be https")
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	if !isHTTPS(req) {
		t.Fatalf("TLS request should be https")
	}
}
