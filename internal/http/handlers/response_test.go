package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// serveFail runs fail behind a stub RequestID/Logger pair and returns the
// recorder plus whatever the request logger wrote.
func serveFail(t *testing.T, status int, code, msg string) (*httptest.ResponseRecorder, ErrorResponse, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-fail")
		c.Set("logger", &logger)
		c.Next()
	})
	r.POST("/wallets/:name/spend", func(c *gin.Context) { fail(c, status, code, msg) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/wallets/gems/spend", nil))

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	return w, resp, buf.String()
}

func logLevel(t *testing.T, line string) string {
	t.Helper()
	if line == "" {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace([]byte(line)), &m); err != nil {
		t.Fatalf("bad log line %q", line)
	}
	s, _ := m["level"].(string)
	return s
}

func TestFail_EnvelopeRetryableAndLogLevel(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		code      string
		retryable bool
		level     string
	}{
		{"client error is not logged", http.StatusConflict, ErrCodeInsufficientFunds, false, ""},
		{"internal error", http.StatusInternalServerError, ErrCodeInternal, false, "error"},
		{"storefront down", http.StatusBadGateway, ErrCodeVerificationUnavailable, true, "warn"},
		{"storefront timeout", http.StatusGatewayTimeout, ErrCodeVerificationTimeout, true, "warn"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, resp, logs := serveFail(t, tc.status, tc.code, "msg")
			if w.Code != tc.status {
				t.Fatalf("status=%d", w.Code)
			}
			if resp.RequestID != "rid-fail" || resp.Code != tc.code || resp.Message != "msg" || resp.Retryable != tc.retryable {
				t.Fatalf("unexpected body: %+v", resp)
			}
			if got := logLevel(t, logs); got != tc.level {
				t.Fatalf("log level=%q want %q (%s)", got, tc.level, logs)
			}
		})
	}
}

func TestFail_OmitsRetryableWhenFalse(t *testing.T) {
	w, _, _ := serveFail(t, http.StatusNotFound, ErrCodeWalletNotFound, "wallet not found")
	if bytes.Contains(w.Body.Bytes(), []byte("retryable")) {
		t.Fatalf("retryable should be omitted: %s", w.Body.String())
	}
}

func TestSuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/wallets/:name", func(c *gin.Context) {
		ok(c, http.StatusOK, BalanceResponse{Wallet: c.Param("name"), UserID: "u1", Balance: 120})
	})
	r.PUT("/iap/receipts/status", func(c *gin.Context) { noContent(c) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallets/gems", nil))
	var bal BalanceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &bal); err != nil || w.Code != http.StatusOK {
		t.Fatalf("ok: code=%d err=%v", w.Code, err)
	}
	if bal.Wallet != "gems" || bal.Balance != 120 {
		t.Fatalf("unexpected body: %+v", bal)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/iap/receipts/status", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("noContent: code=%d body=%q", w.Code, w.Body.String())
	}
}
