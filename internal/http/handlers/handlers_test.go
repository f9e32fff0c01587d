package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-iap-wallet/internal/iap"
	"github.com/tbourn/go-iap-wallet/internal/repo"
	"github.com/tbourn/go-iap-wallet/internal/services"
)

// ---------- test DB + fakes ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db = db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// stubVerifier returns the same outcome (or error) for every call.
type stubVerifier struct {
	out   *iap.Outcome
	err   error
	calls int32
}

func (s *stubVerifier) Verify(context.Context, iap.Receipt) (*iap.Outcome, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

type testEnv struct {
	r      *gin.Engine
	db     *gorm.DB
	apple  *stubVerifier
	google *stubVerifier
	svc    *services.PurchaseService
	reg    *services.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	apple := &stubVerifier{out: &iap.Outcome{Validated: true, RawResponse: `{"status":0}`}}
	google := &stubVerifier{out: &iap.Outcome{Validated: true, RawResponse: `{"purchaseState":0}`}}
	reg := services.NewRegistry(db, []string{"gems", "coins"})
	svc := services.NewPurchaseService(db, apple, google, reg)

	h := New(svc, reg, 0)
	r := gin.New()
	r.POST("/iap/apple/validate", h.ValidateApple)
	r.POST("/iap/google/validate", h.ValidateGoogle)
	r.PUT("/iap/status", h.UpdateStatus)
	r.GET("/iap/receipts/:hash", h.GetReceipt)
	r.POST("/iap/redeem", h.Redeem)
	r.GET("/wallets/:name/balance", h.GetBalance)
	r.POST("/wallets/:name/free", h.AddFree)
	r.POST("/wallets/:name/spend", h.Spend)
	r.GET("/wallets/:name/history", h.History)
	r.GET("/wallets/:name/reconcile", h.Reconcile)

	return &testEnv{r: r, db: db, apple: apple, google: google, svc: svc, reg: reg}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user1")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status=%d want %d body=%s", w.Code, status, w.Body.String())
	}
	if er := decode[ErrorResponse](t, w); er.Code != code {
		t.Fatalf("code=%q want %q", er.Code, code)
	}
}

// ---------- tests ----------

func TestNew_DefaultsIdempotencyTTL(t *testing.T) {
	h := New(nil, nil, 0)
	if h.idemTTL <= 0 {
		t.Fatalf("expected positive default TTL, got %v", h.idemTTL)
	}
}

func TestUserID_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := userID(c); got != "demo-user" {
		t.Fatalf("fallback=%q", got)
	}
	c.Request.Header.Set("X-User-ID", "  hdr  ")
	if got := userID(c); got != "hdr" {
		t.Fatalf("header=%q", got)
	}
	c.Set("userID", "ctx")
	if got := userID(c); got != "ctx" {
		t.Fatalf("ctx=%q", got)
	}
}

func TestClampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		q          string
		page, size int
	}{
		{"", 1, 20},
		{"page=0&page_size=0", 1, 1},
		{"page=3&page_size=500", 3, 100},
		{"page=x&page_size=y", 1, 20},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+tc.q, nil)
		p, s := clampPagination(c)
		if p != tc.page || s != tc.size {
			t.Fatalf("%q: got (%d,%d) want (%d,%d)", tc.q, p, s, tc.page, tc.size)
		}
	}
}

func TestNewPagination(t *testing.T) {
	p := newPagination(1, 20, 41)
	if p.TotalPages != 3 || !p.HasNext {
		t.Fatalf("unexpected: %+v", p)
	}
	p = newPagination(3, 20, 41)
	if p.HasNext {
		t.Fatalf("last page should not have next: %+v", p)
	}
	p = newPagination(1, 20, 0)
	if p.TotalPages != 0 || p.HasNext {
		t.Fatalf("empty: %+v", p)
	}
}
