package handlers

import (
	"math"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/tbourn/go-iap-wallet/internal/domain"
	"github.com/tbourn/go-iap-wallet/internal/services"
)

func TestGetBalance_UnknownWalletAndZero(t *testing.T) {
	e := newTestEnv(t)

	expectError(t, e.do(t, http.MethodGet, "/wallets/rubies/balance", nil), http.StatusNotFound, ErrCodeWalletNotFound)

	w := e.do(t, http.MethodGet, "/wallets/gems/balance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	b := decode[BalanceResponse](t, w)
	if b.Balance != 0 || b.Wallet != "gems" || b.UserID != "user1" {
		t.Fatalf("unexpected: %+v", b)
	}
}

func TestAddFree_Spend_Balance(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/wallets/gems/free", AddFreeRequest{Value: 50})
	if b := decode[BalanceResponse](t, w); w.Code != http.StatusOK || b.Balance != 50 {
		t.Fatalf("free: status=%d body=%s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPost, "/wallets/gems/spend", SpendRequest{Value: 20, SpentFor: "booster"})
	if w.Code != http.StatusOK {
		t.Fatalf("spend: status=%d body=%s", w.Code, w.Body.String())
	}
	s := decode[SpendResponse](t, w)
	if s.Balance != 30 || s.Value != 20 {
		t.Fatalf("unexpected spend: %+v", s)
	}
	if w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("fresh spend must not be marked replayed")
	}

	// Wallets are independent.
	w = e.do(t, http.MethodGet, "/wallets/coins/balance", nil)
	if b := decode[BalanceResponse](t, w); b.Balance != 0 {
		t.Fatalf("coins balance=%d", b.Balance)
	}
}

func TestSpend_InsufficientFundsAndBadInput(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/wallets/gems/free", AddFreeRequest{Value: 10})

	expectError(t, e.do(t, http.MethodPost, "/wallets/gems/spend", SpendRequest{Value: 11}), http.StatusConflict, ErrCodeInsufficientFunds)
	expectError(t, e.do(t, http.MethodPost, "/wallets/gems/spend", SpendRequest{Value: -5}), http.StatusBadRequest, ErrCodeInvalidAmount)
	expectError(t, e.do(t, http.MethodPost, "/wallets/gems/spend", map[string]any{}), http.StatusBadRequest, ErrCodeBadRequest)
	expectError(t, e.do(t, http.MethodPost, "/wallets/gems/free", AddFreeRequest{Value: -1}), http.StatusBadRequest, ErrCodeInvalidAmount)

	w := e.do(t, http.MethodGet, "/wallets/gems/balance", nil)
	if b := decode[BalanceResponse](t, w); b.Balance != 10 {
		t.Fatalf("balance changed to %d", b.Balance)
	}
}

func TestSpend_IdempotencyKeyReplaysWithoutSecondDebit(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/wallets/gems/free", AddFreeRequest{Value: 100})

	key := uuid.NewString()
	first := e.do(t, http.MethodPost, "/wallets/gems/spend", SpendRequest{Value: 30}, "Idempotency-Key", key)
	if first.Code != http.StatusOK {
		t.Fatalf("first: status=%d body=%s", first.Code, first.Body.String())
	}

	second := e.do(t, http.MethodPost, "/wallets/gems/spend", SpendRequest{Value: 30}, "Idempotency-Key", key)
	if second.Code != http.StatusOK {
		t.Fatalf("replay: status=%d body=%s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("expected Idempotency-Replayed header")
	}
	if s := decode[SpendResponse](t, second); s.Balance != 70 || s.Value != 30 {
		t.Fatalf("unexpected replay body: %+v", s)
	}

	var outs int64
	if err := e.db.Model(&domain.WalletOut{}).Where("user_id = ?", "user1").Count(&outs).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if outs != 1 {
		t.Fatalf("wallet_out rows=%d want 1", outs)
	}

	// Same key, different value.
	expectError(t, e.do(t, http.MethodPost, "/wallets/gems/spend", SpendRequest{Value: 31}, "Idempotency-Key", key),
		http.StatusConflict, ErrCodeConflict)

	// Keys are scoped per wallet.
	e.do(t, http.MethodPost, "/wallets/coins/free", AddFreeRequest{Value: 40})
	w := e.do(t, http.MethodPost, "/wallets/coins/spend", SpendRequest{Value: 30}, "Idempotency-Key", key)
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("coins spend should be fresh: status=%d", w.Code)
	}
}

func TestSpend_FailedDebitDoesNotRecordKey(t *testing.T) {
	e := newTestEnv(t)
	key := uuid.NewString()

	expectError(t, e.do(t, http.MethodPost, "/wallets/gems/spend", SpendRequest{Value: 5}, "Idempotency-Key", key),
		http.StatusConflict, ErrCodeInsufficientFunds)

	var n int64
	if err := e.db.Model(&domain.Idempotency{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("idempotency rows=%d want 0", n)
	}

	// Once funded, the same key goes through.
	e.do(t, http.MethodPost, "/wallets/gems/free", AddFreeRequest{Value: 5})
	w := e.do(t, http.MethodPost, "/wallets/gems/spend", SpendRequest{Value: 5}, "Idempotency-Key", key)
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("status=%d replayed=%q", w.Code, w.Header().Get("Idempotency-Replayed"))
	}
}

func TestHistory_InOutAndPagination(t *testing.T) {
	e := newTestEnv(t)
	for i := 0; i < 3; i++ {
		e.do(t, http.MethodPost, "/wallets/gems/free", AddFreeRequest{Value: 10})
	}
	e.do(t, http.MethodPost, "/wallets/gems/spend", SpendRequest{Value: 5, SpentFor: "hat"})

	w := e.do(t, http.MethodGet, "/wallets/gems/history?page_size=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	in := decode[HistoryResponse](t, w)
	if in.Kind != "in" || len(in.Credits) != 2 || in.Pagination.Total != 3 || !in.Pagination.HasNext {
		t.Fatalf("unexpected in page: %+v", in)
	}

	w = e.do(t, http.MethodGet, "/wallets/gems/history?kind=OUT", nil)
	out := decode[HistoryResponse](t, w)
	if out.Kind != "out" || len(out.Debits) != 1 || out.Debits[0].SpentFor != "hat" {
		t.Fatalf("unexpected out page: %+v", out)
	}

	expectError(t, e.do(t, http.MethodGet, "/wallets/gems/history?kind=sideways", nil), http.StatusBadRequest, ErrCodeBadRequest)
	expectError(t, e.do(t, http.MethodGet, "/wallets/rubies/history", nil), http.StatusNotFound, ErrCodeWalletNotFound)
}

func TestReconcile_Consistent(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/wallets/gems/free", AddFreeRequest{Value: 25})
	e.do(t, http.MethodPost, "/wallets/gems/spend", SpendRequest{Value: 5})

	w := e.do(t, http.MethodGet, "/wallets/gems/reconcile", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	rec := decode[services.Reconciliation](t, w)
	if !rec.Consistent || rec.Balance != 20 || rec.Credited != 25 || rec.Debited != 5 {
		t.Fatalf("unexpected reconciliation: %+v", rec)
	}
}

func TestAddFree_OverflowIsConflict(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/wallets/gems/free", AddFreeRequest{Value: math.MaxInt64})

	expectError(t, e.do(t, http.MethodPost, "/wallets/gems/free", AddFreeRequest{Value: 1}), http.StatusConflict, ErrCodeBalanceOverflow)

	w := e.do(t, http.MethodGet, "/wallets/gems/balance", nil)
	if b := decode[BalanceResponse](t, w); b.Balance != math.MaxInt64 {
		t.Fatalf("balance changed: %d", b.Balance)
	}
}
