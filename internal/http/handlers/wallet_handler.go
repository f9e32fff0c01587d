// Wallet HTTP handlers.
//
// This file exposes REST endpoints for named wallets:
//   - GET  /wallets/{name}/balance     (current balance)
//   - POST /wallets/{name}/free        (grant free value)
//   - POST /wallets/{name}/spend       (debit, Idempotency-Key aware)
//   - GET  /wallets/{name}/history     (paginated credits or debits)
//   - GET  /wallets/{name}/reconcile   (balance vs. history check)
//
// Idempotency:
// If the client supplies an Idempotency-Key header on a spend, the key is
// recorded inside the debit transaction. A later request with the same
// (user, wallet, key) returns the recorded result with
// `Idempotency-Replayed: true` and does not debit again.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-iap-wallet/internal/domain"
	"github.com/tbourn/go-iap-wallet/internal/http/middleware"
	"github.com/tbourn/go-iap-wallet/internal/repo"
	"github.com/tbourn/go-iap-wallet/internal/services"
)

//
// DTOs
//

// BalanceResponse is the balance of one user in one wallet.
type BalanceResponse struct {
	Wallet  string `json:"wallet" example:"gems"`
	UserID  string `json:"user_id" example:"user123"`
	Balance int64  `json:"balance" example:"120"`
}

// AddFreeRequest is the JSON payload for granting free value.
type AddFreeRequest struct {
	// ReceiptHashID optionally ties the grant to a receipt or campaign.
	ReceiptHashID string `json:"receiptHashId" example:""`
	Value         int64  `json:"value" binding:"required" example:"50"`
}

// SpendRequest is the JSON payload for spending value.
type SpendRequest struct {
	Value    int64  `json:"value" binding:"required" example:"20"`
	SpentFor string `json:"spentFor" binding:"max=255" example:"sword_of_truth"`
}

// SpendResponse reports a completed (or replayed) spend.
type SpendResponse struct {
	Wallet  string `json:"wallet" example:"gems"`
	UserID  string `json:"user_id" example:"user123"`
	Value   int64  `json:"value" example:"20"`
	Balance int64  `json:"balance" example:"100"`
}

// HistoryResponse holds one page of credits (kind=in) or debits (kind=out).
type HistoryResponse struct {
	Wallet     string             `json:"wallet"`
	Kind       string             `json:"kind" enums:"in,out"`
	Credits    []domain.WalletIn  `json:"credits,omitempty"`
	Debits     []domain.WalletOut `json:"debits,omitempty"`
	Pagination Pagination         `json:"pagination"`
}

//
// Helpers
//

// idempotencyKey returns the key validated by middleware.IdempotencyValidator,
// or the raw header when that middleware is not installed.
func idempotencyKey(c *gin.Context) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}

func (h *Handlers) wallet(c *gin.Context) (*services.Wallet, bool) {
	w, err := h.wallets.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		failService(c, err, "wallet lookup failed")
		return nil, false
	}
	return w, true
}

// replaySpend answers a spend whose key was already recorded.
func (h *Handlers) replaySpend(c *gin.Context, w *services.Wallet, uid string, rec *domain.Idempotency, value int64) {
	if !rec.SameRequest(value) {
		fail(c, http.StatusConflict, ErrCodeConflict, "Idempotency-Key reused with a different value")
		return
	}
	balance, err := w.GetBalanceByUserID(c.Request.Context(), uid)
	if err != nil {
		failService(c, err, "balance lookup failed")
		return
	}
	c.Header("Idempotency-Replayed", "true")
	ok(c, rec.Status, SpendResponse{Wallet: w.Name, UserID: uid, Value: rec.Value, Balance: balance})
}

//
// Handlers
//

// GetBalance godoc
// @ID          getWalletBalance
// @Summary     Get a wallet balance
// @Tags        Wallets
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       name       path    string  true  "Wallet name"            example(gems)
//
// @Success     200  {object}  handlers.BalanceResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Wallet not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /wallets/{name}/balance [get]
func (h *Handlers) GetBalance(c *gin.Context) {
	w, found := h.wallet(c)
	if !found {
		return
	}
	uid := userID(c)
	balance, err := w.GetBalanceByUserID(c.Request.Context(), uid)
	if err != nil {
		failService(c, err, "balance lookup failed")
		return
	}
	ok(c, http.StatusOK, BalanceResponse{Wallet: w.Name, UserID: uid, Balance: balance})
}

// AddFree godoc
// @ID          addFreeValue
// @Summary     Grant free value
// @Tags        Wallets
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       name       path    string  true  "Wallet name"            example(gems)
// @Param       body       body    handlers.AddFreeRequest  true  "Grant payload"
//
// @Success     200  {object}  handlers.BalanceResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Wallet not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Balance would overflow"
// @Router      /wallets/{name}/free [post]
func (h *Handlers) AddFree(c *gin.Context) {
	var req AddFreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value required")
		return
	}
	w, found := h.wallet(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)
	if err := w.AddFree(ctx, strings.TrimSpace(req.ReceiptHashID), uid, req.Value, nil); err != nil {
		failService(c, err, "credit failed")
		return
	}
	balance, err := w.GetBalanceByUserID(ctx, uid)
	if err != nil {
		failService(c, err, "balance lookup failed")
		return
	}
	ok(c, http.StatusOK, BalanceResponse{Wallet: w.Name, UserID: uid, Balance: balance})
}

// Spend godoc
// @ID          spendValue
// @Summary     Spend value from a wallet
// @Description Debits the wallet if the balance covers the value. Supports idempotency via the Idempotency-Key header (same key, same result).
// @Tags        Wallets
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       name             path    string  true  "Wallet name"            example(gems)
// @Param       body             body    handlers.SpendRequest  true  "Spend payload"
//
// @Success     200  {object}  handlers.SpendResponse
// @Header      200  {string}  Idempotency-Replayed  "true when a recorded result was returned"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Wallet not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Insufficient funds or key conflict"
// @Router      /wallets/{name}/spend [post]
func (h *Handlers) Spend(c *gin.Context) {
	var req SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value required")
		return
	}
	w, found := h.wallet(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)
	key := idempotencyKey(c)

	// Replay path.
	if key != "" {
		rec, err := repo.GetIdempotency(ctx, w.DB, uid, w.Name, key, time.Now().UTC())
		if err == nil {
			h.replaySpend(c, w, uid, rec, req.Value)
			return
		}
		if !errors.Is(err, repo.ErrNotFound) {
			failService(c, err, "idempotency lookup failed")
			return
		}
	}

	// The key commits with the debit or not at all.
	var record services.TxFunc
	if key != "" {
		record = func(tx *gorm.DB) error {
			_, err := repo.CreateIdempotency(ctx, tx, uid, w.Name, key, req.Value, http.StatusOK, h.idemTTL)
			return err
		}
	}

	err := w.Spend(ctx, uid, req.Value, strings.TrimSpace(req.SpentFor), record)
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent request with the same key won; serve its result.
		rec, gerr := repo.GetIdempotency(ctx, w.DB, uid, w.Name, key, time.Now().UTC())
		if gerr != nil {
			failService(c, gerr, "idempotency lookup failed")
			return
		}
		h.replaySpend(c, w, uid, rec, req.Value)
		return
	}
	if err != nil {
		failService(c, err, "spend failed")
		return
	}

	balance, err := w.GetBalanceByUserID(ctx, uid)
	if err != nil {
		failService(c, err, "balance lookup failed")
		return
	}
	ok(c, http.StatusOK, SpendResponse{Wallet: w.Name, UserID: uid, Value: req.Value, Balance: balance})
}

// History godoc
// @ID          walletHistory
// @Summary     List wallet history (paginated)
// @Description Returns credits (kind=in, default) or debits (kind=out), newest first.
// @Tags        Wallets
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       name       path    string  true  "Wallet name"            example(gems)
// @Param       kind       query   string  false "in or out"              Enums(in, out) default(in)
// @Param       page       query   int     false "Page number"            minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"         minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.HistoryResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Wallet not found"
// @Router      /wallets/{name}/history [get]
func (h *Handlers) History(c *gin.Context) {
	kind := strings.ToLower(strings.TrimSpace(c.DefaultQuery("kind", "in")))
	if kind != "in" && kind != "out" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind must be in or out")
		return
	}
	w, found := h.wallet(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	resp := HistoryResponse{Wallet: w.Name, Kind: kind}
	var total int64
	var err error
	if kind == "in" {
		resp.Credits, total, err = w.ListIn(ctx, uid, page, pageSize)
	} else {
		resp.Debits, total, err = w.ListOut(ctx, uid, page, pageSize)
	}
	if err != nil {
		failService(c, err, "history lookup failed")
		return
	}
	resp.Pagination = newPagination(page, pageSize, total)
	ok(c, http.StatusOK, resp)
}

// Reconcile godoc
// @ID          reconcileWallet
// @Summary     Compare a balance with its history
// @Tags        Wallets
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       name       path    string  true  "Wallet name"            example(gems)
//
// @Success     200  {object}  services.Reconciliation
// @Failure     404  {object}  handlers.ErrorResponse  "Wallet not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /wallets/{name}/reconcile [get]
func (h *Handlers) Reconcile(c *gin.Context) {
	w, found := h.wallet(c)
	if !found {
		return
	}
	rec, err := w.Reconcile(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, "reconcile failed")
		return
	}
	ok(c, http.StatusOK, rec)
}
