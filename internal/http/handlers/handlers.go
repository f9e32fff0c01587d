// Package handlers exposes the purchase validation and wallet API over HTTP.
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results (and service errors) into HTTP responses.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-iap-wallet/internal/domain"
	"github.com/tbourn/go-iap-wallet/internal/iap"
	"github.com/tbourn/go-iap-wallet/internal/services"
	"github.com/tbourn/go-iap-wallet/internal/utils"
)

//
// Service contracts (context-aware)
//

// PurchaseService validates receipts and moves them through their lifecycle.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PurchaseService interface {
	// Validate checks r with its storefront, or returns the stored result.
	Validate(ctx context.Context, r iap.Receipt) (*services.ValidationResult, error)
	// UpdateStatus sets the lifecycle status of a stored receipt.
	UpdateStatus(ctx context.Context, r iap.Receipt, status domain.Status) error
	// GetReceipt returns the ledger row for hash.
	GetReceipt(ctx context.Context, hash string) (*domain.Receipt, error)
	// Redeem credits a wallet for a validated, pending receipt exactly once.
	Redeem(ctx context.Context, r iap.Receipt, walletName, userID string, price, value int64) (int64, error)
}

// WalletRegistry resolves a wallet by its configured name.
type WalletRegistry interface {
	Get(ctx context.Context, name string) (*services.Wallet, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for purchases and wallets.
type Handlers struct {
	purchases PurchaseService
	wallets   WalletRegistry
	idemTTL   time.Duration
}

// New constructs a Handlers instance. idemTTL is the lifetime of spend
// Idempotency-Key records; values <= 0 default to 24h.
func New(purchases PurchaseService, wallets WalletRegistry, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{purchases: purchases, wallets: wallets, idemTTL: idemTTL}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}
