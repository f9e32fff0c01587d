// Purchase HTTP handlers.
//
// This file exposes REST endpoints for store receipts:
//   - POST /iap/apple/validate    (validate an App Store receipt)
//   - POST /iap/google/validate   (validate a Google Play purchase)
//   - PUT  /iap/status            (set a receipt's lifecycle status)
//   - GET  /iap/receipts/{hash}   (read a ledger row)
//   - POST /iap/redeem            (credit a wallet for a receipt, once)
package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-iap-wallet/internal/domain"
	"github.com/tbourn/go-iap-wallet/internal/iap"
)

//
// DTOs
//

// AppleValidateRequest is the JSON payload for validating an Apple receipt.
type AppleValidateRequest struct {
	// Receipt is the base64 receipt data from StoreKit.
	Receipt string `json:"receipt" binding:"required" example:"MIITtgYJKoZIhvcNAQcCoIITpzCCE6MCAQExCzAJBgUrDgMCGgUAMIID..."`
}

// GoogleValidateRequest is the JSON payload for validating a Google purchase.
type GoogleValidateRequest struct {
	PackageName   string `json:"packageName" binding:"required" example:"com.example.game"`
	ProductID     string `json:"productId" binding:"required" example:"gems_100"`
	PurchaseToken string `json:"purchaseToken" binding:"required" example:"opaque-token-up-to-150-chars"`
	Subscription  bool   `json:"subscription" example:"false"`
}

// ReceiptRef identifies a receipt by storefront and payload. Apple receipts
// set Receipt; Google purchases set the Google fields.
type ReceiptRef struct {
	Service       string `json:"service" binding:"required" example:"apple" enums:"apple,google"`
	Receipt       string `json:"receipt,omitempty"`
	PackageName   string `json:"packageName,omitempty"`
	ProductID     string `json:"productId,omitempty"`
	PurchaseToken string `json:"purchaseToken,omitempty"`
	Subscription  bool   `json:"subscription,omitempty"`
}

// UpdateStatusRequest is the JSON payload for PUT /iap/status.
type UpdateStatusRequest struct {
	ReceiptRef
	Status string `json:"status" binding:"required" example:"canceled" enums:"pending,handled,canceled"`
}

// RedeemRequest is the JSON payload for POST /iap/redeem.
type RedeemRequest struct {
	ReceiptRef
	Wallet string `json:"wallet" binding:"required" example:"gems"`
	Price  int64  `json:"price" example:"199"`
	Value  int64  `json:"value" binding:"required" example:"100"`
}

// RedeemResponse reports the wallet balance after a redemption.
type RedeemResponse struct {
	ReceiptHash string `json:"receipt_hash"`
	Wallet      string `json:"wallet"`
	UserID      string `json:"user_id"`
	Balance     int64  `json:"balance"`
}

//
// Helpers
//

var receiptHashRE = regexp.MustCompile(`^[0-9a-f]{64}$`)

// toReceipt converts the wire form into an iap.Receipt. Payload validation
// happens in the service.
func (r ReceiptRef) toReceipt() iap.Receipt {
	switch domain.Service(strings.ToLower(strings.TrimSpace(r.Service))) {
	case domain.ServiceApple:
		return iap.AppleReceipt(r.Receipt)
	case domain.ServiceGoogle:
		return iap.GoogleReceipt(iap.GooglePurchase{
			PackageName:   r.PackageName,
			ProductID:     r.ProductID,
			PurchaseToken: r.PurchaseToken,
			Subscription:  r.Subscription,
		})
	}
	return iap.Receipt{Service: domain.Service(r.Service)}
}

//
// Handlers
//

// ValidateApple godoc
// @ID          validateApplePurchase
// @Summary     Validate an App Store receipt
// @Description Verifies the receipt with Apple unless a validated result is already stored, and records the outcome.
// @Tags        Purchases
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.AppleValidateRequest  true  "Receipt payload"
//
// @Success     200  {object}  services.ValidationResult
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid receipt"
// @Failure     502  {object}  handlers.ErrorResponse  "Storefront unavailable"
// @Failure     504  {object}  handlers.ErrorResponse  "Storefront timeout"
// @Router      /iap/apple/validate [post]
func (h *Handlers) ValidateApple(c *gin.Context) {
	var req AppleValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Receipt) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "receipt required")
		return
	}
	res, err := h.purchases.Validate(c.Request.Context(), iap.AppleReceipt(req.Receipt))
	if err != nil {
		failService(c, err, "validation failed")
		return
	}
	ok(c, http.StatusOK, res)
}

// ValidateGoogle godoc
// @ID          validateGooglePurchase
// @Summary     Validate a Google Play purchase
// @Description Verifies the purchase with the Play Developer API unless a validated result is already stored, and records the outcome.
// @Tags        Purchases
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.GoogleValidateRequest  true  "Purchase payload"
//
// @Success     200  {object}  services.ValidationResult
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid receipt"
// @Failure     502  {object}  handlers.ErrorResponse  "Storefront unavailable"
// @Failure     504  {object}  handlers.ErrorResponse  "Storefront timeout"
// @Router      /iap/google/validate [post]
func (h *Handlers) ValidateGoogle(c *gin.Context) {
	var req GoogleValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "packageName, productId and purchaseToken required")
		return
	}
	res, err := h.purchases.Validate(c.Request.Context(), iap.GoogleReceipt(iap.GooglePurchase{
		PackageName:   req.PackageName,
		ProductID:     req.ProductID,
		PurchaseToken: req.PurchaseToken,
		Subscription:  req.Subscription,
	}))
	if err != nil {
		failService(c, err, "validation failed")
		return
	}
	ok(c, http.StatusOK, res)
}

// UpdateStatus godoc
// @ID          updateReceiptStatus
// @Summary     Set a receipt's lifecycle status
// @Tags        Purchases
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.UpdateStatusRequest  true  "Receipt and new status"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Receipt not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /iap/status [put]
func (h *Handlers) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "service and status required")
		return
	}
	status := domain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if err := h.purchases.UpdateStatus(c.Request.Context(), req.toReceipt(), status); err != nil {
		failService(c, err, "status update failed")
		return
	}
	noContent(c)
}

// GetReceipt godoc
// @ID          getReceipt
// @Summary     Read a stored receipt
// @Tags        Purchases
// @Produce     json
//
// @Param       hash  path  string  true  "Receipt hash (sha256 hex)"
//
// @Success     200  {object}  domain.Receipt
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Receipt not found"
// @Router      /iap/receipts/{hash} [get]
func (h *Handlers) GetReceipt(c *gin.Context) {
	hash := strings.ToLower(c.Param("hash"))
	if !receiptHashRE.MatchString(hash) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "hash must be 64 hex characters")
		return
	}
	rec, err := h.purchases.GetReceipt(c.Request.Context(), hash)
	if err != nil {
		failService(c, err, "lookup failed")
		return
	}
	ok(c, http.StatusOK, rec)
}

// Redeem godoc
// @ID          redeemReceipt
// @Summary     Credit a wallet for a validated receipt
// @Description Credits value to the wallet and marks the receipt handled in one transaction. A receipt can be redeemed once.
// @Tags        Purchases
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.RedeemRequest  true  "Receipt, wallet and amounts"
//
// @Success     200  {object}  handlers.RedeemResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Receipt or wallet not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Receipt not validated or already handled"
// @Router      /iap/redeem [post]
func (h *Handlers) Redeem(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "service, wallet and value required")
		return
	}
	uid := userID(c)
	r := req.toReceipt()
	balance, err := h.purchases.Redeem(c.Request.Context(), r, req.Wallet, uid, req.Price, req.Value)
	if err != nil {
		failService(c, err, "redeem failed")
		return
	}
	ok(c, http.StatusOK, RedeemResponse{
		ReceiptHash: r.Hash(),
		Wallet:      req.Wallet,
		UserID:      uid,
		Balance:     balance,
	})
}
