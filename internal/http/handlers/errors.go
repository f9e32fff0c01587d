// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package) and the translation of service and
// storefront errors into those codes. The codes give clients a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case.
//   - Generic codes (e.g., bad_request, not_found, conflict) mirror common HTTP
//     status semantics.
//   - Domain codes (e.g., insufficient_funds, verification_timeout) are used
//     where the status alone is ambiguous.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "insufficient_funds",
//	  "message": "insufficient funds"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-iap-wallet/internal/iap"
	"github.com/tbourn/go-iap-wallet/internal/services"
)

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidReceipt          = "invalid_receipt"
	ErrCodeInvalidStatus           = "invalid_status"
	ErrCodeInvalidAmount           = "invalid_amount"
	ErrCodeInsufficientFunds       = "insufficient_funds"
	ErrCodeBalanceOverflow         = "balance_overflow"
	ErrCodeBalanceInvariant        = "balance_invariant"
	ErrCodeWalletNotFound          = "wallet_not_found"
	ErrCodeReceiptNotFound         = "receipt_not_found"
	ErrCodeReceiptNotValidated     = "receipt_not_validated"
	ErrCodeReceiptAlreadyHandled   = "receipt_already_handled"
	ErrCodeVerificationTimeout     = "verification_timeout"
	ErrCodeVerificationUnavailable = "verification_unavailable"
)

// errorMapping is one row of the service error table.
type errorMapping struct {
	target error
	status int
	code   string
}

// serviceErrors is checked in order with errors.Is; the first match wins.
var serviceErrors = []errorMapping{
	{services.ErrInvalidReceipt, http.StatusBadRequest, ErrCodeInvalidReceipt},
	{services.ErrInvalidStatus, http.StatusBadRequest, ErrCodeInvalidStatus},
	{services.ErrInvalidValue, http.StatusBadRequest, ErrCodeInvalidAmount},
	{services.ErrInvalidPrice, http.StatusBadRequest, ErrCodeInvalidAmount},
	{services.ErrWalletNotFound, http.StatusNotFound, ErrCodeWalletNotFound},
	{services.ErrReceiptNotFound, http.StatusNotFound, ErrCodeReceiptNotFound},
	{services.ErrInsufficientFunds, http.StatusConflict, ErrCodeInsufficientFunds},
	{services.ErrBalanceOverflow, http.StatusConflict, ErrCodeBalanceOverflow},
	{services.ErrNegativeBalance, http.StatusInternalServerError, ErrCodeBalanceInvariant},
	{services.ErrReceiptNotValidated, http.StatusConflict, ErrCodeReceiptNotValidated},
	{services.ErrReceiptAlreadyHandled, http.StatusConflict, ErrCodeReceiptAlreadyHandled},
	{iap.ErrTimeout, http.StatusGatewayTimeout, ErrCodeVerificationTimeout},
	{iap.ErrTransport, http.StatusBadGateway, ErrCodeVerificationUnavailable},
	{iap.ErrMalformedResponse, http.StatusBadGateway, ErrCodeVerificationUnavailable},
}

// failService writes the envelope matching err. The message is the matched
// sentinel's text so wrapped causes (storefront URLs, driver errors) stay in
// the logs. Unknown errors become a 500 carrying fallback as the message.
func failService(c *gin.Context, err error, fallback string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			fail(c, m.status, m.code, m.target.Error())
			return
		}
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, ErrCodeInternal, fallback)
}
