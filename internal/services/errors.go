// Package services defines the business logic for receipt validation and the
// wallet ledger. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import (
	"errors"

	"github.com/tbourn/go-iap-wallet/internal/iap"
)

// Wallet errors. All of them are reported before or instead of any write;
// the surrounding transaction is rolled back.
var (
	// ErrInvalidValue is returned when a credited or spent value is not a
	// positive integer.
	ErrInvalidValue = errors.New("value must be a positive integer")

	// ErrInvalidPrice is returned when a paid credit carries a negative price.
	ErrInvalidPrice = errors.New("price must not be negative")

	// ErrInsufficientFunds is returned when a spend exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNegativeBalance guards the invariant value >= 0 after a write.
	ErrNegativeBalance = errors.New("balance would become negative")

	// ErrBalanceOverflow is returned when a credit would push the balance past
	// the largest representable amount.
	ErrBalanceOverflow = errors.New("balance would overflow")

	// ErrWalletNotFound indicates that no wallet with the requested name is
	// configured.
	ErrWalletNotFound = errors.New("wallet not found")
)

// Receipt errors.
var (
	// ErrInvalidStatus is returned for a status outside pending/handled/canceled.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidReceipt is returned for receipts missing required fields.
	ErrInvalidReceipt = iap.ErrInvalidReceipt

	// ErrReceiptNotFound indicates that the receipt has never been validated.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrReceiptNotValidated is returned when redeeming a receipt whose last
	// verification was rejected.
	ErrReceiptNotValidated = errors.New("receipt not validated")

	// ErrReceiptAlreadyHandled is returned when redeeming a receipt that is no
	// longer pending.
	ErrReceiptAlreadyHandled = errors.New("receipt already handled")
)
