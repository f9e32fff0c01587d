// Package iap verifies in-app purchase receipts against the storefronts that
// issued them (Apple App Store and Google Play) and computes the stable
// receipt fingerprint used as the ledger's idempotency key.
//
// A Receipt is a tagged union: the caller picks the storefront explicitly
// with AppleReceipt or GoogleReceipt, and the tag decides both the canonical
// serialization and which Verifier handles it.
package iap

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tbourn/go-iap-wallet/internal/domain"
)

// ErrInvalidReceipt is returned for receipts missing their required fields.
var ErrInvalidReceipt = errors.New("invalid receipt")

// GooglePurchase identifies a Google Play purchase. Field order fixes the
// canonical JSON form, so reordering fields changes every stored hash.
type GooglePurchase struct {
	PackageName   string `json:"packageName"`
	ProductID     string `json:"productId"`
	PurchaseToken string `json:"purchaseToken"`
	Subscription  bool   `json:"subscription,omitempty"`
}

// Receipt carries exactly one storefront payload selected by Service.
type Receipt struct {
	Service domain.Service
	Apple   string
	Google  GooglePurchase
}

// AppleReceipt wraps a base64 App Store receipt.
func AppleReceipt(data string) Receipt {
	return Receipt{Service: domain.ServiceApple, Apple: data}
}

// GoogleReceipt wraps a Google Play purchase.
func GoogleReceipt(p GooglePurchase) Receipt {
	return Receipt{Service: domain.ServiceGoogle, Google: p}
}

// Validate checks that the payload selected by Service is usable.
func (r Receipt) Validate() error {
	switch r.Service {
	case domain.ServiceApple:
		if strings.TrimSpace(r.Apple) == "" {
			return ErrInvalidReceipt
		}
	case domain.ServiceGoogle:
		g := r.Google
		if strings.TrimSpace(g.PackageName) == "" || strings.TrimSpace(g.ProductID) == "" || strings.TrimSpace(g.PurchaseToken) == "" {
			return ErrInvalidReceipt
		}
	default:
		return ErrInvalidReceipt
	}
	return nil
}

// Canonical returns the serialized form stored in the ledger and fed to Hash:
// the raw string for Apple, compact JSON for Google.
func (r Receipt) Canonical() string {
	if r.Service == domain.ServiceGoogle {
		// Marshalling a struct of strings and a bool cannot fail.
		b, _ := json.Marshal(r.Google)
		return string(b)
	}
	return r.Apple
}

// Hash returns the hex SHA-256 digest of the canonical receipt.
func (r Receipt) Hash() string {
	sum := sha256.Sum256([]byte(r.Canonical()))
	return hex.EncodeToString(sum[:])
}
