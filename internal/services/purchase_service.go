// Package services – PurchaseService
//
// This file implements PurchaseService, the receipt validation pipeline:
// hash the receipt, short-circuit on a stored validated result, otherwise ask
// the storefront and upsert the outcome into the receipt ledger. Concurrent
// validations of the same receipt within this process share one storefront
// call, which is not canceled when the caller that started it goes away.
// Across processes the ledger upsert keeps a validated row from being
// downgraded by a late rejection.
//
// Storefront transport failures and timeouts are returned to the caller and
// never written to the ledger.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/go-iap-wallet/internal/domain"
	"github.com/tbourn/go-iap-wallet/internal/iap"
	"github.com/tbourn/go-iap-wallet/internal/observability"
	"github.com/tbourn/go-iap-wallet/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ValidationResult is what a validation reports back to its caller.
type ValidationResult struct {
	ReceiptHash   string               `json:"receipt_hash"`
	Service       domain.Service       `json:"service"`
	ValidateState domain.ValidateState `json:"validate_state"`
	Status        domain.Status        `json:"status"`
	// Cached is true when the stored result was returned without a
	// storefront call.
	Cached bool `json:"cached"`
}

// PurchaseService validates receipts and moves them through their lifecycle.
type PurchaseService struct {
	DB      *gorm.DB
	Apple   iap.Verifier
	Google  iap.Verifier
	Wallets *Registry

	group singleflight.Group
	now   func() time.Time
}

// NewPurchaseService wires the ledger handle, both verifiers and the wallet
// registry used by Redeem.
func NewPurchaseService(db *gorm.DB, apple, google iap.Verifier, wallets *Registry) *PurchaseService {
	return &PurchaseService{
		DB:      db,
		Apple:   apple,
		Google:  google,
		Wallets: wallets,
		now:     time.Now,
	}
}

func (s *PurchaseService) nowMillis() int64 {
	if s.now == nil {
		return time.Now().UnixMilli()
	}
	return s.now().UnixMilli()
}

func (s *PurchaseService) verifier(svc domain.Service) iap.Verifier {
	switch svc {
	case domain.ServiceApple:
		return s.Apple
	case domain.ServiceGoogle:
		return s.Google
	}
	return nil
}

// ValidateApplePurchase validates a base64 App Store receipt.
func (s *PurchaseService) ValidateApplePurchase(ctx context.Context, receipt string) (*ValidationResult, error) {
	return s.Validate(ctx, iap.AppleReceipt(receipt))
}

// ValidateGooglePurchase validates a Google Play purchase.
func (s *PurchaseService) ValidateGooglePurchase(ctx context.Context, p iap.GooglePurchase) (*ValidationResult, error) {
	return s.Validate(ctx, iap.GoogleReceipt(p))
}

// Validate runs the validation pipeline for r.
func (s *PurchaseService) Validate(ctx context.Context, r iap.Receipt) (*ValidationResult, error) {
	if err := r.Validate(); err != nil {
		return nil, ErrInvalidReceipt
	}
	hash := r.Hash()

	tr := observability.Tracer("services/purchase")
	ctx, span := tr.Start(ctx, "Validate",
		trace.WithAttributes(
			attribute.String("receipt.hash", hash),
			attribute.String("receipt.service", string(r.Service)),
		),
	)
	defer span.End()

	// The shared call outlives any single caller; the verifiers bound it with
	// their own timeout.
	detached := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(string(r.Service)+":"+hash, func() (any, error) {
		return s.validate(detached, r, hash)
	})
	span.SetAttributes(attribute.Bool("singleflight.shared", shared))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	res := *v.(*ValidationResult)
	return &res, nil
}

func (s *PurchaseService) validate(ctx context.Context, r iap.Receipt, hash string) (*ValidationResult, error) {
	logger := log.Ctx(ctx).With().Str("receipt_hash", hash).Str("service", string(r.Service)).Logger()

	prior, err := repo.GetReceipt(ctx, s.DB, hash)
	switch {
	case err == nil:
		logger.Info().
			Str("validate_state", string(prior.ValidateState)).
			Str("status", string(prior.Status)).
			Msg("validated data in database")
		if prior.ValidateState == domain.ValidateStateValidated {
			return resultFrom(prior, true), nil
		}
	case errors.Is(err, repo.ErrNotFound):
	default:
		return nil, err
	}

	vf := s.verifier(r.Service)
	if vf == nil {
		return nil, fmt.Errorf("%w: no verifier for %q", ErrInvalidReceipt, r.Service)
	}
	out, err := vf.Verify(ctx, r)
	if err != nil {
		logger.Warn().Err(err).Msg("storefront verification failed")
		return nil, err
	}

	state := domain.ValidateStateError
	if out.Validated {
		state = domain.ValidateStateValidated
	}
	now := s.nowMillis()
	row := &domain.Receipt{
		ReceiptHash:   hash,
		Receipt:       r.Canonical(),
		Response:      out.RawResponse,
		ValidateState: state,
		Status:        domain.StatusPending,
		Service:       r.Service,
		Created:       now,
		Modtime:       now,
	}

	var stored *domain.Receipt
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpsertReceipt(ctx, tx, row); err != nil {
			return err
		}
		got, err := repo.GetReceipt(ctx, tx, hash)
		if err != nil {
			return err
		}
		stored = got
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("store verification response")
		return nil, err
	}
	logger.Info().
		Str("validate_state", string(stored.ValidateState)).
		Str("status", string(stored.Status)).
		Int("storefront_status", out.Status).
		Msg("verification stored")
	return resultFrom(stored, false), nil
}

func resultFrom(rec *domain.Receipt, cached bool) *ValidationResult {
	return &ValidationResult{
		ReceiptHash:   rec.ReceiptHash,
		Service:       rec.Service,
		ValidateState: rec.ValidateState,
		Status:        rec.Status,
		Cached:        cached,
	}
}

// UpdateStatus sets the lifecycle status of r.
func (s *PurchaseService) UpdateStatus(ctx context.Context, r iap.Receipt, status domain.Status) error {
	if err := r.Validate(); err != nil {
		return ErrInvalidReceipt
	}
	return s.UpdateStatusByHash(ctx, r.Hash(), r.Service, status)
}

// UpdateStatusByHash sets the status of the ledger row matching (hash, service).
func (s *PurchaseService) UpdateStatusByHash(ctx context.Context, hash string, service domain.Service, status domain.Status) error {
	tr := observability.Tracer("services/purchase")
	ctx, span := tr.Start(ctx, "UpdateStatus",
		trace.WithAttributes(
			attribute.String("receipt.hash", hash),
			attribute.String("receipt.service", string(service)),
			attribute.String("status", string(status)),
		),
	)
	defer span.End()

	if !status.Valid() {
		return ErrInvalidStatus
	}
	if !service.Valid() {
		return ErrInvalidReceipt
	}
	n, err := repo.UpdateReceiptStatus(ctx, s.DB, hash, service, status, s.nowMillis())
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReceiptNotFound
	}
	log.Ctx(ctx).Info().Str("receipt_hash", hash).Str("status", string(status)).Msg("receipt status updated")
	return nil
}

// GetReceipt returns the ledger row for hash.
func (s *PurchaseService) GetReceipt(ctx context.Context, hash string) (*domain.Receipt, error) {
	tr := observability.Tracer("services/purchase")
	ctx, span := tr.Start(ctx, "GetReceipt", trace.WithAttributes(attribute.String("receipt.hash", hash)))
	defer span.End()

	rec, err := repo.GetReceipt(ctx, s.DB, hash)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrReceiptNotFound
	}
	return rec, err
}

// Redeem credits value units of walletName to userID for a validated, pending
// receipt and marks the receipt handled in the same transaction. A receipt can
// be redeemed once; later attempts fail with ErrReceiptAlreadyHandled and
// leave the balance unchanged. It returns the balance after the credit.
func (s *PurchaseService) Redeem(ctx context.Context, r iap.Receipt, walletName, userID string, price, value int64) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, ErrInvalidReceipt
	}
	hash := r.Hash()

	tr := observability.Tracer("services/purchase")
	ctx, span := tr.Start(ctx, "Redeem",
		trace.WithAttributes(
			attribute.String("receipt.hash", hash),
			attribute.String("wallet.name", walletName),
			attribute.String("user.id", userID),
			attribute.Int64("value", value),
		),
	)
	defer span.End()

	if s.Wallets == nil {
		return 0, ErrWalletNotFound
	}
	w, err := s.Wallets.Get(ctx, walletName)
	if err != nil {
		return 0, err
	}

	rec, err := s.GetReceipt(ctx, hash)
	if err != nil {
		return 0, err
	}
	if rec.Service != r.Service {
		return 0, ErrReceiptNotFound
	}
	if err := redeemable(rec); err != nil {
		return 0, err
	}

	err = w.AddPaid(ctx, hash, userID, price, value, func(tx *gorm.DB) error {
		n, err := repo.AdvanceReceiptStatus(ctx, tx, hash, r.Service,
			domain.StatusPending, domain.StatusHandled, s.nowMillis())
		if err != nil {
			return err
		}
		if n == 0 {
			// Lost a race with another redeem or a status change.
			cur, gerr := repo.GetReceipt(ctx, tx, hash)
			if gerr != nil {
				return ErrReceiptNotFound
			}
			if rerr := redeemable(cur); rerr != nil {
				return rerr
			}
			return ErrReceiptAlreadyHandled
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return w.GetBalanceByUserID(ctx, userID)
}

func redeemable(rec *domain.Receipt) error {
	if rec.ValidateState != domain.ValidateStateValidated {
		return ErrReceiptNotValidated
	}
	if rec.Status != domain.StatusPending {
		return ErrReceiptAlreadyHandled
	}
	return nil
}
