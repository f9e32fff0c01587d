// Package services – Wallet
//
// This file implements Wallet, the per-currency balance ledger. Every credit
// and debit runs in one database transaction that updates the balance row,
// appends the matching wallet_in / wallet_out history row and finally runs an
// optional caller continuation. Any error, including one returned by the
// continuation, rolls the whole transaction back.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include the wallet name, user identifier and amounts.
package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-iap-wallet/internal/domain"
	"github.com/tbourn/go-iap-wallet/internal/observability"
	"github.com/tbourn/go-iap-wallet/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TxFunc is an optional continuation run inside a wallet transaction after
// the balance and history writes and before commit. Returning an error rolls
// back everything written by the call.
type TxFunc func(tx *gorm.DB) error

// Wallet is one named currency. It holds no balance state itself; all state
// lives in wallet_balance and the history tables.
type Wallet struct {
	Name string
	DB   *gorm.DB

	now func() time.Time
}

// NewWallet returns a wallet for currency name backed by db.
func NewWallet(db *gorm.DB, name string) *Wallet {
	return &Wallet{Name: name, DB: db, now: time.Now}
}

func (w *Wallet) nowMillis() int64 {
	if w.now == nil {
		return time.Now().UnixMilli()
	}
	return w.now().UnixMilli()
}

func (w *Wallet) span(ctx context.Context, op, userID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tr := observability.Tracer("services/wallet")
	attrs = append(attrs,
		attribute.String("wallet.name", w.Name),
		attribute.String("user.id", userID),
	)
	return tr.Start(ctx, op, trace.WithAttributes(attrs...))
}

// GetBalanceByUserID returns the balance of userID. A user that was never
// credited has a balance of 0.
func (w *Wallet) GetBalanceByUserID(ctx context.Context, userID string) (int64, error) {
	ctx, span := w.span(ctx, "GetBalanceByUserID", userID)
	defer span.End()

	return repo.GetBalance(ctx, w.DB, userID, w.Name)
}

// AddPaid credits value purchased for price, funded by receiptHashID.
func (w *Wallet) AddPaid(ctx context.Context, receiptHashID, userID string, price, value int64, fn TxFunc) (err error) {
	ctx, span := w.span(ctx, "AddPaid", userID,
		attribute.String("receipt.hash", receiptHashID),
		attribute.Int64("price", price),
		attribute.Int64("value", value),
	)
	defer span.End()
	defer func() { recordWalletOp(w.Name, "add_paid", err) }()

	if price < 0 {
		return ErrInvalidPrice
	}
	return w.add(ctx, receiptHashID, userID, price, value, domain.ValueTypePaid, fn)
}

// AddFree credits value granted at no cost. receiptHashID may be empty.
func (w *Wallet) AddFree(ctx context.Context, receiptHashID, userID string, value int64, fn TxFunc) (err error) {
	ctx, span := w.span(ctx, "AddFree", userID,
		attribute.String("receipt.hash", receiptHashID),
		attribute.Int64("value", value),
	)
	defer span.End()
	defer func() { recordWalletOp(w.Name, "add_free", err) }()

	return w.add(ctx, receiptHashID, userID, 0, value, domain.ValueTypeFree, fn)
}

func (w *Wallet) add(ctx context.Context, receiptHashID, userID string, price, value int64, vt domain.ValueType, fn TxFunc) error {
	if value <= 0 {
		return ErrInvalidValue
	}
	logger := log.Ctx(ctx).With().Str("wallet", w.Name).Str("user_id", userID).Logger()

	err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := w.nowMillis()
		prev, err := repo.GetBalance(ctx, tx, userID, w.Name)
		if err != nil {
			return err
		}
		if prev > math.MaxInt64-value {
			logger.Warn().Int64("value", value).Int64("balance", prev).Msg("credit would overflow balance")
			return ErrBalanceOverflow
		}
		if err := repo.CreditBalance(ctx, tx, userID, w.Name, value, now); err != nil {
			return err
		}
		balance, err := repo.GetBalance(ctx, tx, userID, w.Name)
		if err != nil {
			return err
		}
		if balance < 0 {
			return ErrNegativeBalance
		}
		in := &domain.WalletIn{
			ReceiptHashID: receiptHashID,
			UserID:        userID,
			Name:          w.Name,
			Price:         price,
			Value:         value,
			ValueType:     vt,
			Created:       now,
		}
		if err := repo.CreateWalletIn(ctx, tx, in); err != nil {
			return err
		}
		if fn != nil {
			if err := fn(tx); err != nil {
				logger.Warn().Err(err).Msg("add continuation failed, rolling back")
				return err
			}
		}
		logger.Info().
			Int64("value", value).
			Int64("price", price).
			Str("value_type", string(vt)).
			Int64("balance", balance).
			Msg("wallet credited")
		return nil
	})
	if err != nil && !isRejection(err) {
		logger.Error().Err(err).Msg("wallet credit failed")
	}
	return err
}

// Spend debits value from userID, tagging the debit with spentFor. The debit
// is a conditional decrement, so concurrent spends cannot overdraw.
func (w *Wallet) Spend(ctx context.Context, userID string, value int64, spentFor string, fn TxFunc) (err error) {
	ctx, span := w.span(ctx, "Spend", userID,
		attribute.Int64("value", value),
		attribute.String("spent_for", spentFor),
	)
	defer span.End()
	defer func() { recordWalletOp(w.Name, "spend", err) }()

	if value <= 0 {
		return ErrInvalidValue
	}
	logger := log.Ctx(ctx).With().Str("wallet", w.Name).Str("user_id", userID).Logger()

	return w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := w.nowMillis()
		n, err := repo.DebitBalance(ctx, tx, userID, w.Name, value, now)
		if err != nil {
			return err
		}
		if n == 0 {
			balance, _ := repo.GetBalance(ctx, tx, userID, w.Name)
			logger.Warn().Int64("value", value).Int64("balance", balance).Msg("insufficient funds")
			return ErrInsufficientFunds
		}
		balance, err := repo.GetBalance(ctx, tx, userID, w.Name)
		if err != nil {
			return err
		}
		if balance < 0 {
			return ErrNegativeBalance
		}
		out := &domain.WalletOut{
			UserID:   userID,
			Name:     w.Name,
			Value:    value,
			SpentFor: spentFor,
			Created:  now,
		}
		if err := repo.CreateWalletOut(ctx, tx, out); err != nil {
			return err
		}
		if fn != nil {
			if err := fn(tx); err != nil {
				logger.Warn().Err(err).Msg("spend continuation failed, rolling back")
				return err
			}
		}
		logger.Info().
			Int64("value", value).
			Str("spent_for", spentFor).
			Int64("balance", balance).
			Msg("wallet debited")
		return nil
	})
}

// ListIn returns a page of credits for userID, newest first, and the total
// number of credits.
func (w *Wallet) ListIn(ctx context.Context, userID string, page, pageSize int) ([]domain.WalletIn, int64, error) {
	ctx, span := w.span(ctx, "ListIn", userID,
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)
	defer span.End()

	offset, limit := pageBounds(page, pageSize)
	st, err := repo.WalletHistoryStats(ctx, w.DB, userID, w.Name)
	if err != nil {
		return nil, 0, err
	}
	if st.InCount == 0 {
		return []domain.WalletIn{}, 0, nil
	}
	items, err := repo.ListWalletInPage(ctx, w.DB, userID, w.Name, offset, limit)
	return items, st.InCount, err
}

// ListOut returns a page of debits for userID, newest first, and the total
// number of debits.
func (w *Wallet) ListOut(ctx context.Context, userID string, page, pageSize int) ([]domain.WalletOut, int64, error) {
	ctx, span := w.span(ctx, "ListOut", userID,
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)
	defer span.End()

	offset, limit := pageBounds(page, pageSize)
	st, err := repo.WalletHistoryStats(ctx, w.DB, userID, w.Name)
	if err != nil {
		return nil, 0, err
	}
	if st.OutCount == 0 {
		return []domain.WalletOut{}, 0, nil
	}
	items, err := repo.ListWalletOutPage(ctx, w.DB, userID, w.Name, offset, limit)
	return items, st.OutCount, err
}

// Reconciliation compares the cached balance with the history it summarizes.
type Reconciliation struct {
	Wallet     string `json:"wallet"`
	UserID     string `json:"user_id"`
	Balance    int64  `json:"balance"`
	Credited   int64  `json:"credited"`
	Debited    int64  `json:"debited"`
	Expected   int64  `json:"expected"`
	Consistent bool   `json:"consistent"`
}

// Reconcile reads the balance and the history sums in one transaction so the
// snapshot is consistent.
func (w *Wallet) Reconcile(ctx context.Context, userID string) (*Reconciliation, error) {
	ctx, span := w.span(ctx, "Reconcile", userID)
	defer span.End()

	rec := &Reconciliation{Wallet: w.Name, UserID: userID}
	err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := repo.GetBalance(ctx, tx, userID, w.Name)
		if err != nil {
			return err
		}
		st, err := repo.WalletHistoryStats(ctx, tx, userID, w.Name)
		if err != nil {
			return err
		}
		rec.Balance = balance
		rec.Credited = st.Credited
		rec.Debited = st.Debited
		return nil
	})
	if err != nil {
		return nil, err
	}
	rec.Expected = rec.Credited - rec.Debited
	rec.Consistent = rec.Expected == rec.Balance
	if !rec.Consistent {
		log.Ctx(ctx).Error().
			Str("wallet", w.Name).
			Str("user_id", userID).
			Int64("balance", rec.Balance).
			Int64("expected", rec.Expected).
			Msg("wallet balance does not match history")
	}
	span.SetAttributes(attribute.Bool("consistent", rec.Consistent))
	return rec, nil
}

func pageBounds(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return (page - 1) * pageSize, pageSize
}

func isRejection(err error) bool {
	return errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrBalanceOverflow)
}
