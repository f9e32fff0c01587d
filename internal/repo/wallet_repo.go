// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the wallet balance mutations and the
// append-only wallet_in / wallet_out history writes.
//
// Balance mutations are single statements: credits are an upsert that adds
// to the stored value, debits are a conditional decrement guarded by
// value >= amount. Callers run them inside a transaction together with the
// matching history row.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-iap-wallet/internal/domain"
)

// ErrNoRowsAffected is returned when a write that must touch a row did not.
var ErrNoRowsAffected = errors.New("no rows affected")

// GetBalance returns the stored balance of (userID, name). A missing row is a
// zero balance, never an error.
func GetBalance(ctx context.Context, db *gorm.DB, userID, name string) (int64, error) {
	var row domain.WalletBalance
	err := db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Value, nil
}

// CreditBalance adds value to (userID, name), creating the row with value as
// its initial balance on first credit.
func CreditBalance(ctx context.Context, db *gorm.DB, userID, name string, value, now int64) error {
	row := &domain.WalletBalance{
		UserID:  userID,
		Name:    name,
		Value:   value,
		Created: now,
		Modtime: now,
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "name"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value":   gorm.Expr("wallet_balance.value + ?", value),
				"modtime": now,
			}),
		}).
		Create(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

// DebitBalance subtracts value from (userID, name) only when the stored
// balance covers it. It returns the number of affected rows; zero means the
// row is missing or the balance is insufficient.
func DebitBalance(ctx context.Context, db *gorm.DB, userID, name string, value, now int64) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.WalletBalance{}).
		Where("user_id = ? AND name = ? AND value >= ?", userID, name, value).
		Updates(map[string]any{
			"value":   gorm.Expr("value - ?", value),
			"modtime": now,
		})
	return res.RowsAffected, res.Error
}

// CreateWalletIn appends a credit history row. An empty ID is filled with a UUID.
func CreateWalletIn(ctx context.Context, db *gorm.DB, in *domain.WalletIn) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	res := db.WithContext(ctx).Create(in)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

// CreateWalletOut appends a debit history row. An empty ID is filled with a UUID.
func CreateWalletOut(ctx context.Context, db *gorm.DB, out *domain.WalletOut) error {
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	res := db.WithContext(ctx).Create(out)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

// ListWalletInPage returns credits for (userID, name), newest first.
func ListWalletInPage(ctx context.Context, db *gorm.DB, userID, name string, offset, limit int) ([]domain.WalletIn, error) {
	var out []domain.WalletIn
	err := db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		Order("created DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListWalletOutPage returns debits for (userID, name), newest first.
func ListWalletOutPage(ctx context.Context, db *gorm.DB, userID, name string, offset, limit int) ([]domain.WalletOut, error) {
	var out []domain.WalletOut
	err := db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		Order("created DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
