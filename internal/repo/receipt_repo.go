// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the receipt ledger queries: lookup by
// hash, the single-statement insert-or-update used after verification, and
// status transitions.
//
// All functions accept a *gorm.DB that may be a transaction handle, so
// services can compose them inside db.Transaction.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-iap-wallet/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers may match either.
var ErrNotFound = gorm.ErrRecordNotFound

// GetReceipt returns the ledger row for hash, or ErrNotFound.
func GetReceipt(ctx context.Context, db *gorm.DB, hash string) (*domain.Receipt, error) {
	var rec domain.Receipt
	err := db.WithContext(ctx).Where("receipt_hash = ?", hash).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// keepValidated restricts the upsert's update path to rows that are not yet
// validated, unless the incoming outcome is itself validated.
var keepValidated = clause.Where{Exprs: []clause.Expression{
	clause.Expr{
		SQL:  "iap.validate_state <> ? OR excluded.validate_state = ?",
		Vars: []any{domain.ValidateStateValidated, domain.ValidateStateValidated},
	},
}}

// UpsertReceipt inserts rec, or when a row with the same receipt_hash already
// exists, overwrites only response, validate_state and modtime. The insert
// path carries rec.Status (normally pending); the update path never touches
// status, receipt, service or created.
//
// A stored validated row is never downgraded: an error outcome that arrives
// after another writer stored validated leaves the row as it is. Callers
// re-read the row to learn which outcome survived.
func UpsertReceipt(ctx context.Context, db *gorm.DB, rec *domain.Receipt) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "receipt_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"response", "validate_state", "modtime"}),
			Where:     keepValidated,
		}).
		Create(rec).Error
}

// UpdateReceiptStatus sets status on the row matching (hash, service) and
// returns the number of affected rows.
func UpdateReceiptStatus(ctx context.Context, db *gorm.DB, hash string, service domain.Service, status domain.Status, now int64) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Receipt{}).
		Where("receipt_hash = ? AND service = ?", hash, service).
		Updates(map[string]any{"status": status, "modtime": now})
	return res.RowsAffected, res.Error
}

// AdvanceReceiptStatus moves a validated receipt from one status to another
// with a compare-and-set on the current status. Zero affected rows means the
// receipt is missing, not validated, or no longer in status from.
func AdvanceReceiptStatus(ctx context.Context, db *gorm.DB, hash string, service domain.Service, from, to domain.Status, now int64) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Receipt{}).
		Where("receipt_hash = ? AND service = ? AND status = ? AND validate_state = ?",
			hash, service, from, domain.ValidateStateValidated).
		Updates(map[string]any{"status": to, "modtime": now})
	return res.RowsAffected, res.Error
}
