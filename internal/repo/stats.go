// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries over the wallet
// history tables used for pagination totals and balance reconciliation.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-iap-wallet/internal/domain"
)

// HistoryStats summarizes the history rows of one wallet for one user.
type HistoryStats struct {
	// InCount / OutCount are the number of credit and debit rows.
	InCount  int64
	OutCount int64
	// Credited / Debited are the summed values of those rows.
	Credited int64
	Debited  int64
}

// WalletHistoryStats returns counts and sums for wallet_in and wallet_out of
// (userID, name). Missing history yields zeroes.
func WalletHistoryStats(ctx context.Context, db *gorm.DB, userID, name string) (HistoryStats, error) {
	var st HistoryStats
	var in struct {
		N     int64
		Total int64
	}
	if err := db.WithContext(ctx).Model(&domain.WalletIn{}).
		Select("COUNT(*) AS n, COALESCE(SUM(value), 0) AS total").
		Where("user_id = ? AND name = ?", userID, name).
		Scan(&in).Error; err != nil {
		return st, err
	}
	var out struct {
		N     int64
		Total int64
	}
	if err := db.WithContext(ctx).Model(&domain.WalletOut{}).
		Select("COUNT(*) AS n, COALESCE(SUM(value), 0) AS total").
		Where("user_id = ? AND name = ?", userID, name).
		Scan(&out).Error; err != nil {
		return st, err
	}
	st.InCount, st.Credited = in.N, in.Total
	st.OutCount, st.Debited = out.N, out.Total
	return st, nil
}

// CountWalletInByReceipt returns how many credit rows reference hash.
func CountWalletInByReceipt(ctx context.Context, db *gorm.DB, hash string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.WalletIn{}).
		Where("receipt_hash_id = ?", hash).
		Count(&n).Error
	return n, err
}
