// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency records a completed spend request keyed by
// (user_id, scope, key), where scope is the wallet name. A replay with the
// same Idempotency-Key returns the recorded result without debiting again.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:1"`
	Scope     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:3"`
	Value     int64     `gorm:"type:INTEGER NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// SameRequest reports whether a replay carries the recorded spend value.
// Reusing a key for a different value is a client error, not a replay.
func (r Idempotency) SameRequest(value int64) bool { return r.Value == value }

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
