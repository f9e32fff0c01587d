// Package domain defines the persistence models for purchase receipts and
// wallet balances. These types are mapped with GORM and form the core data
// layer of the receipt-driven wallet ledger.
package domain

// ValidateState is the outcome of storefront verification of a receipt.
type ValidateState string

const (
	ValidateStateValidated ValidateState = "validated"
	ValidateStateError     ValidateState = "error"
)

// Status tracks whether a validated purchase has been consumed by the
// application. It is independent of ValidateState.
type Status string

const (
	StatusPending  Status = "pending"
	StatusHandled  Status = "handled"
	StatusCanceled Status = "canceled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusHandled, StatusCanceled:
		return true
	}
	return false
}

// Service identifies the storefront that issued a receipt.
type Service string

const (
	ServiceApple  Service = "apple"
	ServiceGoogle Service = "google"
)

// Valid reports whether s is a supported storefront.
func (s Service) Valid() bool {
	return s == ServiceApple || s == ServiceGoogle
}

// ValueType distinguishes purchased credits from granted ones.
type ValueType string

const (
	ValueTypePaid ValueType = "paid"
	ValueTypeFree ValueType = "free"
)

// Receipt is the ledger row for one unique purchase receipt, keyed by the
// SHA-256 hash of its canonical form. A row is created on the first
// verification attempt and updated in place afterwards; it is never deleted.
//
// Fields:
//   - ReceiptHash: hex digest of the canonical receipt (primary key).
//   - Receipt: canonical serialized receipt (raw string for Apple, JSON for Google).
//   - Response: serialized storefront response, overwritten on re-verification.
//   - ValidateState: "validated" or "error".
//   - Status: "pending" on insert, then "handled" or "canceled".
//   - Service: "apple" or "google".
//   - Created / Modtime: epoch milliseconds.
type Receipt struct {
	ReceiptHash   string        `json:"receipt_hash"   gorm:"column:receipt_hash;type:char(64);primaryKey;index:idx_iap_hash_service,priority:1"`
	Receipt       string        `json:"receipt"        gorm:"column:receipt;type:text;not null"`
	Response      string        `json:"response"       gorm:"column:response;type:text;not null"`
	ValidateState ValidateState `json:"validate_state" gorm:"column:validate_state;type:varchar(16);not null;check:chk_iap_validate_state,validate_state IN ('validated','error')"`
	Status        Status        `json:"status"         gorm:"column:status;type:varchar(16);not null;default:'pending';check:chk_iap_status,status IN ('pending','handled','canceled')"`
	Service       Service       `json:"service"        gorm:"column:service;type:varchar(16);not null;index:idx_iap_hash_service,priority:2"`
	Created       int64         `json:"created"        gorm:"column:created;not null"`
	Modtime       int64         `json:"modtime"        gorm:"column:modtime;not null"`
}

// TableName returns the database table name for Receipt.
func (Receipt) TableName() string { return "iap" }

// WalletBalance is the materialized balance of one wallet for one user. It is
// a cached aggregate of the wallet_in and wallet_out history rows.
type WalletBalance struct {
	UserID  string `json:"user_id" gorm:"column:user_id;type:varchar(64);primaryKey"`
	Name    string `json:"name"    gorm:"column:name;type:varchar(64);primaryKey"`
	Value   int64  `json:"value"   gorm:"column:value;not null;default:0;check:chk_wallet_balance_value,value >= 0"`
	Created int64  `json:"created" gorm:"column:created;not null"`
	Modtime int64  `json:"modtime" gorm:"column:modtime;not null"`
}

// TableName returns the database table name for WalletBalance.
func (WalletBalance) TableName() string { return "wallet_balance" }

// WalletIn is an immutable credit entry. Paid credits reference the receipt
// that funded them through ReceiptHashID.
type WalletIn struct {
	ID            string    `json:"id"              gorm:"column:id;type:char(36);primaryKey"`
	ReceiptHashID string    `json:"receipt_hash_id" gorm:"column:receipt_hash_id;type:varchar(64);not null;index"`
	UserID        string    `json:"user_id"         gorm:"column:user_id;type:varchar(64);not null;index:idx_wallet_in_user_name,priority:1"`
	Name          string    `json:"name"            gorm:"column:name;type:varchar(64);not null;index:idx_wallet_in_user_name,priority:2"`
	Price         int64     `json:"price"           gorm:"column:price;not null;default:0"`
	Value         int64     `json:"value"           gorm:"column:value;not null"`
	ValueType     ValueType `json:"value_type"      gorm:"column:value_type;type:varchar(8);not null;check:chk_wallet_in_value_type,value_type IN ('paid','free')"`
	Created       int64     `json:"created"         gorm:"column:created;not null"`
}

// TableName returns the database table name for WalletIn.
func (WalletIn) TableName() string { return "wallet_in" }

// WalletOut is an immutable debit entry. SpentFor is a free-form reason tag.
type WalletOut struct {
	ID       string `json:"id"        gorm:"column:id;type:char(36);primaryKey"`
	UserID   string `json:"user_id"   gorm:"column:user_id;type:varchar(64);not null;index:idx_wallet_out_user_name,priority:1"`
	Name     string `json:"name"      gorm:"column:name;type:varchar(64);not null;index:idx_wallet_out_user_name,priority:2"`
	Value    int64  `json:"value"     gorm:"column:value;not null"`
	SpentFor string `json:"spent_for" gorm:"column:spent_for;type:varchar(255);not null;default:''"`
	Created  int64  `json:"created"   gorm:"column:created;not null"`
}

// TableName returns the database table name for WalletOut.
func (WalletOut) TableName() string { return "wallet_out" }
