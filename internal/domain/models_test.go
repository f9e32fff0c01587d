package domain

import (
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		Receipt{}.TableName():       "iap",
		WalletBalance{}.TableName(): "wallet_balance",
		WalletIn{}.TableName():      "wallet_in",
		WalletOut{}.TableName():     "wallet_out",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestEnums_Valid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusHandled, StatusCanceled} {
		if !s.Valid() {
			t.Fatalf("status %q should be valid", s)
		}
	}
	if Status("refunded").Valid() || Status("").Valid() {
		t.Fatalf("unknown statuses must be invalid")
	}
	if !ServiceApple.Valid() || !ServiceGoogle.Valid() {
		t.Fatalf("apple/google must be valid services")
	}
	if Service("amazon").Valid() {
		t.Fatalf("unknown service must be invalid")
	}
}

func TestMigrations_Indexes_AndChecks(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Receipt{}, &WalletBalance{}, &WalletIn{}, &WalletOut{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&Receipt{}, &WalletBalance{}, &WalletIn{}, &WalletOut{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&Receipt{}, "idx_iap_hash_service") {
		t.Fatalf("expected index idx_iap_hash_service on iap")
	}
	if !m.HasIndex(&WalletIn{}, "idx_wallet_in_user_name") {
		t.Fatalf("expected index idx_wallet_in_user_name on wallet_in")
	}
	if !m.HasIndex(&WalletOut{}, "idx_wallet_out_user_name") {
		t.Fatalf("expected index idx_wallet_out_user_name on wallet_out")
	}

	// Negative balances are rejected by the CHECK constraint.
	neg := &WalletBalance{UserID: "u1", Name: "gems", Value: -1, Created: 1, Modtime: 1}
	if err := db.Create(neg).Error; err == nil {
		t.Fatalf("expected CHECK violation for negative balance")
	}

	// Unknown validate_state is rejected.
	bad := &Receipt{
		ReceiptHash: "h1", Receipt: "r", Response: "{}",
		ValidateState: "maybe", Status: StatusPending, Service: ServiceApple,
		Created: 1, Modtime: 1,
	}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected CHECK violation for validate_state")
	}

	// Composite primary key on wallet_balance.
	ok := &WalletBalance{UserID: "u1", Name: "gems", Value: 10, Created: 1, Modtime: 1}
	if err := db.Create(ok).Error; err != nil {
		t.Fatalf("insert balance: %v", err)
	}
	again := &WalletBalance{UserID: "u1", Name: "gems", Value: 5, Created: 2, Modtime: 2}
	if err := db.Create(again).Error; err == nil {
		t.Fatalf("expected primary key violation on (user_id, name)")
	}
	other := &WalletBalance{UserID: "u1", Name: "coins", Value: 5, Created: 2, Modtime: 2}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("insert other wallet: %v", err)
	}
}
