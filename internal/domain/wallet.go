// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet represents a single account. Its balance fields are mutated
// exclusively through the ledger engine; the transaction log is the
// authoritative history and the wallet row caches the latest totals.
//
// At rest (no operation in flight) the triple always satisfies
// Available = Balance - Reserved.
type Wallet struct {
	ID              int64           `db:"id" json:"id"`
	WalletTypeID    int64           `db:"wallet_type_id" json:"wallet_type_id"`
	UserID          int64           `db:"user_id" json:"user_id"`
	Balance         decimal.Decimal `db:"balance" json:"balance"`     // settled amount
	Reserved        decimal.Decimal `db:"reserved" json:"reserved"`   // sum of outstanding blocked amounts
	Available       decimal.Decimal `db:"available" json:"available"` // spendable amount
	Price           decimal.Decimal `db:"price" json:"price"`
	MinValue        decimal.Decimal `db:"min_value" json:"min_value"` // floor for all three balance fields
	Scale           int32           `db:"scale" json:"scale"`         // decimal places accepted on amounts
	Extra           string          `db:"extra" json:"extra"`         // opaque caller metadata
	LastOperationID string          `db:"last_operation_id" json:"last_operation_id"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// NewWallet creates a zero-balance Wallet instance. The opening balance is
// applied afterwards through the ledger engine so that it shows up in the
// transaction log like every other movement.
func NewWallet(walletTypeID, userID int64, price, minValue decimal.Decimal, scale int32, extra string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		WalletTypeID: walletTypeID,
		UserID:       userID,
		Balance:      decimal.Zero,
		Reserved:     decimal.Zero,
		Available:    decimal.Zero,
		Price:        price,
		MinValue:     minValue,
		Scale:        scale,
		Extra:        extra,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SmallestUnit returns 10^-scale, the finest amount this wallet accepts.
func (w *Wallet) SmallestUnit() decimal.Decimal {
	return decimal.New(1, -w.Scale)
}

// ScaleAllows reports whether amount is an exact multiple of the wallet's
// smallest unit.
func (w *Wallet) ScaleAllows(amount decimal.Decimal) bool {
	return amount.Mod(w.SmallestUnit()).IsZero()
}

// Snapshot returns a copy of the wallet, used as the pre-operation state in
// change notifications.
func (w *Wallet) Snapshot() *Wallet {
	c := *w
	return &c
}

// WalletType is a reference-data entity classifying wallets. A user may hold
// at most one wallet per type.
type WalletType struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
