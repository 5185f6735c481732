// internal/domain/transaction.go
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType defines the kind of a ledger operation.
type TransactionType string

const (
	TransactionTypeBalance         TransactionType = "BALANCE"
	TransactionTypeDeposit         TransactionType = "DEPOSIT"
	TransactionTypeWithdraw        TransactionType = "WITHDRAW"
	TransactionTypeReject          TransactionType = "REJECT"
	TransactionTypeDepositBlocked  TransactionType = "DEPOSIT_BLOCKED"
	TransactionTypeWithdrawBlocked TransactionType = "WITHDRAW_BLOCKED"
)

// Valid reports whether tt is one of the known operation kinds.
func (tt TransactionType) Valid() bool {
	switch tt {
	case TransactionTypeBalance, TransactionTypeDeposit, TransactionTypeWithdraw,
		TransactionTypeReject, TransactionTypeDepositBlocked, TransactionTypeWithdrawBlocked:
		return true
	}
	return false
}

// Blocked reports whether tt is a reservation kind.
func (tt TransactionType) Blocked() bool {
	return tt == TransactionTypeDepositBlocked || tt == TransactionTypeWithdrawBlocked
}

// Deltas reports how an operation of this kind moves the three balance
// components for a given amount.
//
//	DEPOSIT           +a       0      +a
//	WITHDRAW          -a       0      -a
//	DEPOSIT_BLOCKED    0      -a      +a
//	WITHDRAW_BLOCKED   0      +a      -a
//
// BALANCE is an absolute reset, not a delta; callers handle it separately.
func (tt TransactionType) Deltas(amount decimal.Decimal) (dBalance, dReserved, dAvailable decimal.Decimal) {
	switch tt {
	case TransactionTypeDeposit:
		return amount, decimal.Zero, amount
	case TransactionTypeWithdraw:
		return amount.Neg(), decimal.Zero, amount.Neg()
	case TransactionTypeDepositBlocked:
		return decimal.Zero, amount.Neg(), amount
	case TransactionTypeWithdrawBlocked:
		return decimal.Zero, amount, amount.Neg()
	}
	return decimal.Zero, decimal.Zero, decimal.Zero
}

// ExtensionColumns declares which caller-supplied transaction properties are
// persisted, mapping property name to storage column. Properties without a
// mapping are dropped at write time.
var ExtensionColumns = map[string]string{
	"category": "category",
	"batch_id": "batch_id",
}

// Transaction is one append-only ledger entry. Rows are immutable once
// written; settling or rejecting a reservation creates a new row pointing at
// the reservation via ParentID, it never touches the original.
type Transaction struct {
	ID           int64           `db:"id" json:"id"`
	WalletID     int64           `db:"wallet_id" json:"wallet_id"`
	WalletTypeID int64           `db:"wallet_type_id" json:"wallet_type_id"` // denormalized at write time
	ParentID     *int64          `db:"parent_id" json:"parent_id"`           // settlement/rejection linkage
	Type         TransactionType `db:"type" json:"type"`

	// The wallet's totals immediately after this operation.
	Amount    decimal.Decimal `db:"amount" json:"amount"` // always >= 0, possibly capped
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Reserved  decimal.Decimal `db:"reserved" json:"reserved"`
	Available decimal.Decimal `db:"available" json:"available"`

	Price           decimal.Decimal `db:"price" json:"price"`
	Description     string          `db:"description" json:"description"`
	Code            string          `db:"code" json:"code"`
	ReferenceID     string          `db:"reference_id" json:"reference_id"`
	ReferenceSource string          `db:"reference_source" json:"reference_source"`
	Date            time.Time       `db:"date" json:"date"` // server-assigned
	UUID            string          `db:"uuid" json:"uuid"` // per-operation idempotency token
	PreviousUUID    string          `db:"previous_uuid" json:"previous_uuid"`
	Checksum        string          `db:"checksum" json:"checksum"`

	// Properties is a typed key-value overlay resolved against
	// ExtensionColumns at write time.
	Properties map[string]string `db:"-" json:"properties,omitempty"`
}

// ComputeChecksum returns the tamper-evidence hash over the transaction's
// financial snapshot and its operation-token chain. It is a pure function of
// the stored fields, so any row can be re-verified after the fact.
func (t *Transaction) ComputeChecksum() string {
	parts := strings.Join([]string{
		t.Amount.String(),
		t.Balance.String(),
		t.Reserved.String(),
		t.Available.String(),
		t.UUID,
		t.PreviousUUID,
	}, "|")
	sum := sha256.Sum256([]byte(parts))
	return hex.EncodeToString(sum[:])
}

// SealChecksum stamps the transaction with its checksum.
func (t *Transaction) SealChecksum() {
	t.Checksum = t.ComputeChecksum()
}

// VerifyChecksum reports whether the stored checksum still matches the row.
func (t *Transaction) VerifyChecksum() bool {
	return t.Checksum == t.ComputeChecksum()
}
