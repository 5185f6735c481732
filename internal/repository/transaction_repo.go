// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"time"

	"ledgerflow/internal/domain"

	"github.com/shopspring/decimal"
)

// TransactionRepository defines the interface for the append-only transaction
// log. Rows are only ever inserted; there are no update or delete operations.
type TransactionRepository interface {
	// Create appends a new transaction row. Caller-supplied extension
	// properties are resolved against domain.ExtensionColumns and written to
	// their mapped columns.
	Create(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// GetByID retrieves a transaction by its ID. Returns (nil, nil) when no
	// such row exists.
	GetByID(ctx context.Context, q DBExecutor, id int64) (*domain.Transaction, error)
	// GetByParentID retrieves the settlement or rejection row of a
	// reservation. Returns (nil, nil) when the reservation is still open.
	GetByParentID(ctx context.Context, q DBExecutor, parentID int64) (*domain.Transaction, error)
	// GetByUUID retrieves a transaction by its idempotency token.
	GetByUUID(ctx context.Context, q DBExecutor, uuid string) (*domain.Transaction, error)
	// ListByWallet retrieves a paginated transaction history for a wallet,
	// newest first, together with the total row count.
	ListByWallet(ctx context.Context, q DBExecutor, walletID int64, limit, offset int) ([]domain.Transaction, int64, error)
	// ListByDate retrieves a wallet's transactions inside [from, to].
	ListByDate(ctx context.Context, q DBExecutor, walletID int64, from, to time.Time) ([]domain.Transaction, error)
	// ListByCode retrieves a wallet's transactions tagged with code.
	ListByCode(ctx context.Context, q DBExecutor, walletID int64, code string) ([]domain.Transaction, error)
	// ListByReference retrieves transactions carrying the external
	// correlation pair.
	ListByReference(ctx context.Context, q DBExecutor, referenceID, referenceSource string) ([]domain.Transaction, error)
	// ListOpenReservations retrieves a wallet's blocked transactions that
	// have no child row yet.
	ListOpenReservations(ctx context.Context, q DBExecutor, walletID int64) ([]domain.Transaction, error)
	// SumOpenReservations returns the signed sum of a wallet's open
	// reservations: WITHDRAW_BLOCKED amounts count positive, DEPOSIT_BLOCKED
	// negative, matching their effect on the reserved total.
	SumOpenReservations(ctx context.Context, q DBExecutor, walletID int64) (decimal.Decimal, error)
}
