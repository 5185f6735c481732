// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"ledgerflow/internal/domain"

	"github.com/shopspring/decimal"
)

// WalletRepository defines the interface for wallet data operations.
type WalletRepository interface {
	// Create inserts a new zero-balance wallet. A unique-constraint violation
	// on (user_id, wallet_type_id) surfaces as util.ErrDuplicateEntry.
	Create(ctx context.Context, q DBExecutor, wallet *domain.Wallet) error
	// GetByID retrieves a wallet by its ID.
	GetByID(ctx context.Context, q DBExecutor, id int64) (*domain.Wallet, error)
	// GetByIDForUpdate retrieves a wallet and takes a row lock on it
	// (SELECT ... FOR UPDATE), serializing concurrent mutations of the same
	// wallet. Must be called on a transaction executor.
	GetByIDForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.Wallet, error)
	// GetByUserAndType retrieves the single wallet a user holds for a type.
	GetByUserAndType(ctx context.Context, q DBExecutor, userID, walletTypeID int64) (*domain.Wallet, error)
	// ListByUser retrieves all wallets of a user.
	ListByUser(ctx context.Context, q DBExecutor, userID int64) ([]domain.Wallet, error)
	// UpdateBalances sets the wallet's balance triple and last_operation_id to
	// the given absolute values. A check-constraint (floor) violation surfaces
	// as util.ErrFloorViolation.
	UpdateBalances(ctx context.Context, q DBExecutor, wallet *domain.Wallet) error
	// UpdatePricing sets the wallet's price and min_value.
	UpdatePricing(ctx context.Context, q DBExecutor, walletID int64, price, minValue decimal.Decimal) error
}
