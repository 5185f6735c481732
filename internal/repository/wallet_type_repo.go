// internal/repository/wallet_type_repo.go
package repository

import (
	"context"

	"ledgerflow/internal/domain"
)

// WalletTypeRepository defines the interface for wallet-type reference data.
type WalletTypeRepository interface {
	// Create inserts a new wallet type.
	Create(ctx context.Context, q DBExecutor, walletType *domain.WalletType) error
	// GetByID retrieves a wallet type by its ID.
	GetByID(ctx context.Context, q DBExecutor, id int64) (*domain.WalletType, error)
	// Exists reports whether a wallet type with the given ID exists.
	Exists(ctx context.Context, q DBExecutor, id int64) (bool, error)
	// List retrieves all wallet types.
	List(ctx context.Context, q DBExecutor) ([]domain.WalletType, error)
}
