// internal/repository/postgres/wallet_type_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledgerflow/internal/domain"
	"ledgerflow/internal/repository"
	"ledgerflow/internal/util"
)

// WalletTypeRepository implements repository.WalletTypeRepository for
// PostgreSQL.
type WalletTypeRepository struct{}

// NewWalletTypeRepository creates a new WalletTypeRepository.
func NewWalletTypeRepository() repository.WalletTypeRepository {
	return &WalletTypeRepository{}
}

// Create inserts a new wallet type.
func (r *WalletTypeRepository) Create(ctx context.Context, q repository.DBExecutor, walletType *domain.WalletType) error {
	query := `INSERT INTO wallet_types (name, created_at) VALUES ($1, $2) RETURNING id`
	if err := q.QueryRowContext(ctx, query, walletType.Name, walletType.CreatedAt).Scan(&walletType.ID); err != nil {
		return fmt.Errorf("failed to create wallet type: %w", translateConstraint(err))
	}
	return nil
}

// GetByID retrieves a wallet type by its ID.
func (r *WalletTypeRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.WalletType, error) {
	var walletType domain.WalletType
	query := `SELECT id, name, created_at FROM wallet_types WHERE id = $1`
	if err := q.GetContext(ctx, &walletType, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet type %d: %w", id, err)
	}
	return &walletType, nil
}

// Exists reports whether a wallet type with the given ID exists.
func (r *WalletTypeRepository) Exists(ctx context.Context, q repository.DBExecutor, id int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM wallet_types WHERE id = $1)`
	if err := q.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("failed to check wallet type %d: %w", id, err)
	}
	return exists, nil
}

// List retrieves all wallet types.
func (r *WalletTypeRepository) List(ctx context.Context, q repository.DBExecutor) ([]domain.WalletType, error) {
	walletTypes := []domain.WalletType{}
	query := `SELECT id, name, created_at FROM wallet_types ORDER BY id`
	if err := q.SelectContext(ctx, &walletTypes, query); err != nil {
		return nil, fmt.Errorf("failed to list wallet types: %w", err)
	}
	return walletTypes, nil
}
