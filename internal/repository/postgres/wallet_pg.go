// internal/repository/postgres/wallet_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledgerflow/internal/domain"
	"ledgerflow/internal/repository"
	"ledgerflow/internal/util"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Postgres error codes translated into repository sentinels.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// translateConstraint maps Postgres constraint violations onto the
// repository sentinel errors; other errors pass through unchanged.
func translateConstraint(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", util.ErrDuplicateEntry, pqErr.Constraint)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", util.ErrFloorViolation, pqErr.Constraint)
		}
	}
	return err
}

const walletColumns = `id, wallet_type_id, user_id, balance, reserved, available,
	price, min_value, scale, extra, last_operation_id, created_at, updated_at`

// WalletRepository implements repository.WalletRepository for PostgreSQL.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository() repository.WalletRepository {
	return &WalletRepository{}
}

// Create inserts a new wallet using the provided DBExecutor.
func (r *WalletRepository) Create(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	query := `INSERT INTO wallets (wallet_type_id, user_id, balance, reserved, available,
	              price, min_value, scale, extra, last_operation_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		wallet.WalletTypeID, wallet.UserID,
		wallet.Balance, wallet.Reserved, wallet.Available,
		wallet.Price, wallet.MinValue, wallet.Scale, wallet.Extra,
		wallet.LastOperationID, wallet.CreatedAt, wallet.UpdatedAt,
	).Scan(&wallet.ID)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", translateConstraint(err))
	}
	return nil
}

// GetByID retrieves a wallet by its ID using the provided DBExecutor.
func (r *WalletRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	if err := q.GetContext(ctx, &wallet, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet by ID %d: %w", id, err)
	}
	return &wallet, nil
}

// GetByIDForUpdate retrieves a wallet and takes a row lock on it. The lock is
// held until the surrounding transaction ends.
func (r *WalletRepository) GetByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	if err := q.GetContext(ctx, &wallet, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet %d: %w", id, err)
	}
	return &wallet, nil
}

// GetByUserAndType retrieves the single wallet a user holds for a type.
func (r *WalletRepository) GetByUserAndType(ctx context.Context, q repository.DBExecutor, userID, walletTypeID int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND wallet_type_id = $2`
	if err := q.GetContext(ctx, &wallet, query, userID, walletTypeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet for user %d type %d: %w", userID, walletTypeID, err)
	}
	return &wallet, nil
}

// ListByUser retrieves all wallets of a user.
func (r *WalletRepository) ListByUser(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.Wallet, error) {
	wallets := []domain.Wallet{}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY id`
	if err := q.SelectContext(ctx, &wallets, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list wallets for user %d: %w", userID, err)
	}
	return wallets, nil
}

// UpdateBalances sets the wallet's balance triple and last_operation_id to
// absolute values computed by the ledger engine. All values are bound
// parameters; the floor constraints live in the schema and a violation comes
// back as util.ErrFloorViolation.
func (r *WalletRepository) UpdateBalances(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	query := `UPDATE wallets
	          SET balance = $1, reserved = $2, available = $3, last_operation_id = $4, updated_at = $5
	          WHERE id = $6`
	result, err := q.ExecContext(ctx, query,
		wallet.Balance, wallet.Reserved, wallet.Available,
		wallet.LastOperationID, time.Now().UTC(), wallet.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balances for wallet %d: %w", wallet.ID, translateConstraint(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for wallet %d: %w", wallet.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("wallet %d: %w", wallet.ID, util.ErrNotFound)
	}
	return nil
}

// UpdatePricing sets the wallet's price and min_value.
func (r *WalletRepository) UpdatePricing(ctx context.Context, q repository.DBExecutor, walletID int64, price, minValue decimal.Decimal) error {
	query := `UPDATE wallets SET price = $1, min_value = $2, updated_at = $3 WHERE id = $4`
	result, err := q.ExecContext(ctx, query, price, minValue, time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("failed to update pricing for wallet %d: %w", walletID, translateConstraint(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for wallet %d: %w", walletID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("wallet %d: %w", walletID, util.ErrNotFound)
	}
	return nil
}
