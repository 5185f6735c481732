// internal/service/queries.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerflow/internal/domain"
	"ledgerflow/internal/util"
)

// GetWalletByID retrieves a wallet.
func (s *LedgerService) GetWalletByID(ctx context.Context, walletID int64) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, s.dbExecutor, walletID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, &domain.WalletError{Msg: fmt.Sprintf("wallet %d not found", walletID)}
		}
		return nil, err
	}
	return wallet, nil
}

// GetWalletsByUser retrieves all wallets of a user.
func (s *LedgerService) GetWalletsByUser(ctx context.Context, userID int64) ([]domain.Wallet, error) {
	return s.walletRepo.ListByUser(ctx, s.dbExecutor, userID)
}

// GetTransactionByID retrieves a transaction. A missing id yields (nil, nil),
// never an error.
func (s *LedgerService) GetTransactionByID(ctx context.Context, transactionID int64) (*domain.Transaction, error) {
	return s.txRepo.GetByID(ctx, s.dbExecutor, transactionID)
}

// GetTransactionByUUID retrieves a transaction by its idempotency token. An
// unknown token yields (nil, nil), never an error.
func (s *LedgerService) GetTransactionByUUID(ctx context.Context, uuid string) (*domain.Transaction, error) {
	return s.txRepo.GetByUUID(ctx, s.dbExecutor, uuid)
}

// GetTransactionsByWallet retrieves a paginated transaction history for a
// wallet, newest first, with the total row count.
func (s *LedgerService) GetTransactionsByWallet(ctx context.Context, walletID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	if _, err := s.GetWalletByID(ctx, walletID); err != nil {
		return nil, 0, err
	}
	return s.txRepo.ListByWallet(ctx, s.dbExecutor, walletID, limit, offset)
}

// GetTransactionsByDate retrieves a wallet's transactions inside [from, to].
func (s *LedgerService) GetTransactionsByDate(ctx context.Context, walletID int64, from, to time.Time) ([]domain.Transaction, error) {
	return s.txRepo.ListByDate(ctx, s.dbExecutor, walletID, from, to)
}

// GetTransactionsByCode retrieves a wallet's transactions tagged with code.
func (s *LedgerService) GetTransactionsByCode(ctx context.Context, walletID int64, code string) ([]domain.Transaction, error) {
	return s.txRepo.ListByCode(ctx, s.dbExecutor, walletID, code)
}

// GetTransactionsByReference retrieves transactions carrying the external
// correlation pair.
func (s *LedgerService) GetTransactionsByReference(ctx context.Context, referenceID, referenceSource string) ([]domain.Transaction, error) {
	return s.txRepo.ListByReference(ctx, s.dbExecutor, referenceID, referenceSource)
}

// GetReservedTransactions retrieves a wallet's open reservations.
func (s *LedgerService) GetReservedTransactions(ctx context.Context, walletID int64) ([]domain.Transaction, error) {
	return s.txRepo.ListOpenReservations(ctx, s.dbExecutor, walletID)
}

// CreateWalletType inserts a new wallet-type reference row.
func (s *LedgerService) CreateWalletType(ctx context.Context, name string) (*domain.WalletType, error) {
	if name == "" {
		return nil, &domain.ValidationError{Msg: "wallet type name is required"}
	}
	walletType := &domain.WalletType{Name: name, CreatedAt: s.now()}
	if err := s.typeRepo.Create(ctx, s.dbExecutor, walletType); err != nil {
		if errors.Is(err, util.ErrDuplicateEntry) {
			return nil, &domain.WalletTypeError{Msg: fmt.Sprintf("wallet type %q already exists", name)}
		}
		return nil, err
	}
	return walletType, nil
}

// GetWalletTypeName returns the name of a wallet type.
func (s *LedgerService) GetWalletTypeName(ctx context.Context, walletTypeID int64) (string, error) {
	walletType, err := s.typeRepo.GetByID(ctx, s.dbExecutor, walletTypeID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return "", &domain.WalletTypeError{Msg: fmt.Sprintf("wallet type %d does not exist", walletTypeID)}
		}
		return "", err
	}
	return walletType.Name, nil
}

// ListWalletTypes retrieves all wallet types.
func (s *LedgerService) ListWalletTypes(ctx context.Context) ([]domain.WalletType, error) {
	return s.typeRepo.List(ctx, s.dbExecutor)
}
