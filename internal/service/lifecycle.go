// internal/service/lifecycle.go
package service

import (
	"context"
	"errors"
	"fmt"

	"ledgerflow/internal/domain"
	"ledgerflow/internal/notify"
	"ledgerflow/internal/repository"
	"ledgerflow/internal/util"

	"github.com/shopspring/decimal"
)

// CreateWalletRequest describes a wallet to create.
type CreateWalletRequest struct {
	WalletTypeID   int64
	UserID         int64
	OpeningBalance decimal.Decimal
	Price          decimal.Decimal
	MinValue       decimal.Decimal
	Scale          int32
	Extra          string
}

// CreateWallet inserts a zero-balance wallet and immediately seeds it with an
// opening-balance transaction: a deposit for a non-negative opening balance,
// a withdrawal of the absolute value otherwise. Wallet creation and seeding
// run in one atomic unit of work.
func (s *LedgerService) CreateWallet(ctx context.Context, req *CreateWalletRequest) (*domain.Wallet, *domain.Transaction, error) {
	if req == nil || req.WalletTypeID == 0 {
		return nil, nil, &domain.ValidationError{Msg: "wallet type is required"}
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("create wallet: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("create wallet: transaction controller does not implement DBExecutor")
	}

	exists, err := s.typeRepo.Exists(ctx, txExecutor, req.WalletTypeID)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, &domain.WalletTypeError{Msg: fmt.Sprintf("wallet type %d does not exist", req.WalletTypeID)}
	}

	wallet := domain.NewWallet(req.WalletTypeID, req.UserID, req.Price, req.MinValue, req.Scale, req.Extra)
	if err := s.walletRepo.Create(ctx, txExecutor, wallet); err != nil {
		if errors.Is(err, util.ErrDuplicateEntry) {
			return nil, nil, &domain.WalletError{Msg: fmt.Sprintf(
				"user %d already has a wallet of type %d", req.UserID, req.WalletTypeID)}
		}
		return nil, nil, err
	}

	opening := &OperationRequest{
		WalletID:    wallet.ID,
		Type:        domain.TransactionTypeDeposit,
		Amount:      req.OpeningBalance,
		Description: "Opening Balance",
		Code:        CodeOpeningBalance,
	}
	if req.OpeningBalance.IsNegative() {
		opening.Type = domain.TransactionTypeWithdraw
		opening.Amount = req.OpeningBalance.Abs()
	}

	pending, err := s.applyLocked(ctx, txExecutor, opening)
	if err != nil {
		return nil, nil, err
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("create wallet: failed to commit transaction: %w", err)
	}

	s.notifier.Notify(ctx, notify.Event{
		Entity: notify.EntityWallet,
		Kind:   notify.EventInsert,
		New:    pending.newWallet,
	})
	if err := s.finish(ctx, s.dbExecutor, pending, true); err != nil {
		return nil, nil, err
	}
	return pending.newWallet, pending.row, nil
}

// OverrideBalance sets the wallet's balance to an absolute value, bypassing
// the delta table: open reservations keep their blocked amounts and available
// is recomputed around them. Writes a BALANCE transaction with the resulting
// snapshot.
func (s *LedgerService) OverrideBalance(ctx context.Context, walletID int64, newBalance, newPrice, newMinValue decimal.Decimal, description string) (*domain.Transaction, error) {
	if walletID == 0 {
		return nil, &domain.ValidationError{Msg: "wallet is required"}
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("override balance: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("override balance: transaction controller does not implement DBExecutor")
	}

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, txExecutor, walletID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, &domain.WalletError{Msg: fmt.Sprintf("wallet %d not found", walletID)}
		}
		return nil, err
	}

	reservedValues, err := s.txRepo.SumOpenReservations(ctx, txExecutor, walletID)
	if err != nil {
		return nil, err
	}
	if newBalance.Sub(reservedValues).LessThan(newMinValue) {
		return nil, &domain.TransactionError{Msg: fmt.Sprintf(
			"cannot override balance of wallet %d below its open reservations", walletID)}
	}

	if err := s.walletRepo.UpdatePricing(ctx, txExecutor, walletID, newPrice, newMinValue); err != nil {
		return nil, err
	}

	oldWallet := wallet.Snapshot()
	operationUUID := s.newUUID()

	row := &domain.Transaction{
		WalletID:     wallet.ID,
		WalletTypeID: wallet.WalletTypeID,
		Type:         domain.TransactionTypeBalance,
		Amount:       newBalance.Abs(),
		Balance:      newBalance,
		Reserved:     reservedValues,
		Available:    newBalance.Sub(reservedValues),
		Price:        newPrice,
		Description:  description,
		Date:         s.now(),
		UUID:         operationUUID,
		PreviousUUID: wallet.LastOperationID,
	}
	row.SealChecksum()

	if err := s.txRepo.Create(ctx, txExecutor, row); err != nil {
		return nil, err
	}

	wallet.Balance = row.Balance
	wallet.Reserved = row.Reserved
	wallet.Available = row.Available
	wallet.Price = newPrice
	wallet.MinValue = newMinValue
	wallet.LastOperationID = operationUUID
	if err := s.walletRepo.UpdateBalances(ctx, txExecutor, wallet); err != nil {
		if errors.Is(err, util.ErrFloorViolation) {
			return nil, &domain.AmountError{Msg: "cannot withdraw above the wallet balance"}
		}
		return nil, err
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("override balance: failed to commit transaction: %w", err)
	}

	pending := &pendingOp{row: row, oldWallet: oldWallet, newWallet: wallet}
	if err := s.finish(ctx, s.dbExecutor, pending, true); err != nil {
		return nil, err
	}
	return pending.row, nil
}

// CloseWallet resets the wallet to zero. The row is kept; wallets are never
// physically deleted.
func (s *LedgerService) CloseWallet(ctx context.Context, walletID int64) (*domain.Transaction, error) {
	return s.OverrideBalance(ctx, walletID, decimal.Zero, decimal.Zero, decimal.Zero, "Close Wallet")
}

// PartialBalance moves the wallet's available amount to the given target by
// issuing the deposit or withdrawal that covers the difference.
func (s *LedgerService) PartialBalance(ctx context.Context, walletID int64, targetAvailable decimal.Decimal, description string) (*domain.Transaction, error) {
	if walletID == 0 {
		return nil, &domain.ValidationError{Msg: "wallet is required"}
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("partial balance: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("partial balance: transaction controller does not implement DBExecutor")
	}

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, txExecutor, walletID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, &domain.WalletError{Msg: fmt.Sprintf("wallet %d not found", walletID)}
		}
		return nil, err
	}

	delta := targetAvailable.Sub(wallet.Available)
	req := &OperationRequest{
		WalletID:    walletID,
		Type:        domain.TransactionTypeDeposit,
		Amount:      delta,
		Description: description,
	}
	if delta.IsNegative() {
		req.Type = domain.TransactionTypeWithdraw
		req.Amount = delta.Abs()
	}

	pending, err := s.applyLocked(ctx, txExecutor, req)
	if err != nil {
		return nil, err
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("partial balance: failed to commit transaction: %w", err)
	}

	if err := s.finish(ctx, s.dbExecutor, pending, true); err != nil {
		return nil, err
	}
	return pending.row, nil
}

// TransferFunds moves amount between two wallets: a withdrawal on the source
// and a deposit on the target, both through the core mutation path and both
// inside ONE serializable unit of work, so a failed second leg rolls the
// first one back. The legs share a generated correlation reference id and
// carry reciprocal codes.
func (s *LedgerService) TransferFunds(ctx context.Context, sourceID, targetID int64, amount decimal.Decimal) (*domain.Transaction, *domain.Transaction, error) {
	if sourceID == 0 || targetID == 0 {
		return nil, nil, &domain.ValidationError{Msg: "wallet is required"}
	}
	if sourceID == targetID {
		return nil, nil, &domain.ValidationError{Msg: "cannot transfer to the same wallet"}
	}
	if amount.IsNegative() {
		return nil, nil, &domain.AmountError{Msg: "amount must be greater than zero"}
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("transfer: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("transfer: transaction controller does not implement DBExecutor")
	}

	referenceID := s.newUUID()

	withdrawal, err := s.applyLocked(ctx, txExecutor, &OperationRequest{
		WalletID:        sourceID,
		Type:            domain.TransactionTypeWithdraw,
		Amount:          amount,
		Description:     fmt.Sprintf("Transfer to wallet %d", targetID),
		Code:            CodeTransferOut,
		ReferenceID:     referenceID,
		ReferenceSource: referenceSourceTransfer,
	})
	if err != nil {
		return nil, nil, err
	}

	deposit, err := s.applyLocked(ctx, txExecutor, &OperationRequest{
		WalletID:        targetID,
		Type:            domain.TransactionTypeDeposit,
		Amount:          amount,
		Description:     fmt.Sprintf("Transfer from wallet %d", sourceID),
		Code:            CodeTransferIn,
		ReferenceID:     referenceID,
		ReferenceSource: referenceSourceTransfer,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("transfer: failed to commit transaction: %w", err)
	}

	if err := s.finish(ctx, s.dbExecutor, withdrawal, true); err != nil {
		return nil, nil, err
	}
	if err := s.finish(ctx, s.dbExecutor, deposit, true); err != nil {
		return nil, nil, err
	}
	return withdrawal.row, deposit.row, nil
}
