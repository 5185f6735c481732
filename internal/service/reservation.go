// internal/service/reservation.go
package service

import (
	"context"
	"errors"
	"fmt"

	"ledgerflow/internal/domain"
	"ledgerflow/internal/repository"
	"ledgerflow/internal/util"

	"github.com/shopspring/decimal"
)

// AddFunds deposits amount into the wallet.
func (s *LedgerService) AddFunds(ctx context.Context, req *OperationRequest) (*domain.Transaction, error) {
	req.Type = domain.TransactionTypeDeposit
	return s.Apply(ctx, req)
}

// WithdrawFunds withdraws amount from the wallet. With req.CapAtZero the
// withdrawal is clamped to the available amount instead of rejected.
func (s *LedgerService) WithdrawFunds(ctx context.Context, req *OperationRequest) (*domain.Transaction, error) {
	req.Type = domain.TransactionTypeWithdraw
	return s.Apply(ctx, req)
}

// ReserveFundsForWithdraw blocks amount for a later withdrawal: available
// drops, reserved grows, balance is untouched until the reservation settles.
func (s *LedgerService) ReserveFundsForWithdraw(ctx context.Context, req *OperationRequest) (*domain.Transaction, error) {
	req.Type = domain.TransactionTypeWithdrawBlocked
	return s.Apply(ctx, req)
}

// ReserveFundsForDeposit makes amount available ahead of its settlement:
// available grows, reserved drops, balance is untouched until the reservation
// settles.
func (s *LedgerService) ReserveFundsForDeposit(ctx context.Context, req *OperationRequest) (*domain.Transaction, error) {
	req.Type = domain.TransactionTypeDepositBlocked
	return s.Apply(ctx, req)
}

// AcceptFundsByID settles an open reservation: the blocked amount moves
// between reserved and balance while available stays put, and a new row
// pointing at the reservation is appended. Settling the same reservation
// twice fails with a TransactionError.
func (s *LedgerService) AcceptFundsByID(ctx context.Context, reservationID int64) (*domain.Transaction, error) {
	return s.settle(ctx, reservationID, true)
}

// RejectFundsByID cancels an open reservation: the blocked amount returns to
// available while balance stays put, and a REJECT row pointing at the
// reservation is appended.
func (s *LedgerService) RejectFundsByID(ctx context.Context, reservationID int64) (*domain.Transaction, error) {
	return s.settle(ctx, reservationID, false)
}

func (s *LedgerService) settle(ctx context.Context, reservationID int64, accept bool) (*domain.Transaction, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("settle: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("settle: transaction controller does not implement DBExecutor")
	}

	pending, err := s.settleLocked(ctx, txExecutor, reservationID, accept)
	if err != nil {
		return nil, err
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("settle: failed to commit transaction: %w", err)
	}

	if err := s.finish(ctx, s.dbExecutor, pending, true); err != nil {
		return nil, err
	}
	return pending.row, nil
}

// settleLocked settles or rejects a reservation inside an open transaction.
// The open-reservation check (no child row) runs after the wallet lock is
// held, closing the race between two concurrent settlements of the same
// reservation.
func (s *LedgerService) settleLocked(ctx context.Context, q repository.DBExecutor, reservationID int64, accept bool) (*pendingOp, error) {
	reservation, err := s.txRepo.GetByID(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, &domain.TransactionError{Msg: fmt.Sprintf("reservation %d not found", reservationID)}
	}
	if !reservation.Type.Blocked() {
		return nil, &domain.TransactionError{Msg: fmt.Sprintf(
			"transaction %d is not a reservation", reservationID)}
	}

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, q, reservation.WalletID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, &domain.WalletError{Msg: fmt.Sprintf("wallet %d not found", reservation.WalletID)}
		}
		return nil, err
	}

	child, err := s.txRepo.GetByParentID(ctx, q, reservation.ID)
	if err != nil {
		return nil, err
	}
	if child != nil {
		return nil, &domain.TransactionError{Msg: fmt.Sprintf(
			"reservation %d already accepted", reservationID)}
	}

	amount := reservation.Amount
	newBalance := wallet.Balance
	newReserved := wallet.Reserved
	newAvailable := wallet.Available
	var resolvedType domain.TransactionType

	if accept {
		// Settlement moves the blocked amount between reserved and balance;
		// available was already adjusted when the reservation was taken.
		signal := decimal.NewFromInt(-1)
		resolvedType = domain.TransactionTypeWithdraw
		if reservation.Type == domain.TransactionTypeDepositBlocked {
			signal = decimal.NewFromInt(1)
			resolvedType = domain.TransactionTypeDeposit
		}
		newReserved = wallet.Reserved.Add(amount.Mul(signal))
		newBalance = wallet.Balance.Add(amount.Mul(signal))
	} else {
		// Rejection returns the blocked amount to available; it was never
		// settled, so balance is untouched.
		signal := decimal.NewFromInt(1)
		if reservation.Type == domain.TransactionTypeDepositBlocked {
			signal = decimal.NewFromInt(-1)
		}
		resolvedType = domain.TransactionTypeReject
		newReserved = wallet.Reserved.Sub(amount.Mul(signal))
		newAvailable = wallet.Available.Add(amount.Mul(signal))
	}

	oldWallet := wallet.Snapshot()
	operationUUID := s.newUUID()
	parentID := reservation.ID

	row := &domain.Transaction{
		WalletID:        wallet.ID,
		WalletTypeID:    wallet.WalletTypeID,
		ParentID:        &parentID,
		Type:            resolvedType,
		Amount:          amount,
		Balance:         newBalance,
		Reserved:        newReserved,
		Available:       newAvailable,
		Price:           wallet.Price,
		Description:     reservation.Description,
		Code:            reservation.Code,
		ReferenceID:     reservation.ReferenceID,
		ReferenceSource: reservation.ReferenceSource,
		Date:            s.now(),
		UUID:            operationUUID,
		PreviousUUID:    wallet.LastOperationID,
		Properties:      reservation.Properties,
	}
	row.SealChecksum()

	if err := s.txRepo.Create(ctx, q, row); err != nil {
		return nil, err
	}

	wallet.Balance = newBalance
	wallet.Reserved = newReserved
	wallet.Available = newAvailable
	wallet.LastOperationID = operationUUID
	if err := s.walletRepo.UpdateBalances(ctx, q, wallet); err != nil {
		if errors.Is(err, util.ErrFloorViolation) {
			return nil, &domain.AmountError{Msg: "cannot withdraw above the wallet balance"}
		}
		return nil, err
	}

	return &pendingOp{
		row:       row,
		oldWallet: oldWallet,
		newWallet: wallet,
	}, nil
}

// AcceptPartialFundsByID settles a withdraw reservation for less than its
// blocked amount: the reservation is rejected in full and the partial amount
// is withdrawn as a fresh, independent operation. Both steps run inside one
// atomic unit of work. The refund request supplies the metadata for the
// partial withdrawal; its wallet, type and amount are taken from the
// reservation.
func (s *LedgerService) AcceptPartialFundsByID(ctx context.Context, reservationID int64, partialAmount decimal.Decimal, refund *OperationRequest) (*domain.Transaction, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("partial accept: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("partial accept: transaction controller does not implement DBExecutor")
	}

	reservation, err := s.txRepo.GetByID(ctx, txExecutor, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, &domain.TransactionError{Msg: fmt.Sprintf("reservation %d not found", reservationID)}
	}
	if reservation.Type != domain.TransactionTypeWithdrawBlocked {
		return nil, &domain.TransactionError{Msg: fmt.Sprintf(
			"transaction %d is not a withdraw reservation", reservationID)}
	}
	if !partialAmount.IsPositive() || partialAmount.GreaterThanOrEqual(reservation.Amount) {
		return nil, &domain.AmountError{Msg: "partial amount must be above zero and below the reserved amount"}
	}

	rejected, err := s.settleLocked(ctx, txExecutor, reservationID, false)
	if err != nil {
		return nil, err
	}

	if refund == nil {
		refund = &OperationRequest{}
	}
	refund.WalletID = reservation.WalletID
	refund.Type = domain.TransactionTypeWithdraw
	refund.Amount = partialAmount
	refund.CapAtZero = false

	withdrawn, err := s.applyLocked(ctx, txExecutor, refund)
	if err != nil {
		return nil, err
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("partial accept: failed to commit transaction: %w", err)
	}

	// The reject row's wallet verification would fail against the final
	// totals; only the withdrawal left the wallet's last operation marker.
	s.emit(ctx, rejected)
	if err := s.finish(ctx, s.dbExecutor, withdrawn, true); err != nil {
		return nil, err
	}
	return withdrawn.row, nil
}
