// internal/service/ledger_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ledgerflow/internal/domain"
	"ledgerflow/internal/notify"
	"ledgerflow/internal/repository"
	"ledgerflow/internal/util"
	"ledgerflow/pkg/db"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Codes stamped on transactions created by the lifecycle operations.
const (
	CodeOpeningBalance = "BAL"
	CodeTransferOut    = "T_TO"
	CodeTransferIn     = "T_FROM"
)

// referenceSourceTransfer tags the correlation pair shared by both legs of a
// transfer.
const referenceSourceTransfer = "TRANSFER"

// OperationRequest describes one balance mutation. After a successful
// operation Amount holds the effective amount, which for a capped withdrawal
// may be lower than requested.
type OperationRequest struct {
	WalletID        int64
	Type            domain.TransactionType
	Amount          decimal.Decimal
	Description     string
	Code            string
	ReferenceID     string
	ReferenceSource string
	Properties      map[string]string
	// CapAtZero clamps a WITHDRAW to the currently available amount instead
	// of rejecting it when it would overdraw the wallet.
	CapAtZero bool
}

// LedgerService owns the balance-mutation protocol. Every balance change goes
// through Apply (or a sibling built on the same locked path): one serializable
// transaction that locks the wallet row, appends a snapshot row to the
// transaction log and updates the wallet's cached totals.
type LedgerService struct {
	dbBeginner db.DBTxBeginner
	dbExecutor repository.DBExecutor
	walletRepo repository.WalletRepository
	txRepo     repository.TransactionRepository
	typeRepo   repository.WalletTypeRepository
	notifier   *notify.Notifier
	logger     *slog.Logger

	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc

	now     func() time.Time
	newUUID func() string
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	walletRepo repository.WalletRepository,
	txRepo repository.TransactionRepository,
	typeRepo repository.WalletTypeRepository,
	notifier *notify.Notifier,
	logger *slog.Logger,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) *LedgerService {
	return &LedgerService{
		dbBeginner: dbBeginner,
		dbExecutor: dbExecutor,
		walletRepo: walletRepo,
		txRepo:     txRepo,
		typeRepo:   typeRepo,
		notifier:   notifier,
		logger:     logger,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
		now:        func() time.Time { return time.Now().UTC() },
		newUUID:    uuid.NewString,
	}
}

// pendingOp carries one applied-but-unverified operation from the locked
// transaction scope to the post-commit verification and notification step.
type pendingOp struct {
	req       *OperationRequest
	row       *domain.Transaction
	oldWallet *domain.Wallet
	newWallet *domain.Wallet
	capped    bool
}

// validateRequest fails fast, before any I/O. Nothing has been touched when
// it returns an error.
func validateRequest(req *OperationRequest) error {
	if req == nil || req.WalletID == 0 {
		return &domain.ValidationError{Msg: "wallet is required"}
	}
	if !req.Type.Valid() {
		return &domain.ValidationError{Msg: fmt.Sprintf("unknown operation type %q", req.Type)}
	}
	if req.Amount.IsNegative() {
		return &domain.AmountError{Msg: "amount must be greater than zero"}
	}
	return nil
}

// Apply executes one balance mutation in its own serializable transaction and
// returns the appended transaction row. On success req.Amount holds the
// effective (possibly capped) amount.
func (s *LedgerService) Apply(ctx context.Context, req *OperationRequest) (*domain.Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("apply: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("apply: transaction controller does not implement DBExecutor")
	}

	pending, err := s.applyLocked(ctx, txExecutor, req)
	if err != nil {
		return nil, err
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("apply: failed to commit transaction: %w", err)
	}

	if err := s.finish(ctx, s.dbExecutor, pending, true); err != nil {
		return nil, err
	}
	return pending.row, nil
}

// ApplyInTx executes one balance mutation inside a transaction the caller has
// already opened, for composing several ledger operations into one atomic
// unit. The outer transaction must run at the engine's required isolation
// level; anything weaker fails immediately with IsolationConflictError. The
// caller owns commit and rollback, so verification runs against the joined
// transaction and no change notifications are emitted.
func (s *LedgerService) ApplyInTx(ctx context.Context, q repository.DBExecutor, req *OperationRequest) (*domain.Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.requireIsolation(ctx, q); err != nil {
		return nil, err
	}

	pending, err := s.applyLocked(ctx, q, req)
	if err != nil {
		return nil, err
	}
	if err := s.finish(ctx, q, pending, false); err != nil {
		return nil, err
	}
	return pending.row, nil
}

// requireIsolation verifies the joined transaction runs at the engine's
// required level.
func (s *LedgerService) requireIsolation(ctx context.Context, q repository.DBExecutor) error {
	level, err := db.CurrentIsolation(ctx, q)
	if err != nil {
		return err
	}
	required := strings.ToLower(db.RequiredIsolation.String())
	if level != required {
		return &domain.IsolationConflictError{Required: required, Actual: level}
	}
	return nil
}

// applyLocked is the single choke point for relative balance mutations. It
// runs inside an open transaction: locks the wallet row, computes the new
// totals, appends the transaction row stamped with the post-operation
// snapshot and moves the wallet's cached totals to match.
func (s *LedgerService) applyLocked(ctx context.Context, q repository.DBExecutor, req *OperationRequest) (*pendingOp, error) {
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, q, req.WalletID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, &domain.WalletError{Msg: fmt.Sprintf("wallet %d not found", req.WalletID)}
		}
		return nil, err
	}

	if !wallet.ScaleAllows(req.Amount) {
		return nil, &domain.AmountError{Msg: "amount needs to match the scale"}
	}

	amount := req.Amount
	capped := false
	var newBalance, newReserved, newAvailable decimal.Decimal

	switch req.Type {
	case domain.TransactionTypeBalance:
		// Absolute reset: reserved is untouched, available follows.
		newBalance = amount
		newReserved = wallet.Reserved
		newAvailable = amount.Sub(wallet.Reserved)
	case domain.TransactionTypeWithdraw:
		if req.CapAtZero && wallet.Available.LessThan(amount) {
			// Floor the withdrawal at zero available instead of rejecting it.
			amount = wallet.Available
			if amount.IsNegative() {
				amount = decimal.Zero
			}
			capped = true
		}
		fallthrough
	default:
		dBalance, dReserved, dAvailable := req.Type.Deltas(amount)
		newBalance = wallet.Balance.Add(dBalance)
		newReserved = wallet.Reserved.Add(dReserved)
		newAvailable = wallet.Available.Add(dAvailable)
	}

	oldWallet := wallet.Snapshot()
	operationUUID := s.newUUID()

	row := &domain.Transaction{
		WalletID:        wallet.ID,
		WalletTypeID:    wallet.WalletTypeID,
		Type:            req.Type,
		Amount:          amount,
		Balance:         newBalance,
		Reserved:        newReserved,
		Available:       newAvailable,
		Price:           wallet.Price,
		Description:     req.Description,
		Code:            req.Code,
		ReferenceID:     req.ReferenceID,
		ReferenceSource: req.ReferenceSource,
		Date:            s.now(),
		UUID:            operationUUID,
		PreviousUUID:    wallet.LastOperationID,
		Properties:      req.Properties,
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
			// The storage-level floor check is the authoritative conflict
			// signal for concurrent overdraws.
			return nil, &domain.AmountError{Msg: "cannot withdraw above the wallet balance"}
		}
		return nil, err
	}

	return &pendingOp{
		req:       req,
		row:       row,
		oldWallet: oldWallet,
		newWallet: wallet,
		capped:    capped,
	}, nil
}

// finish runs the post-apply consistency checks and, when emit is set,
// publishes the change notifications. A failed check here is fatal: it means
// the isolation the engine relies on was violated or the storage layer
// persisted something other than what it was given.
func (s *LedgerService) finish(ctx context.Context, q repository.DBExecutor, p *pendingOp, emit bool) error {
	reloadedWallet, err := s.walletRepo.GetByID(ctx, q, p.row.WalletID)
	if err != nil {
		return fmt.Errorf("post-commit wallet reload failed: %w", err)
	}
	if reloadedWallet.LastOperationID != p.row.UUID {
		// A racing writer slipped past the isolation level. Lost update.
		return &domain.WalletError{Msg: fmt.Sprintf(
			"wallet %d last operation id is %q, expected %q",
			p.row.WalletID, reloadedWallet.LastOperationID, p.row.UUID)}
	}

	reloadedRow, err := s.txRepo.GetByID(ctx, q, p.row.ID)
	if err != nil {
		return fmt.Errorf("post-commit transaction reload failed: %w", err)
	}
	if reloadedRow == nil {
		return &domain.TransactionError{Msg: fmt.Sprintf("transaction %d not found after commit", p.row.ID)}
	}
	if err := s.verifyRow(p, reloadedRow); err != nil {
		return err
	}

	if p.req != nil {
		// Make the effective (possibly capped) amount visible to the caller.
		p.req.Amount = reloadedRow.Amount
	}
	p.row = reloadedRow
	p.newWallet = reloadedWallet

	if emit {
		s.emit(ctx, p)
	}
	return nil
}

// verifyRow compares the reloaded row against what was requested and fails
// with a TransactionError naming every mismatched field.
func (s *LedgerService) verifyRow(p *pendingOp, row *domain.Transaction) error {
	var mismatched []string
	if row.WalletID != p.row.WalletID {
		mismatched = append(mismatched, "wallet_id")
	}
	if row.Type != p.row.Type {
		mismatched = append(mismatched, "type")
	}
	if row.Description != p.row.Description {
		mismatched = append(mismatched, "description")
	}
	if row.Code != p.row.Code {
		mismatched = append(mismatched, "code")
	}
	if row.ReferenceID != p.row.ReferenceID || row.ReferenceSource != p.row.ReferenceSource {
		mismatched = append(mismatched, "reference")
	}
	if p.req != nil {
		if p.capped {
			if row.Amount.GreaterThan(p.req.Amount) {
				mismatched = append(mismatched, "amount")
			}
		} else if !row.Amount.Equal(p.req.Amount) {
			mismatched = append(mismatched, "amount")
		}
		for name := range p.req.Properties {
			if _, ok := domain.ExtensionColumns[name]; !ok {
				continue
			}
			if row.Properties[name] != p.req.Properties[name] {
				mismatched = append(mismatched, name)
			}
		}
	} else if !row.Amount.Equal(p.row.Amount) {
		mismatched = append(mismatched, "amount")
	}
	if len(mismatched) > 0 {
		return &domain.TransactionError{Msg: fmt.Sprintf(
			"transaction %d failed verification, mismatched fields: %s",
			row.ID, strings.Join(mismatched, ", "))}
	}
	return nil
}

// emit publishes the wallet update (with its pre-operation snapshot) and the
// transaction insert. Runs after commit; listener failures are logged by the
// notifier and cannot undo the mutation.
func (s *LedgerService) emit(ctx context.Context, p *pendingOp) {
	s.notifier.Notify(ctx, notify.Event{
		Entity: notify.EntityWallet,
		Kind:   notify.EventUpdate,
		New:    p.newWallet,
		Old:    p.oldWallet,
	})
	s.notifier.Notify(ctx, notify.Event{
		Entity: notify.EntityTransaction,
		Kind:   notify.EventInsert,
		New:    p.row,
	})
}
