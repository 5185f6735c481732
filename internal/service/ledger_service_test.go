// internal/service/ledger_service_test.go
package service

import (
	"context"
	"testing"

	"ledgerflow/internal/domain"
	"ledgerflow/internal/notify"
	"ledgerflow/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testWallet(balance, reserved string) *domain.Wallet {
	b := dec(balance)
	r := dec(reserved)
	return &domain.Wallet{
		ID:              1,
		WalletTypeID:    2,
		UserID:          3,
		Balance:         b,
		Reserved:        r,
		Available:       b.Sub(r),
		Scale:           2,
		LastOperationID: "prev-op",
	}
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, label string) {
	t.Helper()
	assert.True(t, actual.Equal(dec(expected)), "%s: expected %s, got %s", label, expected, actual)
}

func TestApplyValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   *OperationRequest
		check func(t *testing.T, err error)
	}{
		{
			name: "missing wallet",
			req:  &OperationRequest{Type: domain.TransactionTypeDeposit, Amount: dec("10")},
			check: func(t *testing.T, err error) {
				var target *domain.ValidationError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name: "unknown type",
			req:  &OperationRequest{WalletID: 1, Type: "TELEPORT", Amount: dec("10")},
			check: func(t *testing.T, err error) {
				var target *domain.ValidationError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name: "negative amount",
			req:  &OperationRequest{WalletID: 1, Type: domain.TransactionTypeDeposit, Amount: dec("-10")},
			check: func(t *testing.T, err error) {
				var target *domain.AmountError
				assert.ErrorAs(t, err, &target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := h.svc.Apply(ctx, tt.req)
			assert.Nil(t, row)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	// Validation fails before any I/O.
	h.walletRepo.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, h.txc.committed)
}

func TestApplyDeposit(t *testing.T) {
	h := newHarness(t)
	wallet := testWallet("1000", "0")

	h.walletRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, int64(1)).Return(wallet, nil)
	h.expectAppend(wallet, 7)

	req := &OperationRequest{
		WalletID:    1,
		Type:        domain.TransactionTypeDeposit,
		Amount:      dec("250.50"),
		Description: "cash in",
		Code:        "TOPUP",
	}
	row, err := h.svc.Apply(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, row)

	assertDecimal(t, "250.50", row.Amount, "amount")
	assertDecimal(t, "1250.50", row.Balance, "balance")
	assertDecimal(t, "0", row.Reserved, "reserved")
	assertDecimal(t, "1250.50", row.Available, "available")
	assert.Equal(t, "prev-op", row.PreviousUUID)
	assert.True(t, row.VerifyChecksum())

	assertDecimal(t, "1250.50", wallet.Balance, "wallet balance")
	assert.Equal(t, row.UUID, wallet.LastOperationID)

	assert.True(t, h.txc.committed)
	require.Len(t, h.events, 2)
	assert.Equal(t, notify.EntityWallet, h.events[0].Entity)
	assert.Equal(t, notify.EventUpdate, h.events[0].Kind)
	assert.Equal(t, notify.EntityTransaction, h.events[1].Entity)
	assert.Equal(t, notify.EventInsert, h.events[1].Kind)

	// The pre-operation snapshot rides along on the wallet update.
	old, ok := h.events[0].Old.(*domain.Wallet)
	require.True(t, ok)
	assertDecimal(t, "1000", old.Balance, "old balance")
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	h := newHarness(t)
	wallet := testWallet("1000", "0")

	h.walletRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, int64(1)).Return(wallet, nil)
	h.expectAppend(wallet, 7)
	h.expectAppend(wallet, 8)

	deposit, err := h.svc.AddFunds(context.Background(), &OperationRequest{WalletID: 1, Amount: dec("100")})
	require.NoError(t, err)
	withdrawal, err := h.svc.WithdrawFunds(context.Background(), &OperationRequest{WalletID: 1, Amount: dec("100")})
	require.NoError(t, err)

	// A matching withdraw restores the pre-deposit totals; two rows were
	// appended and reserved never moved.
	assertDecimal(t, "1000", wallet.Balance, "wallet balance")
	assertDecimal(t, "0", wallet.Reserved, "wallet reserved")
	assertDecimal(t, "1000", wallet.Available, "wallet available")

	assert.Equal(t, domain.TransactionTypeDeposit, deposit.Type)
	assert.Equal(t, domain.TransactionTypeWithdraw, withdrawal.Type)
	assertDecimal(t, "0", deposit.Reserved, "deposit reserved")
	assertDecimal(t, "0", withdrawal.Reserved, "withdrawal reserved")
	assert.Equal(t, deposit.UUID, withdrawal.PreviousUUID)
	assert.Len(t, h.events, 4)
}

func TestApplyWithdrawCapAtZero(t *testing.T) {
	h := newHarness(t)
	wallet := testWallet("1000", "0")

	h.walletRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, int64(1)).Return(wallet, nil)
	h.expectAppend(wallet, 8)

	req := &OperationRequest{
		WalletID:  1,
		Type:      domain.TransactionTypeWithdraw,
		Amount:    dec("1100"),
		CapAtZero: true,
	}
	row, err := h.svc.Apply(context.Background(), req)
	require.NoError(t, err)

	assertDecimal(t, "1000", row.Amount, "amount")
	assertDecimal(t, "0", row.Balance, "balance")
	assertDecimal(t, "0", row.Available, "available")

	// The caller sees the effective amount, not the requested one.
	assertDecimal(t, "1000", req.Amount, "request amount")
}

func TestApplyWithdrawCapAtZeroWithReservation(t *testing.T) {
	h := newHarness(t)
	wallet := testWallet("1000", "250")

	h.walletRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, int64(1)).Return(wallet, nil)
	h.expectAppend(wallet, 9)

	req := &OperationRequest{
		WalletID:  1,
		Type:      domain.TransactionTypeWithdraw,
		Amount:    dec("800"),
		CapAtZero: true,
	}
	row, err := h.svc.Apply(context.Background(), req)
	require.NoError(t, err)

	// Only the available part may be withdrawn; the reservation stays intact.
	assertDecimal(t, "750", row.Amount, "amount")
	assertDecimal(t, "250", row.Balance, "balance")
	assertDecimal(t, "250", row.Reserved, "reserved")
	assertDecimal(t, "0", row.Available, "available")
}

func TestApplyOverdrawRejected(t *testing.T) {
	h := newHarness(t)
	wallet := testWallet("100", "0")

	h.walletRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, int64(1)).Return(wallet, nil)
	h.txRepo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.Transaction")).Return(nil)
	h.walletRepo.On("UpdateBalances", mock.Anything, mock.Anything, wallet).Return(util.ErrFloorViolation)

	req := &OperationRequest{
		WalletID: 1,
		Type:     domain.TransactionTypeWithdraw,
		Amount:   dec("250"),
	}
	row, err := h.svc.Apply(context.Background(), req)
	assert.Nil(t, row)

	var amountErr *domain.AmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Contains(t, amountErr.Error(), "cannot withdraw above the wallet balance")

	assert.False(t, h.txc.committed)
	assert.True(t, h.txc.rolledBack)
	assert.Empty(t, h.events)
}

func TestApplyScaleMismatch(t *testing.T) {
	h := newHarness(t)
	wallet := testWallet("100", "0")

	h.walletRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, int64(1)).Return(wallet, nil)

	req := &OperationRequest{
		WalletID: 1,
		Type:     domain.TransactionTypeDeposit,
		Amount:   dec("10.005"),
	}
	_, err := h.svc.Apply(context.Background(), req)

	var amountErr *domain.AmountError
	require.ErrorAs(t, err, &amountErr)
	h.txRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyWalletNotFound(t *testing.T) {
	h := newHarness(t)

	h.walletRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, int64(42)).
		Return(nil, util.ErrNotFound)

	req := &OperationRequest{
		WalletID: 42,
		Type:     domain.TransactionTypeDeposit,
		Amount:   dec("10"),
	}
	_, err := h.svc.Apply(context.Background(), req)

	var walletErr *domain.WalletError
	require.ErrorAs(t, err, &walletErr)
	assert.Contains(t, walletErr.Error(), "wallet 42 not found")
}

func TestApplyVerificationDetectsLostUpdate(t *testing.T) {
	h := newHarness(t)
	wallet := testWallet("1000", "0")

	h.walletRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, int64(1)).Return(wallet, nil)
	h.txRepo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.Transaction")).
		Run(func(args mock.Arguments) {
			args.Get(2).(*domain.Transaction).ID = 7
		}).Return(nil)
	h.walletRepo.On("UpdateBalances", mock.Anything, mock.Anything, wallet).Return(nil)

	// After commit someone else's operation id is on the wallet.
	stale := testWallet("1000", "0")
	stale.LastOperationID = "someone-else"
	h.walletRepo.On("GetByID", mock.Anything, mock.Anything, int64(1)).Return(stale, nil)

	req := &OperationRequest{
		WalletID: 1,
		Type:     domain.TransactionTypeDeposit,
		Amount:   dec("10"),
	}
	_, err := h.svc.Apply(context.Background(), req)

	var walletErr *domain.WalletError
	require.ErrorAs(t, err, &walletErr)
	assert.Contains(t, walletErr.Error(), "someone-else")
	assert.Empty(t, h.events)
}

func TestApplyInTxRequiresSerializable(t *testing.T) {
	h := newHarness(t)
	h.txc.isolation = "read committed"

	req := &OperationRequest{
		WalletID: 1,
		Type:     domain.TransactionTypeDeposit,
		Amount:   dec("10"),
	}
	_, err := h.svc.ApplyInTx(context.Background(), h.txc, req)

	var isoErr *domain.IsolationConflictError
	require.ErrorAs(t, err, &isoErr)
	assert.Equal(t, "serializable", isoErr.Required)
	assert.Equal(t, "read committed", isoErr.Actual)
	h.walletRepo.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyInTxEmitsNoNotifications(t *testing.T) {
	h := newHarness(t)
	wallet := testWallet("1000", "0")

	h.walletRepo.On("GetByIDForUpdate", mock.Anything, mock.Anything, int64(1)).Return(wallet, nil)
	h.expectAppend(wallet, 7)

	req := &OperationRequest{
		WalletID: 1,
		Type:     domain.TransactionTypeDeposit,
		Amount:   dec("50"),
	}
	row, err := h.svc.ApplyInTx(context.Background(), h.txc, req)
	require.NoError(t, err)
	assertDecimal(t, "1050", row.Balance, "balance")

	// The caller owns the transaction and publishes after its own commit.
	assert.Empty(t, h.events)
	assert.False(t, h.txc.committed)
}
