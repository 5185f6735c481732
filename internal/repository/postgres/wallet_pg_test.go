// internal/repository/postgres/wallet_pg_test.go
package postgres

import (
	"context"
	"testing"
	"time"

	"ledgerflow/internal/domain"
	"ledgerflow/internal/util"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

var walletColumnList = []string{
	"id", "wallet_type_id", "user_id", "balance", "reserved", "available",
	"price", "min_value", "scale", "extra", "last_operation_id", "created_at", "updated_at",
}

func walletRow(id int64, balance, reserved, available string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(walletColumnList).
		AddRow(id, 2, 3, balance, reserved, available, "0", "0", 2, "", "prev-op", now, now)
}

func TestWalletGetByIDForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository()

	mock.ExpectQuery(`SELECT (.+) FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(walletRow(1, "1000", "200", "800"))

	wallet, err := repo.GetByIDForUpdate(context.Background(), db, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), wallet.ID)
	assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("1000")))
	assert.True(t, wallet.Reserved.Equal(decimal.RequireFromString("200")))
	assert.True(t, wallet.Available.Equal(decimal.RequireFromString("800")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository()

	mock.ExpectQuery(`SELECT (.+) FROM wallets WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(walletColumnList))

	wallet, err := repo.GetByID(context.Background(), db, 99)
	assert.Nil(t, wallet)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestWalletCreateTranslatesUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository()

	mock.ExpectQuery(`INSERT INTO wallets`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "wallets_user_id_wallet_type_id_key"})

	wallet := domain.NewWallet(2, 3, decimal.Zero, decimal.Zero, 2, "")
	err := repo.Create(context.Background(), db, wallet)
	assert.ErrorIs(t, err, util.ErrDuplicateEntry)
}

func TestWalletUpdateBalancesTranslatesFloorViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository()

	mock.ExpectExec(`UPDATE wallets`).
		WillReturnError(&pq.Error{Code: "23514", Constraint: "wallets_balance_check"})

	wallet := &domain.Wallet{ID: 1}
	err := repo.UpdateBalances(context.Background(), db, wallet)
	assert.ErrorIs(t, err, util.ErrFloorViolation)
}

func TestWalletUpdateBalancesMissingWallet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWalletRepository()

	mock.ExpectExec(`UPDATE wallets`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	wallet := &domain.Wallet{ID: 42}
	err := repo.UpdateBalances(context.Background(), db, wallet)
	assert.ErrorIs(t, err, util.ErrNotFound)
}
