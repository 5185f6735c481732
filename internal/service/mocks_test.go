// internal/service/mocks_test.go
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"ledgerflow/internal/domain"
	"ledgerflow/internal/notify"
	"ledgerflow/internal/repository"
	"ledgerflow/pkg/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// fakeTxController satisfies db.TxController and repository.DBExecutor, so
// the service can treat it like a *sqlx.Tx. Its GetContext answers the
// isolation-level probe with the configured value.
type fakeTxController struct {
	isolation  string
	committed  bool
	rolledBack bool
}

func (f *fakeTxController) Commit() error   { f.committed = true; return nil }
func (f *fakeTxController) Rollback() error { f.rolledBack = true; return nil }

func (f *fakeTxController) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if s, ok := dest.(*string); ok {
		*s = f.isolation
	}
	return nil
}
func (f *fakeTxController) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return nil
}
func (f *fakeTxController) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (f *fakeTxController) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return &sql.Row{}
}

// MockWalletRepository is a mock implementation of repository.WalletRepository.
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) Create(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	args := m.Called(ctx, q, wallet)
	return args.Error(0)
}

func (m *MockWalletRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetByUserAndType(ctx context.Context, q repository.DBExecutor, userID, walletTypeID int64) (*domain.Wallet, error) {
	args := m.Called(ctx, q, userID, walletTypeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) ListByUser(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.Wallet, error) {
	args := m.Called(ctx, q, userID)
	return args.Get(0).([]domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) UpdateBalances(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	args := m.Called(ctx, q, wallet)
	return args.Error(0)
}

func (m *MockWalletRepository) UpdatePricing(ctx context.Context, q repository.DBExecutor, walletID int64, price, minValue decimal.Decimal) error {
	args := m.Called(ctx, q, walletID, price, minValue)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of
// repository.TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	args := m.Called(ctx, q, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Transaction, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByParentID(ctx context.Context, q repository.DBExecutor, parentID int64) (*domain.Transaction, error) {
	args := m.Called(ctx, q, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByUUID(ctx context.Context, q repository.DBExecutor, uuid string) (*domain.Transaction, error) {
	args := m.Called(ctx, q, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByWallet(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	args := m.Called(ctx, q, walletID, limit, offset)
	return args.Get(0).([]domain.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) ListByDate(ctx context.Context, q repository.DBExecutor, walletID int64, from, to time.Time) ([]domain.Transaction, error) {
	args := m.Called(ctx, q, walletID, from, to)
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByCode(ctx context.Context, q repository.DBExecutor, walletID int64, code string) ([]domain.Transaction, error) {
	args := m.Called(ctx, q, walletID, code)
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByReference(ctx context.Context, q repository.DBExecutor, referenceID, referenceSource string) ([]domain.Transaction, error) {
	args := m.Called(ctx, q, referenceID, referenceSource)
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListOpenReservations(ctx context.Context, q repository.DBExecutor, walletID int64) ([]domain.Transaction, error) {
	args := m.Called(ctx, q, walletID)
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SumOpenReservations(ctx context.Context, q repository.DBExecutor, walletID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, q, walletID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockWalletTypeRepository is a mock implementation of
// repository.WalletTypeRepository.
type MockWalletTypeRepository struct {
	mock.Mock
}

func (m *MockWalletTypeRepository) Create(ctx context.Context, q repository.DBExecutor, walletType *domain.WalletType) error {
	args := m.Called(ctx, q, walletType)
	return args.Error(0)
}

func (m *MockWalletTypeRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.WalletType, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletType), args.Error(1)
}

func (m *MockWalletTypeRepository) Exists(ctx context.Context, q repository.DBExecutor, id int64) (bool, error) {
	args := m.Called(ctx, q, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockWalletTypeRepository) List(ctx context.Context, q repository.DBExecutor) ([]domain.WalletType, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]domain.WalletType), args.Error(1)
}

// testHarness wires a LedgerService with mocked repositories, a fake
// transaction controller and a recording notifier.
type testHarness struct {
	svc        *LedgerService
	walletRepo *MockWalletRepository
	txRepo     *MockTransactionRepository
	typeRepo   *MockWalletTypeRepository
	txc        *fakeTxController
	events     []notify.Event
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		walletRepo: new(MockWalletRepository),
		txRepo:     new(MockTransactionRepository),
		typeRepo:   new(MockWalletTypeRepository),
		txc:        &fakeTxController{isolation: "serializable"},
	}

	notifier := notify.NewNotifier(slog.Default())
	record := func(ctx context.Context, e notify.Event) error {
		h.events = append(h.events, e)
		return nil
	}
	notifier.Register(notify.EntityWallet, record)
	notifier.Register(notify.EntityTransaction, record)

	beginTx := func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
		return h.txc, nil
	}
	commitTx := func(tx db.TxController) error { return tx.Commit() }
	rollbackTx := func(tx db.TxController) { _ = tx.Rollback() }

	h.svc = NewLedgerService(
		nil, h.txc,
		h.walletRepo, h.txRepo, h.typeRepo,
		notifier, slog.Default(),
		beginTx, commitTx, rollbackTx,
	)

	seq := 0
	h.svc.newUUID = func() string {
		seq++
		return fmt.Sprintf("op-%d", seq)
	}
	h.svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	return h
}

// expectAppend wires the append-and-reload cycle: Create assigns the row id,
// and the post-commit reloads return what was written. The wallet reload is
// matched lazily against wallet.ID, which may itself be assigned by a Create
// stub after this helper runs.
func (h *testHarness) expectAppend(wallet *domain.Wallet, rowID int64) *domain.Transaction {
	reloaded := &domain.Transaction{}
	h.txRepo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.Transaction")).
		Run(func(args mock.Arguments) {
			row := args.Get(2).(*domain.Transaction)
			row.ID = rowID
			*reloaded = *row
		}).Return(nil).Once()
	h.walletRepo.On("UpdateBalances", mock.Anything, mock.Anything, wallet).Return(nil).Once()
	h.walletRepo.On("GetByID", mock.Anything, mock.Anything,
		mock.MatchedBy(func(id int64) bool { return id == wallet.ID })).Return(wallet, nil)
	h.txRepo.On("GetByID", mock.Anything, mock.Anything, rowID).Return(reloaded, nil)
	return reloaded
}
