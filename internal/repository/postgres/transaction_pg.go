// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ledgerflow/internal/domain"
	"ledgerflow/internal/repository"

	"github.com/shopspring/decimal"
)

const transactionColumns = `id, wallet_id, wallet_type_id, parent_id, type, amount,
	balance, reserved, available, price, description, code,
	reference_id, reference_source, date, uuid, previous_uuid, checksum,
	category, batch_id`

// transactionRow is the scan target for transaction queries. The extension
// columns are nullable and hydrated into the Properties overlay.
type transactionRow struct {
	domain.Transaction
	Category sql.NullString `db:"category"`
	BatchID  sql.NullString `db:"batch_id"`
}

func (r *transactionRow) toDomain() *domain.Transaction {
	t := r.Transaction
	props := map[string]string{}
	if r.Category.Valid {
		props["category"] = r.Category.String
	}
	if r.BatchID.Valid {
		props["batch_id"] = r.BatchID.String
	}
	if len(props) > 0 {
		t.Properties = props
	}
	return &t
}

func rowsToDomain(rows []transactionRow) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out
}

// TransactionRepository implements repository.TransactionRepository for
// PostgreSQL. The transactions table is append-only; this type exposes no
// update or delete.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// Create appends a new transaction row. Extension properties with an entry in
// domain.ExtensionColumns are written to their mapped columns; unmapped
// properties are dropped.
func (r *TransactionRepository) Create(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	columns := []string{
		"wallet_id", "wallet_type_id", "parent_id", "type", "amount",
		"balance", "reserved", "available", "price", "description", "code",
		"reference_id", "reference_source", "date", "uuid", "previous_uuid", "checksum",
	}
	args := []interface{}{
		transaction.WalletID, transaction.WalletTypeID, transaction.ParentID,
		transaction.Type, transaction.Amount,
		transaction.Balance, transaction.Reserved, transaction.Available,
		transaction.Price, transaction.Description, transaction.Code,
		transaction.ReferenceID, transaction.ReferenceSource,
		transaction.Date, transaction.UUID, transaction.PreviousUUID, transaction.Checksum,
	}

	// Stable ordering keeps the statement deterministic for a given property set.
	names := make([]string, 0, len(transaction.Properties))
	for name := range transaction.Properties {
		if _, ok := domain.ExtensionColumns[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		columns = append(columns, domain.ExtensionColumns[name])
		args = append(args, transaction.Properties[name])
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO transactions (%s) VALUES (%s) RETURNING id",
		strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	if err := q.QueryRowContext(ctx, query, args...).Scan(&transaction.ID); err != nil {
		return fmt.Errorf("failed to create transaction: %w", translateConstraint(err))
	}
	return nil
}

// GetByID retrieves a transaction by its ID. Returns (nil, nil) when absent.
func (r *TransactionRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Transaction, error) {
	var row transactionRow
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if err := q.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// GetByParentID retrieves the settlement or rejection row of a reservation.
// Returns (nil, nil) when the reservation is still open.
func (r *TransactionRepository) GetByParentID(ctx context.Context, q repository.DBExecutor, parentID int64) (*domain.Transaction, error) {
	var row transactionRow
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE parent_id = $1`
	if err := q.GetContext(ctx, &row, query, parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get child of transaction %d: %w", parentID, err)
	}
	return row.toDomain(), nil
}

// GetByUUID retrieves a transaction by its idempotency token.
func (r *TransactionRepository) GetByUUID(ctx context.Context, q repository.DBExecutor, uuid string) (*domain.Transaction, error) {
	var row transactionRow
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE uuid = $1`
	if err := q.GetContext(ctx, &row, query, uuid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction by uuid %s: %w", uuid, err)
	}
	return row.toDomain(), nil
}

// ListByWallet retrieves a paginated transaction history for a wallet,
// newest first, together with the total row count.
func (r *TransactionRepository) ListByWallet(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	rows := []transactionRow{}
	query := `SELECT ` + transactionColumns + `
	          FROM transactions WHERE wallet_id = $1
	          ORDER BY id DESC LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &rows, query, walletID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for wallet %d: %w", walletID, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE wallet_id = $1`
	if err := q.GetContext(ctx, &totalCount, countQuery, walletID); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions for wallet %d: %w", walletID, err)
	}

	return rowsToDomain(rows), totalCount, nil
}

// ListByDate retrieves a wallet's transactions inside [from, to].
func (r *TransactionRepository) ListByDate(ctx context.Context, q repository.DBExecutor, walletID int64, from, to time.Time) ([]domain.Transaction, error) {
	rows := []transactionRow{}
	query := `SELECT ` + transactionColumns + `
	          FROM transactions WHERE wallet_id = $1 AND date BETWEEN $2 AND $3
	          ORDER BY id`
	if err := q.SelectContext(ctx, &rows, query, walletID, from, to); err != nil {
		return nil, fmt.Errorf("failed to fetch transactions by date for wallet %d: %w", walletID, err)
	}
	return rowsToDomain(rows), nil
}

// ListByCode retrieves a wallet's transactions tagged with code.
func (r *TransactionRepository) ListByCode(ctx context.Context, q repository.DBExecutor, walletID int64, code string) ([]domain.Transaction, error) {
	rows := []transactionRow{}
	query := `SELECT ` + transactionColumns + `
	          FROM transactions WHERE wallet_id = $1 AND code = $2
	          ORDER BY id`
	if err := q.SelectContext(ctx, &rows, query, walletID, code); err != nil {
		return nil, fmt.Errorf("failed to fetch transactions by code for wallet %d: %w", walletID, err)
	}
	return rowsToDomain(rows), nil
}

// ListByReference retrieves transactions carrying the external correlation pair.
func (r *TransactionRepository) ListByReference(ctx context.Context, q repository.DBExecutor, referenceID, referenceSource string) ([]domain.Transaction, error) {
	rows := []transactionRow{}
	query := `SELECT ` + transactionColumns + `
	          FROM transactions WHERE reference_id = $1 AND reference_source = $2
	          ORDER BY id`
	if err := q.SelectContext(ctx, &rows, query, referenceID, referenceSource); err != nil {
		return nil, fmt.Errorf("failed to fetch transactions by reference %s/%s: %w", referenceID, referenceSource, err)
	}
	return rowsToDomain(rows), nil
}

// ListOpenReservations retrieves a wallet's blocked transactions that have no
// child row yet. A reservation is open iff no other transaction points at it
// through parent_id.
func (r *TransactionRepository) ListOpenReservations(ctx context.Context, q repository.DBExecutor, walletID int64) ([]domain.Transaction, error) {
	rows := []transactionRow{}
	query := `SELECT ` + prefixColumns(transactionColumns, "t") + `
	          FROM transactions t
	          WHERE t.wallet_id = $1
	            AND t.type IN ('WITHDRAW_BLOCKED', 'DEPOSIT_BLOCKED')
	            AND NOT EXISTS (SELECT 1 FROM transactions c WHERE c.parent_id = t.id)
	          ORDER BY t.id`
	if err := q.SelectContext(ctx, &rows, query, walletID); err != nil {
		return nil, fmt.Errorf("failed to fetch open reservations for wallet %d: %w", walletID, err)
	}
	return rowsToDomain(rows), nil
}

// SumOpenReservations returns the signed sum of a wallet's open reservations.
func (r *TransactionRepository) SumOpenReservations(ctx context.Context, q repository.DBExecutor, walletID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `SELECT COALESCE(SUM(CASE WHEN t.type = 'WITHDRAW_BLOCKED' THEN t.amount ELSE -t.amount END), 0)
	          FROM transactions t
	          WHERE t.wallet_id = $1
	            AND t.type IN ('WITHDRAW_BLOCKED', 'DEPOSIT_BLOCKED')
	            AND NOT EXISTS (SELECT 1 FROM transactions c WHERE c.parent_id = t.id)`
	if err := q.GetContext(ctx, &sum, query, walletID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum open reservations for wallet %d: %w", walletID, err)
	}
	return sum, nil
}

// prefixColumns qualifies every column in a comma-separated list with a table
// alias, for queries joining the transactions table against itself.
func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
