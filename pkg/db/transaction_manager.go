// pkg/db/transaction_manager.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
)

// RequiredIsolation is the isolation level every balance mutation runs at.
// Concurrency control relies on it together with row-level locks; nothing
// weaker is accepted.
const RequiredIsolation = sql.LevelSerializable

// ErrIsolationMismatch is returned by RequireIsolation when a joined outer
// transaction runs at a different isolation level than RequiredIsolation.
var ErrIsolationMismatch = errors.New("transaction isolation level mismatch")

// TxController defines methods for controlling a database transaction.
// *sqlx.Tx implicitly implements this interface.
type TxController interface {
	Commit() error
	Rollback() error
}

// DBTxBeginner defines the interface for beginning transactions.
// *sqlx.DB implements this.
type DBTxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Function types for injecting transaction control into services, so tests
// can substitute them without a live database.
type (
	BeginTxFunc    func(ctx context.Context, dbConn DBTxBeginner) (TxController, error)
	CommitTxFunc   func(tx TxController) error
	RollbackTxFunc func(tx TxController)
)

// BeginTx starts a new database transaction at RequiredIsolation.
func BeginTx(ctx context.Context, dbConn DBTxBeginner) (TxController, error) {
	tx, err := dbConn.BeginTxx(ctx, &sql.TxOptions{Isolation: RequiredIsolation})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CommitTx commits the transaction.
func CommitTx(tx TxController) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTx rolls back the transaction. Safe to defer after a successful
// commit; sql.ErrTxDone is ignored.
func RollbackTx(tx TxController) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("failed to roll back transaction", "error", err)
	}
}

// IsolationQuerier is the subset of query methods needed to inspect the
// current transaction. Both *sqlx.DB and *sqlx.Tx implement it.
type IsolationQuerier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// CurrentIsolation reports the isolation level of the transaction carrying q,
// lower-cased (e.g. "serializable", "read committed").
func CurrentIsolation(ctx context.Context, q IsolationQuerier) (string, error) {
	var level string
	if err := q.GetContext(ctx, &level, `SELECT current_setting('transaction_isolation')`); err != nil {
		return "", fmt.Errorf("failed to read transaction isolation level: %w", err)
	}
	return strings.ToLower(level), nil
}

// RequireIsolation verifies that the transaction carrying q runs at
// RequiredIsolation. Used when the engine joins a caller-opened transaction:
// the engine fails fast instead of silently running at a weaker level.
func RequireIsolation(ctx context.Context, q IsolationQuerier) error {
	level, err := CurrentIsolation(ctx, q)
	if err != nil {
		return err
	}
	want := strings.ToLower(RequiredIsolation.String())
	if level != want {
		return fmt.Errorf("%w: have %q, want %q", ErrIsolationMismatch, level, want)
	}
	return nil
}
