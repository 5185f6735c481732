// internal/domain/errors.go
package domain

import "fmt"

// ValidationError signals malformed or missing required input. Caller's
// fault, never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AmountError signals a negative amount, a sub-scale amount, or a withdrawal
// that would break the wallet's floor constraint.
type AmountError struct {
	Msg string
}

func (e *AmountError) Error() string { return e.Msg }

// WalletTypeError signals a reference to a wallet type that does not exist.
type WalletTypeError struct {
	Msg string
}

func (e *WalletTypeError) Error() string { return e.Msg }

// WalletError signals a missing wallet, a duplicate wallet for a user+type
// pair, or a failed post-commit consistency check. The latter is fatal and
// indicates a storage bug or a lost update.
type WalletError struct {
	Msg string
}

func (e *WalletError) Error() string { return e.Msg }

// TransactionError signals a reservation in the wrong state, an already
// settled reservation, or a post-commit field-mismatch verification failure.
type TransactionError struct {
	Msg string
}

func (e *TransactionError) Error() string { return e.Msg }

// IsolationConflictError signals that a caller tried to join the engine into
// an outer transaction running at an incompatible isolation level.
type IsolationConflictError struct {
	Required string
	Actual   string
}

func (e *IsolationConflictError) Error() string {
	return fmt.Sprintf("outer transaction isolation level is %q, engine requires %q", e.Actual, e.Required)
}
