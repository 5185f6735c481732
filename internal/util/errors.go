// internal/util/errors.go
package util

import "errors"

// Sentinel errors used at the repository boundary. The service layer
// translates them into the typed domain errors before they reach callers.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrDuplicateEntry = errors.New("duplicate entry")       // unique-constraint violation
	ErrFloorViolation = errors.New("balance floor violated") // check-constraint violation
)

// IsError reports whether err matches target, unwrapping as needed.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
