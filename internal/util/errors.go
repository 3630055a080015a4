package util

import "errors"

// Domain failure taxonomy. Every recoverable business failure wraps one of
// these sentinels so callers can branch with errors.Is while still carrying a
// human-readable message.
var (
	ErrValidation            = errors.New("invalid input provided")
	ErrNotFound              = errors.New("resource not found")
	ErrInvalidTransition     = errors.New("status transition not allowed")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrCurrencyMismatch      = errors.New("currency mismatch")
	ErrCannotCancelDelivered = errors.New("order has delivered shipments and cannot be cancelled")
	ErrDuplicateEntry        = errors.New("duplicate entry")
)

// IsError reports whether err wraps target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
