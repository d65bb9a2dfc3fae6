package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/tableside/internal/backend"
)

// Error is the single error type returned across the engine's public boundary.
//
// Errors include:
//   - Backend rejections: expired session, validation, conflict
//   - Transport failures
//   - Programmer errors: operation called under the wrong role
//   - Local guards: empty cart, unknown order, backward transition
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is user-presentable. For validation failures it is the
	// backend's message verbatim when one was sent.
	Message string

	// OrderID identifies the affected order, if any.
	OrderID string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeAuthExpired indicates a 401/403; the session has been logged out.
	ErrCodeAuthExpired ErrorCode = "AUTH_EXPIRED"

	// ErrCodeValidation indicates the backend rejected the request (4xx).
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNetwork indicates a transport failure or 5xx.
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeConflict indicates a 409: another client changed the order first.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeRoleMismatch indicates an operation called under a role that may not use it.
	ErrCodeRoleMismatch ErrorCode = "ROLE_MISMATCH"

	// ErrCodeInvalidTransition indicates a status change that is not one forward step.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeEmptyCart indicates an order was requested with no items.
	ErrCodeEmptyCart ErrorCode = "EMPTY_CART"

	// ErrCodeUnknownOrder indicates the order is not in the local cache.
	ErrCodeUnknownOrder ErrorCode = "UNKNOWN_ORDER"

	// ErrCodeAuthRequired indicates the operation needs a logged-in session.
	// Returned by guest checkout after the cart has been captured.
	ErrCodeAuthRequired ErrorCode = "AUTH_REQUIRED"

	// ErrCodeTableRequired indicates dine-in checkout without a table.
	ErrCodeTableRequired ErrorCode = "TABLE_REQUIRED"
)

const (
	msgSessionExpired  = "Your session has expired. Please log in again."
	msgRejected        = "The request was rejected. Please check and try again."
	msgUnreachable     = "Could not reach the restaurant. Please try again."
	msgConflict        = "This order was changed by someone else. Reload and try again."
	msgTableRequired   = "Select a table before checking out."
	msgLoginToCheckout = "Verify your phone to place the order."
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s: %s (order=%s)", e.Code, e.Message, e.OrderID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsAuthExpired returns true if the session was logged out because the backend rejected its token.
func IsAuthExpired(err error) bool {
	return CodeOf(err) == ErrCodeAuthExpired
}

// IsConflict returns true if another client changed the order first.
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

// IsRoleMismatch returns true if the operation was called under the wrong role.
func IsRoleMismatch(err error) bool {
	return CodeOf(err) == ErrCodeRoleMismatch
}

// IsAuthRequired returns true if the caller must authenticate first.
func IsAuthRequired(err error) bool {
	return CodeOf(err) == ErrCodeAuthRequired
}

func newRoleError(op string, have any, want string) *Error {
	return &Error{
		Code:    ErrCodeRoleMismatch,
		Message: fmt.Sprintf("%s requires %s, session is %v", op, want, have),
	}
}

// classify maps a backend or transport failure to an engine error.
func classify(err error, orderID string) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	var be *backend.Error
	switch {
	case backend.IsUnauthorized(err):
		return &Error{Code: ErrCodeAuthExpired, Message: msgSessionExpired, OrderID: orderID, Err: err}
	case backend.IsConflict(err):
		msg := msgConflict
		if errors.As(err, &be) && be.Message != "" {
			msg = be.Message
		}
		return &Error{Code: ErrCodeConflict, Message: msg, OrderID: orderID, Err: err}
	case backend.IsClientError(err):
		msg := msgRejected
		if errors.As(err, &be) && be.Message != "" {
			msg = be.Message
		}
		return &Error{Code: ErrCodeValidation, Message: msg, OrderID: orderID, Err: err}
	default:
		return &Error{Code: ErrCodeNetwork, Message: msgUnreachable, OrderID: orderID, Err: err}
	}
}
