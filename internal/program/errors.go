package program

import (
	"errors"

	"github.com/spleety/spleety/internal/layout"
	"github.com/spleety/spleety/internal/ledger"
	"github.com/spleety/spleety/internal/oracle"
)

// Validation errors: rejected before any ledger write; the caller can fix the
// input and retry.
var (
	ErrInvalidTitle            = errors.New("title must be 50 characters or less")
	ErrInvalidParticipantCount = errors.New("participant count must be between 2 and 10")
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
)

// State conflicts: the target state already satisfies or forbids the request.
// Not retryable with the same arguments.
var (
	ErrAlreadyExists  = errors.New("expense already exists")
	ErrAlreadyPaid    = errors.New("participant has already paid")
	ErrExpenseSettled = errors.New("expense has already been settled")
	ErrExpenseFull    = errors.New("all shares have already been paid")
)

// Authorization errors: caller identity does not match the required
// authority. Not retryable by that caller.
var ErrNotExpenseAuthority = errors.New("only the expense authority can settle")

// Resource errors: balance constraints. Retryable once balances change.
var (
	ErrInsufficientFunds = errors.New("insufficient funds to pay share")
	ErrNoFundsToWithdraw = errors.New("no funds available to withdraw")
)

// Class buckets an error by the taxonomy callers select user-facing messages
// and transport codes from.
type Class int

const (
	ClassInternal Class = iota
	ClassValidation
	ClassStateConflict
	ClassAuthorization
	ClassResource
	ClassDecode
	ClassConversion
	ClassNotFound
)

// Classify maps an error returned by any protocol operation to its class.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrInvalidTitle),
		errors.Is(err, ErrInvalidParticipantCount),
		errors.Is(err, ErrInvalidAmount):
		return ClassValidation
	case errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrAlreadyPaid),
		errors.Is(err, ErrExpenseSettled),
		errors.Is(err, ErrExpenseFull):
		return ClassStateConflict
	case errors.Is(err, ErrNotExpenseAuthority):
		return ClassAuthorization
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrNoFundsToWithdraw):
		return ClassResource
	case errors.Is(err, layout.ErrBadTag),
		errors.Is(err, layout.ErrTruncated),
		errors.Is(err, layout.ErrInvalidText):
		return ClassDecode
	case errors.Is(err, oracle.ErrStalePrice):
		return ClassConversion
	case errors.Is(err, ledger.ErrAccountNotFound):
		return ClassNotFound
	default:
		return ClassInternal
	}
}
