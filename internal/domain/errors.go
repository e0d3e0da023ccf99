package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrAccountNotActive      = errors.New("account not active")
	ErrAccountClosed         = errors.New("account closed")
	ErrLimitExceeded         = errors.New("daily transfer limit exceeded")
	ErrInvalidTransition     = errors.New("invalid state transition")
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrInvalidCurrency       = errors.New("invalid currency")
	ErrCurrencyMismatch      = errors.New("currency mismatch")
	ErrMissingDestination    = errors.New("transfer destination is required")
	ErrAmbiguousDestination  = errors.New("transfer must have exactly one destination")
	ErrSelfTransfer          = errors.New("cannot transfer to the same account")
	ErrReasonRequired        = errors.New("a non-empty reason is required")
	ErrActorNotAllowed       = errors.New("actor role not allowed for this action")
	ErrBeneficiaryInactive   = errors.New("beneficiary is not active")
	ErrBeneficiaryBusy       = errors.New("beneficiary has pending operations")
	ErrAliasTaken            = errors.New("alias already in use for this client")
	ErrScheduleInPast        = errors.New("scheduled date must be in the future")
	ErrScheduleTooFar        = errors.New("scheduled date exceeds the allowed horizon")
	ErrIdempotencyConflict   = errors.New("idempotency key already used with a different request")
	ErrIdempotencyKeyMissing = errors.New("idempotency key is required")
	ErrVersionConflict       = errors.New("optimistic lock conflict")
)
