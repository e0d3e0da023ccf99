package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Role is not allowed to perform this action"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInsufficientFunds     = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrAccountNotActive      = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_NOT_ACTIVE", "Account is not active"}
	ErrAccountClosed         = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_CLOSED", "Account is closed"}
	ErrLimitExceeded         = &AppError{http.StatusUnprocessableEntity, "DAILY_LIMIT_EXCEEDED", "Daily transfer limit exceeded"}
	ErrInvalidTransition     = &AppError{http.StatusConflict, "INVALID_TRANSITION", "State transition not allowed"}
	ErrInvalidAmount         = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidCurrency       = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Invalid currency"}
	ErrCurrencyMismatch      = &AppError{http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", "Currency mismatch"}
	ErrMissingDestination    = &AppError{http.StatusBadRequest, "MISSING_DESTINATION", "Transfer destination is required"}
	ErrAmbiguousDestination  = &AppError{http.StatusBadRequest, "AMBIGUOUS_DESTINATION", "Transfer must have exactly one destination"}
	ErrSelfTransfer          = &AppError{http.StatusUnprocessableEntity, "SELF_TRANSFER_NOT_ALLOWED", "Cannot transfer to the same account"}
	ErrReasonRequired        = &AppError{http.StatusBadRequest, "REASON_REQUIRED", "A non-empty reason is required"}
	ErrBeneficiaryInactive   = &AppError{http.StatusUnprocessableEntity, "BENEFICIARY_NOT_ACTIVE", "Beneficiary is not active"}
	ErrBeneficiaryBusy       = &AppError{http.StatusConflict, "BENEFICIARY_HAS_PENDING_OPERATIONS", "Beneficiary has pending operations"}
	ErrAliasTaken            = &AppError{http.StatusConflict, "ALIAS_ALREADY_IN_USE", "Alias already in use"}
	ErrScheduleInPast        = &AppError{http.StatusBadRequest, "SCHEDULE_IN_PAST", "Scheduled date must be in the future"}
	ErrScheduleTooFar        = &AppError{http.StatusBadRequest, "SCHEDULE_TOO_FAR", "Scheduled date exceeds the allowed horizon"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrVersionConflict       = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
)
