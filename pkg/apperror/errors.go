package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. Clients switch on these, never on messages.
const (
	CodeInvalidAmount      = "VAL_001"
	CodeAssetMismatch      = "VAL_002"
	CodeInvalidAsset       = "VAL_003"
	CodeInvalidKind        = "VAL_004"
	CodeValidation         = "VAL_005"
	CodeInsufficient       = "LED_001"
	CodeDuplicateReference = "LED_002"
	CodeDuplicateRequest   = "LED_003"
	CodeBalanceNotFound    = "NF_001"
	CodeTxNotFound         = "NF_002"
	CodeOrderNotFound      = "NF_003"
	CodeMethodNotFound     = "NF_004"
	CodeIllegalTransition  = "STS_001"
	CodeImmutableMethod    = "STS_002"
	CodeInvalidToken       = "AUTH_001"
	CodeForbidden          = "AUTH_002"
	CodeRateLimit          = "RATE_001"
	CodeInternal           = "SYS_001"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *AppError with the same code, so
// errors.Is(err, apperror.ErrIllegalTransition("", "")) matches any
// illegal-transition failure regardless of its message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err carries an *AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ---- Validation (VAL) ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrAssetMismatch() *AppError {
	return New(CodeAssetMismatch, "Source and destination assets must differ", http.StatusBadRequest)
}

func ErrInvalidAsset(code string) *AppError {
	return New(CodeInvalidAsset, fmt.Sprintf("Unsupported asset %q", code), http.StatusBadRequest)
}

func ErrInvalidKind(message string) *AppError {
	return New(CodeInvalidKind, message, http.StatusBadRequest)
}

// Validation returns a generic VAL_005 validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ---- Ledger conflicts (LED) ----

// ErrInsufficientBalance reports the shortfall. available and requested are
// preformatted decimal strings.
func ErrInsufficientBalance(available, requested string) *AppError {
	return New(CodeInsufficient,
		fmt.Sprintf("Insufficient balance: available %s, requested %s", available, requested),
		http.StatusUnprocessableEntity)
}

func ErrDuplicateReference(err error) *AppError {
	return Wrap(CodeDuplicateReference, "Could not allocate a unique reference id", http.StatusConflict, err)
}

func ErrDuplicateRequest() *AppError {
	return New(CodeDuplicateRequest, "Request with this idempotency key is already being processed", http.StatusConflict)
}

func ErrIdempotencyKeyReused() *AppError {
	return New(CodeDuplicateRequest, "Idempotency key was already used with different request parameters", http.StatusConflict)
}

// ---- Not found (NF) ----

func ErrBalanceNotFound() *AppError {
	return New(CodeBalanceNotFound, "Balance not found", http.StatusNotFound)
}

func ErrTransactionNotFound() *AppError {
	return New(CodeTxNotFound, "Transaction not found", http.StatusNotFound)
}

func ErrOrderNotFound() *AppError {
	return New(CodeOrderNotFound, "Order not found", http.StatusNotFound)
}

func ErrPaymentMethodNotFound() *AppError {
	return New(CodeMethodNotFound, "Payment method not found", http.StatusNotFound)
}

// ---- Status transitions (STS) ----

func ErrIllegalTransition(from, to string) *AppError {
	return New(CodeIllegalTransition,
		fmt.Sprintf("Illegal status transition from %s to %s", from, to),
		http.StatusConflict)
}

// ErrIllegalTransitionMsg carries a fixed domain message, e.g. for
// reverting a completed order.
func ErrIllegalTransitionMsg(message string) *AppError {
	return New(CodeIllegalTransition, message, http.StatusConflict)
}

func ErrImmutablePaymentMethod() *AppError {
	return New(CodeImmutableMethod, "Only pending payment methods can be modified", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Insufficient permissions", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimit, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
