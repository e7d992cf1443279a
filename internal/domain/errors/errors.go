// Package errors defines the domain error taxonomy.
// Typed errors (instead of strings) let callers handle specific cases and
// keep a stable machine-readable code on everything that crosses a boundary.
//
// Pattern: Sentinel Errors + Custom Error Types
package errors

import (
	"errors"
	"fmt"

	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

// Stable machine-readable error codes.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeWalletNotFound        = "WALLET_NOT_FOUND"
	CodeInsufficientFunds     = "INSUFFICIENT_FUNDS"
	CodeInvalidTransfer       = "INVALID_TRANSFER"
	CodeWalletStatusViolation = "WALLET_STATUS_VIOLATION"
	CodeOptimisticLock        = "OPTIMISTIC_LOCK"
	CodeTransient             = "TRANSIENT"
	CodeServiceDegraded       = "SERVICE_DEGRADED"
	CodeDuplicateReference    = "DUPLICATE_REFERENCE"
	CodeNoHandler             = "NO_HANDLER_REGISTERED"
	CodeInternal              = "INTERNAL"
)

// Degradation codes carried by ServiceDegradedError.
const (
	DegradationReadOnly        = "READ_ONLY_MODE"
	DegradationCacheBypass     = "CACHE_BYPASS"
	DegradationEventProcessing = "EVENT_PROCESSING_DEGRADED"
	DegradationRateLimited     = "RATE_LIMITED"
	DegradationRetryExhausted  = "RETRY_EXHAUSTED"
)

// Common sentinel errors.
var (
	// ErrWalletNotFound is returned when the target wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrDuplicateReference signals a (wallet_id, reference_id) collision.
	// It never leaves the write handlers: they translate it into the
	// previously recorded transaction id (idempotent replay).
	ErrDuplicateReference = errors.New("duplicate reference id")

	// ErrNoHandler is returned by the bus when no handler matches a request.
	ErrNoHandler = errors.New("no handler registered")
)

// DomainError wraps an error with a stable code and a human message.
// Used directly for Internal errors and as the base carrier elsewhere.
type DomainError struct {
	Code    string // machine-readable code, e.g. "INTERNAL"
	Message string // human-readable message
	Err     error  // underlying error (for error chains)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewInternal wraps an unexpected failure as an opaque internal error.
func NewInternal(message string, err error) *DomainError {
	return &DomainError{
		Code:    CodeInternal,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation failure with field-level detail.
type ValidationError struct {
	Field   string // field name that failed validation
	Message string // what went wrong
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(e))
}

// Add appends a validation error.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// InsufficientFundsError: a debit would make the balance negative.
// Carries the structured context callers need to render the failure.
type InsufficientFundsError struct {
	WalletID  string
	Available valueobjects.Money
	Requested valueobjects.Money
}

// Error implements the error interface.
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf(
		"insufficient funds on wallet %s: available=%s requested=%s",
		e.WalletID, e.Available.String(), e.Requested.String(),
	)
}

// NewInsufficientFunds creates an insufficient funds error.
func NewInsufficientFunds(walletID string, available, requested valueobjects.Money) *InsufficientFundsError {
	return &InsufficientFundsError{
		WalletID:  walletID,
		Available: available,
		Requested: requested,
	}
}

// InvalidTransferError: transfer-specific violations (same source and
// destination, non-positive amount).
type InvalidTransferError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidTransferError) Error() string {
	return fmt.Sprintf("invalid transfer: %s", e.Reason)
}

// NewInvalidTransfer creates an invalid transfer error.
func NewInvalidTransfer(reason string) *InvalidTransferError {
	return &InvalidTransferError{Reason: reason}
}

// WalletStatusViolationError: the target wallet is not ACTIVE.
type WalletStatusViolationError struct {
	WalletID string
	Status   string
}

// Error implements the error interface.
func (e *WalletStatusViolationError) Error() string {
	return fmt.Sprintf("wallet %s is not active (status %s)", e.WalletID, e.Status)
}

// NewWalletStatusViolation creates a status violation error.
func NewWalletStatusViolation(walletID, status string) *WalletStatusViolationError {
	return &WalletStatusViolationError{WalletID: walletID, Status: status}
}

// OptimisticLockError: the persisted version did not match the expected one.
// Retryable under the optimistic-lock policy.
type OptimisticLockError struct {
	EntityType string // e.g. "Wallet"
	EntityID   string
	Message    string
}

// Error implements the error interface.
func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("optimistic lock conflict on %s [%s]: %s", e.EntityType, e.EntityID, e.Message)
}

// NewOptimisticLock creates an optimistic lock error.
func NewOptimisticLock(entityType, entityID, message string) *OptimisticLockError {
	return &OptimisticLockError{
		EntityType: entityType,
		EntityID:   entityID,
		Message:    message,
	}
}

// TransientError: connection, timeout and declared-transient database
// classes. Retryable under the transient policy.
type TransientError struct {
	Op  string // operation that failed, e.g. "wallet_repository.FindByID"
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as a transient failure of op.
func NewTransient(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

// ServiceDegradedError: the request was rejected or abandoned because the
// service is operating in a degraded mode.
type ServiceDegradedError struct {
	DegradationCode string // READ_ONLY_MODE, CACHE_BYPASS, ...
	Operation       string // operation that was rejected, e.g. "deposit"
	Message         string
	Err             error // underlying cause, may be nil
}

// Error implements the error interface.
func (e *ServiceDegradedError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("service degraded [%s] during %s: %s", e.DegradationCode, e.Operation, e.Message)
	}
	return fmt.Sprintf("service degraded [%s]: %s", e.DegradationCode, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceDegradedError) Unwrap() error {
	return e.Err
}

// NewServiceDegraded creates a degradation error.
func NewServiceDegraded(code, operation, message string) *ServiceDegradedError {
	return &ServiceDegradedError{
		DegradationCode: code,
		Operation:       operation,
		Message:         message,
	}
}

// NewRetryExhausted reports that an operation kept failing with retryable
// errors until the retry budget ran out.
func NewRetryExhausted(operation string, attempts int, err error) *ServiceDegradedError {
	return &ServiceDegradedError{
		DegradationCode: DegradationRetryExhausted,
		Operation:       operation,
		Message:         fmt.Sprintf("gave up after %d attempts: %v", attempts, err),
		Err:             err,
	}
}

// Helper functions for common error checking

// IsNotFound checks if an error is a wallet-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	var valErr ValidationError
	var valErrs ValidationErrors
	return errors.As(err, &valErr) || errors.As(err, &valErrs)
}

// IsInsufficientFunds checks for the insufficient funds error.
func IsInsufficientFunds(err error) bool {
	var e *InsufficientFundsError
	return errors.As(err, &e)
}

// IsInvalidTransfer checks for transfer-specific violations.
func IsInvalidTransfer(err error) bool {
	var e *InvalidTransferError
	return errors.As(err, &e)
}

// IsStatusViolation checks for wallet status violations.
func IsStatusViolation(err error) bool {
	var e *WalletStatusViolationError
	return errors.As(err, &e)
}

// IsOptimisticLock checks for version-mismatch conflicts.
func IsOptimisticLock(err error) bool {
	var e *OptimisticLockError
	return errors.As(err, &e)
}

// IsTransient checks for retryable transport-level failures.
func IsTransient(err error) bool {
	var e *TransientError
	return errors.As(err, &e)
}

// IsServiceDegraded checks for degradation rejections.
func IsServiceDegraded(err error) bool {
	var e *ServiceDegradedError
	return errors.As(err, &e)
}

// IsDuplicateReference checks for the internal idempotency collision signal.
func IsDuplicateReference(err error) bool {
	return errors.Is(err, ErrDuplicateReference)
}

// IsRetryable reports whether any retry policy may apply to err.
// Everything else in the taxonomy must never be retried.
func IsRetryable(err error) bool {
	return IsOptimisticLock(err) || IsTransient(err)
}

// Code extracts the stable machine-readable code from any error.
// Unknown errors are classified as INTERNAL.
func Code(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case IsValidation(err):
		return CodeValidation
	case IsNotFound(err):
		return CodeWalletNotFound
	case IsInsufficientFunds(err):
		return CodeInsufficientFunds
	case IsInvalidTransfer(err):
		return CodeInvalidTransfer
	case IsStatusViolation(err):
		return CodeWalletStatusViolation
	case IsOptimisticLock(err):
		return CodeOptimisticLock
	case IsTransient(err):
		return CodeTransient
	case IsServiceDegraded(err):
		return CodeServiceDegraded
	case IsDuplicateReference(err):
		return CodeDuplicateReference
	case errors.Is(err, ErrNoHandler):
		return CodeNoHandler
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	return CodeInternal
}
