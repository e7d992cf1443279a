package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
)

func TestCode_Classification(t *testing.T) {
	insufficient := errors.NewInsufficientFunds(
		"w-1",
		valueobjects.MustMoney("10.00"),
		valueobjects.MustMoney("50.00"),
	)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", errors.ValidationError{Field: "amount", Message: "must be positive"}, errors.CodeValidation},
		{"not found", errors.ErrWalletNotFound, errors.CodeWalletNotFound},
		{"insufficient funds", insufficient, errors.CodeInsufficientFunds},
		{"invalid transfer", errors.NewInvalidTransfer("same wallet"), errors.CodeInvalidTransfer},
		{"status violation", errors.NewWalletStatusViolation("w-1", "FROZEN"), errors.CodeWalletStatusViolation},
		{"optimistic lock", errors.NewOptimisticLock("Wallet", "w-1", "version mismatch"), errors.CodeOptimisticLock},
		{"transient", errors.NewTransient("repo.FindByID", stderrors.New("connection reset")), errors.CodeTransient},
		{"degraded", errors.NewServiceDegraded(errors.DegradationReadOnly, "deposit", "read-only"), errors.CodeServiceDegraded},
		{"duplicate reference", errors.ErrDuplicateReference, errors.CodeDuplicateReference},
		{"no handler", errors.ErrNoHandler, errors.CodeNoHandler},
		{"unknown", stderrors.New("boom"), errors.CodeInternal},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Code(tt.err); got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Classification must survive fmt.Errorf("%w") wrapping at layer boundaries.
func TestCode_WrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("handler failed: %w",
		fmt.Errorf("load wallet: %w", errors.ErrWalletNotFound))

	if !errors.IsNotFound(wrapped) {
		t.Error("IsNotFound must see through wrapping")
	}
	if got := errors.Code(wrapped); got != errors.CodeWalletNotFound {
		t.Errorf("Code() through wrap = %q, want %q", got, errors.CodeWalletNotFound)
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		errors.NewOptimisticLock("Wallet", "w-1", "version mismatch"),
		errors.NewTransient("op", stderrors.New("timeout")),
		fmt.Errorf("wrapped: %w", errors.NewTransient("op", stderrors.New("timeout"))),
	}
	for _, err := range retryable {
		if !errors.IsRetryable(err) {
			t.Errorf("expected retryable: %v", err)
		}
	}

	nonRetryable := []error{
		errors.ValidationError{Field: "amount", Message: "bad"},
		errors.ErrWalletNotFound,
		errors.NewInsufficientFunds("w-1", valueobjects.Zero(), valueobjects.MustMoney("1.00")),
		errors.NewInvalidTransfer("same wallet"),
		errors.NewWalletStatusViolation("w-1", "CLOSED"),
		errors.NewServiceDegraded(errors.DegradationReadOnly, "withdraw", "read-only"),
		errors.ErrDuplicateReference,
	}
	for _, err := range nonRetryable {
		if errors.IsRetryable(err) {
			t.Errorf("must never be retryable: %v", err)
		}
	}
}

func TestInsufficientFunds_CarriesAmounts(t *testing.T) {
	err := errors.NewInsufficientFunds(
		"w-1",
		valueobjects.MustMoney("10.00"),
		valueobjects.MustMoney("50.00"),
	)

	var ife *errors.InsufficientFundsError
	if !stderrors.As(err, &ife) {
		t.Fatal("errors.As failed for InsufficientFundsError")
	}
	if ife.Available.String() != "10.0000" || ife.Requested.String() != "50.0000" {
		t.Errorf("context lost: available=%s requested=%s", ife.Available, ife.Requested)
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := errors.NewInternal("commit failed", cause)

	if !stderrors.Is(err, cause) {
		t.Error("DomainError must unwrap to its cause")
	}
	if errors.Code(err) != errors.CodeInternal {
		t.Errorf("Code() = %q, want INTERNAL", errors.Code(err))
	}
}

func TestValidationErrors_Accumulate(t *testing.T) {
	var errs errors.ValidationErrors
	if errs.HasErrors() {
		t.Error("empty collection must report no errors")
	}

	errs.Add("amount", "must be positive")
	errs.Add("reference_id", "must not be empty")

	if !errs.HasErrors() || len(errs) != 2 {
		t.Errorf("expected 2 accumulated errors, got %d", len(errs))
	}
	if !errors.IsValidation(errs) {
		t.Error("IsValidation must match the collection type")
	}
}
