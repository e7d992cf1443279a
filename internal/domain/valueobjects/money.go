// Package valueobjects - Money is the central value object of the wallet domain.
package valueobjects

import (
	"errors"
	"fmt"
	"math/big"
)

// Scale is the number of fractional digits the service stores and accepts.
// Matches the numeric(19,4) balance columns.
const Scale = 4

// Money represents a non-negative monetary amount.
// Uses big.Rat for exact decimal arithmetic to avoid floating-point errors.
//
// Value Object Pattern:
// - Immutable: all operations return new Money instances
// - Self-validating: cannot create invalid Money
type Money struct {
	amount *big.Rat
}

// Common domain errors for Money operations
var (
	ErrNegativeAmount     = errors.New("amount cannot be negative")
	ErrInvalidAmount      = errors.New("invalid amount format")
	ErrScaleExceeded      = errors.New("amount exceeds supported decimal scale")
	ErrInsufficientAmount = errors.New("insufficient amount")
)

// scaleLimit is 10^Scale; a valid amount's reduced denominator divides it.
var scaleLimit = big.NewInt(10000)

// NewMoney creates a Money instance from a decimal string (e.g. "100.50").
//
// Returns an error if the string cannot be parsed, is negative, or carries
// more than Scale fractional digits.
func NewMoney(amountStr string) (Money, error) {
	amount := new(big.Rat)
	if _, ok := amount.SetString(amountStr); !ok {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amountStr)
	}

	if amount.Sign() < 0 {
		return Money{}, ErrNegativeAmount
	}

	// big.Rat keeps values reduced, so the denominator divides 10^Scale
	// exactly when the value fits in Scale decimal places.
	if new(big.Int).Mod(scaleLimit, amount.Denom()).Sign() != 0 {
		return Money{}, fmt.Errorf("%w: %q (max %d fractional digits)", ErrScaleExceeded, amountStr, Scale)
	}

	return Money{amount: amount}, nil
}

// MustMoney is NewMoney that panics on error. For wiring and tests only.
func MustMoney(amountStr string) Money {
	m, err := NewMoney(amountStr)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero creates a zero amount.
func Zero() Money {
	return Money{amount: big.NewRat(0, 1)}
}

// Amount returns the amount as a big.Rat.
// Returns a copy to maintain immutability.
func (m Money) Amount() *big.Rat {
	return new(big.Rat).Set(m.rat())
}

// String returns the canonical fixed-scale representation, e.g. "100.5000".
// This is the form written to and read from storage.
func (m Money) String() string {
	return m.rat().FloatString(Scale)
}

// Float64 returns the amount as float64.
// WARNING: use only for display and metrics, never for calculations.
func (m Money) Float64() float64 {
	f, _ := m.rat().Float64()
	return f
}

// Add returns a new Money with the sum of two amounts.
// IMMUTABLE: returns a new instance, does not modify the receiver.
func (m Money) Add(other Money) Money {
	sum := new(big.Rat).Add(m.rat(), other.rat())
	return Money{amount: sum}
}

// Subtract returns a new Money with the difference.
// Returns ErrInsufficientAmount if the result would be negative.
func (m Money) Subtract(other Money) (Money, error) {
	diff := new(big.Rat).Sub(m.rat(), other.rat())
	if diff.Sign() < 0 {
		return Money{}, ErrInsufficientAmount
	}
	return Money{amount: diff}, nil
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m.rat().Sign() == 0
}

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool {
	return m.rat().Sign() > 0
}

// GreaterThan checks if this amount is greater than another.
func (m Money) GreaterThan(other Money) bool {
	return m.rat().Cmp(other.rat()) > 0
}

// GreaterThanOrEqual checks if this amount is >= another.
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.rat().Cmp(other.rat()) >= 0
}

// LessThan checks if this amount is less than another.
func (m Money) LessThan(other Money) bool {
	return m.rat().Cmp(other.rat()) < 0
}

// Equals checks if two amounts are numerically equal.
func (m Money) Equals(other Money) bool {
	return m.rat().Cmp(other.rat()) == 0
}

// rat guards against the zero value so that Money{} behaves as zero money
// instead of panicking inside big.Rat.
func (m Money) rat() *big.Rat {
	if m.amount == nil {
		return big.NewRat(0, 1)
	}
	return m.amount
}
