// Package postgres implements the persistence ports on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. It lets
// repositories run either standalone or inside a unit of work.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txKey keys the transaction stored in the context by the unit of work.
type txKey struct{}

// injectTx hands the transaction to repositories via the context.
func injectTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// extractTx returns the context's transaction, or nil outside one.
func extractTx(ctx context.Context) pgx.Tx {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	if !ok {
		return nil
	}
	return tx
}

func hasTx(ctx context.Context) bool {
	return extractTx(ctx) != nil
}

// PostgreSQL error codes this layer cares about.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// isUniqueViolation reports a 23505, optionally narrowed to a constraint.
func isUniqueViolation(err error, constraintName string) bool {
	pgErr, ok := asPgError(err)
	if !ok || pgErr.Code != pgUniqueViolation {
		return false
	}
	if constraintName != "" {
		return strings.Contains(pgErr.ConstraintName, constraintName)
	}
	return true
}

// isTransientPgError reports failures that a clean re-execution may
// resolve: serialization aborts, deadlocks and connection-class errors.
func isTransientPgError(err error) bool {
	pgErr, ok := asPgError(err)
	if !ok {
		return false
	}
	if pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected {
		return true
	}
	// Class 08 - connection exceptions.
	return strings.HasPrefix(pgErr.Code, "08")
}

// wrapQueryError translates driver errors into the domain taxonomy. Unique
// violations on the ledger's (wallet_id, reference_id) index surface as
// duplicate references; retry-worthy failures become TransientError.
func wrapQueryError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err, "transactions_wallet_reference") {
		return fmt.Errorf("%s: %w", op, domainerrors.ErrDuplicateReference)
	}
	if isTransientPgError(err) {
		return domainerrors.NewTransient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
