package ports

import "context"

// UnitOfWork draws transaction boundaries around multi-step writes.
// One Execute call is one database transaction.
type UnitOfWork interface {
	// Execute runs fn inside a transaction. The context passed to fn
	// carries the transaction; every repository call inside fn must use
	// that context. fn returning an error rolls the transaction back,
	// nil commits it. A nested Execute joins the surrounding transaction.
	Execute(ctx context.Context, fn func(context.Context) error) error

	// ExecuteWithResult is Execute for callbacks that produce a value.
	ExecuteWithResult(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error)
}
