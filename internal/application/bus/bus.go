// Package bus routes commands and queries to their handlers by name.
//
// The bus itself is deliberately thin: it looks up the handler, times the
// call and records metrics. Cross-cutting behavior such as retries is
// layered on by wrapping handlers at wiring time, so a dispatched request
// runs its handler exactly once from the bus's point of view.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
	"github.com/Haleralex/walletcore/internal/pkg/metrics"
)

// Command is a state-changing request. CommandName is the routing key.
type Command interface {
	CommandName() string
}

// Query is a read-only request. QueryName is the routing key.
type Query interface {
	QueryName() string
}

// CommandHandler executes one command type. The concrete command arrives
// as the interface; handlers assert their own type.
type CommandHandler func(ctx context.Context, cmd Command) (interface{}, error)

// QueryHandler executes one query type.
type QueryHandler func(ctx context.Context, q Query) (interface{}, error)

// Bus is the in-process dispatcher. Registration happens once during
// container wiring; Dispatch and DispatchQuery are safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	commands map[string]CommandHandler
	queries  map[string]QueryHandler
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{
		commands: make(map[string]CommandHandler),
		queries:  make(map[string]QueryHandler),
	}
}

// RegisterCommand binds a handler to a command name. Registering the same
// name twice is a wiring bug and panics.
func (b *Bus) RegisterCommand(name string, handler CommandHandler) {
	if handler == nil {
		panic(fmt.Sprintf("bus: nil handler for command %q", name))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.commands[name]; exists {
		panic(fmt.Sprintf("bus: command %q already registered", name))
	}
	b.commands[name] = handler
}

// RegisterQuery binds a handler to a query name. Duplicate names panic.
func (b *Bus) RegisterQuery(name string, handler QueryHandler) {
	if handler == nil {
		panic(fmt.Sprintf("bus: nil handler for query %q", name))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.queries[name]; exists {
		panic(fmt.Sprintf("bus: query %q already registered", name))
	}
	b.queries[name] = handler
}

// Dispatch routes a command to its handler and returns the handler's
// result. An unregistered name yields ErrNoHandler.
func (b *Bus) Dispatch(ctx context.Context, cmd Command) (interface{}, error) {
	name := cmd.CommandName()

	b.mu.RLock()
	handler, ok := b.commands[name]
	b.mu.RUnlock()

	if !ok {
		metrics.RecordBusError("command")
		return nil, fmt.Errorf("%w: command %q", domainerrors.ErrNoHandler, name)
	}

	start := time.Now()
	result, err := handler(ctx, cmd)
	metrics.RecordBusDispatch("command", name, time.Since(start), err)

	return result, err
}

// DispatchQuery routes a query to its handler.
func (b *Bus) DispatchQuery(ctx context.Context, q Query) (interface{}, error) {
	name := q.QueryName()

	b.mu.RLock()
	handler, ok := b.queries[name]
	b.mu.RUnlock()

	if !ok {
		metrics.RecordBusError("query")
		return nil, fmt.Errorf("%w: query %q", domainerrors.ErrNoHandler, name)
	}

	start := time.Now()
	result, err := handler(ctx, q)
	metrics.RecordBusDispatch("query", name, time.Since(start), err)

	return result, err
}

// Execute dispatches a command and asserts the result type. A handler
// returning an unexpected type is a wiring bug reported as an internal
// error.
func Execute[R any](ctx context.Context, b *Bus, cmd Command) (R, error) {
	var zero R

	result, err := b.Dispatch(ctx, cmd)
	if err != nil {
		return zero, err
	}

	typed, ok := result.(R)
	if !ok {
		return zero, domainerrors.NewInternal(
			fmt.Sprintf("command %q returned %T", cmd.CommandName(), result), nil)
	}
	return typed, nil
}

// ExecuteQuery dispatches a query and asserts the result type.
func ExecuteQuery[R any](ctx context.Context, b *Bus, q Query) (R, error) {
	var zero R

	result, err := b.DispatchQuery(ctx, q)
	if err != nil {
		return zero, err
	}

	typed, ok := result.(R)
	if !ok {
		return zero, domainerrors.NewInternal(
			fmt.Sprintf("query %q returned %T", q.QueryName(), result), nil)
	}
	return typed, nil
}
