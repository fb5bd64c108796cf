package service

import (
	"context"

	"github.com/Frida144/site-segnorito/internal/domain"
)

// Operation names the mutation that produced a Change.
type Operation string

const (
	OpAdd            Operation = "add"
	OpChangeQuantity Operation = "change_quantity"
	OpSetQuantity    Operation = "set_quantity"
	OpRemove         Operation = "remove"
	OpClear          Operation = "clear"
	OpPersist        Operation = "persist"
)

// Change describes a cart that was just written to storage.
type Change struct {
	Key       string
	Operation Operation
	Cart      domain.Cart
}

// Listener is notified synchronously after every successful write. Listeners
// are side effects (badge refresh, re-render, event publication) and cannot
// fail the mutation.
type Listener interface {
	CartChanged(ctx context.Context, change Change)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, change Change)

func (f ListenerFunc) CartChanged(ctx context.Context, change Change) { f(ctx, change) }
