// internal/notify/notifier.go
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// EventKind is the kind of change being reported.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
)

// Entity kinds published by the ledger engine.
const (
	EntityWallet      = "wallet"
	EntityTransaction = "transaction"
)

// Event carries one entity change. For updates Old holds the pre-operation
// state; for inserts it is nil.
type Event struct {
	Entity string
	Kind   EventKind
	New    interface{}
	Old    interface{}
}

// Listener handles one entity change. Listeners run synchronously after the
// mutation has committed; an error cannot undo it.
type Listener func(ctx context.Context, e Event) error

// Notifier is an explicit publish-subscribe registry mapping entity kind to
// an ordered list of listeners. It replaces any notion of a global
// subject: instances are constructor-injected wherever notifications are
// emitted.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	logger    *slog.Logger
}

// NewNotifier creates an empty Notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		listeners: make(map[string][]Listener),
		logger:    logger,
	}
}

// Register appends a listener for the given entity kind. Listeners are
// invoked in registration order.
func (n *Notifier) Register(entity string, l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners[entity] = append(n.listeners[entity], l)
}

// Notify dispatches the event to every listener registered for its entity
// kind. A failing listener does not block the others; errors are logged and
// never propagated, since the mutation they describe has already committed.
func (n *Notifier) Notify(ctx context.Context, e Event) {
	n.mu.RLock()
	listeners := n.listeners[e.Entity]
	n.mu.RUnlock()

	for _, l := range listeners {
		if err := l(ctx, e); err != nil {
			n.logger.Error("notification listener failed",
				"entity", e.Entity, "kind", e.Kind, "error", err)
		}
	}
}
