package pubsub

import "context"

// Pool supplies connections for blocking subscriptions. Implementations must
// be safe for concurrent use. The pool is owned by the caller; managers never
// close it.
type Pool interface {
	// Acquire returns a connection ready to subscribe on. It may block until
	// one is available and fails if the pool is closed or the server is
	// unreachable.
	Acquire(ctx context.Context) (Conn, error)
	// Closed reports whether the pool has been shut down. A worker stops
	// retrying once its pool is closed.
	Closed() bool
}

// Conn is a single connection capable of holding one blocking subscription.
type Conn interface {
	// Subscribe opens a subscription covering the given channels. The
	// provider requires at least one channel.
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
	// Release returns the connection to its pool. Safe to call after the
	// subscription is closed.
	Release() error
}

// Subscription is one live blocking subscription. Receive is driven by a
// single goroutine; Add, Remove and UnsubscribeAll may be called from other
// goroutines while Receive is blocked.
type Subscription interface {
	// Receive blocks until the provider produces the next Event or the
	// subscription dies. It returns an error when the connection is lost,
	// the context is cancelled, or the subscription is closed.
	Receive(ctx context.Context) (Event, error)
	// Add subscribes the live connection to more channels.
	Add(ctx context.Context, channels ...string) error
	// Remove unsubscribes the live connection from channels.
	Remove(ctx context.Context, channels ...string) error
	// UnsubscribeAll removes every channel; the provider confirms with an
	// unsubscribe Ack carrying Count zero.
	UnsubscribeAll(ctx context.Context) error
	// Close tears the subscription down and releases its resources.
	Close() error
}
