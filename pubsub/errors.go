package pubsub

import "errors"

var (
	// ErrClosed is returned when an operation is attempted on a closed
	// manager.
	ErrClosed = errors.New("subscription manager is closed")

	// ErrReadyTimeout is returned when a Subscribe call gives up waiting for
	// the live subscription to become ready.
	ErrReadyTimeout = errors.New("timed out waiting for subscription to become ready")

	// ErrNilListener is returned when Subscribe is called without a listener.
	ErrNilListener = errors.New("listener is required")
)
