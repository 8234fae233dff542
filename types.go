package redismux

import "github.com/redismux-io/redismux/pubsub"

// Aliases for the pubsub package's core types, so common usage needs only
// this package. The pubsub package stays the home of the implementations and
// of the provider-facing interfaces.
type (
	Listener       = pubsub.Listener
	BinaryListener = pubsub.BinaryListener
	BinaryChannel  = pubsub.BinaryChannel
	Config         = pubsub.Config
	State          = pubsub.State
	Pool           = pubsub.Pool
	Executor       = pubsub.Executor
	Metrics        = pubsub.Metrics
)

const (
	StateIdle       = pubsub.StateIdle
	StateConnecting = pubsub.StateConnecting
	StateSubscribed = pubsub.StateSubscribed
	StateFailed     = pubsub.StateFailed
	StateClosing    = pubsub.StateClosing
	StateClosed     = pubsub.StateClosed
)

var (
	ErrClosed       = pubsub.ErrClosed
	ErrReadyTimeout = pubsub.ErrReadyTimeout
	ErrNilListener  = pubsub.ErrNilListener
)

// ListenerFunc wraps a function as a Listener. Each call returns a distinct
// registration handle.
func ListenerFunc(fn func(channel, payload string) error) Listener {
	return pubsub.ListenerFunc(fn)
}

// BinaryListenerFunc wraps a function as a BinaryListener. Each call returns
// a distinct registration handle.
func BinaryListenerFunc(fn func(channel, payload []byte) error) BinaryListener {
	return pubsub.BinaryListenerFunc(fn)
}
