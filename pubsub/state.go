package pubsub

// State describes the worker lifecycle of a subscription manager.
type State int

const (
	// StateIdle means the manager exists but no worker goroutine has started.
	StateIdle State = iota
	// StateConnecting means the worker is acquiring a connection and building
	// a new live subscription.
	StateConnecting
	// StateSubscribed means the provider acknowledged the sentinel channel
	// and the subscription accepts live channel changes.
	StateSubscribed
	// StateFailed means the last subscription attempt ended with an error;
	// the worker will retry.
	StateFailed
	// StateClosing means Close was called and the manager is waiting for the
	// provider to confirm unsubscription.
	StateClosing
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateFailed:
		return "failed"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
