// Package pubsub multiplexes any number of listeners over one blocking
// pub/sub subscription held by a single background worker. The worker
// survives connection failures by resubscribing every registered channel
// from its registry, so a listener registered once keeps receiving messages
// for the life of the manager no matter how often the server connection
// drops.
package pubsub

// sentinelChannel is reserved on every text subscription: the provider
// rejects an empty channel list, and its subscribe ack doubles as the
// readiness signal. Never exposed to callers.
const sentinelChannel = "redismux:keep"

// Manager multiplexes any number of text-channel listeners over a single
// blocking provider subscription held by one worker goroutine. Lost
// connections are resubscribed transparently from the channel registry.
//
// All methods are safe for concurrent use.
type Manager struct {
	mux *mux
}

// NewManager creates a text-variant manager on pool. The worker starts on
// the first Subscribe call unless cfg.EagerInit is set.
func NewManager(pool Pool, cfg Config) (*Manager, error) {
	invoke := func(l any, channel, payload string) error {
		return l.(Listener).OnMessage(channel, payload)
	}
	m, err := newMux(pool, cfg, variantText, sentinelChannel, invoke)
	if err != nil {
		return nil, err
	}
	return &Manager{mux: m}, nil
}

// Subscribe registers l for channel and returns it as the handle for
// Unsubscribe. It blocks until the live subscription has been ready at least
// once, bounded by ReadyTimeout. Subscribing the same listener to more
// channels is allowed; registering it twice for one channel is a no-op.
func (m *Manager) Subscribe(l Listener, channel string) (Listener, error) {
	if l == nil {
		return nil, ErrNilListener
	}
	if err := m.mux.subscribe(l, channel); err != nil {
		return nil, err
	}
	return l, nil
}

// Unsubscribe removes l from every channel it is registered on. It reports
// true if at least one registration was removed; calling it again with the
// same listener reports false.
func (m *Manager) Unsubscribe(l Listener) (bool, error) {
	return m.mux.unsubscribe(l)
}

// Close unsubscribes everything, waits (bounded by CloseTimeout) for the
// provider's confirmation and stops the worker. Idempotent; never fails. The
// pool stays open.
func (m *Manager) Close() {
	m.mux.close()
}

// Subscriptions returns a deep copy of the channel registry.
func (m *Manager) Subscriptions() map[string][]Listener {
	snap := m.mux.snapshot()
	out := make(map[string][]Listener, len(snap))
	for channel, listeners := range snap {
		typed := make([]Listener, 0, len(listeners))
		for _, l := range listeners {
			typed = append(typed, l.(Listener))
		}
		out[channel] = typed
	}
	return out
}

// ResubscribeCount reports how many times a live subscription has been
// established, including the first one.
func (m *Manager) ResubscribeCount() int {
	return m.mux.resubscribeCount()
}

// State reports the worker lifecycle state.
func (m *Manager) State() State {
	return m.mux.currentState()
}

// IsClosed reports whether Close has been called.
func (m *Manager) IsClosed() bool {
	return m.mux.isClosed()
}

// Done is closed when the worker goroutine has exited. If the worker never
// started, it is closed by Close.
func (m *Manager) Done() <-chan struct{} {
	return m.mux.done
}
