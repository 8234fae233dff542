package pubsub

// binarySentinelChannel is the binary variant's reserved channel, distinct
// from the text one so both managers can share a server.
const binarySentinelChannel = "redismux:keep:binary"

// BinaryManager is the byte-oriented counterpart of Manager: channels and
// payloads are byte sequences, and delivery can be paused without touching
// the live subscription. Channel identifiers are compared by content.
//
// All methods are safe for concurrent use.
type BinaryManager struct {
	mux *mux
}

// NewBinaryManager creates a binary-variant manager on pool. The worker
// starts on the first Subscribe call unless cfg.EagerInit is set.
func NewBinaryManager(pool Pool, cfg Config) (*BinaryManager, error) {
	invoke := func(l any, channel, payload string) error {
		return l.(BinaryListener).OnMessage([]byte(channel), []byte(payload))
	}
	m, err := newMux(pool, cfg, variantBinary, binarySentinelChannel, invoke)
	if err != nil {
		return nil, err
	}
	return &BinaryManager{mux: m}, nil
}

// Subscribe registers l for channel and returns it as the handle for
// Unsubscribe. It blocks until the live subscription has been ready at least
// once, bounded by ReadyTimeout.
func (m *BinaryManager) Subscribe(l BinaryListener, channel []byte) (BinaryListener, error) {
	if l == nil {
		return nil, ErrNilListener
	}
	if err := m.mux.subscribe(l, string(channel)); err != nil {
		return nil, err
	}
	return l, nil
}

// Unsubscribe removes l from every channel it is registered on. It reports
// true if at least one registration was removed.
func (m *BinaryManager) Unsubscribe(l BinaryListener) (bool, error) {
	return m.mux.unsubscribe(l)
}

// Close unsubscribes everything, waits (bounded by CloseTimeout) for the
// provider's confirmation and stops the worker. Idempotent; never fails.
func (m *BinaryManager) Close() {
	m.mux.close()
}

// SetPaused toggles delivery. While paused, the subscription and its
// channels stay live on the provider; messages are dropped locally instead
// of dispatched. Unpausing resumes delivery without resubscribing.
func (m *BinaryManager) SetPaused(v bool) {
	m.mux.setPaused(v)
}

// Paused reports whether delivery is paused.
func (m *BinaryManager) Paused() bool {
	return m.mux.isPaused()
}

// Subscriptions returns a deep copy of the channel registry.
func (m *BinaryManager) Subscriptions() map[BinaryChannel][]BinaryListener {
	snap := m.mux.snapshot()
	out := make(map[BinaryChannel][]BinaryListener, len(snap))
	for channel, listeners := range snap {
		typed := make([]BinaryListener, 0, len(listeners))
		for _, l := range listeners {
			typed = append(typed, l.(BinaryListener))
		}
		out[BinaryChannel(channel)] = typed
	}
	return out
}

// ResubscribeCount reports how many times a live subscription has been
// established, including the first one.
func (m *BinaryManager) ResubscribeCount() int {
	return m.mux.resubscribeCount()
}

// State reports the worker lifecycle state.
func (m *BinaryManager) State() State {
	return m.mux.currentState()
}

// IsClosed reports whether Close has been called.
func (m *BinaryManager) IsClosed() bool {
	return m.mux.isClosed()
}

// Done is closed when the worker goroutine has exited. If the worker never
// started, it is closed by Close.
func (m *BinaryManager) Done() <-chan struct{} {
	return m.mux.done
}
