package pubsub

import (
	"runtime/debug"

	"golang.org/x/time/rate"
)

// run is the worker goroutine: acquire a connection, subscribe to the
// registry's channels plus the sentinel, pump events until the subscription
// dies, repeat. It holds the manager's single blocking subscription for the
// manager's whole life.
func (m *mux) run() {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("worker crashed, closing manager")
		}
		m.close()
		m.doneOnce.Do(func() { close(m.done) })
	}()

	// Burst 1 with one token per RetryInterval: the first attempt runs
	// immediately and a long-lived healthy subscription accrues the token
	// back, so only rapid failure loops are paced.
	limiter := rate.NewLimiter(rate.Every(m.cfg.RetryInterval), 1)

	for !m.stopping() {
		if err := limiter.Wait(m.ctx); err != nil {
			return
		}
		m.attempt()
	}
}

// stopping reports whether the worker should give up instead of
// (re)subscribing again.
func (m *mux) stopping() bool {
	if m.ctx.Err() != nil {
		return true
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	return closed || m.pool.Closed()
}

// attempt runs one full subscription lifecycle. Errors never escape: they
// are logged and absorbed so the run loop can retry.
func (m *mux) attempt() {
	m.mu.Lock()
	m.state = StateConnecting
	m.mu.Unlock()

	conn, err := m.pool.Acquire(m.ctx)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		m.fail(err, "failed to acquire connection")
		return
	}
	defer func() {
		_ = conn.Release()
	}()

	m.mu.Lock()
	channels := make([]string, 0, len(m.registry)+1)
	channels = append(channels, m.sentinel)
	for channel := range m.registry {
		channels = append(channels, channel)
	}
	m.mu.Unlock()

	sub, err := conn.Subscribe(m.ctx, channels...)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		m.fail(err, "failed to open subscription")
		return
	}

	m.mu.Lock()
	m.live = sub
	m.mu.Unlock()

	m.log.Debug().Int("channels", len(channels)-1).Msg("subscribing")

	err = m.pump(sub)

	m.mu.Lock()
	m.live = nil
	// Replace consumed signal generations so waiters block on an open
	// channel instead of spinning on the previous attempt's closed one.
	if m.readyClosed {
		m.ready = make(chan struct{})
		m.readyClosed = false
	}
	if m.unsubClosed {
		m.unsub = make(chan struct{})
		m.unsubClosed = false
	}
	m.mu.Unlock()
	_ = sub.Close()

	if err != nil {
		if m.ctx.Err() != nil || m.isClosed() {
			return
		}
		m.fail(err, "subscription lost, will resubscribe")
	}
}

func (m *mux) fail(err error, msg string) {
	m.mu.Lock()
	m.state = StateFailed
	m.mu.Unlock()
	m.cfg.Metrics.connectionFailure(m.variant)
	m.log.Warn().Err(err).Msg(msg)
}

// pump drains the subscription's events. It returns nil on a clean end (the
// provider confirmed zero subscribed channels) and the receive error
// otherwise.
func (m *mux) pump(sub Subscription) error {
	for {
		ev, err := sub.Receive(m.ctx)
		if err != nil {
			return err
		}
		switch e := ev.(type) {
		case *Ack:
			switch {
			case e.Op == OpSubscribe && e.Channel == m.sentinel:
				m.markSubscribed()
			case e.Op == OpUnsubscribe && e.Count == 0:
				m.markUnsubscribed()
				return nil
			}
		case *Message:
			m.dispatch(e.Channel, e.Payload)
		}
	}
}

// dispatch hands a message to every listener registered for its channel. The
// listener set is snapshotted under the lock; invocations run through the
// executor without it.
func (m *mux) dispatch(channel, payload string) {
	m.mu.Lock()
	if m.paused || m.closed {
		m.mu.Unlock()
		return
	}
	set := m.registry[channel]
	if len(set) == 0 {
		m.mu.Unlock()
		m.log.Debug().Str("channel", channel).Msg("message on channel without listeners dropped")
		return
	}
	listeners := make([]any, 0, len(set))
	for l := range set {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		// Per-iteration copy: required while go.mod declares go < 1.22, since
		// the closure outlives the iteration.
		l := l
		m.cfg.Executor.Execute(func() {
			m.invokeGuarded(l, channel, payload)
		})
	}
}

// invokeGuarded is the per-invocation error boundary: a listener error or
// panic is logged with the message context and goes no further.
func (m *mux) invokeGuarded(l any, channel, payload string) {
	defer func() {
		if r := recover(); r != nil {
			m.cfg.Metrics.listenerError(m.variant)
			m.log.Error().
				Interface("panic", r).
				Str("channel", channel).
				Str("payload", payload).
				Bytes("stack", debug.Stack()).
				Msg("listener panicked")
		}
	}()

	m.cfg.Metrics.delivery(m.variant)
	if err := m.invoke(l, channel, payload); err != nil {
		m.cfg.Metrics.listenerError(m.variant)
		m.log.Error().
			Err(err).
			Str("channel", channel).
			Str("payload", payload).
			Msg("listener failed")
	}
}
