package pubsub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// mux is the engine shared by Manager and BinaryManager: one channel
// registry, one worker goroutine, one disposable live subscription.
//
// The registry is the source of truth for what should be subscribed. The
// live subscription's own channel list is throwaway state: every attempt
// rebuilds the full list from the registry, which is what makes recovery
// after connection loss lossless.
type mux struct {
	pool     Pool
	cfg      Config
	log      zerolog.Logger
	variant  string
	sentinel string

	// invoke adapts a registered listener to the variant's payload encoding.
	invoke func(l any, channel, payload string) error

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	registry map[string]map[any]struct{}
	live     Subscription
	state    State
	started  bool
	closed   bool
	paused   bool
	resubs   int

	// ready is closed when the current attempt's sentinel ack arrives and
	// replaced at the start of the next attempt; unsub is closed when the
	// provider confirms zero subscribed channels. Channel generations stand
	// in for condition variables so waits can carry deadlines.
	ready       chan struct{}
	readyClosed bool
	unsub       chan struct{}
	unsubClosed bool

	done     chan struct{}
	doneOnce sync.Once
}

func newMux(pool Pool, cfg Config, variant, sentinel string, invoke func(any, string, string) error) (*mux, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	m := &mux{
		pool:     pool,
		cfg:      cfg,
		log:      cfg.Logger.With().Str("component", "pubsub").Str("variant", variant).Logger(),
		variant:  variant,
		sentinel: sentinel,
		invoke:   invoke,
		ctx:      ctx,
		cancel:   cancel,
		registry: make(map[string]map[any]struct{}),
		state:    StateIdle,
		ready:    make(chan struct{}),
		unsub:    make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cfg.EagerInit {
		m.mu.Lock()
		m.startLocked()
		m.mu.Unlock()
	}
	return m, nil
}

// startLocked launches the worker goroutine once. Callers hold m.mu.
func (m *mux) startLocked() {
	if m.started || m.closed {
		return
	}
	m.started = true
	go m.run()
}

// subscribe registers l for channel. It lazily starts the worker and blocks
// until the live subscription has been ready at least once, bounded by
// ReadyTimeout.
func (m *mux) subscribe(l any, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.startLocked()
	if err := m.awaitReadyLocked(); err != nil {
		return err
	}

	set, ok := m.registry[channel]
	if !ok {
		set = make(map[any]struct{}, 1)
		m.registry[channel] = set
		m.liveAddLocked(channel)
	}
	set[l] = struct{}{}

	m.log.Debug().Str("channel", channel).Int("listeners", len(set)).Msg("listener subscribed")
	return nil
}

// unsubscribe removes l from every channel it is registered on and reports
// whether anything was removed. Channels left without listeners are dropped
// from the registry and removed from the live subscription best-effort.
func (m *mux) unsubscribe(l any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrClosed
	}

	removed := false
	for channel, set := range m.registry {
		if _, ok := set[l]; !ok {
			continue
		}
		delete(set, l)
		removed = true
		m.log.Debug().Str("channel", channel).Int("listeners", len(set)).Msg("listener unsubscribed")
		if len(set) == 0 {
			delete(m.registry, channel)
			m.liveRemoveLocked(channel)
		}
	}
	return removed, nil
}

// awaitReadyLocked blocks until the live subscription is ready, the manager
// closes, or ReadyTimeout elapses. Called and returned with m.mu held; the
// lock is released while waiting.
func (m *mux) awaitReadyLocked() error {
	deadline := time.NewTimer(m.cfg.ReadyTimeout)
	defer deadline.Stop()

	for {
		if m.closed {
			return ErrClosed
		}
		if m.state == StateSubscribed && m.live != nil {
			return nil
		}
		ready := m.ready

		m.mu.Unlock()
		select {
		case <-ready:
			m.mu.Lock()
		case <-deadline.C:
			m.mu.Lock()
			return ErrReadyTimeout
		}
	}
}

// liveAddLocked issues a fire-and-forget channel add against the live
// subscription. Failures are swallowed: the registry already holds the
// channel and the next resubscribe pass picks it up.
func (m *mux) liveAddLocked(channel string) {
	if m.live == nil {
		return
	}
	if err := m.live.Add(m.ctx, channel); err != nil {
		m.log.Debug().Err(err).Str("channel", channel).Msg("live channel add failed, will reconcile on resubscribe")
	}
}

// liveRemoveLocked mirrors liveAddLocked for channel removal. A failure here
// can leave the channel subscribed with zero listeners until the next
// resubscribe; messages arriving in that window are dropped by dispatch.
func (m *mux) liveRemoveLocked(channel string) {
	if m.live == nil {
		return
	}
	if err := m.live.Remove(m.ctx, channel); err != nil {
		m.log.Debug().Err(err).Str("channel", channel).Msg("live channel remove failed, will reconcile on resubscribe")
	}
}

// close is the teardown protocol: mark closed, unsubscribe the live
// subscription, wait for the provider's zero-channels confirmation, stop the
// worker. Idempotent; never fails. The pool is left untouched.
func (m *mux) close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.state = StateClosing
	live := m.live
	unsub := m.unsub
	m.mu.Unlock()

	if live != nil {
		if err := live.UnsubscribeAll(m.ctx); err != nil {
			m.log.Warn().Err(err).Msg("unsubscribe on close failed")
		}
		select {
		case <-unsub:
		case <-time.After(m.cfg.CloseTimeout):
			m.log.Warn().Dur("timeout", m.cfg.CloseTimeout).Msg("timed out waiting for unsubscribe confirmation")
		}
	}

	m.cancel()

	m.mu.Lock()
	m.state = StateClosed
	started := m.started
	resubs := m.resubs
	m.mu.Unlock()

	if !started {
		m.doneOnce.Do(func() { close(m.done) })
	}
	m.log.Info().Int("resubscribes", resubs).Msg("subscription manager closed")
}

// markSubscribed records a successful (re)establishment: sentinel ack seen.
func (m *mux) markSubscribed() {
	m.mu.Lock()
	m.state = StateSubscribed
	m.resubs++
	n := m.resubs
	if !m.readyClosed {
		close(m.ready)
		m.readyClosed = true
	}
	m.mu.Unlock()

	m.cfg.Metrics.subscriptionEstablished(m.variant)
	if n > 1 {
		m.log.Info().Int("resubscribes", n).Msg("subscription re-established")
	} else {
		m.log.Debug().Msg("subscription established")
	}
}

// markUnsubscribed records the provider's zero-channels confirmation.
func (m *mux) markUnsubscribed() {
	m.mu.Lock()
	if !m.unsubClosed {
		close(m.unsub)
		m.unsubClosed = true
	}
	m.mu.Unlock()
}

func (m *mux) setPaused(v bool) {
	m.mu.Lock()
	m.paused = v
	m.mu.Unlock()
}

func (m *mux) isPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *mux) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mux) currentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mux) resubscribeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resubs
}

// snapshot returns a deep copy of the registry.
func (m *mux) snapshot() map[string][]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]any, len(m.registry))
	for channel, set := range m.registry {
		listeners := make([]any, 0, len(set))
		for l := range set {
			listeners = append(listeners, l)
		}
		out[channel] = listeners
	}
	return out
}
