package pubsub

import (
	"context"
	"errors"
	"sync"
)

// Sentinel errors surfaced by the in-process provider.
var (
	// ErrPoolClosed is returned once a LocalPool has been closed.
	ErrPoolClosed = errors.New("local pool is closed")

	// ErrConnectionDropped is the receive error on subscriptions killed by
	// DropConnections.
	ErrConnectionDropped = errors.New("connection dropped")
)

var errSubClosed = errors.New("subscription closed")

const localEventBuffer = 128

// LocalPool is an in-process Pool. It delivers published messages to every
// open subscription that covers the channel and fabricates the same ack
// stream a real server would, so the manager behaves identically on top of
// it. Useful for single-process deployments and as a deterministic test
// double: DropConnections simulates a server failure without a network.
type LocalPool struct {
	mu      sync.Mutex
	subs    map[*localSub]struct{}
	closed  bool
	dropped int
}

// NewLocalPool returns an empty pool.
func NewLocalPool() *LocalPool {
	return &LocalPool{subs: make(map[*localSub]struct{})}
}

// Acquire hands out a connection handle, or ErrPoolClosed.
func (p *LocalPool) Acquire(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	return &localConn{pool: p}, nil
}

// Closed reports whether Close has been called.
func (p *LocalPool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Publish delivers payload to every open subscription covering channel and
// returns the number of deliveries, mirroring the PUBLISH reply.
func (p *LocalPool) Publish(channel, payload string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for s := range p.subs {
		if _, ok := s.channels[channel]; !ok {
			continue
		}
		if s.enqueueLocked(&Message{Channel: channel, Payload: payload}) {
			n++
		}
	}
	return n
}

// DropConnections kills every open subscription with ErrConnectionDropped,
// as a crashed server would, and returns how many were dropped. Queued
// events are still delivered before the receive error surfaces.
func (p *LocalPool) DropConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.subs)
	for s := range p.subs {
		s.dieLocked(ErrConnectionDropped)
		delete(p.subs, s)
	}
	return n
}

// ActiveSubscriptions returns the number of open subscriptions.
func (p *LocalPool) ActiveSubscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// SubscribedChannels returns the union of channels covered by open
// subscriptions.
func (p *LocalPool) SubscribedChannels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[string]struct{})
	for s := range p.subs {
		for ch := range s.channels {
			seen[ch] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for ch := range seen {
		out = append(out, ch)
	}
	return out
}

// Dropped returns the number of events discarded because a subscription's
// buffer was full.
func (p *LocalPool) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close shuts the pool and kills every open subscription with ErrPoolClosed.
func (p *LocalPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for s := range p.subs {
		s.dieLocked(ErrPoolClosed)
		delete(p.subs, s)
	}
}

type localConn struct {
	pool *LocalPool
}

func (c *localConn) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	if len(channels) == 0 {
		return nil, errors.New("at least one channel is required")
	}
	p := c.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	s := &localSub{
		pool:     p,
		channels: make(map[string]struct{}, len(channels)),
		events:   make(chan Event, localEventBuffer),
		dead:     make(chan struct{}),
	}
	for _, ch := range channels {
		s.channels[ch] = struct{}{}
		s.enqueueLocked(&Ack{Op: OpSubscribe, Channel: ch, Count: len(s.channels)})
	}
	p.subs[s] = struct{}{}
	return s, nil
}

func (c *localConn) Release() error {
	return nil
}

// localSub queues acks and messages under the pool lock, so an event
// published after a mutating call returned is guaranteed to be seen by the
// receiver. channels is guarded by pool.mu.
type localSub struct {
	pool     *LocalPool
	channels map[string]struct{}
	events   chan Event
	dead     chan struct{}
	deadErr  error
}

func (s *localSub) Receive(ctx context.Context) (Event, error) {
	// Queued events outrank death: deliver everything enqueued before the
	// drop, the way a socket buffer would.
	select {
	case ev := <-s.events:
		return ev, nil
	default:
	}
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.dead:
		select {
		case ev := <-s.events:
			return ev, nil
		default:
		}
		return nil, s.deadErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *localSub) Add(ctx context.Context, channels ...string) error {
	p := s.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.deadErr != nil {
		return s.deadErr
	}
	for _, ch := range channels {
		s.channels[ch] = struct{}{}
		s.enqueueLocked(&Ack{Op: OpSubscribe, Channel: ch, Count: len(s.channels)})
	}
	return nil
}

func (s *localSub) Remove(ctx context.Context, channels ...string) error {
	p := s.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.deadErr != nil {
		return s.deadErr
	}
	for _, ch := range channels {
		delete(s.channels, ch)
		s.enqueueLocked(&Ack{Op: OpUnsubscribe, Channel: ch, Count: len(s.channels)})
	}
	return nil
}

func (s *localSub) UnsubscribeAll(ctx context.Context) error {
	p := s.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.deadErr != nil {
		return s.deadErr
	}
	if len(s.channels) == 0 {
		// A server acks an empty unsubscribe with a single zero-count reply.
		s.enqueueLocked(&Ack{Op: OpUnsubscribe, Count: 0})
		return nil
	}
	for ch := range s.channels {
		delete(s.channels, ch)
		s.enqueueLocked(&Ack{Op: OpUnsubscribe, Channel: ch, Count: len(s.channels)})
	}
	return nil
}

func (s *localSub) Close() error {
	p := s.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	s.dieLocked(errSubClosed)
	delete(p.subs, s)
	return nil
}

// enqueueLocked requires pool.mu. A full buffer drops the event and bumps
// the pool's drop counter.
func (s *localSub) enqueueLocked(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
		s.pool.dropped++
		return false
	}
}

// dieLocked requires pool.mu. Idempotent.
func (s *localSub) dieLocked(err error) {
	if s.deadErr != nil {
		return
	}
	s.deadErr = err
	close(s.dead)
}
