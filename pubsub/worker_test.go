package pubsub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// failingPool rejects every acquire and counts the attempts.
type failingPool struct {
	err      error
	mu       sync.Mutex
	attempts int
}

func (p *failingPool) Acquire(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	p.attempts++
	p.mu.Unlock()
	return nil, p.err
}

func (p *failingPool) Closed() bool { return false }

func (p *failingPool) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// fakePool, fakeConn and fakeSub script provider behavior per call. Nil
// function fields fall back to succeeding no-ops.
type fakePool struct {
	acquire  func(ctx context.Context) (Conn, error)
	closedFn func() bool
}

func (p *fakePool) Acquire(ctx context.Context) (Conn, error) { return p.acquire(ctx) }

func (p *fakePool) Closed() bool {
	if p.closedFn == nil {
		return false
	}
	return p.closedFn()
}

type fakeConn struct {
	subscribe func(ctx context.Context, channels ...string) (Subscription, error)
}

func (c *fakeConn) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	return c.subscribe(ctx, channels...)
}

func (c *fakeConn) Release() error { return nil }

type fakeSub struct {
	receive        func(ctx context.Context) (Event, error)
	add            func(ctx context.Context, channels ...string) error
	remove         func(ctx context.Context, channels ...string) error
	unsubscribeAll func(ctx context.Context) error
	closeFn        func() error
}

func (s *fakeSub) Receive(ctx context.Context) (Event, error) { return s.receive(ctx) }

func (s *fakeSub) Add(ctx context.Context, channels ...string) error {
	if s.add == nil {
		return nil
	}
	return s.add(ctx, channels...)
}

func (s *fakeSub) Remove(ctx context.Context, channels ...string) error {
	if s.remove == nil {
		return nil
	}
	return s.remove(ctx, channels...)
}

func (s *fakeSub) UnsubscribeAll(ctx context.Context) error {
	if s.unsubscribeAll == nil {
		return nil
	}
	return s.unsubscribeAll(ctx)
}

func (s *fakeSub) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// scriptedSub replays queued events, then blocks until the context ends.
func scriptedSub(events ...Event) *fakeSub {
	queue := make(chan Event, len(events))
	for _, ev := range events {
		queue <- ev
	}
	return &fakeSub{
		receive: func(ctx context.Context) (Event, error) {
			select {
			case ev := <-queue:
				return ev, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

func TestManager_RecoversFromAcquireFailures(t *testing.T) {
	pool := NewLocalPool()
	defer pool.Close()

	var remaining atomic.Int32
	remaining.Store(2)
	flaky := &fakePool{
		acquire: func(ctx context.Context) (Conn, error) {
			if remaining.Add(-1) >= 0 {
				return nil, errors.New("transient failure")
			}
			return pool.Acquire(ctx)
		},
		closedFn: pool.Closed,
	}

	m := newTestManager(t, flaky, testConfig())

	received := make(chan string, 8)
	_, err := m.Subscribe(captureListener(received), "ch")
	require.NoError(t, err)

	assert.Equal(t, StateSubscribed, m.State())
	assert.Equal(t, 1, m.ResubscribeCount())

	pool.Publish("ch", "recovered")
	expectPayload(t, received, "recovered")
}

func TestManager_UnsolicitedZeroCountAckTriggersResubscribe(t *testing.T) {
	pool := NewLocalPool()
	defer pool.Close()

	// The first connection acks the sentinel and then reports zero
	// subscribed channels, a clean end the worker answers by resubscribing.
	var used atomic.Bool
	fp := &fakePool{
		acquire: func(ctx context.Context) (Conn, error) {
			if used.CompareAndSwap(false, true) {
				sub := scriptedSub(
					&Ack{Op: OpSubscribe, Channel: sentinelChannel, Count: 1},
					&Ack{Op: OpUnsubscribe, Count: 0},
				)
				return &fakeConn{
					subscribe: func(ctx context.Context, channels ...string) (Subscription, error) {
						return sub, nil
					},
				}, nil
			}
			return pool.Acquire(ctx)
		},
		closedFn: pool.Closed,
	}

	m := newTestManager(t, fp, testConfig())

	received := make(chan string, 8)
	_, err := m.Subscribe(captureListener(received), "jobs")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return m.ResubscribeCount() >= 2
	}, waitFor, 10*time.Millisecond)
	assert.False(t, m.IsClosed())

	assert.Equal(t, 1, pool.Publish("jobs", "hello"))
	expectPayload(t, received, "hello")
}

func TestManager_WorkerPanicClosesManager(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fp := &fakePool{
		acquire: func(ctx context.Context) (Conn, error) {
			return &fakeConn{
				subscribe: func(ctx context.Context, channels ...string) (Subscription, error) {
					return &fakeSub{
						receive: func(ctx context.Context) (Event, error) {
							panic("provider bug")
						},
					}, nil
				},
			}, nil
		},
	}

	cfg := testConfig()
	cfg.EagerInit = true
	cfg.CloseTimeout = 50 * time.Millisecond
	m, err := NewManager(fp, cfg)
	require.NoError(t, err)

	// The crash must not leak: the worker's last act is closing the manager.
	select {
	case <-m.Done():
	case <-time.After(waitFor):
		t.Fatal("worker did not exit after panic")
	}
	assert.True(t, m.IsClosed())
	assert.Equal(t, StateClosed, m.State())
}

func TestManager_CloseWaitIsBounded(t *testing.T) {
	var unsubCalled atomic.Bool
	sub := scriptedSub(&Ack{Op: OpSubscribe, Channel: sentinelChannel, Count: 1})
	sub.unsubscribeAll = func(ctx context.Context) error {
		unsubCalled.Store(true)
		return nil // confirmation never arrives
	}

	fp := &fakePool{
		acquire: func(ctx context.Context) (Conn, error) {
			return &fakeConn{
				subscribe: func(ctx context.Context, channels ...string) (Subscription, error) {
					return sub, nil
				},
			}, nil
		},
	}

	cfg := testConfig()
	cfg.CloseTimeout = 100 * time.Millisecond
	m := newTestManager(t, fp, cfg)

	_, err := m.Subscribe(captureListener(make(chan string, 1)), "ch")
	require.NoError(t, err)

	start := time.Now()
	m.Close()
	elapsed := time.Since(start)

	assert.True(t, unsubCalled.Load())
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, waitFor)

	select {
	case <-m.Done():
	case <-time.After(waitFor):
		t.Fatal("worker did not exit")
	}
}

func TestManager_PoolCloseStopsWorker(t *testing.T) {
	pool := NewLocalPool()
	m := newTestManager(t, pool, testConfig())

	_, err := m.Subscribe(captureListener(make(chan string, 1)), "ch")
	require.NoError(t, err)

	pool.Close()

	// A dead pool means no resubscribe target: the worker gives up and
	// finishes the teardown itself.
	require.Eventually(t, m.IsClosed, waitFor, 10*time.Millisecond)
	select {
	case <-m.Done():
	case <-time.After(waitFor):
		t.Fatal("worker did not exit")
	}
}

func TestManager_RetriesArePaced(t *testing.T) {
	pool := &failingPool{err: errors.New("provider down")}

	cfg := testConfig()
	cfg.RetryInterval = 50 * time.Millisecond
	cfg.EagerInit = true
	m := newTestManager(t, pool, cfg)

	require.Eventually(t, func() bool {
		return pool.Attempts() >= 3
	}, waitFor, 10*time.Millisecond)

	// Paced retries, not a tight loop.
	assert.Less(t, pool.Attempts(), 100)
	assert.Contains(t, []State{StateConnecting, StateFailed}, m.State())
}
