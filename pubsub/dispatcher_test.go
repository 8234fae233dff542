package pubsub

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolExecutor_Defaults(t *testing.T) {
	e := NewPoolExecutor(0, 0)
	defer e.Close()

	var n atomic.Int32
	e.Execute(func() { n.Add(1) })

	require.Eventually(t, func() bool {
		return n.Load() == 1
	}, waitFor, 5*time.Millisecond)
}

func TestPoolExecutor_RunsAllTasks(t *testing.T) {
	e := NewPoolExecutor(4, 16)
	defer e.Close()

	var n atomic.Int32
	for i := 0; i < 50; i++ {
		e.Execute(func() { n.Add(1) })
	}

	require.Eventually(t, func() bool {
		return n.Load() == 50
	}, waitFor, 5*time.Millisecond)
}

func TestPoolExecutor_CloseDrainsQueue(t *testing.T) {
	e := NewPoolExecutor(1, 64)

	var n atomic.Int32
	for i := 0; i < 30; i++ {
		e.Execute(func() {
			time.Sleep(time.Millisecond)
			n.Add(1)
		})
	}

	e.Close()
	assert.Equal(t, int32(30), n.Load())
}

func TestPoolExecutor_CloseIsIdempotent(t *testing.T) {
	e := NewPoolExecutor(2, 4)
	e.Close()
	e.Close()
}

func TestPoolExecutor_ExecuteAfterClose(t *testing.T) {
	e := NewPoolExecutor(2, 4)
	e.Close()

	var n atomic.Int32
	// Must neither block nor run.
	e.Execute(func() { n.Add(1) })

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, n.Load())
}

func TestManager_InlineExecutorPreservesOrder(t *testing.T) {
	pool := NewLocalPool()
	defer pool.Close()
	m := newTestManager(t, pool, testConfig())

	received := make(chan string, 8)
	_, err := m.Subscribe(captureListener(received), "seq")
	require.NoError(t, err)

	pool.Publish("seq", "1")
	pool.Publish("seq", "2")
	pool.Publish("seq", "3")

	expectPayload(t, received, "1")
	expectPayload(t, received, "2")
	expectPayload(t, received, "3")
}

func TestManager_SlowListenerDoesNotBlockOthers(t *testing.T) {
	pool := NewLocalPool()
	defer pool.Close()

	exec := NewPoolExecutor(4, 64)
	defer exec.Close()

	cfg := testConfig()
	cfg.Executor = exec
	m := newTestManager(t, pool, cfg)

	// Unblock the stuck listener before the executor drains on Close.
	release := make(chan struct{})
	defer close(release)

	started := make(chan struct{}, 8)
	_, err := m.Subscribe(ListenerFunc(func(string, string) error {
		started <- struct{}{}
		<-release
		return nil
	}), "ch")
	require.NoError(t, err)

	fast := make(chan string, 8)
	_, err = m.Subscribe(captureListener(fast), "ch")
	require.NoError(t, err)

	pool.Publish("ch", "msg")

	// The stuck listener holds one worker; the other listener still runs.
	expectPayload(t, fast, "msg")
	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("slow listener never started")
	}
}
