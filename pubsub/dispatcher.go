package pubsub

import "sync"

// Executor runs listener invocations handed off by the dispatcher. The
// default (nil Config.Executor) runs them inline on the worker goroutine,
// which preserves provider delivery order across all channels. A concurrent
// executor trades that ordering for isolation from slow listeners.
type Executor interface {
	Execute(fn func())
}

type inlineExecutor struct{}

func (inlineExecutor) Execute(fn func()) {
	fn()
}

// PoolExecutor runs invocations on a fixed set of worker goroutines so one
// slow listener cannot starve the others. Execute blocks while the queue is
// full, which backpressures the subscription's receive loop instead of
// growing without bound.
type PoolExecutor struct {
	tasks chan func()
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewPoolExecutor starts workers goroutines sharing a queue of queueSize
// pending invocations. Non-positive arguments take defaults (4 workers,
// queue of 1000).
func NewPoolExecutor(workers, queueSize int) *PoolExecutor {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	e := &PoolExecutor{
		tasks: make(chan func(), queueSize),
		quit:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Execute queues fn for a worker. After Close it is a no-op.
func (e *PoolExecutor) Execute(fn func()) {
	select {
	case <-e.quit:
	case e.tasks <- fn:
	}
}

func (e *PoolExecutor) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.quit:
			// Drain what was queued before shutdown.
			for {
				select {
				case fn := <-e.tasks:
					fn()
				default:
					return
				}
			}
		case fn := <-e.tasks:
			fn()
		}
	}
}

// Close stops the workers after the queued invocations have run. Idempotent.
func (e *PoolExecutor) Close() {
	e.once.Do(func() {
		close(e.quit)
	})
	e.wg.Wait()
}
