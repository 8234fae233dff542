package redismux

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/redismux-io/redismux/pubsub"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	cfg  pubsub.Config
	pool pubsub.Pool
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger routes subscription manager logs to l. Logging is off by
// default.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *options) {
		o.cfg.Logger = l
	}
}

// WithMetrics enables Prometheus instrumentation. One Metrics value serves
// both the text and binary managers.
func WithMetrics(m *pubsub.Metrics) Option {
	return func(o *options) {
		o.cfg.Metrics = m
	}
}

// WithExecutor runs listener invocations on e instead of inline on the
// worker goroutine.
//
//	exec := pubsub.NewPoolExecutor(8, 1000)
//	defer exec.Close()
//	client, err := redismux.New("localhost:6379", redismux.WithExecutor(exec))
func WithExecutor(e pubsub.Executor) Option {
	return func(o *options) {
		o.cfg.Executor = e
	}
}

// WithEagerInit starts both subscription workers at construction instead of
// on the first Subscribe call. Construction does not wait for them to
// connect.
func WithEagerInit() Option {
	return func(o *options) {
		o.cfg.EagerInit = true
	}
}

// WithReadyTimeout bounds how long Subscribe waits for a live subscription.
func WithReadyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.cfg.ReadyTimeout = d
	}
}

// WithCloseTimeout bounds how long Close waits for the provider's
// unsubscribe confirmation.
func WithCloseTimeout(d time.Duration) Option {
	return func(o *options) {
		o.cfg.CloseTimeout = d
	}
}

// WithRetryInterval paces resubscription attempts after connection loss.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		o.cfg.RetryInterval = d
	}
}

// WithPool routes subscriptions through a custom provider pool while
// commands keep using the client. Mainly useful for wrapping the default
// pool or substituting pubsub.NewLocalPool in tests.
func WithPool(p pubsub.Pool) Option {
	return func(o *options) {
		o.pool = p
	}
}
