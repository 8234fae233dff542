package pubsub

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied by NewManager and NewBinaryManager for zero Config fields.
const (
	// DefaultReadyTimeout bounds how long Subscribe waits for the live
	// subscription to become ready.
	DefaultReadyTimeout = 10 * time.Second
	// DefaultCloseTimeout bounds how long Close waits for the provider to
	// confirm unsubscription.
	DefaultCloseTimeout = 10 * time.Second
	// DefaultRetryInterval paces resubscription attempts after failures.
	DefaultRetryInterval = time.Second
)

// Config holds manager configuration. The zero value is usable: zero fields
// take the defaults above, logging is disabled, metrics are off and listener
// invocations run inline on the worker goroutine.
type Config struct {
	// ReadyTimeout bounds the wait inside Subscribe for first readiness.
	ReadyTimeout time.Duration

	// CloseTimeout bounds the wait inside Close for the provider's
	// zero-channels confirmation.
	CloseTimeout time.Duration

	// RetryInterval is the minimum spacing between subscription attempts.
	RetryInterval time.Duration

	// EagerInit starts the worker goroutine at construction instead of on
	// the first Subscribe call.
	EagerInit bool

	// Executor runs listener invocations. Nil means inline on the worker
	// goroutine. The executor is owned by the caller; managers never close
	// it.
	Executor Executor

	// Logger receives manager events. Nil disables logging.
	Logger *zerolog.Logger

	// Metrics receives instrumentation. Nil disables it.
	Metrics *Metrics
}

func (c Config) withDefaults() Config {
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = DefaultCloseTimeout
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.Executor == nil {
		c.Executor = inlineExecutor{}
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}
