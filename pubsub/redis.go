package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// RedisPool adapts a go-redis client to the Pool interface. The client's own
// connection pool does the pooling; Acquire adds a liveness check so a down
// server surfaces as an acquire failure the worker retries, instead of a
// half-open subscription.
//
// The client is owned by the caller and is never closed here.
type RedisPool struct {
	client *redis.Client
	closed atomic.Bool
}

// NewRedisPool wraps client. Works with Redis, Valkey, KeyDB and Dragonfly.
func NewRedisPool(client *redis.Client) (*RedisPool, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisPool{client: client}, nil
}

// Acquire pings the server and hands out a connection handle on success.
func (p *RedisPool) Acquire(ctx context.Context) (Conn, error) {
	if err := p.client.Ping(ctx).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			p.closed.Store(true)
		}
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &redisConn{client: p.client}, nil
}

// Closed reports whether the underlying client has been observed closed.
func (p *RedisPool) Closed() bool {
	return p.closed.Load()
}

type redisConn struct {
	client *redis.Client
}

func (c *redisConn) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	// go-redis defers dialing to the first Receive, which is where the
	// worker's pump surfaces connection errors.
	return &redisSub{ps: c.client.Subscribe(ctx, channels...)}, nil
}

// Release is a no-op: the subscription owns the dedicated connection and
// returns it to the client's pool when closed.
func (c *redisConn) Release() error {
	return nil
}

type redisSub struct {
	ps *redis.PubSub
}

func (s *redisSub) Receive(ctx context.Context) (Event, error) {
	for {
		msg, err := s.ps.Receive(ctx)
		if err != nil {
			return nil, err
		}
		switch v := msg.(type) {
		case *redis.Subscription:
			op := OpSubscribe
			if v.Kind == "unsubscribe" || v.Kind == "punsubscribe" {
				op = OpUnsubscribe
			}
			return &Ack{Op: op, Channel: v.Channel, Count: v.Count}, nil
		case *redis.Message:
			return &Message{Channel: v.Channel, Payload: v.Payload}, nil
		default:
			// Pongs and anything else the protocol grows are not events the
			// manager cares about.
			continue
		}
	}
}

func (s *redisSub) Add(ctx context.Context, channels ...string) error {
	return s.ps.Subscribe(ctx, channels...)
}

func (s *redisSub) Remove(ctx context.Context, channels ...string) error {
	return s.ps.Unsubscribe(ctx, channels...)
}

// UnsubscribeAll sends an argument-less unsubscribe, which the server
// answers with one ack per channel counting down to zero.
func (s *redisSub) UnsubscribeAll(ctx context.Context) error {
	return s.ps.Unsubscribe(ctx)
}

func (s *redisSub) Close() error {
	return s.ps.Close()
}
