// Package redismux wraps a go-redis client with resilient pub/sub
// subscription managers. Listeners registered through Subscribe keep
// receiving messages across connection failures: a single background worker
// per manager holds one blocking subscription and transparently resubscribes
// every registered channel when the connection is lost.
//
//	client, err := redismux.New("localhost:6379")
//	if err != nil {
//		log.Fatal().Err(err).Msg("connect failed")
//	}
//	defer client.Close()
//
//	l, err := client.Subscribe(redismux.ListenerFunc(func(channel, payload string) error {
//		fmt.Println(channel, payload)
//		return nil
//	}), "orders")
//
// All regular commands remain available through the embedded client. The
// pubsub package is the lower-level API for callers that bring their own
// provider.
package redismux

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/redismux-io/redismux/pubsub"
)

// Client is a go-redis client extended with one text and one binary
// subscription manager. The managers are created immediately but stay
// dormant, each starting its worker on its first Subscribe call unless
// WithEagerInit is given.
type Client struct {
	*redis.Client

	ownsClient bool
	text       *pubsub.Manager
	binary     *pubsub.BinaryManager
}

// New connects to addr with default client options and owns the resulting
// client: Close tears it down.
func New(addr string, opts ...Option) (*Client, error) {
	return newClient(redis.NewClient(&redis.Options{Addr: addr}), true, opts)
}

// NewFromURL connects using a redis:// or rediss:// URL, as accepted by
// redis.ParseURL.
func NewFromURL(url string, opts ...Option) (*Client, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return newClient(redis.NewClient(ropts), true, opts)
}

// NewFromClient wraps an existing client. The caller keeps ownership: Close
// shuts down the subscription managers and leaves the client open.
func NewFromClient(client *redis.Client, opts ...Option) (*Client, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return newClient(client, false, opts)
}

func newClient(client *redis.Client, owns bool, opts []Option) (*Client, error) {
	o := applyOptions(opts)

	pool := o.pool
	if pool == nil {
		var err error
		pool, err = pubsub.NewRedisPool(client)
		if err != nil {
			if owns {
				_ = client.Close()
			}
			return nil, err
		}
	}

	text, err := pubsub.NewManager(pool, o.cfg)
	if err != nil {
		if owns {
			_ = client.Close()
		}
		return nil, err
	}
	binary, err := pubsub.NewBinaryManager(pool, o.cfg)
	if err != nil {
		text.Close()
		if owns {
			_ = client.Close()
		}
		return nil, err
	}

	return &Client{
		Client:     client,
		ownsClient: owns,
		text:       text,
		binary:     binary,
	}, nil
}

// PubSub returns the text subscription manager.
func (c *Client) PubSub() *pubsub.Manager {
	return c.text
}

// BinaryPubSub returns the binary subscription manager.
func (c *Client) BinaryPubSub() *pubsub.BinaryManager {
	return c.binary
}

// Subscribe registers l for channel on the text manager. See
// pubsub.Manager.Subscribe.
func (c *Client) Subscribe(l pubsub.Listener, channel string) (pubsub.Listener, error) {
	return c.text.Subscribe(l, channel)
}

// Unsubscribe removes l from every channel it is registered on.
func (c *Client) Unsubscribe(l pubsub.Listener) (bool, error) {
	return c.text.Unsubscribe(l)
}

// SubscribeBinary registers l for channel on the binary manager.
func (c *Client) SubscribeBinary(l pubsub.BinaryListener, channel []byte) (pubsub.BinaryListener, error) {
	return c.binary.Subscribe(l, channel)
}

// UnsubscribeBinary removes l from every channel it is registered on.
func (c *Client) UnsubscribeBinary(l pubsub.BinaryListener) (bool, error) {
	return c.binary.Unsubscribe(l)
}

// Close shuts down both subscription managers and, when this Client created
// the underlying connection, the client too.
func (c *Client) Close() error {
	c.text.Close()
	c.binary.Close()
	if c.ownsClient {
		return c.Client.Close()
	}
	return nil
}
