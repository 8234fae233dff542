package pubsub

// Listener receives messages published to channels it is subscribed to.
// A returned error is logged and does not affect other listeners or the
// subscription itself.
//
// Listeners are registered by identity, not content: the value passed to
// Subscribe is the handle for Unsubscribe, and two distinct values are two
// independent registrations even if they wrap the same function.
type Listener interface {
	OnMessage(channel, payload string) error
}

// ListenerFunc wraps a function as a Listener. Each call returns a distinct
// value, so the result must be kept to unsubscribe later.
func ListenerFunc(fn func(channel, payload string) error) Listener {
	return &listenerFunc{fn: fn}
}

type listenerFunc struct {
	fn func(channel, payload string) error
}

func (l *listenerFunc) OnMessage(channel, payload string) error {
	return l.fn(channel, payload)
}

// BinaryListener is the byte-oriented counterpart of Listener.
type BinaryListener interface {
	OnMessage(channel, payload []byte) error
}

// BinaryListenerFunc wraps a function as a BinaryListener. Each call returns
// a distinct value.
func BinaryListenerFunc(fn func(channel, payload []byte) error) BinaryListener {
	return &binaryListenerFunc{fn: fn}
}

type binaryListenerFunc struct {
	fn func(channel, payload []byte) error
}

func (l *binaryListenerFunc) OnMessage(channel, payload []byte) error {
	return l.fn(channel, payload)
}

// BinaryChannel is a binary channel identifier usable as a map key. Go
// strings hold arbitrary bytes, so the conversion is lossless.
type BinaryChannel string

// Bytes returns the channel identifier as a byte slice.
func (c BinaryChannel) Bytes() []byte {
	return []byte(c)
}
