package pubsub

// Op is the kind of provider acknowledgment.
type Op string

const (
	OpSubscribe   Op = "subscribe"
	OpUnsubscribe Op = "unsubscribe"
)

// Event is a single item produced by Subscription.Receive: either an Ack or
// a Message.
type Event interface {
	isEvent()
}

// Ack is a provider acknowledgment of a channel being added to or removed
// from the live subscription. Count is the number of channels the connection
// is subscribed to after the operation; an unsubscribe Ack with Count zero
// confirms the subscription is fully torn down.
type Ack struct {
	Op      Op
	Channel string
	Count   int
}

func (*Ack) isEvent() {}

// Message is a payload published to a channel the live subscription covers.
type Message struct {
	Channel string
	Payload string
}

func (*Message) isEvent() {}
