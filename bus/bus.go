// bus.go
package bus

import (
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a slash-separated path such as "reader/overrun".
// A final "#" segment matches that prefix and any deeper path.
type Topic string

// T joins path segments into a Topic.
func T(parts ...string) Topic { return Topic(strings.Join(parts, "/")) }

// Matches reports whether a concrete topic is covered by the pattern t.
func (t Topic) Matches(topic Topic) bool {
	if t == topic {
		return true
	}
	if t == "#" {
		return true
	}
	if strings.HasSuffix(string(t), "/#") {
		prefix := string(t[:len(t)-1]) // keep the trailing slash
		return strings.HasPrefix(string(topic), prefix) || string(topic) == prefix[:len(prefix)-1]
	}
	return false
}

func (t Topic) wildcard() bool { return t == "#" || strings.HasSuffix(string(t), "/#") }

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// deliver enqueues msg, dropping the oldest queued message when full.
func (s *Subscription) deliver(msg *Message) {
	for {
		select {
		case s.ch <- msg:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu       sync.Mutex
	exact    map[Topic][]*Subscription
	wild     []*Subscription
	retained map[Topic]*Message
	qLen     int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{
		exact:    make(map[Topic][]*Subscription),
		retained: make(map[Topic]*Message),
		qLen:     queueLen,
	}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.topic.wildcard() {
		b.wild = append(b.wild, sub)
		for t, m := range b.retained {
			if sub.topic.Matches(t) {
				sub.deliver(m)
			}
		}
		return
	}
	b.exact[sub.topic] = append(b.exact[sub.topic], sub)
	if m := b.retained[sub.topic]; m != nil {
		sub.deliver(m)
	}
}

// Publish delivers a message to all subscribers of its topic.
// A retained message with a nil payload clears the retained slot.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.exact[msg.Topic] {
		sub.deliver(msg)
	}
	for _, sub := range b.wild {
		if sub.topic.Matches(msg.Topic) {
			sub.deliver(msg)
		}
	}

	if msg.Retained {
		if msg.Payload == nil {
			delete(b.retained, msg.Topic)
		} else {
			b.retained[msg.Topic] = msg
		}
	}
}

func (b *Bus) unsubscribe(sub *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.topic.wildcard() {
		for i, s := range b.wild {
			if s == sub {
				b.wild = append(b.wild[:i], b.wild[i+1:]...)
				return true
			}
		}
		return false
	}
	subs := b.exact[sub.topic]
	for i, s := range subs {
		if s == sub {
			subs = append(subs[:i], subs[i+1:]...)
			if len(subs) == 0 {
				delete(b.exact, sub.topic)
			} else {
				b.exact[sub.topic] = subs
			}
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

func (c *Connection) ID() string { return c.id }

// NewMessage builds a message for Publish.
func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection and closes its channel.
// Calling it twice is harmless.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	if c.bus.unsubscribe(sub) {
		close(sub.ch)
	}
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		if c.bus.unsubscribe(sub) {
			close(sub.ch)
		}
	}
}
