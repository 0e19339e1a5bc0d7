package broker

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/darkden-lab/orderflow/internal/dispatch"
	"github.com/darkden-lab/orderflow/internal/events"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// DefaultBufferSize is the number of encoded events a subscription may hold
// before it is treated as a slow consumer.
const DefaultBufferSize = 256

// orderStripes is the number of locks used to keep publication FIFO per
// (restaurant, kind) without serializing unrelated streams.
const orderStripes = 64

var (
	ErrClosed              = errors.New("broker is closed")
	ErrSlowConsumer        = errors.New("subscriber buffer full")
	ErrDuplicateConnection = errors.New("connection already subscribed")
)

// Filter is the scope a connection subscribes with.
type Filter struct {
	RestaurantID string
	Role         fulfillment.Role
	UserID       string
	// BufferSize overrides the broker default when positive.
	BufferSize int
}

func (f Filter) subscriber() dispatch.Subscriber {
	return dispatch.Subscriber{RestaurantID: f.RestaurantID, Role: f.Role, UserID: f.UserID}
}

// Relay forwards locally published events to other nodes. Forward must not
// block.
type Relay interface {
	Forward(kind events.Kind, aud dispatch.Audience, data []byte)
}

// Broker fans published events out to live subscriptions. Events are encoded
// once per publish and forwarded as opaque bytes. A subscription whose buffer
// is full is evicted instead of blocking the publisher.
type Broker struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	closed     bool
	bufferSize int

	order [orderStripes]sync.Mutex

	relayMu sync.RWMutex
	relay   Relay
}

// New creates a Broker. A non-positive bufferSize selects DefaultBufferSize.
func New(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broker{
		subs:       make(map[string]*Subscription),
		bufferSize: bufferSize,
	}
}

// SetRelay attaches a relay that receives every locally published event.
func (b *Broker) SetRelay(r Relay) {
	b.relayMu.Lock()
	b.relay = r
	b.relayMu.Unlock()
}

// Subscribe registers a live subscription for connID. An empty connID gets a
// generated one. Callers must finish their handshake before subscribing:
// only events published after Subscribe returns are delivered.
func (b *Broker) Subscribe(connID string, f Filter) (*Subscription, error) {
	if connID == "" {
		connID = uuid.New().String()
	}
	size := f.BufferSize
	if size <= 0 {
		size = b.bufferSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if _, ok := b.subs[connID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateConnection, connID)
	}

	s := newSubscription(connID, f, size)
	b.subs[connID] = s
	log.Printf("broker: subscription %s registered (restaurant=%s role=%s user=%s)", connID, f.RestaurantID, f.Role, f.UserID)
	return s, nil
}

// Unsubscribe removes connID and closes its subscription. It is a no-op for
// unknown ids.
func (b *Broker) Unsubscribe(connID string) {
	b.mu.Lock()
	s, ok := b.subs[connID]
	if ok {
		delete(b.subs, connID)
	}
	b.mu.Unlock()

	if ok {
		s.close(nil)
		log.Printf("broker: subscription %s unregistered", connID)
	}
}

// Publish encodes ev and delivers it to every live subscription matching
// aud. It returns the number of subscriptions that received it and never
// blocks on a subscriber.
func (b *Broker) Publish(ev events.Event, aud dispatch.Audience) int {
	data, err := events.Encode(ev)
	if err != nil {
		log.Printf("broker: failed to encode %s event: %v", ev.Kind, err)
		return 0
	}
	n := b.Deliver(ev.Kind, aud, data)

	b.relayMu.RLock()
	r := b.relay
	b.relayMu.RUnlock()
	if r != nil {
		r.Forward(ev.Kind, aud, data)
	}
	return n
}

// Deliver fans out an already encoded event locally. Relays use it for
// events received from other nodes.
func (b *Broker) Deliver(kind events.Kind, aud dispatch.Audience, data []byte) int {
	lock := b.orderLock(aud, kind)
	lock.Lock()
	defer lock.Unlock()

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return 0
	}
	// Copy the matching set so no registry lock is held while sending.
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if aud.Matches(s.filter.subscriber()) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		switch s.deliver(data) {
		case deliverOK:
			delivered++
		case deliverOverflow:
			b.evict(s)
		}
	}
	return delivered
}

func (b *Broker) orderLock(aud dispatch.Audience, kind events.Kind) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(aud.RestaurantID))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	return &b.order[h.Sum32()%orderStripes]
}

func (b *Broker) evict(s *Subscription) {
	b.mu.Lock()
	if cur, ok := b.subs[s.ID]; ok && cur == s {
		delete(b.subs, s.ID)
	}
	b.mu.Unlock()

	if s.close(ErrSlowConsumer) {
		log.Printf("broker: evicted slow subscription %s (buffer=%d)", s.ID, cap(s.send))
	}
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription and rejects further subscriptions.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[string]*Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.close(ErrClosed)
	}
	return nil
}
