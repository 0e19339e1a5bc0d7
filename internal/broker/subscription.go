package broker

import (
	"sync"
)

type deliverResult int

const (
	deliverOK deliverResult = iota
	deliverOverflow
	deliverClosed
)

// Subscription is the broker side of one live connection. Encoded events
// arrive on C in publish order; Done is closed when the subscription ends,
// after which Err tells why.
type Subscription struct {
	ID     string
	filter Filter

	mu     sync.Mutex
	send   chan []byte
	done   chan struct{}
	closed bool
	err    error
}

func newSubscription(id string, f Filter, size int) *Subscription {
	return &Subscription{
		ID:     id,
		filter: f,
		send:   make(chan []byte, size),
		done:   make(chan struct{}),
	}
}

// Filter returns the scope the subscription was opened with.
func (s *Subscription) Filter() Filter { return s.filter }

// C returns the channel of encoded events. It is closed with the
// subscription, after any buffered events.
func (s *Subscription) C() <-chan []byte { return s.send }

// Done is closed when the subscription is removed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns nil after a normal unsubscribe, ErrSlowConsumer after an
// eviction and ErrClosed when the broker shut down.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) deliver(data []byte) deliverResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return deliverClosed
	}
	select {
	case s.send <- data:
		return deliverOK
	default:
		return deliverOverflow
	}
}

// close ends the subscription once and reports whether this call did it.
func (s *Subscription) close(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	s.err = err
	close(s.done)
	close(s.send)
	return true
}
