package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/darkden-lab/orderflow/internal/dispatch"
	"github.com/darkden-lab/orderflow/internal/events"
)

// DefaultOutboxSize bounds the number of envelopes waiting to be sent.
const DefaultOutboxSize = 1024

const sendTimeout = 5 * time.Second

var ErrClosed = errors.New("relay is closed")

// Envelope is the message exchanged between nodes. Event holds the encoded
// wire envelope exactly as local subscribers receive it.
type Envelope struct {
	Origin   string            `json:"origin"`
	Kind     events.Kind       `json:"kind"`
	Audience dispatch.Audience `json:"audience"`
	Event    json.RawMessage   `json:"event"`
}

// Transport moves encoded envelopes between nodes.
type Transport interface {
	// Send publishes one message to every node.
	Send(ctx context.Context, msg []byte) error
	// Receive calls handle for each message until ctx is cancelled or the
	// transport fails.
	Receive(ctx context.Context, handle func(msg []byte)) error
	Close() error
}

// Deliverer fans out an encoded event to local subscribers.
type Deliverer interface {
	Deliver(kind events.Kind, aud dispatch.Audience, data []byte) int
}

// Relay forwards local publications to a Transport and delivers messages
// from other nodes to the local broker. Forward never blocks: when the
// outbox is full the envelope is dropped and logged.
type Relay struct {
	node      string
	transport Transport
	local     Deliverer
	outbox    chan []byte

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	sendWG sync.WaitGroup
	recvWG sync.WaitGroup
}

// New creates a Relay for node. Call Start to begin sending and receiving.
func New(node string, t Transport, local Deliverer, outboxSize int) *Relay {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		node:      node,
		transport: t,
		local:     local,
		outbox:    make(chan []byte, outboxSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the send and receive loops.
func (r *Relay) Start() {
	r.sendWG.Add(1)
	r.recvWG.Add(1)
	go r.sendLoop()
	go r.receiveLoop()
}

// Forward implements broker.Relay.
func (r *Relay) Forward(kind events.Kind, aud dispatch.Audience, data []byte) {
	msg, err := json.Marshal(Envelope{Origin: r.node, Kind: kind, Audience: aud, Event: data})
	if err != nil {
		log.Printf("relay: failed to marshal %s envelope: %v", kind, err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.outbox <- msg:
	default:
		log.Printf("relay: outbox full, dropping %s event", kind)
	}
}

func (r *Relay) sendLoop() {
	defer r.sendWG.Done()
	for msg := range r.outbox {
		ctx, cancel := context.WithTimeout(r.ctx, sendTimeout)
		if err := r.transport.Send(ctx, msg); err != nil {
			log.Printf("relay: send failed: %v", err)
		}
		cancel()
	}
}

func (r *Relay) receiveLoop() {
	defer r.recvWG.Done()
	for {
		err := r.transport.Receive(r.ctx, r.handle)
		if r.ctx.Err() != nil {
			return
		}
		log.Printf("relay: receive stopped: %v, retrying", err)
		select {
		case <-r.ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (r *Relay) handle(msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		log.Printf("relay: discarding malformed envelope: %v", err)
		return
	}
	if env.Origin == r.node {
		return
	}
	if !env.Kind.Known() || len(env.Event) == 0 {
		log.Printf("relay: discarding envelope from %s with kind %q", env.Origin, env.Kind)
		return
	}
	r.local.Deliver(env.Kind, env.Audience, env.Event)
}

// Close flushes the outbox, stops both loops and closes the transport.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.outbox)
	r.mu.Unlock()

	flushed := make(chan struct{})
	go func() {
		r.sendWG.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-time.After(2 * sendTimeout):
		log.Printf("relay: close timed out with %d envelopes pending", len(r.outbox))
	}
	r.cancel()
	r.recvWG.Wait()

	if err := r.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}
