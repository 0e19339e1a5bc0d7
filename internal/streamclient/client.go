// Package streamclient consumes the SSE event stream and feeds a
// subscription.Registry, reconnecting with exponential backoff.
package streamclient

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/darkden-lab/orderflow/internal/events"
	"github.com/darkden-lab/orderflow/internal/subscription"
)

// State is the connection state reported to the UI.
type State int

const (
	Connecting State = iota
	Live
	Reconnecting
	// Degraded means MaxAttempts consecutive attempts failed. The client
	// keeps retrying.
	Degraded
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case Reconnecting:
		return "reconnecting"
	case Degraded:
		return "degraded"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// maxFrameSize bounds a single SSE line.
const maxFrameSize = 1 << 20

var (
	ErrUnauthorized = errors.New("stream rejected the token")
	ErrIdle         = errors.New("stream went silent")
)

type Config struct {
	// URL is the stream endpoint, e.g. http://localhost:8080/api/stream.
	URL          string
	Token        string
	RestaurantID string

	HTTPClient     *http.Client
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int
	// IdleTimeout drops a connection that delivered nothing, heartbeats
	// included, for this long. Keep it above twice the server heartbeat.
	IdleTimeout time.Duration

	// OnState is called on every state change, from the Run goroutine.
	OnState func(State)
	// OnLive is called after each successful handshake, so callers can
	// re-fetch the lists they hold.
	OnLive func()
}

// Client reads one stream at a time and reconnects until its context ends.
// Every reconnect is a brand-new subscription on the server; events missed
// while disconnected are not replayed.
type Client struct {
	cfg      Config
	registry *subscription.Registry

	mu       sync.Mutex
	state    State
	attempts int
}

func New(cfg Config, registry *subscription.Registry) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 45 * time.Second
	}
	return &Client{cfg: cfg, registry: registry, state: Connecting}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.cfg.OnState != nil {
		c.cfg.OnState(s)
	}
}

// Run maintains the stream until ctx is cancelled. It returns early only
// when the server rejects the token.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}

		c.mu.Lock()
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		if attempt >= c.cfg.MaxAttempts {
			c.setState(Degraded)
		} else {
			c.setState(Reconnecting)
		}

		delay := c.backoff(attempt)
		log.Printf("streamclient: disconnected (attempt %d), reconnecting in %v: %v", attempt, delay, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff returns an exponential delay capped at MaxBackoff, with jitter in
// [d/2, d) so reconnecting clients spread out.
func (c *Client) backoff(attempt int) time.Duration {
	d := time.Duration(float64(c.cfg.InitialBackoff) * math.Pow(2, float64(attempt-1)))
	if d > c.cfg.MaxBackoff || d <= 0 {
		d = c.cfg.MaxBackoff
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	q := u.Query()
	if c.cfg.RestaurantID != "" {
		q.Set("restaurantId", c.cfg.RestaurantID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// stream runs one connection until it ends or stays idle for IdleTimeout.
func (c *Client) stream(ctx context.Context) error {
	target, err := c.streamURL()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var idle atomic.Bool
	timer := time.AfterFunc(c.cfg.IdleTimeout, func() {
		idle.Store(true)
		cancel()
	})
	defer timer.Stop()

	err = c.connect(ctx, target, func() { timer.Reset(c.cfg.IdleTimeout) })
	if idle.Load() {
		return fmt.Errorf("%w for %v", ErrIdle, c.cfg.IdleTimeout)
	}
	return err
}

func (c *Client) connect(ctx context.Context, target string, touch func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	return c.read(&idleReader{r: resp.Body, touch: touch})
}

// idleReader calls touch whenever bytes arrive.
type idleReader struct {
	r     io.Reader
	touch func()
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.touch()
	}
	return n, err
}

// read consumes SSE frames. Multi-line data fields are joined with "\n".
func (c *Client) read(body io.Reader) error {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	var data bytes.Buffer
	for sc.Scan() {
		line := sc.Bytes()
		switch {
		case len(line) == 0:
			if data.Len() > 0 {
				c.handle(data.Bytes())
				data.Reset()
			}
		case line[0] == ':':
			// comment, used as heartbeat
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimPrefix(bytes.TrimPrefix(line, []byte("data:")), []byte(" ")))
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return errors.New("stream closed by server")
}

func (c *Client) handle(frame []byte) {
	ev, err := events.Decode(frame)
	if err != nil {
		log.Printf("streamclient: discarding frame: %v", err)
		return
	}
	if ev.Kind == events.KindConnected {
		c.mu.Lock()
		c.attempts = 0
		c.mu.Unlock()
		c.setState(Live)
		if c.cfg.OnLive != nil {
			c.cfg.OnLive()
		}
		return
	}
	// Dispatch logs each handler failure itself.
	c.registry.Dispatch(ev)
}
