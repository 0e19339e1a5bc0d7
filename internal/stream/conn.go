package stream

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/darkden-lab/orderflow/internal/events"
)

const (
	// writeWait is the maximum time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
	// pongWait is the maximum time to wait for a pong reply from the peer.
	pongWait = 60 * time.Second
	// maxMessageSize is the maximum inbound WebSocket message size in bytes.
	maxMessageSize = 512
)

// conn writes encoded events to one peer. Both methods are called from the
// connection's own goroutine only.
type conn interface {
	writeEvent(data []byte) error
	writeHeartbeat() error
}

// sseConn frames events as `data: <json>\n\n` and heartbeats as an SSE
// comment.
type sseConn struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSEConn(w http.ResponseWriter) *sseConn {
	return &sseConn{w: w, rc: http.NewResponseController(w)}
}

func (c *sseConn) write(frame []byte) error {
	// The server's WriteTimeout would otherwise cut the stream.
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeWait)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	return c.rc.Flush()
}

func (c *sseConn) writeEvent(data []byte) error { return c.write(events.Frame(data)) }
func (c *sseConn) writeHeartbeat() error        { return c.write(events.Heartbeat) }

// wsConn sends one JSON envelope per text frame and heartbeats as ping
// control frames.
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) writeEvent(data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) writeHeartbeat() error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// originChecker validates the Origin header against allowed. Requests
// without an Origin header (same-origin or non-browser clients) pass.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}
