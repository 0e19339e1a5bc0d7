package stream

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/darkden-lab/orderflow/internal/auth"
	"github.com/darkden-lab/orderflow/internal/broker"
	"github.com/darkden-lab/orderflow/internal/events"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// DefaultHeartbeat is the keep-alive interval used when none is configured.
const DefaultHeartbeat = 20 * time.Second

// Handler serves the live event stream over SSE and WebSocket. Every
// accepted request becomes one broker subscription, scoped by the caller's
// token, that lives exactly as long as the connection.
type Handler struct {
	broker     *broker.Broker
	jwtService *auth.JWTService
	heartbeat  time.Duration
	upgrader   websocket.Upgrader
}

func NewHandler(b *broker.Broker, jwtService *auth.JWTService, heartbeat time.Duration, allowedOrigins []string) *Handler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Handler{
		broker:     b,
		jwtService: jwtService,
		heartbeat:  heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// RegisterRoutes wires the stream endpoints. Authentication is done inside
// the handlers because EventSource cannot send headers.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/stream", h.ServeSSE).Methods(http.MethodGet)
	r.HandleFunc("/ws/stream", h.ServeWS).Methods(http.MethodGet)
}

var errScope = errors.New("restaurant outside token scope")

// filter derives the subscription scope from the token. A token bound to a
// restaurant pins the stream to it; clients and administrators may pick the
// restaurant with the `restaurantId` query parameter.
func filter(claims *auth.Claims, r *http.Request) (broker.Filter, error) {
	f := broker.Filter{
		RestaurantID: claims.RestaurantID,
		Role:         claims.Role,
		UserID:       claims.UserID,
	}
	q := r.URL.Query().Get("restaurantId")
	switch {
	case q == "" || q == f.RestaurantID:
	case f.RestaurantID == "" || claims.Role == fulfillment.RoleAdministrator:
		f.RestaurantID = q
	default:
		return broker.Filter{}, errScope
	}
	return f, nil
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (broker.Filter, bool) {
	token := auth.StreamToken(r)
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return broker.Filter{}, false
	}
	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return broker.Filter{}, false
	}
	f, err := filter(claims, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return broker.Filter{}, false
	}
	return f, true
}

// ServeSSE handles GET /api/stream.
func (h *Handler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	f, ok := h.authorize(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	h.serve(r.Context(), uuid.New().String(), f, newSSEConn(w))
}

// ServeWS handles GET /ws/stream.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	f, ok := h.authorize(w, r)
	if !ok {
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader already wrote the error response.
		return
	}
	defer ws.Close()

	// A hijacked connection no longer cancels the request context, so the
	// read pump owns the connection's lifetime.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	connID := uuid.New().String()
	go readPump(ws, connID, cancel)

	h.serve(ctx, connID, f, &wsConn{ws: ws})

	ws.SetWriteDeadline(time.Now().Add(writeWait))
	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump discards inbound messages and keeps the read deadline fresh on
// pongs. It cancels the connection when the peer goes away.
func readPump(ws *websocket.Conn, connID string, cancel context.CancelFunc) {
	defer cancel()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("stream: client %s read error: %v", connID, err)
			}
			return
		}
	}
}

// serve runs one connection: handshake, subscribe, then forward events and
// heartbeats until the peer leaves, a write fails or the broker drops the
// subscription. The subscription is removed before serve returns.
func (h *Handler) serve(ctx context.Context, connID string, f broker.Filter, c conn) {
	hello, err := events.Encode(events.New(events.Connected{ConnectionID: connID}))
	if err != nil {
		log.Printf("stream: client %s handshake encode failed: %v", connID, err)
		return
	}
	if err := c.writeEvent(hello); err != nil {
		log.Printf("stream: client %s handshake failed: %v", connID, err)
		return
	}

	sub, err := h.broker.Subscribe(connID, f)
	if err != nil {
		log.Printf("stream: client %s subscribe failed: %v", connID, err)
		return
	}
	defer h.broker.Unsubscribe(connID)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			dropped(connID, sub)
			return
		case data, ok := <-sub.C():
			// Buffered events of an evicted subscription are not written.
			if !ok || ended(sub) {
				dropped(connID, sub)
				return
			}
			if err := c.writeEvent(data); err != nil {
				log.Printf("stream: client %s write error: %v", connID, err)
				return
			}
		case <-ticker.C:
			if err := c.writeHeartbeat(); err != nil {
				log.Printf("stream: client %s heartbeat failed: %v", connID, err)
				return
			}
		}
	}
}

func ended(sub *broker.Subscription) bool {
	select {
	case <-sub.Done():
		return true
	default:
		return false
	}
}

func dropped(connID string, sub *broker.Subscription) {
	if err := sub.Err(); err != nil {
		log.Printf("stream: client %s dropped: %v", connID, err)
	}
}
