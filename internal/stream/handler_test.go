package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/darkden-lab/orderflow/internal/auth"
	"github.com/darkden-lab/orderflow/internal/broker"
	"github.com/darkden-lab/orderflow/internal/dispatch"
	"github.com/darkden-lab/orderflow/internal/events"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

const testSecret = "stream-test-secret"

type fixture struct {
	srv    *httptest.Server
	broker *broker.Broker
	jwt    *auth.JWTService
}

func newFixture(t *testing.T, heartbeat time.Duration) *fixture {
	t.Helper()
	b := broker.New(0)
	jwtSvc := auth.NewJWTService(testSecret)
	r := mux.NewRouter()
	NewHandler(b, jwtSvc, heartbeat, []string{"http://localhost:3000"}).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		b.Close()
		srv.Close()
	})
	return &fixture{srv: srv, broker: b, jwt: jwtSvc}
}

func (f *fixture) token(t *testing.T, role fulfillment.Role, restaurantID string) string {
	t.Helper()
	tok, err := f.jwt.GenerateToken("user-"+string(role), role, restaurantID)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

// waitForSubscribers polls until the broker holds n subscriptions.
func (f *fixture) waitForSubscribers(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.broker.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscriptions, have %d", n, f.broker.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func openSSE(t *testing.T, ctx context.Context, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

// readFrame returns the next SSE frame without its trailing blank line.
func readFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	type result struct {
		frame string
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		var lines []string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				ch <- result{err: err}
				return
			}
			line = strings.TrimRight(line, "\n")
			if line == "" {
				ch <- result{frame: strings.Join(lines, "\n")}
				return
			}
			lines = append(lines, line)
		}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("read frame: %v", res.err)
		}
		return res.frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE frame")
		return ""
	}
}

func TestSSE_HandshakeThenEvents(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp, r := openSSE(t, ctx, f.srv.URL+"/api/stream?token="+f.token(t, fulfillment.RoleKitchen, "r1"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	hello := readFrame(t, r)
	if !strings.HasPrefix(hello, `data: {"type":"connected"`) {
		t.Fatalf("expected connected handshake first, got %q", hello)
	}

	f.waitForSubscribers(t, 1)
	router := dispatch.NewRouter(f.broker)
	sale := fulfillment.NewSale("S1", "r1", []fulfillment.SaleItem{{MenuID: "m1", MenuName: "pizza", Quantity: 1}}, time.Now())
	if n := router.SaleCreated(sale); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}

	frame := readFrame(t, r)
	if !strings.HasPrefix(frame, `data: {"type":"sale:new","data":{"sale":{"id":"S1"`) {
		t.Errorf("unexpected frame %q", frame)
	}
}

func TestSSE_Heartbeat(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, r := openSSE(t, ctx, f.srv.URL+"/api/stream?token="+f.token(t, fulfillment.RoleWaiter, "r1"))
	readFrame(t, r)

	if frame := readFrame(t, r); frame != ": ping" {
		t.Errorf("expected heartbeat comment, got %q", frame)
	}
}

func TestSSE_DisconnectUnsubscribes(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	_, r := openSSE(t, ctx, f.srv.URL+"/api/stream?token="+f.token(t, fulfillment.RoleCashier, "r1"))
	readFrame(t, r)
	f.waitForSubscribers(t, 1)

	cancel()
	f.waitForSubscribers(t, 0)

	// Publishing after the disconnect reaches nobody.
	aud := dispatch.Audience{RestaurantID: "r1", Staff: true}
	if n := f.broker.Publish(events.New(events.OrderStatus{OrderID: "O1", Status: fulfillment.StatusReady}), aud); n != 0 {
		t.Errorf("expected 0 deliveries after disconnect, got %d", n)
	}
}

func TestSSE_ReconnectIsNewSubscription(t *testing.T) {
	f := newFixture(t, time.Minute)
	url := f.srv.URL + "/api/stream?token=" + f.token(t, fulfillment.RoleKitchen, "r1")

	ctx1, cancel1 := context.WithCancel(context.Background())
	_, r1 := openSSE(t, ctx1, url)
	first := readFrame(t, r1)
	cancel1()
	f.waitForSubscribers(t, 0)

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	_, r2 := openSSE(t, ctx2, url)
	second := readFrame(t, r2)

	if first == second {
		t.Errorf("expected a fresh connection id on reconnect, got %q twice", first)
	}
	f.waitForSubscribers(t, 1)
}

func TestSSE_Unauthorized(t *testing.T) {
	f := newFixture(t, time.Minute)

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"no token", "/api/stream", http.StatusUnauthorized},
		{"bad token", "/api/stream?token=garbage", http.StatusUnauthorized},
		{"foreign restaurant", "/api/stream?restaurantId=r2&token=" + f.token(t, fulfillment.RoleKitchen, "r1"), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(f.srv.URL + tt.url)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
	if n := f.broker.Len(); n != 0 {
		t.Errorf("rejected requests must not subscribe, have %d", n)
	}
}

func TestFilter_Scope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/stream?restaurantId=r9", nil)

	got, err := filter(&auth.Claims{UserID: "c1", Role: fulfillment.RoleClient}, req)
	if err != nil || got.RestaurantID != "r9" || got.UserID != "c1" {
		t.Errorf("client should choose its restaurant, got %+v (%v)", got, err)
	}

	got, err = filter(&auth.Claims{UserID: "a1", Role: fulfillment.RoleAdministrator, RestaurantID: "r1"}, req)
	if err != nil || got.RestaurantID != "r9" {
		t.Errorf("administrator should switch restaurants, got %+v (%v)", got, err)
	}

	if _, err := filter(&auth.Claims{UserID: "w1", Role: fulfillment.RoleWaiter, RestaurantID: "r1"}, req); err == nil {
		t.Error("staff must stay inside their restaurant")
	}
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestWS_HandshakeThenEvents(t *testing.T) {
	f := newFixture(t, time.Minute)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(f.srv, "/ws/stream?token="+f.token(t, fulfillment.RoleWaiter, "r1")), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	ev, err := events.Decode(msg)
	if err != nil || ev.Kind != events.KindConnected {
		t.Fatalf("expected connected handshake, got %s (%v)", msg, err)
	}

	f.waitForSubscribers(t, 1)
	aud := dispatch.Audience{RestaurantID: "r1", Queues: dispatch.NewQueueSet(dispatch.QueueWaiter)}
	f.broker.Publish(events.New(events.OrderStatus{OrderID: "O1", Status: fulfillment.StatusReady}), aud)

	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if want := `{"type":"order:status","data":{"orderId":"O1","status":"ready"}}`; string(msg) != want {
		t.Errorf("expected %s, got %s", want, msg)
	}

	conn.Close()
	f.waitForSubscribers(t, 0)
}

func TestWS_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, time.Minute)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(f.srv, "/ws/stream?token="+f.token(t, fulfillment.RoleOwner, "r1")), header)
	if err == nil {
		t.Fatal("expected handshake to fail for a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodGet, "/ws/stream", nil)
	if !check(req) {
		t.Error("requests without Origin should pass")
	}
	req.Header.Set("Origin", "HTTP://LOCALHOST:3000")
	if !check(req) {
		t.Error("origin comparison should ignore case")
	}
	req.Header.Set("Origin", "http://localhost:3001")
	if check(req) {
		t.Error("unexpected origin accepted")
	}
}

// stalledWriter is an SSE response whose second write (the first event
// after the handshake) blocks until release is closed.
type stalledWriter struct {
	header  http.Header
	mu      sync.Mutex
	frames  []string
	stalled chan struct{}
	release chan struct{}
}

func newStalledWriter() *stalledWriter {
	return &stalledWriter{
		header:  make(http.Header),
		stalled: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (w *stalledWriter) Header() http.Header { return w.header }
func (w *stalledWriter) WriteHeader(int)     {}
func (w *stalledWriter) Flush()              {}

func (w *stalledWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.frames = append(w.frames, string(p))
	n := len(w.frames)
	w.mu.Unlock()
	if n == 2 {
		close(w.stalled)
		<-w.release
	}
	return len(p), nil
}

func (w *stalledWriter) written() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.frames...)
}

func TestSSE_EvictedConnectionStopsWriting(t *testing.T) {
	b := broker.New(2)
	defer b.Close()
	h := NewHandler(b, auth.NewJWTService(testSecret), time.Minute, nil)

	w := newStalledWriter()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.serve(context.Background(), "slow", broker.Filter{RestaurantID: "r1", Role: fulfillment.RoleKitchen}, newSSEConn(w))
	}()

	deadline := time.Now().Add(2 * time.Second)
	for b.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("connection never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	aud := dispatch.Audience{RestaurantID: "r1", Staff: true}
	publish := func(id string) {
		b.Publish(events.New(events.OrderStatus{OrderID: id, Status: fulfillment.StatusReady}), aud)
	}
	publish("O1")
	select {
	case <-w.stalled:
	case <-time.After(2 * time.Second):
		t.Fatal("first event was never written")
	}

	// Two events fill the buffer, the third evicts.
	publish("O2")
	publish("O3")
	publish("O4")
	if n := b.Len(); n != 0 {
		t.Fatalf("expected the slow connection to be evicted, %d subscriptions left", n)
	}

	close(w.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("evicted connection was not closed")
	}

	frames := w.written()
	if len(frames) != 2 {
		t.Fatalf("expected only the handshake and the in-flight event, got %d frames: %q", len(frames), frames)
	}
	if !strings.Contains(frames[1], `"orderId":"O1"`) {
		t.Errorf("unexpected in-flight frame %q", frames[1])
	}
}
