package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darkden-lab/orderflow/internal/auth"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// okHandler is a simple handler that returns 200 OK.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	handler := AuthMiddleware(auth.NewJWTService("test-secret"))(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareInvalidFormat(t *testing.T) {
	handler := AuthMiddleware(auth.NewJWTService("test-secret"))(okHandler)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "NotBearer token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareTokenFromDifferentSecret(t *testing.T) {
	token, _ := auth.NewJWTService("attacker-secret").GenerateToken("admin", fulfillment.RoleAdministrator, "r1")
	handler := AuthMiddleware(auth.NewJWTService("real-secret"))(okHandler)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for foreign token, got %d", rec.Code)
	}
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	jwtSvc := auth.NewJWTService("test-secret")
	token, err := jwtSvc.GenerateToken("user-123", fulfillment.RoleWaiter, "r1")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	var claimsFromCtx *auth.Claims
	handler := AuthMiddleware(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claimsFromCtx, _ = auth.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if claimsFromCtx == nil {
		t.Fatal("expected claims in context")
	}
	if claimsFromCtx.Role != fulfillment.RoleWaiter || claimsFromCtx.RestaurantID != "r1" {
		t.Errorf("unexpected claims: %+v", claimsFromCtx)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role fulfillment.Role
		want int
	}{
		{fulfillment.RoleKitchen, http.StatusOK},
		{fulfillment.RoleOwner, http.StatusOK},
		{fulfillment.RoleWaiter, http.StatusForbidden},
		{fulfillment.RoleClient, http.StatusForbidden},
	}
	handler := RequireRole(fulfillment.RoleKitchen)(okHandler)

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(auth.ContextWithClaims(req.Context(), &auth.Claims{UserID: "u", Role: tt.role}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("role %s: expected %d, got %d", tt.role, tt.want, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without claims, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_BlocksOverLimit(t *testing.T) {
	// 1 RPS with burst of 2: first 2 pass, third should be blocked.
	handler := RateLimitMiddleware(1, 2)(okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/sales", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sales", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}

	// Another IP has its own bucket.
	req = httptest.NewRequest(http.MethodGet, "/api/sales", nil)
	req.RemoteAddr = "10.0.0.2:12345"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200 for a different IP, got %d", rr.Code)
	}
}

func TestBuckets_SweepKeepsLastSeen(t *testing.T) {
	b := &buckets{rps: 1, burst: 1}
	now := time.Now()
	if !b.allow("10.0.0.1", now) {
		t.Fatal("first request should pass")
	}
	if b.allow("10.0.0.1", now) {
		t.Error("second request in the same instant should be limited")
	}
	v, ok := b.m.Load("10.0.0.1")
	if !ok {
		t.Fatal("expected a bucket for the address")
	}
	if got := v.(*bucket).lastSeen.Load(); got != now.UnixNano() {
		t.Errorf("lastSeen = %d, want %d", got, now.UnixNano())
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("expected first forwarded address, got %q", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.1:5555"
	if got := clientIP(req); got != "192.168.1.1" {
		t.Errorf("expected remote address host, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000", "https://pos.example.com"}, okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/sales", nil)
	req.Header.Set("Origin", "https://pos.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://pos.example.com" {
		t.Errorf("unexpected allow-origin %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sales", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin for unknown origin, got %q", got)
	}
}
