// Package api exposes the fulfillment operations over HTTP. Every mutation
// commits before its event is published.
package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/orderflow/internal/auth"
	"github.com/darkden-lab/orderflow/internal/dispatch"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
	"github.com/darkden-lab/orderflow/internal/httputil"
	"github.com/darkden-lab/orderflow/internal/middleware"
	"github.com/darkden-lab/orderflow/internal/service"
)

// Handlers provides HTTP handlers for sales, orders, reservations and
// restaurants.
type Handlers struct {
	svc *service.Service
}

func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterPublicRoutes wires the endpoints that need no token.
func (h *Handlers) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/restaurants/{id}", h.GetRestaurant).Methods(http.MethodGet)
}

// RegisterRoutes wires the authenticated endpoints. r is expected to run
// the auth middleware.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/sales", h.CreateSale).Methods(http.MethodPost)
	r.HandleFunc("/api/sales", h.ListSales).Methods(http.MethodGet)
	r.HandleFunc("/api/sales/{id}", h.GetSale).Methods(http.MethodGet)
	r.HandleFunc("/api/sales/{id}/status", h.TransitionSale).Methods(http.MethodPatch)
	r.HandleFunc("/api/sales/{id}/items/{index}/status", h.TransitionItem).Methods(http.MethodPatch)
	r.HandleFunc("/api/queues/{queue}", h.ListQueue).Methods(http.MethodGet)

	r.HandleFunc("/api/orders", h.CreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/api/orders/{id}", h.GetOrder).Methods(http.MethodGet)
	r.HandleFunc("/api/orders/{id}/status", h.TransitionOrder).Methods(http.MethodPatch)

	r.HandleFunc("/api/reservations", h.CreateReservation).Methods(http.MethodPost)
	r.HandleFunc("/api/reservations", h.ListReservations).Methods(http.MethodGet)
	r.HandleFunc("/api/reservations/{id}/status", h.TransitionReservation).Methods(http.MethodPatch)

	r.HandleFunc("/api/restaurants/{id}", h.SaveRestaurant).Methods(http.MethodPut)
	r.HandleFunc("/api/restaurants/{id}/open", h.ToggleOpen).Methods(http.MethodPatch)
	r.HandleFunc("/api/restaurants/{id}/hours", h.UpdateHours).Methods(http.MethodPatch)
	r.HandleFunc("/api/restaurants/{id}/menu/{menuId}/availability", h.SetMenuAvailability).Methods(http.MethodPatch)

	r.HandleFunc("/api/announcements", h.Announce).Methods(http.MethodPost)
	r.HandleFunc("/api/notifications", h.Notify).Methods(http.MethodPost)
}

// Mount registers the public routes on r and the rest on a subrouter
// guarded by the JWT middleware. It returns the protected subrouter.
func (h *Handlers) Mount(r *mux.Router, jwtService *auth.JWTService) *mux.Router {
	h.RegisterPublicRoutes(r)
	protected := r.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(jwtService))
	h.RegisterRoutes(protected)
	return protected
}

// actor builds the caller from the JWT claims. ok is false when the request
// carries no claims.
func actor(r *http.Request) (service.Actor, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, Role: claims.Role, RestaurantID: claims.RestaurantID}, true
}

// restaurantScope returns the restaurantId query parameter, defaulting to
// the caller's own restaurant.
func restaurantScope(r *http.Request, a service.Actor) string {
	if id := r.URL.Query().Get("restaurantId"); id != "" {
		return id
	}
	return a.RestaurantID
}

type statusRequest struct {
	Status string `json:"status"`
}

// Health handles GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateSale handles POST /api/sales
func (h *Handlers) CreateSale(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req service.SaleInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RestaurantID == "" {
		req.RestaurantID = a.RestaurantID
	}

	sale, err := h.svc.CreateSale(r.Context(), a, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sale)
}

// ListSales handles GET /api/sales
func (h *Handlers) ListSales(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sales, err := h.svc.ListSales(r.Context(), a, restaurantScope(r, a))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sales)
}

// GetSale handles GET /api/sales/:id
func (h *Handlers) GetSale(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sale, err := h.svc.GetSale(r.Context(), a, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sale)
}

// TransitionSale handles PATCH /api/sales/:id/status
func (h *Handlers) TransitionSale(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req statusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || req.Status == "" {
		httputil.WriteError(w, http.StatusBadRequest, "status is required")
		return
	}

	sale, err := h.svc.TransitionSale(r.Context(), a, mux.Vars(r)["id"], fulfillment.Status(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sale)
}

// TransitionItem handles PATCH /api/sales/:id/items/:index/status
func (h *Handlers) TransitionItem(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "item index must be a number")
		return
	}
	var req statusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || req.Status == "" {
		httputil.WriteError(w, http.StatusBadRequest, "status is required")
		return
	}

	sale, err := h.svc.TransitionItem(r.Context(), a, vars["id"], index, fulfillment.ItemStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sale)
}

// ListQueue handles GET /api/queues/:queue
func (h *Handlers) ListQueue(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	q, err := dispatch.ParseQueue(mux.Vars(r)["queue"])
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	sales, err := h.svc.ListQueue(r.Context(), a, restaurantScope(r, a), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"queue": q,
		"sales": sales,
	})
}
