package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
	"github.com/darkden-lab/orderflow/internal/httputil"
	"github.com/darkden-lab/orderflow/internal/service"
)

// CreateOrder handles POST /api/orders
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req service.OrderInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.svc.CreateOrder(r.Context(), a, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, o)
}

// GetOrder handles GET /api/orders/:id
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	o, err := h.svc.GetOrder(r.Context(), a, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

// TransitionOrder handles PATCH /api/orders/:id/status
func (h *Handlers) TransitionOrder(w http.ResponseWriter, r *http.Request) {
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

	o, err := h.svc.TransitionOrder(r.Context(), a, mux.Vars(r)["id"], fulfillment.Status(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

// CreateReservation handles POST /api/reservations
func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req service.ReservationInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.CreateReservation(r.Context(), a, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

// ListReservations handles GET /api/reservations
func (h *Handlers) ListReservations(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.svc.ListReservations(r.Context(), a, restaurantScope(r, a))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// TransitionReservation handles PATCH /api/reservations/:id/status
func (h *Handlers) TransitionReservation(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.svc.TransitionReservation(r.Context(), a, mux.Vars(r)["id"], fulfillment.ReservationStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
