package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
	"github.com/darkden-lab/orderflow/internal/httputil"
)

type toggleRequest struct {
	IsOpen  *bool  `json:"isOpen"`
	Message string `json:"message,omitempty"`
}

type hoursRequest struct {
	OpeningHours fulfillment.OpeningHours `json:"openingHours"`
	Timezone     string                   `json:"timezone,omitempty"`
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

type announcementRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type notificationRequest struct {
	Message string   `json:"message"`
	UserIDs []string `json:"userIds"`
}

// GetRestaurant handles GET /api/restaurants/:id
func (h *Handlers) GetRestaurant(w http.ResponseWriter, r *http.Request) {
	rest, err := h.svc.GetRestaurant(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rest)
}

// SaveRestaurant handles PUT /api/restaurants/:id
func (h *Handlers) SaveRestaurant(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var rest fulfillment.Restaurant
	if err := httputil.DecodeJSON(r, &rest); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rest.ID = mux.Vars(r)["id"]

	saved, err := h.svc.SaveRestaurant(r.Context(), a, &rest)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, saved)
}

// ToggleOpen handles PATCH /api/restaurants/:id/open. A null isOpen hands
// the flag back to the opening hours.
func (h *Handlers) ToggleOpen(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req toggleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rest, err := h.svc.ToggleOpen(r.Context(), a, mux.Vars(r)["id"], req.IsOpen, req.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rest)
}

// UpdateHours handles PATCH /api/restaurants/:id/hours
func (h *Handlers) UpdateHours(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req hoursRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || req.OpeningHours == nil {
		httputil.WriteError(w, http.StatusBadRequest, "openingHours is required")
		return
	}

	rest, err := h.svc.UpdateHours(r.Context(), a, mux.Vars(r)["id"], req.OpeningHours, req.Timezone)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rest)
}

// SetMenuAvailability handles PATCH /api/restaurants/:id/menu/:menuId/availability
func (h *Handlers) SetMenuAvailability(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req availabilityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || req.Available == nil {
		httputil.WriteError(w, http.StatusBadRequest, "available is required")
		return
	}

	vars := mux.Vars(r)
	if err := h.svc.SetMenuAvailability(r.Context(), a, vars["id"], vars["menuId"], *req.Available); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"menuId":    vars["menuId"],
		"available": *req.Available,
	})
}

// Announce handles POST /api/announcements
func (h *Handlers) Announce(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req announcementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ann, err := h.svc.Announce(a, req.Title, req.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ann)
}

// Notify handles POST /api/notifications
func (h *Handlers) Notify(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req notificationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, delivered, err := h.svc.Notify(a, req.Message, req.UserIDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"notification": n,
		"delivered":    delivered,
	})
}
