package audit

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/orderflow/internal/auth"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
	"github.com/darkden-lab/orderflow/internal/httputil"
)

// Handlers provides HTTP handlers for the transition log.
type Handlers struct {
	log Log
}

func NewHandlers(log Log) *Handlers {
	return &Handlers{log: log}
}

// RegisterRoutes wires the transition log endpoint onto the provided router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/transitions", h.List).Methods(http.MethodGet)
}

// List handles GET /api/transitions. Staff only see their own restaurant;
// administrators may query any.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || !claims.Role.IsManagement() {
		httputil.WriteError(w, http.StatusForbidden, "transition log requires a management role")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	params := ListParams{
		RestaurantID: q.Get("restaurant_id"),
		Entity:       q.Get("entity"),
		EntityID:     q.Get("entity_id"),
		Limit:        limit,
		Offset:       offset,
	}
	if claims.Role != fulfillment.RoleAdministrator {
		params.RestaurantID = claims.RestaurantID
	}
	params.normalize()

	entries, total, err := h.log.List(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"limit":   params.Limit,
		"offset":  params.Offset,
	})
}
