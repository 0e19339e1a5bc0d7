package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
	"github.com/darkden-lab/orderflow/internal/httputil"
	"github.com/darkden-lab/orderflow/internal/service"
	"github.com/darkden-lab/orderflow/internal/store"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fulfillment.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, fulfillment.ErrUnauthorizedTransition):
		return http.StatusForbidden
	case errors.Is(err, fulfillment.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("api: %s %s failed: %v", r.Method, r.URL.Path, err)
		httputil.WriteError(w, status, "internal error")
		return
	}
	httputil.WriteError(w, status, err.Error())
}
