// Package service runs the mutations behind the REST surface: load the
// entity, apply the transition, commit, then publish and audit. Nothing is
// published for a change that was not committed.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/darkden-lab/orderflow/internal/audit"
	"github.com/darkden-lab/orderflow/internal/dispatch"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
	"github.com/darkden-lab/orderflow/internal/store"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID       string
	Role         fulfillment.Role
	RestaurantID string
}

// canAccess reports whether a can act on data of restaurantID.
func (a Actor) canAccess(restaurantID string) bool {
	return a.Role == fulfillment.RoleAdministrator || (a.RestaurantID != "" && a.RestaurantID == restaurantID)
}

func (a Actor) staffOf(restaurantID string) error {
	if !a.Role.IsStaff() || !a.canAccess(restaurantID) {
		return fmt.Errorf("%w: %s may not access restaurant %s", ErrForbidden, a.Role, restaurantID)
	}
	return nil
}

type Service struct {
	store  store.Store
	router *dispatch.Router
	audit  audit.Log
	now    func() time.Time
}

func New(st store.Store, router *dispatch.Router, log audit.Log) *Service {
	return &Service{store: st, router: router, audit: log, now: func() time.Time { return time.Now().UTC() }}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

// record appends the History entries added by a committed mutation to the
// transition log. Failures are logged; the transition already happened.
func (s *Service) record(ctx context.Context, entity, id, restaurantID string, actor Actor, added fulfillment.History) {
	if s.audit == nil {
		return
	}
	for _, c := range added {
		if err := s.audit.Record(ctx, audit.FromChange(entity, id, restaurantID, actor.UserID, c)); err != nil {
			log.Printf("service: failed to record %s %s %s -> %s: %v", entity, id, c.From, c.To, err)
		}
	}
}

func since(h fulfillment.History, n int) fulfillment.History {
	if n >= len(h) {
		return nil
	}
	return h[n:]
}
