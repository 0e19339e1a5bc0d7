// Package store persists the entities the pipeline transitions. Mutations
// go through Update functions so the read-modify-write of a transition is
// atomic per entity.
package store

import (
	"context"
	"errors"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Store is implemented by Memory and Postgres. Update functions receive a
// private copy; the change is committed only when fn returns nil, and the
// committed value is returned.
type Store interface {
	CreateSale(ctx context.Context, s *fulfillment.Sale) error
	GetSale(ctx context.Context, id string) (*fulfillment.Sale, error)
	ListSales(ctx context.Context, restaurantID string) ([]*fulfillment.Sale, error)
	UpdateSale(ctx context.Context, id string, fn func(*fulfillment.Sale) error) (*fulfillment.Sale, error)

	CreateOrder(ctx context.Context, o *fulfillment.Order) error
	GetOrder(ctx context.Context, id string) (*fulfillment.Order, error)
	ListOrders(ctx context.Context, restaurantID string) ([]*fulfillment.Order, error)
	UpdateOrder(ctx context.Context, id string, fn func(*fulfillment.Order) error) (*fulfillment.Order, error)

	CreateReservation(ctx context.Context, r *fulfillment.Reservation) error
	GetReservation(ctx context.Context, id string) (*fulfillment.Reservation, error)
	ListReservations(ctx context.Context, restaurantID string) ([]*fulfillment.Reservation, error)
	UpdateReservation(ctx context.Context, id string, fn func(*fulfillment.Reservation) error) (*fulfillment.Reservation, error)

	// PutRestaurant creates or replaces a restaurant.
	PutRestaurant(ctx context.Context, r *fulfillment.Restaurant) error
	GetRestaurant(ctx context.Context, id string) (*fulfillment.Restaurant, error)
	ListRestaurants(ctx context.Context) ([]*fulfillment.Restaurant, error)
	UpdateRestaurant(ctx context.Context, id string, fn func(*fulfillment.Restaurant) error) (*fulfillment.Restaurant, error)

	Close()
}

func saleID(s *fulfillment.Sale) string                  { return s.ID }
func saleScope(s *fulfillment.Sale) string               { return s.RestaurantID }
func orderID(o *fulfillment.Order) string                { return o.ID }
func orderScope(o *fulfillment.Order) string             { return o.RestaurantID }
func reservationID(r *fulfillment.Reservation) string    { return r.ID }
func reservationScope(r *fulfillment.Reservation) string { return r.RestaurantID }
func restaurantID(r *fulfillment.Restaurant) string      { return r.ID }
