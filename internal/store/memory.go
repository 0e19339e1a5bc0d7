package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// table is an in-memory collection of one entity kind, listed in insertion
// order. Values are cloned on the way in and out.
type table[T any] struct {
	kind  string
	id    func(T) string
	scope func(T) string
	clone func(T) T

	mu    sync.Mutex
	rows  map[string]T
	order []string
}

func newTable[T any](kind string, id, scope func(T) string, clone func(T) T) *table[T] {
	return &table[T]{kind: kind, id: id, scope: scope, clone: clone, rows: make(map[string]T)}
}

func (t *table[T]) notFound(id string) error {
	return fmt.Errorf("%s %s: %w", t.kind, id, ErrNotFound)
}

func (t *table[T]) create(v T) error {
	id := t.id(v)
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[id]; ok {
		return fmt.Errorf("%s %s: %w", t.kind, id, ErrAlreadyExists)
	}
	t.rows[id] = t.clone(v)
	t.order = append(t.order, id)
	return nil
}

func (t *table[T]) put(v T) {
	id := t.id(v)
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = t.clone(v)
}

func (t *table[T]) get(id string) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, t.notFound(id)
	}
	return t.clone(v), nil
}

// list returns the rows of restaurantID, or every row when it is empty.
func (t *table[T]) list(restaurantID string) []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		v := t.rows[id]
		if restaurantID == "" || t.scope(v) == restaurantID {
			out = append(out, t.clone(v))
		}
	}
	return out
}

// update holds the table lock across fn, which serializes transitions the
// way SELECT ... FOR UPDATE does in Postgres.
func (t *table[T]) update(id string, fn func(T) error) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	cur, ok := t.rows[id]
	if !ok {
		return zero, t.notFound(id)
	}
	next := t.clone(cur)
	if err := fn(next); err != nil {
		return zero, err
	}
	t.rows[id] = next
	return t.clone(next), nil
}

// Memory keeps everything in process. It is used when no DATABASE_URL is
// configured and in tests.
type Memory struct {
	sales        *table[*fulfillment.Sale]
	orders       *table[*fulfillment.Order]
	reservations *table[*fulfillment.Reservation]
	restaurants  *table[*fulfillment.Restaurant]
}

func NewMemory() *Memory {
	return &Memory{
		sales:        newTable("sale", saleID, saleScope, (*fulfillment.Sale).Clone),
		orders:       newTable("order", orderID, orderScope, (*fulfillment.Order).Clone),
		reservations: newTable("reservation", reservationID, reservationScope, (*fulfillment.Reservation).Clone),
		restaurants:  newTable("restaurant", restaurantID, restaurantID, (*fulfillment.Restaurant).Clone),
	}
}

func (m *Memory) CreateSale(_ context.Context, s *fulfillment.Sale) error {
	return m.sales.create(s)
}

func (m *Memory) GetSale(_ context.Context, id string) (*fulfillment.Sale, error) {
	return m.sales.get(id)
}

func (m *Memory) ListSales(_ context.Context, restaurantID string) ([]*fulfillment.Sale, error) {
	return m.sales.list(restaurantID), nil
}

func (m *Memory) UpdateSale(_ context.Context, id string, fn func(*fulfillment.Sale) error) (*fulfillment.Sale, error) {
	return m.sales.update(id, fn)
}

func (m *Memory) CreateOrder(_ context.Context, o *fulfillment.Order) error {
	return m.orders.create(o)
}

func (m *Memory) GetOrder(_ context.Context, id string) (*fulfillment.Order, error) {
	return m.orders.get(id)
}

func (m *Memory) ListOrders(_ context.Context, restaurantID string) ([]*fulfillment.Order, error) {
	return m.orders.list(restaurantID), nil
}

func (m *Memory) UpdateOrder(_ context.Context, id string, fn func(*fulfillment.Order) error) (*fulfillment.Order, error) {
	return m.orders.update(id, fn)
}

func (m *Memory) CreateReservation(_ context.Context, r *fulfillment.Reservation) error {
	return m.reservations.create(r)
}

func (m *Memory) GetReservation(_ context.Context, id string) (*fulfillment.Reservation, error) {
	return m.reservations.get(id)
}

func (m *Memory) ListReservations(_ context.Context, restaurantID string) ([]*fulfillment.Reservation, error) {
	return m.reservations.list(restaurantID), nil
}

func (m *Memory) UpdateReservation(_ context.Context, id string, fn func(*fulfillment.Reservation) error) (*fulfillment.Reservation, error) {
	return m.reservations.update(id, fn)
}

func (m *Memory) PutRestaurant(_ context.Context, r *fulfillment.Restaurant) error {
	m.restaurants.put(r)
	return nil
}

func (m *Memory) GetRestaurant(_ context.Context, id string) (*fulfillment.Restaurant, error) {
	return m.restaurants.get(id)
}

func (m *Memory) ListRestaurants(_ context.Context) ([]*fulfillment.Restaurant, error) {
	return m.restaurants.list(""), nil
}

func (m *Memory) UpdateRestaurant(_ context.Context, id string, fn func(*fulfillment.Restaurant) error) (*fulfillment.Restaurant, error) {
	return m.restaurants.update(id, fn)
}

func (m *Memory) Close() {}
