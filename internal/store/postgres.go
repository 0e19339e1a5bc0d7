package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// docTable stores one entity kind as JSONB documents keyed by id, with the
// owning restaurant kept in its own column for listing.
type docTable[T any] struct {
	pool  *pgxpool.Pool
	name  string
	kind  string
	id    func(T) string
	scope func(T) string
}

func (t docTable[T]) notFound(id string) error {
	return fmt.Errorf("%s %s: %w", t.kind, id, ErrNotFound)
}

func (t docTable[T]) create(ctx context.Context, v T) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.kind, err)
	}
	tag, err := t.pool.Exec(ctx,
		`INSERT INTO `+t.name+` (id, restaurant_id, doc) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		t.id(v), t.scope(v), doc,
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", t.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", t.kind, t.id(v), ErrAlreadyExists)
	}
	return nil
}

func (t docTable[T]) put(ctx context.Context, v T) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.kind, err)
	}
	_, err = t.pool.Exec(ctx,
		`INSERT INTO `+t.name+` (id, restaurant_id, doc) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, restaurant_id = EXCLUDED.restaurant_id, updated_at = NOW()`,
		t.id(v), t.scope(v), doc,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", t.kind, err)
	}
	return nil
}

func (t docTable[T]) decode(doc []byte) (T, error) {
	var v T
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", t.kind, err)
	}
	return v, nil
}

func (t docTable[T]) get(ctx context.Context, id string) (T, error) {
	var doc []byte
	err := t.pool.QueryRow(ctx, `SELECT doc FROM `+t.name+` WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		var zero T
		return zero, t.notFound(id)
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("get %s: %w", t.kind, err)
	}
	return t.decode(doc)
}

func (t docTable[T]) list(ctx context.Context, restaurantID string) ([]T, error) {
	rows, err := t.pool.Query(ctx,
		`SELECT doc FROM `+t.name+` WHERE $1::text = '' OR restaurant_id = $1 ORDER BY created_at, id`,
		restaurantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.kind, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		v, err := t.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// update locks the row for the duration of fn and commits its result.
func (t docTable[T]) update(ctx context.Context, id string, fn func(T) error) (T, error) {
	var zero T

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var doc []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM `+t.name+` WHERE id = $1 FOR UPDATE`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, t.notFound(id)
	}
	if err != nil {
		return zero, fmt.Errorf("lock %s: %w", t.kind, err)
	}

	v, err := t.decode(doc)
	if err != nil {
		return zero, err
	}
	if err := fn(v); err != nil {
		return zero, err
	}

	next, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", t.kind, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE `+t.name+` SET doc = $2, updated_at = NOW() WHERE id = $1`, id, next); err != nil {
		return zero, fmt.Errorf("update %s: %w", t.kind, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("commit: %w", err)
	}
	return v, nil
}

// Postgres is the pgx-backed Store. Tables are created by the migrations
// in migrations/.
type Postgres struct {
	pool         *pgxpool.Pool
	sales        docTable[*fulfillment.Sale]
	orders       docTable[*fulfillment.Order]
	reservations docTable[*fulfillment.Reservation]
	restaurants  docTable[*fulfillment.Restaurant]
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool:         pool,
		sales:        docTable[*fulfillment.Sale]{pool: pool, name: "sales", kind: "sale", id: saleID, scope: saleScope},
		orders:       docTable[*fulfillment.Order]{pool: pool, name: "orders", kind: "order", id: orderID, scope: orderScope},
		reservations: docTable[*fulfillment.Reservation]{pool: pool, name: "reservations", kind: "reservation", id: reservationID, scope: reservationScope},
		restaurants:  docTable[*fulfillment.Restaurant]{pool: pool, name: "restaurants", kind: "restaurant", id: restaurantID, scope: restaurantID},
	}
}

func (p *Postgres) CreateSale(ctx context.Context, s *fulfillment.Sale) error {
	return p.sales.create(ctx, s)
}

func (p *Postgres) GetSale(ctx context.Context, id string) (*fulfillment.Sale, error) {
	return p.sales.get(ctx, id)
}

func (p *Postgres) ListSales(ctx context.Context, restaurantID string) ([]*fulfillment.Sale, error) {
	return p.sales.list(ctx, restaurantID)
}

func (p *Postgres) UpdateSale(ctx context.Context, id string, fn func(*fulfillment.Sale) error) (*fulfillment.Sale, error) {
	return p.sales.update(ctx, id, fn)
}

func (p *Postgres) CreateOrder(ctx context.Context, o *fulfillment.Order) error {
	return p.orders.create(ctx, o)
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (*fulfillment.Order, error) {
	return p.orders.get(ctx, id)
}

func (p *Postgres) ListOrders(ctx context.Context, restaurantID string) ([]*fulfillment.Order, error) {
	return p.orders.list(ctx, restaurantID)
}

func (p *Postgres) UpdateOrder(ctx context.Context, id string, fn func(*fulfillment.Order) error) (*fulfillment.Order, error) {
	return p.orders.update(ctx, id, fn)
}

func (p *Postgres) CreateReservation(ctx context.Context, r *fulfillment.Reservation) error {
	return p.reservations.create(ctx, r)
}

func (p *Postgres) GetReservation(ctx context.Context, id string) (*fulfillment.Reservation, error) {
	return p.reservations.get(ctx, id)
}

func (p *Postgres) ListReservations(ctx context.Context, restaurantID string) ([]*fulfillment.Reservation, error) {
	return p.reservations.list(ctx, restaurantID)
}

func (p *Postgres) UpdateReservation(ctx context.Context, id string, fn func(*fulfillment.Reservation) error) (*fulfillment.Reservation, error) {
	return p.reservations.update(ctx, id, fn)
}

func (p *Postgres) PutRestaurant(ctx context.Context, r *fulfillment.Restaurant) error {
	return p.restaurants.put(ctx, r)
}

func (p *Postgres) GetRestaurant(ctx context.Context, id string) (*fulfillment.Restaurant, error) {
	return p.restaurants.get(ctx, id)
}

func (p *Postgres) ListRestaurants(ctx context.Context) ([]*fulfillment.Restaurant, error) {
	return p.restaurants.list(ctx, "")
}

func (p *Postgres) UpdateRestaurant(ctx context.Context, id string, fn func(*fulfillment.Restaurant) error) (*fulfillment.Restaurant, error) {
	return p.restaurants.update(ctx, id, fn)
}

// Close is a no-op; the pool belongs to the caller.
func (p *Postgres) Close() {}
