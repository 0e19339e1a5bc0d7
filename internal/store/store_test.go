package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)

var t0 = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newSale(id, restaurantID string) *fulfillment.Sale {
	return fulfillment.NewSale(id, restaurantID, []fulfillment.SaleItem{{MenuID: "m1", MenuName: "pizza", Quantity: 1}}, t0)
}

func TestMemory_CreateGetList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.CreateSale(ctx, newSale("S1", "r1")))
	require.NoError(t, m.CreateSale(ctx, newSale("S2", "r2")))
	require.NoError(t, m.CreateSale(ctx, newSale("S3", "r1")))

	err := m.CreateSale(ctx, newSale("S1", "r1"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := m.GetSale(ctx, "S2")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RestaurantID)

	_, err = m.GetSale(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := m.ListSales(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "S1", list[0].ID)
	assert.Equal(t, "S3", list[1].ID)

	all, _ := m.ListSales(ctx, "")
	assert.Len(t, all, 3)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := newSale("S1", "r1")
	require.NoError(t, m.CreateSale(ctx, s))

	s.Status = fulfillment.StatusCancelled
	got, _ := m.GetSale(ctx, "S1")
	assert.Equal(t, fulfillment.StatusPending, got.Status)

	got.Items[0].Status = fulfillment.ItemReady
	again, _ := m.GetSale(ctx, "S1")
	assert.Equal(t, fulfillment.ItemPending, again.Items[0].Status)
}

func TestMemory_UpdateCommitsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateSale(ctx, newSale("S1", "r1")))

	boom := errors.New("boom")
	_, err := m.UpdateSale(ctx, "S1", func(s *fulfillment.Sale) error {
		s.Status = fulfillment.StatusConfirmed
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, _ := m.GetSale(ctx, "S1")
	assert.Equal(t, fulfillment.StatusPending, got.Status)

	updated, err := m.UpdateSale(ctx, "S1", func(s *fulfillment.Sale) error {
		return fulfillment.TransitionSale(s, fulfillment.StatusConfirmed, fulfillment.RoleCashier, t0.Add(time.Minute))
	})
	require.NoError(t, err)
	assert.Equal(t, fulfillment.StatusConfirmed, updated.Status)

	_, err = m.UpdateSale(ctx, "nope", func(*fulfillment.Sale) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_UpdateIsSerialized(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutRestaurant(ctx, &fulfillment.Restaurant{ID: "r1"}))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.UpdateRestaurant(ctx, "r1", func(r *fulfillment.Restaurant) error {
				r.Name += "x"
				return nil
			})
		}()
	}
	wg.Wait()

	r, err := m.GetRestaurant(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, r.Name, 100)
}

func TestMemory_PutRestaurantReplaces(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutRestaurant(ctx, &fulfillment.Restaurant{ID: "r1", Name: "old"}))
	require.NoError(t, m.PutRestaurant(ctx, &fulfillment.Restaurant{ID: "r1", Name: "new"}))
	require.NoError(t, m.PutRestaurant(ctx, &fulfillment.Restaurant{ID: "r2"}))

	all, err := m.ListRestaurants(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "new", all[0].Name)
}

func TestMemory_OrdersAndReservations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	o := fulfillment.NewOrder("O1", "r1", "c1", nil, t0)
	require.NoError(t, m.CreateOrder(ctx, o))
	got, err := m.UpdateOrder(ctx, "O1", func(o *fulfillment.Order) error {
		return fulfillment.TransitionOrder(o, fulfillment.StatusConfirmed, fulfillment.RoleOwner, t0)
	})
	require.NoError(t, err)
	assert.Equal(t, fulfillment.StatusConfirmed, got.Status)

	res := &fulfillment.Reservation{ID: "R1", RestaurantID: "r1", ClientID: "c1", Status: fulfillment.ReservationPending}
	require.NoError(t, m.CreateReservation(ctx, res))
	list, err := m.ListReservations(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	orders, _ := m.ListOrders(ctx, "r2")
	assert.Empty(t, orders)
}
