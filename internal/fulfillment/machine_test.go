package fulfillment

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func twoItemSale() *Sale {
	return NewSale("S1", "r1", []SaleItem{
		{MenuID: "m-pizza", MenuName: "pizza", Price: decimal.RequireFromString("12.50"), Quantity: 1},
		{MenuID: "m-soda", MenuName: "soda", Price: decimal.RequireFromString("2.25"), Quantity: 2},
	}, t0)
}

func TestNewSale_ComputesTotals(t *testing.T) {
	s := twoItemSale()

	assert.Equal(t, StatusPending, s.Status)
	assert.True(t, s.Items[1].Subtotal.Equal(decimal.RequireFromString("4.50")))
	assert.True(t, s.Total.Equal(decimal.RequireFromString("17.00")))
	for _, it := range s.Items {
		assert.Equal(t, ItemPending, it.Status)
	}
}

func TestTransitionSale_Backbone(t *testing.T) {
	s := twoItemSale()

	require.NoError(t, TransitionSale(s, StatusConfirmed, RoleCashier, t0.Add(time.Minute)))
	require.NoError(t, TransitionSale(s, StatusPreparing, RoleKitchen, t0.Add(2*time.Minute)))

	assert.Equal(t, StatusPreparing, s.Status)
	assert.Equal(t, t0.Add(2*time.Minute), s.UpdatedAt)
	require.Len(t, s.History, 2)
	assert.Equal(t, "confirmed", s.History[1].From)
	assert.Equal(t, "preparing", s.History[1].To)
	assert.Equal(t, RoleKitchen, s.History[1].Actor)
}

func TestTransitionSale_RejectsBackwardAndTerminal(t *testing.T) {
	s := twoItemSale()
	require.NoError(t, TransitionSale(s, StatusPreparing, RoleKitchen, t0))

	err := TransitionSale(s, StatusConfirmed, RoleOwner, t0)
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, TransitionSale(s, StatusCancelled, RoleOwner, t0))
	err = TransitionSale(s, StatusPreparing, RoleOwner, t0)
	require.ErrorIs(t, err, ErrInvalidTransition)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "sale", te.Entity)
	assert.Equal(t, "cancelled", te.From)
}

func TestTransitionSale_OutForDeliveryIsOrderOnly(t *testing.T) {
	s := twoItemSale()
	err := TransitionSale(s, StatusOutForDelivery, RoleOwner, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionSale_Authorization(t *testing.T) {
	tests := []struct {
		name  string
		to    Status
		actor Role
		ok    bool
	}{
		{"cashier confirms", StatusConfirmed, RoleCashier, true},
		{"kitchen cannot confirm", StatusConfirmed, RoleKitchen, false},
		{"kitchen prepares", StatusPreparing, RoleKitchen, true},
		{"waiter cannot prepare", StatusPreparing, RoleWaiter, false},
		{"client cannot cancel", StatusCancelled, RoleClient, false},
		{"kitchen cannot cancel", StatusCancelled, RoleKitchen, false},
		{"manager cancels", StatusCancelled, RoleManager, true},
		{"administrator cancels", StatusCancelled, RoleAdministrator, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := twoItemSale()
			err := TransitionSale(s, tt.to, tt.actor, t0)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrUnauthorizedTransition)
			assert.NotErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestTransitionSale_ReadyRequiresItems(t *testing.T) {
	s := twoItemSale()
	require.NoError(t, TransitionSale(s, StatusConfirmed, RoleCashier, t0))

	err := TransitionSale(s, StatusReady, RoleKitchen, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "items are still pending")

	err = TransitionSale(s, StatusDelivered, RoleWaiter, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionSale_CancelCascadesToOpenItems(t *testing.T) {
	s := twoItemSale()
	require.NoError(t, TransitionItem(s, 0, ItemReady, RoleKitchen, t0))

	require.NoError(t, TransitionSale(s, StatusCancelled, RoleOwner, t0))

	assert.Equal(t, ItemReady, s.Items[0].Status, "ready items are past the cancellation point")
	assert.Equal(t, ItemCancelled, s.Items[1].Status)
}

func TestTransitionItem_Monotonic(t *testing.T) {
	all := []ItemStatus{ItemPending, ItemPreparing, ItemReady, ItemDelivered, ItemCancelled}
	for _, from := range all {
		for _, to := range all {
			s := twoItemSale()
			s.Items[0].Status = from
			// keep the sale from completing so the item stays editable
			s.Items[1].Status = ItemPending

			err := TransitionItem(s, 0, to, RoleOwner, t0)

			var want bool
			switch {
			case from.Terminal():
				want = false
			case to == ItemCancelled:
				want = from == ItemPending || from == ItemPreparing
			default:
				want = to.rank() > from.rank()
			}
			if want {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
			}
		}
	}
}

func TestTransitionItem_Roles(t *testing.T) {
	s := twoItemSale()

	assert.ErrorIs(t, TransitionItem(s, 0, ItemReady, RoleWaiter, t0), ErrUnauthorizedTransition)
	require.NoError(t, TransitionItem(s, 0, ItemReady, RoleKitchen, t0))
	assert.ErrorIs(t, TransitionItem(s, 0, ItemDelivered, RoleKitchen, t0), ErrUnauthorizedTransition)
	assert.NoError(t, TransitionItem(s, 0, ItemDelivered, RoleWaiter, t0))
	assert.ErrorIs(t, TransitionItem(s, 1, ItemCancelled, RoleWaiter, t0), ErrUnauthorizedTransition)
}

func TestTransitionItem_OutOfRange(t *testing.T) {
	s := twoItemSale()
	assert.ErrorIs(t, TransitionItem(s, 7, ItemReady, RoleKitchen, t0), ErrItemNotFound)
	assert.ErrorIs(t, TransitionItem(s, -1, ItemReady, RoleKitchen, t0), ErrItemNotFound)
}

// Scenario: kitchen prepares both items, the sale becomes ready; the waiter
// delivers both, the sale becomes delivered.
func TestAggregate_ReadyThenDelivered(t *testing.T) {
	s := twoItemSale()
	require.NoError(t, TransitionSale(s, StatusConfirmed, RoleCashier, t0))

	require.NoError(t, TransitionItem(s, 0, ItemPreparing, RoleKitchen, t0.Add(1*time.Minute)))
	require.NoError(t, TransitionItem(s, 0, ItemReady, RoleKitchen, t0.Add(5*time.Minute)))
	assert.Equal(t, StatusConfirmed, s.Status, "one ready item is not enough")

	require.NoError(t, TransitionItem(s, 1, ItemPreparing, RoleKitchen, t0.Add(2*time.Minute)))
	require.NoError(t, TransitionItem(s, 1, ItemReady, RoleKitchen, t0.Add(6*time.Minute)))
	assert.Equal(t, StatusReady, s.Status)

	require.NoError(t, TransitionItem(s, 0, ItemDelivered, RoleWaiter, t0.Add(8*time.Minute)))
	assert.Equal(t, StatusReady, s.Status)
	require.NoError(t, TransitionItem(s, 1, ItemDelivered, RoleWaiter, t0.Add(9*time.Minute)))
	assert.Equal(t, StatusDelivered, s.Status)

	assert.ErrorIs(t, TransitionItem(s, 0, ItemCancelled, RoleOwner, t0), ErrInvalidTransition)
}

func TestAggregate_IgnoresCancelledItems(t *testing.T) {
	s := twoItemSale()
	require.NoError(t, TransitionItem(s, 1, ItemCancelled, RoleOwner, t0))
	assert.Equal(t, StatusPending, s.Status)

	require.NoError(t, TransitionItem(s, 0, ItemReady, RoleKitchen, t0))
	assert.Equal(t, StatusReady, s.Status)
}

func TestRecomputeSale_NeverRegresses(t *testing.T) {
	s := twoItemSale()
	s.Status = StatusReady
	s.Items[0].Status = ItemPreparing

	assert.False(t, RecomputeSale(s, RoleKitchen, t0))
	assert.Equal(t, StatusReady, s.Status)
}

func TestAggregateConsistency_Property(t *testing.T) {
	steps := []struct {
		item int
		to   ItemStatus
		role Role
	}{
		{0, ItemPreparing, RoleKitchen},
		{1, ItemReady, RoleKitchen},
		{0, ItemReady, RoleKitchen},
		{1, ItemDelivered, RoleWaiter},
		{0, ItemDelivered, RoleWaiter},
	}
	s := twoItemSale()
	for _, st := range steps {
		require.NoError(t, TransitionItem(s, st.item, st.to, st.role, t0))
		switch s.Status {
		case StatusDelivered:
			for _, it := range s.Items {
				assert.Equal(t, ItemDelivered, it.Status)
			}
		case StatusReady:
			for _, it := range s.Items {
				assert.Contains(t, []ItemStatus{ItemReady, ItemDelivered}, it.Status)
			}
		}
	}
	assert.Equal(t, StatusDelivered, s.Status)
}

func TestSaleTimings(t *testing.T) {
	s := twoItemSale()
	require.NoError(t, TransitionSale(s, StatusPreparing, RoleKitchen, t0))
	require.NoError(t, TransitionItem(s, 0, ItemReady, RoleKitchen, t0.Add(10*time.Minute)))
	require.NoError(t, TransitionItem(s, 1, ItemReady, RoleKitchen, t0.Add(12*time.Minute)))
	require.NoError(t, TransitionItem(s, 0, ItemDelivered, RoleWaiter, t0.Add(13*time.Minute)))
	require.NoError(t, TransitionItem(s, 1, ItemDelivered, RoleWaiter, t0.Add(15*time.Minute)))

	prep, ok := s.PreparationTime()
	require.True(t, ok)
	assert.Equal(t, 12*time.Minute, prep)

	del, ok := s.DeliveryTime()
	require.True(t, ok)
	assert.Equal(t, 3*time.Minute, del)

	_, ok = twoItemSale().PreparationTime()
	assert.False(t, ok)
}

func TestTransitionOrder(t *testing.T) {
	o := NewOrder("O1", "r1", "c1", []OrderItem{
		{MenuID: "m1", Quantity: 3, Price: decimal.RequireFromString("4.00")},
	}, t0)
	assert.True(t, o.Total.Equal(decimal.NewFromInt(12)))

	require.NoError(t, TransitionOrder(o, StatusConfirmed, RoleCashier, t0))
	require.NoError(t, TransitionOrder(o, StatusReady, RoleKitchen, t0))
	require.NoError(t, TransitionOrder(o, StatusOutForDelivery, RoleWaiter, t0))

	assert.ErrorIs(t, TransitionOrder(o, StatusCancelled, RoleOwner, t0), ErrInvalidTransition)
	require.NoError(t, TransitionOrder(o, StatusDelivered, RoleWaiter, t0))
	assert.Len(t, o.History, 4)
}

func TestTransitionReservation(t *testing.T) {
	r := &Reservation{ID: "res-1", RestaurantID: "r1", Status: ReservationPending}

	assert.ErrorIs(t, TransitionReservation(r, ReservationCompleted, RoleOwner, t0), ErrInvalidTransition)
	assert.ErrorIs(t, TransitionReservation(r, ReservationCancelled, RoleClient, t0), ErrUnauthorizedTransition)
	require.NoError(t, TransitionReservation(r, ReservationConfirmed, RoleCashier, t0))
	require.NoError(t, TransitionReservation(r, ReservationCompleted, RoleWaiter, t0))
	assert.ErrorIs(t, TransitionReservation(r, ReservationCancelled, RoleOwner, t0), ErrInvalidTransition)
}

func TestAuthorizeRestaurantToggle(t *testing.T) {
	for _, r := range []Role{RoleOwner, RoleManager, RoleAdministrator} {
		assert.NoError(t, AuthorizeRestaurantToggle(r))
	}
	for _, r := range []Role{RoleKitchen, RoleWaiter, RoleCashier, RoleClient} {
		assert.ErrorIs(t, AuthorizeRestaurantToggle(r), ErrUnauthorizedTransition)
	}
}

func TestSaleClone_IsDeep(t *testing.T) {
	table := 4
	s := twoItemSale()
	s.TableNumber = &table
	require.NoError(t, TransitionItem(s, 0, ItemPreparing, RoleKitchen, t0))

	c := s.Clone()
	*c.TableNumber = 9
	c.Items[0].Status = ItemReady
	c.Items[0].History[0].Actor = RoleOwner

	assert.Equal(t, 4, *s.TableNumber)
	assert.Equal(t, ItemPreparing, s.Items[0].Status)
	assert.Equal(t, RoleKitchen, s.Items[0].History[0].Actor)
}
