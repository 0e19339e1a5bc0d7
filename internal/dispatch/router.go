package dispatch

import (
	"log"
	"time"

	"github.com/darkden-lab/orderflow/internal/events"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// Router turns committed state changes into events and publishes them to
// the audience derived from QueuesFor. Callers must commit before calling
// and, for updates, hold the entity with Hold across commit and publish.
type Router struct {
	pub   Publisher
	now   func() time.Time
	holds holds
}

// NewRouter creates a Router publishing through pub.
func NewRouter(pub Publisher) *Router {
	return &Router{pub: pub, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Router) publish(p events.Payload, aud Audience) int {
	n := r.pub.Publish(events.New(p), aud)
	if n == 0 {
		log.Printf("dispatch: %s %s had no live subscribers", p.Kind(), p.Identity())
	}
	return n
}

func clients(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// SaleCreated announces a new sale to every staff screen of its restaurant.
func (r *Router) SaleCreated(s *fulfillment.Sale) int {
	return r.publish(events.SaleNew{Sale: s.Clone(), Timestamp: r.now()}, Audience{
		RestaurantID: s.RestaurantID,
		Staff:        true,
	})
}

// SaleUpdated publishes the committed sale to the queues it was in and the
// queues it is in now, so a screen it leaves is told to drop it.
func (r *Router) SaleUpdated(before, after *fulfillment.Sale) int {
	return r.publish(events.SaleUpdate{Sale: after.Clone(), Timestamp: r.now()}, Audience{
		RestaurantID: after.RestaurantID,
		Queues:       SaleQueues(before).Union(SaleQueues(after)),
	})
}

// OrderCreated announces a new order to the restaurant staff and to the
// client who placed it.
func (r *Router) OrderCreated(o *fulfillment.Order) int {
	return r.publish(events.OrderNew{Order: *o.Clone()}, Audience{
		RestaurantID: o.RestaurantID,
		Staff:        true,
		Users:        clients(o.ClientID),
	})
}

// OrderUpdated publishes an order status change.
func (r *Router) OrderUpdated(before, after *fulfillment.Order) int {
	return r.publish(events.OrderStatus{OrderID: after.ID, Status: after.Status}, Audience{
		RestaurantID: after.RestaurantID,
		Queues:       OrderQueues(before).Union(OrderQueues(after)),
		Users:        clients(after.ClientID),
	})
}

// ReservationCreated announces a new reservation to the restaurant staff and
// the client who made it.
func (r *Router) ReservationCreated(res *fulfillment.Reservation) int {
	return r.publish(events.ReservationNew{Reservation: res.Clone(), Timestamp: r.now()}, Audience{
		RestaurantID: res.RestaurantID,
		Staff:        true,
		Users:        clients(res.ClientID),
	})
}

// ReservationUpdated publishes a reservation status change.
func (r *Router) ReservationUpdated(before, after *fulfillment.Reservation) int {
	return r.publish(events.ReservationUpdate{ReservationID: after.ID, Status: after.Status}, Audience{
		RestaurantID: after.RestaurantID,
		Queues:       ReservationQueues(before).Union(ReservationQueues(after)),
		Users:        clients(after.ClientID),
	})
}

// RestaurantStatus publishes the derived open flag to staff and to clients
// browsing the restaurant.
func (r *Router) RestaurantStatus(rest *fulfillment.Restaurant, message string) int {
	return r.publish(events.RestaurantStatus{
		RestaurantID: rest.ID,
		IsOpen:       rest.IsOpen,
		Message:      message,
		Manual:       rest.ManualOverride != nil,
	}, Audience{RestaurantID: rest.ID, Staff: true, Public: true})
}

// HoursUpdated publishes replaced opening hours.
func (r *Router) HoursUpdated(rest *fulfillment.Restaurant) int {
	return r.publish(events.HoursUpdated{
		RestaurantID: rest.ID,
		OpeningHours: rest.OpeningHours.Clone(),
		Timezone:     rest.Timezone,
	}, Audience{RestaurantID: rest.ID, Staff: true, Public: true})
}

// MenuAvailability publishes the availability of a menu item.
func (r *Router) MenuAvailability(restaurantID, menuID string, available bool) int {
	return r.publish(events.MenuAvailability{
		RestaurantID: restaurantID,
		MenuID:       menuID,
		Available:    available,
	}, Audience{RestaurantID: restaurantID, Staff: true, Public: true})
}

// Announce broadcasts an announcement to every subscriber.
func (r *Router) Announce(a events.Announcement) int {
	return r.publish(a, Audience{Global: true})
}

// Notify delivers a notification to the given users only.
func (r *Router) Notify(n events.Notification, userIDs ...string) int {
	return r.publish(n, Audience{Users: clients(userIDs...)})
}
