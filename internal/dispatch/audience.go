package dispatch

import (
	"github.com/darkden-lab/orderflow/internal/events"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// Audience selects which live subscribers receive a published event.
type Audience struct {
	// Global events reach every subscriber regardless of scope.
	Global bool `json:"global,omitempty"`
	// RestaurantID scopes the event to subscribers bound to that restaurant.
	RestaurantID string `json:"restaurantId,omitempty"`
	// Staff reaches every staff role of the restaurant.
	Staff bool `json:"staff,omitempty"`
	// Queues reaches the staff roles watching any of the queues.
	Queues QueueSet `json:"queues,omitempty"`
	// Public reaches clients browsing the restaurant.
	Public bool `json:"public,omitempty"`
	// Users are direct recipients, matched by user id wherever they are bound.
	Users []string `json:"users,omitempty"`
}

// Subscriber is the scope a connection subscribed with.
type Subscriber struct {
	RestaurantID string
	Role         fulfillment.Role
	UserID       string
}

// Matches reports whether sub is part of the audience.
func (a Audience) Matches(sub Subscriber) bool {
	if a.Global {
		return true
	}
	if sub.UserID != "" {
		for _, u := range a.Users {
			if u == sub.UserID {
				return true
			}
		}
	}
	if a.RestaurantID == "" || a.RestaurantID != sub.RestaurantID {
		return false
	}
	if sub.Role.IsStaff() {
		return a.Staff || QueueRoles(sub.Role)&a.Queues != 0
	}
	return a.Public
}

// Publisher delivers an event to the live subscribers of an audience and
// reports how many received it.
type Publisher interface {
	Publish(ev events.Event, aud Audience) int
}
