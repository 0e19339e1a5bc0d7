package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// Kind is the wire "type" of an event. The set of kinds is closed: every
// kind has exactly one payload type, listed in payloadFactories.
type Kind string

const (
	KindConnected         Kind = "connected"
	KindSaleNew           Kind = "sale:new"
	KindSaleUpdate        Kind = "sale:update"
	KindReservationNew    Kind = "reservation:new"
	KindReservationUpdate Kind = "reservation:update"
	KindRestaurantStatus  Kind = "restaurant:status"
	KindHoursUpdated      Kind = "restaurant:hours-updated"
	KindOrderNew          Kind = "order:new"
	KindOrderStatus       Kind = "order:status"
	KindMenuAvailability  Kind = "menu:availability"
	KindAnnouncement      Kind = "announcement-received"
	KindNotification      Kind = "notification"
)

// Catalog lists the business event kinds in a stable order. The connected
// handshake is not part of it.
var Catalog = []Kind{
	KindSaleNew,
	KindSaleUpdate,
	KindReservationNew,
	KindReservationUpdate,
	KindRestaurantStatus,
	KindHoursUpdated,
	KindOrderNew,
	KindOrderStatus,
	KindMenuAvailability,
	KindAnnouncement,
	KindNotification,
}

// Payload is the typed body of an event.
type Payload interface {
	// Kind returns the event kind this payload belongs to.
	Kind() Kind
	// Identity returns the id of the entity the payload describes. Applying
	// two events with the same kind and identity must converge to the same
	// client state.
	Identity() string
}

// Event is a typed event as carried through the broker.
type Event struct {
	Kind Kind
	Data Payload
}

// New wraps a payload into an Event of the payload's kind.
func New(p Payload) Event {
	return Event{Kind: p.Kind(), Data: p}
}

// EntityID returns the identity of the event's payload.
func (e Event) EntityID() string {
	if e.Data == nil {
		return ""
	}
	return e.Data.Identity()
}

// Connected is the handshake marker written first on every stream. It has
// no business payload; ConnectionID is informational.
type Connected struct {
	ConnectionID string `json:"connectionId,omitempty"`
}

func (Connected) Kind() Kind         { return KindConnected }
func (c Connected) Identity() string { return c.ConnectionID }

// SaleNew announces a created sale.
type SaleNew struct {
	Sale      *fulfillment.Sale `json:"sale"`
	Timestamp time.Time         `json:"timestamp"`
}

func (SaleNew) Kind() Kind         { return KindSaleNew }
func (p SaleNew) Identity() string { return saleID(p.Sale) }

// SaleUpdate carries the full sale after a committed transition.
type SaleUpdate struct {
	Sale      *fulfillment.Sale `json:"sale"`
	Timestamp time.Time         `json:"timestamp"`
}

func (SaleUpdate) Kind() Kind         { return KindSaleUpdate }
func (p SaleUpdate) Identity() string { return saleID(p.Sale) }

func saleID(s *fulfillment.Sale) string {
	if s == nil {
		return ""
	}
	return s.ID
}

// ReservationNew announces a created reservation.
type ReservationNew struct {
	Reservation *fulfillment.Reservation `json:"reservation"`
	Timestamp   time.Time                `json:"timestamp"`
}

func (ReservationNew) Kind() Kind { return KindReservationNew }
func (p ReservationNew) Identity() string {
	if p.Reservation == nil {
		return ""
	}
	return p.Reservation.ID
}

// ReservationUpdate carries a reservation status change.
type ReservationUpdate struct {
	ReservationID string                        `json:"reservationId"`
	Status        fulfillment.ReservationStatus `json:"status"`
}

func (ReservationUpdate) Kind() Kind         { return KindReservationUpdate }
func (p ReservationUpdate) Identity() string { return p.ReservationID }

// RestaurantStatus carries the derived open flag of a restaurant.
type RestaurantStatus struct {
	RestaurantID string `json:"restaurantId"`
	IsOpen       bool   `json:"isOpen"`
	Message      string `json:"message,omitempty"`
	// Manual is set when the flag comes from an explicit toggle rather than
	// from the opening hours.
	Manual bool `json:"manual,omitempty"`
}

func (RestaurantStatus) Kind() Kind         { return KindRestaurantStatus }
func (p RestaurantStatus) Identity() string { return p.RestaurantID }

// HoursUpdated carries replaced opening hours.
type HoursUpdated struct {
	RestaurantID string                   `json:"restaurantId"`
	OpeningHours fulfillment.OpeningHours `json:"openingHours"`
	Timezone     string                   `json:"timezone,omitempty"`
}

func (HoursUpdated) Kind() Kind         { return KindHoursUpdated }
func (p HoursUpdated) Identity() string { return p.RestaurantID }

// OrderNew is the created order itself.
type OrderNew struct {
	fulfillment.Order
}

func (OrderNew) Kind() Kind         { return KindOrderNew }
func (p OrderNew) Identity() string { return p.ID }

// OrderStatus carries an order status change.
type OrderStatus struct {
	OrderID string             `json:"orderId"`
	Status  fulfillment.Status `json:"status"`
}

func (OrderStatus) Kind() Kind         { return KindOrderStatus }
func (p OrderStatus) Identity() string { return p.OrderID }

// MenuAvailability carries the availability flag of a menu item.
type MenuAvailability struct {
	RestaurantID string `json:"restaurantId,omitempty"`
	MenuID       string `json:"menuId,omitempty"`
	Available    bool   `json:"available"`
}

func (MenuAvailability) Kind() Kind         { return KindMenuAvailability }
func (p MenuAvailability) Identity() string { return p.MenuID }

// Announcement is broadcast to every connected subscriber.
type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAnnouncement creates an Announcement with a generated id and the
// current timestamp.
func NewAnnouncement(title, message string) Announcement {
	return Announcement{
		ID:        uuid.New().String(),
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

func (Announcement) Kind() Kind         { return KindAnnouncement }
func (p Announcement) Identity() string { return p.ID }

// Notification is addressed to specific users.
type Notification struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// NewNotification creates a Notification with a generated id.
func NewNotification(message string) Notification {
	return Notification{ID: uuid.New().String(), Message: message}
}

func (Notification) Kind() Kind         { return KindNotification }
func (p Notification) Identity() string { return p.ID }
