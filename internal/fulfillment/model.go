package fulfillment

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusChange records a single committed transition. The history of an
// entity is the authoritative source for timing metrics.
type StatusChange struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Actor Role      `json:"actor"`
	At    time.Time `json:"at"`
}

// History is the ordered list of transitions of an entity.
type History []StatusChange

// FirstAt returns when the entity first entered status to.
func (h History) FirstAt(to string) (time.Time, bool) {
	for _, c := range h {
		if c.To == to {
			return c.At, true
		}
	}
	return time.Time{}, false
}

// Between returns the time elapsed from first entering from until first
// entering to. ok is false when either transition is missing.
func (h History) Between(from, to string) (time.Duration, bool) {
	start, ok := h.FirstAt(from)
	if !ok {
		return 0, false
	}
	end, ok := h.FirstAt(to)
	if !ok || end.Before(start) {
		return 0, false
	}
	return end.Sub(start), true
}

// SaleItem is a line of a Sale. MenuName and Price are snapshots taken when
// the sale was created.
type SaleItem struct {
	MenuID   string          `json:"menuId"`
	MenuName string          `json:"menuName"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Status   ItemStatus      `json:"status"`
	Notes    string          `json:"notes,omitempty"`
	History  History         `json:"history,omitempty"`
}

// Sale is a point-of-sale order taken by staff.
type Sale struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurantId"`
	Status       Status          `json:"status"`
	Total        decimal.Decimal `json:"total"`
	TableNumber  *int            `json:"tableNumber,omitempty"`
	CustomerName string          `json:"customerName,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Items        []SaleItem      `json:"items"`
	History      History         `json:"history,omitempty"`
}

// NewSale builds a pending sale, computing subtotals and the total from the
// item prices and quantities.
func NewSale(id, restaurantID string, items []SaleItem, now time.Time) *Sale {
	s := &Sale{
		ID:           id,
		RestaurantID: restaurantID,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		Items:        make([]SaleItem, len(items)),
	}
	total := decimal.Zero
	for i, it := range items {
		it.Status = ItemPending
		it.Subtotal = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		it.History = nil
		total = total.Add(it.Subtotal)
		s.Items[i] = it
	}
	s.Total = total
	return s
}

// Clone returns a deep copy of s.
func (s *Sale) Clone() *Sale {
	if s == nil {
		return nil
	}
	c := *s
	if s.TableNumber != nil {
		n := *s.TableNumber
		c.TableNumber = &n
	}
	c.Items = make([]SaleItem, len(s.Items))
	for i, it := range s.Items {
		it.History = append(History(nil), it.History...)
		c.Items[i] = it
	}
	c.History = append(History(nil), s.History...)
	return &c
}

// PreparationTime is the time from the sale entering preparing to ready.
func (s *Sale) PreparationTime() (time.Duration, bool) {
	return s.History.Between(string(StatusPreparing), string(StatusReady))
}

// DeliveryTime is the time from the sale being ready to delivered.
func (s *Sale) DeliveryTime() (time.Duration, bool) {
	return s.History.Between(string(StatusReady), string(StatusDelivered))
}

// OrderItem is a line of a client order.
type OrderItem struct {
	MenuID   string          `json:"menuId"`
	MenuName string          `json:"menuName,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Order is a client-placed delivery or pickup order.
type Order struct {
	ID              string          `json:"id"`
	RestaurantID    string          `json:"restaurantId"`
	ClientID        string          `json:"clientId"`
	Status          Status          `json:"status"`
	Total           decimal.Decimal `json:"total"`
	DeliveryAddress string          `json:"deliveryAddress,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	History         History         `json:"history,omitempty"`
}

// NewOrder builds a pending order and computes its total.
func NewOrder(id, restaurantID, clientID string, items []OrderItem, now time.Time) *Order {
	o := &Order{
		ID:           id,
		RestaurantID: restaurantID,
		ClientID:     clientID,
		Status:       StatusPending,
		Items:        make([]OrderItem, len(items)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	copy(o.Items, items)
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	o.Total = total
	return o
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.History = append(History(nil), o.History...)
	return &c
}

// ReservationType distinguishes table bookings from pre-ordered takeouts.
type ReservationType string

const (
	ReservationDineIn  ReservationType = "dine-in"
	ReservationTakeout ReservationType = "takeout"
)

// Reservation is a table or dish reservation.
type Reservation struct {
	ID             string            `json:"id"`
	RestaurantID   string            `json:"restaurantId"`
	ClientID       string            `json:"clientId"`
	Date           string            `json:"date"`
	Time           string            `json:"time,omitempty"`
	NumberOfGuests int               `json:"numberOfGuests,omitempty"`
	Type           ReservationType   `json:"reservationType"`
	Status         ReservationStatus `json:"status"`
	MenuItems      []OrderItem       `json:"menuItems,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	History        History           `json:"history,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	c.MenuItems = append([]OrderItem(nil), r.MenuItems...)
	c.History = append(History(nil), r.History...)
	return &c
}
