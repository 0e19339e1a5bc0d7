package fulfillment

import (
	"fmt"
	"time"
)

// Transition functions validate and apply a single status change to an
// entity owned by the caller. They stamp UpdatedAt and append to History but
// never publish; publication happens after the caller has committed.

var (
	// statusRoles lists the non-management roles allowed to move a Sale or
	// Order into each status. Management roles are always allowed.
	statusRoles = map[Status][]Role{
		StatusConfirmed:      {RoleCashier, RoleWaiter},
		StatusPreparing:      {RoleKitchen},
		StatusReady:          {RoleKitchen},
		StatusOutForDelivery: {RoleWaiter},
		StatusDelivered:      {RoleWaiter},
		StatusCancelled:      nil,
	}

	itemRoles = map[ItemStatus][]Role{
		ItemPreparing: {RoleKitchen},
		ItemReady:     {RoleKitchen},
		ItemDelivered: {RoleWaiter},
		ItemCancelled: nil,
	}

	reservationRoles = map[ReservationStatus][]Role{
		ReservationConfirmed: {RoleCashier, RoleWaiter},
		ReservationCompleted: {RoleWaiter},
		ReservationCancelled: nil,
	}
)

// cancellable is the set of statuses from which a Sale or Order may be
// cancelled.
func cancellable(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady:
		return true
	}
	return false
}

// reachable reports whether to can follow from on the backbone. Forward
// jumps are allowed; moving backward or leaving a terminal status is not.
func reachable(from, to Status) bool {
	if from.Terminal() || !to.Valid() {
		return false
	}
	if to == StatusCancelled {
		return cancellable(from)
	}
	return to.rank() > from.rank()
}

// TransitionSale moves a Sale to status to on behalf of actor.
func TransitionSale(s *Sale, to Status, actor Role, now time.Time) error {
	from := s.Status
	if to == StatusOutForDelivery || !reachable(from, to) {
		return invalid("sale", string(from), string(to), actor, "")
	}
	if !roleIn(actor, statusRoles[to]) {
		return unauthorized("sale", string(from), string(to), actor)
	}

	switch to {
	case StatusReady:
		if !allActive(s.Items, func(st ItemStatus) bool { return st == ItemReady || st == ItemDelivered }) {
			return invalid("sale", string(from), string(to), actor, "items are still pending")
		}
	case StatusDelivered:
		if !allActive(s.Items, func(st ItemStatus) bool { return st == ItemDelivered }) {
			return invalid("sale", string(from), string(to), actor, "items are not delivered")
		}
	case StatusCancelled:
		for i := range s.Items {
			it := &s.Items[i]
			if it.Status == ItemPending || it.Status == ItemPreparing {
				it.History = append(it.History, StatusChange{From: string(it.Status), To: string(ItemCancelled), Actor: actor, At: now})
				it.Status = ItemCancelled
			}
		}
	}

	s.setStatus(to, actor, now)
	return nil
}

// TransitionItem moves item index of s to status to and then re-evaluates
// the sale's aggregate status.
func TransitionItem(s *Sale, index int, to ItemStatus, actor Role, now time.Time) error {
	if index < 0 || index >= len(s.Items) {
		return fmt.Errorf("%w: index %d", ErrItemNotFound, index)
	}
	it := &s.Items[index]
	from := it.Status
	entity := fmt.Sprintf("sale item %d", index)

	if s.Status.Terminal() || from.Terminal() || !to.Valid() {
		return invalid(entity, string(from), string(to), actor, "")
	}
	if to == ItemCancelled {
		if from != ItemPending && from != ItemPreparing {
			return invalid(entity, string(from), string(to), actor, "")
		}
	} else if to.rank() <= from.rank() {
		return invalid(entity, string(from), string(to), actor, "")
	}
	if !roleIn(actor, itemRoles[to]) {
		return unauthorized(entity, string(from), string(to), actor)
	}

	it.History = append(it.History, StatusChange{From: string(from), To: string(to), Actor: actor, At: now})
	it.Status = to
	s.UpdatedAt = now
	RecomputeSale(s, actor, now)
	return nil
}

// RecomputeSale applies the aggregate rule: when every active item is
// delivered the sale is delivered, when every active item is ready or
// delivered the sale is ready. The sale never regresses. Cancelled items are
// not active. It reports whether the sale status changed.
func RecomputeSale(s *Sale, actor Role, now time.Time) bool {
	if s.Status.Terminal() {
		return false
	}
	active := 0
	for _, it := range s.Items {
		if it.Status != ItemCancelled {
			active++
		}
	}
	if active == 0 {
		return false
	}

	var target Status
	switch {
	case allActive(s.Items, func(st ItemStatus) bool { return st == ItemDelivered }):
		target = StatusDelivered
	case allActive(s.Items, func(st ItemStatus) bool { return st == ItemReady || st == ItemDelivered }):
		target = StatusReady
	default:
		return false
	}
	if target.rank() <= s.Status.rank() {
		return false
	}
	s.setStatus(target, actor, now)
	return true
}

func allActive(items []SaleItem, ok func(ItemStatus) bool) bool {
	seen := false
	for _, it := range items {
		if it.Status == ItemCancelled {
			continue
		}
		seen = true
		if !ok(it.Status) {
			return false
		}
	}
	return seen
}

func (s *Sale) setStatus(to Status, actor Role, now time.Time) {
	s.History = append(s.History, StatusChange{From: string(s.Status), To: string(to), Actor: actor, At: now})
	s.Status = to
	s.UpdatedAt = now
}

// TransitionOrder moves an Order along the full backbone, including
// out_for_delivery.
func TransitionOrder(o *Order, to Status, actor Role, now time.Time) error {
	from := o.Status
	if !reachable(from, to) {
		return invalid("order", string(from), string(to), actor, "")
	}
	if !roleIn(actor, statusRoles[to]) {
		return unauthorized("order", string(from), string(to), actor)
	}
	o.History = append(o.History, StatusChange{From: string(from), To: string(to), Actor: actor, At: now})
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// TransitionReservation applies pending -> confirmed -> completed, with
// cancellation allowed from pending or confirmed.
func TransitionReservation(r *Reservation, to ReservationStatus, actor Role, now time.Time) error {
	from := r.Status
	ok := false
	switch to {
	case ReservationConfirmed:
		ok = from == ReservationPending
	case ReservationCompleted:
		ok = from == ReservationConfirmed
	case ReservationCancelled:
		ok = from == ReservationPending || from == ReservationConfirmed
	}
	if !ok {
		return invalid("reservation", string(from), string(to), actor, "")
	}
	if !roleIn(actor, reservationRoles[to]) {
		return unauthorized("reservation", string(from), string(to), actor)
	}
	r.History = append(r.History, StatusChange{From: string(from), To: string(to), Actor: actor, At: now})
	r.Status = to
	r.UpdatedAt = now
	return nil
}

// AuthorizeRestaurantToggle checks that actor may open or close a
// restaurant or change its opening hours.
func AuthorizeRestaurantToggle(actor Role) error {
	if actor.IsManagement() {
		return nil
	}
	return unauthorized("restaurant", "", "toggle", actor)
}
