package fulfillment

// Status is the lifecycle state shared by Sales and Orders. Orders use the
// full backbone; Sales never enter StatusOutForDelivery.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// rank returns the position of s on the backbone. Cancelled and unknown
// statuses are off the backbone and return -1.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusConfirmed:
		return 1
	case StatusPreparing:
		return 2
	case StatusReady:
		return 3
	case StatusOutForDelivery:
		return 4
	case StatusDelivered:
		return 5
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusCancelled || s.rank() >= 0
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// ItemStatus is the finer-grained state of a single SaleItem.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemDelivered ItemStatus = "delivered"
	ItemCancelled ItemStatus = "cancelled"
)

func (s ItemStatus) rank() int {
	switch s {
	case ItemPending:
		return 0
	case ItemPreparing:
		return 1
	case ItemReady:
		return 2
	case ItemDelivered:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	return s == ItemCancelled || s.rank() >= 0
}

// Terminal reports whether the item can no longer change.
func (s ItemStatus) Terminal() bool {
	return s == ItemDelivered || s == ItemCancelled
}

// ReservationStatus is the state of a Reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

// Terminal reports whether the reservation is closed.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCancelled || s == ReservationCompleted
}

// Role identifies the kind of actor performing a transition or holding a
// stream subscription.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleOwner         Role = "owner"
	RoleManager       Role = "manager"
	RoleKitchen       Role = "kitchen"
	RoleWaiter        Role = "waiter"
	RoleCashier       Role = "cashier"
	RoleClient        Role = "client"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleOwner, RoleManager, RoleKitchen, RoleWaiter, RoleCashier, RoleClient:
		return true
	}
	return false
}

// IsManagement reports whether r belongs to the owner group (owner,
// administrator, manager).
func (r Role) IsManagement() bool {
	return r == RoleOwner || r == RoleAdministrator || r == RoleManager
}

// IsStaff reports whether r works inside a restaurant.
func (r Role) IsStaff() bool {
	return r.IsManagement() || r == RoleKitchen || r == RoleWaiter || r == RoleCashier
}

func roleIn(r Role, allowed []Role) bool {
	if r.IsManagement() {
		return true
	}
	for _, a := range allowed {
		if a == r {
			return true
		}
	}
	return false
}
