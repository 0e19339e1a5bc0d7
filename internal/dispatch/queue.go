package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// Queue is a role-specific work queue.
type Queue string

const (
	QueueKitchen        Queue = "kitchen"
	QueueWaiter         Queue = "waiter"
	QueueCashierSales   Queue = "cashier-sales"
	QueueOwnerDashboard Queue = "owner-dashboard"
)

// Queues lists every queue in a stable order.
var Queues = []Queue{QueueKitchen, QueueWaiter, QueueCashierSales, QueueOwnerDashboard}

func (q Queue) bit() QueueSet {
	for i, known := range Queues {
		if known == q {
			return 1 << i
		}
	}
	return 0
}

// ParseQueue validates a queue name.
func ParseQueue(s string) (Queue, error) {
	q := Queue(s)
	if q.bit() == 0 {
		return "", fmt.Errorf("unknown queue %q", s)
	}
	return q, nil
}

// QueueSet is a set of queues.
type QueueSet uint8

// NewQueueSet builds a set from the given queues.
func NewQueueSet(qs ...Queue) QueueSet {
	var s QueueSet
	for _, q := range qs {
		s |= q.bit()
	}
	return s
}

// Has reports whether q is in the set.
func (s QueueSet) Has(q Queue) bool {
	b := q.bit()
	return b != 0 && s&b != 0
}

// Union returns the queues in s or o.
func (s QueueSet) Union(o QueueSet) QueueSet { return s | o }

// Empty reports whether the set has no queues.
func (s QueueSet) Empty() bool { return s == 0 }

// List returns the queues of the set in the order of Queues.
func (s QueueSet) List() []Queue {
	out := make([]Queue, 0, len(Queues))
	for _, q := range Queues {
		if s.Has(q) {
			out = append(out, q)
		}
	}
	return out
}

func (s QueueSet) String() string {
	return fmt.Sprint(s.List())
}

func (s QueueSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func (s *QueueSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var out QueueSet
	for _, n := range names {
		q, err := ParseQueue(n)
		if err != nil {
			return err
		}
		out |= q.bit()
	}
	*s = out
	return nil
}

// SaleQueues returns the queues a sale belongs to.
//
//	kitchen          status confirmed or preparing
//	waiter           status ready
//	cashier-sales    status pending or confirmed with at least one open item
//	owner-dashboard  any non-terminal status
func SaleQueues(s *fulfillment.Sale) QueueSet {
	if s == nil || s.Status.Terminal() {
		return 0
	}
	set := NewQueueSet(QueueOwnerDashboard)
	switch s.Status {
	case fulfillment.StatusConfirmed, fulfillment.StatusPreparing:
		set |= QueueKitchen.bit()
	case fulfillment.StatusReady:
		set |= QueueWaiter.bit()
	}
	if s.Status == fulfillment.StatusPending || s.Status == fulfillment.StatusConfirmed {
		for _, it := range s.Items {
			if it.Status != fulfillment.ItemDelivered && it.Status != fulfillment.ItemCancelled {
				set |= QueueCashierSales.bit()
				break
			}
		}
	}
	return set
}

// OrderQueues applies the sale rules to an order, with out_for_delivery
// staying in the waiter queue. Orders have no cashier badge.
func OrderQueues(o *fulfillment.Order) QueueSet {
	if o == nil || o.Status.Terminal() {
		return 0
	}
	set := NewQueueSet(QueueOwnerDashboard)
	switch o.Status {
	case fulfillment.StatusConfirmed, fulfillment.StatusPreparing:
		set |= QueueKitchen.bit()
	case fulfillment.StatusReady, fulfillment.StatusOutForDelivery:
		set |= QueueWaiter.bit()
	}
	return set
}

// ReservationQueues puts open reservations on the owner dashboard and the
// waiter floor view.
func ReservationQueues(r *fulfillment.Reservation) QueueSet {
	if r == nil || r.Status.Terminal() {
		return 0
	}
	return NewQueueSet(QueueOwnerDashboard, QueueWaiter)
}

// QueuesFor dispatches on the entity type. It is the only place that decides
// which screens must see an entity.
func QueuesFor(entity any) QueueSet {
	switch e := entity.(type) {
	case *fulfillment.Sale:
		return SaleQueues(e)
	case *fulfillment.Order:
		return OrderQueues(e)
	case *fulfillment.Reservation:
		return ReservationQueues(e)
	default:
		return 0
	}
}

// QueueRoles maps a subscriber role to the queue it watches. Management
// roles watch every queue and clients watch none.
func QueueRoles(role fulfillment.Role) QueueSet {
	switch {
	case role.IsManagement():
		return NewQueueSet(Queues...)
	case role == fulfillment.RoleKitchen:
		return NewQueueSet(QueueKitchen)
	case role == fulfillment.RoleWaiter:
		return NewQueueSet(QueueWaiter)
	case role == fulfillment.RoleCashier:
		return NewQueueSet(QueueCashierSales)
	default:
		return 0
	}
}
