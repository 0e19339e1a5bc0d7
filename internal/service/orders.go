package service

import (
	"context"
	"fmt"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// OrderInput is the payload of a new client order. ClientID is honoured
// only for staff placing an order on a client's behalf.
type OrderInput struct {
	ID              string                  `json:"id,omitempty"`
	RestaurantID    string                  `json:"restaurantId"`
	ClientID        string                  `json:"clientId,omitempty"`
	DeliveryAddress string                  `json:"deliveryAddress,omitempty"`
	Notes           string                  `json:"notes,omitempty"`
	Items           []fulfillment.OrderItem `json:"items"`
}

func (in OrderInput) validate() error {
	if in.RestaurantID == "" {
		return invalidf("restaurantId is required")
	}
	if len(in.Items) == 0 {
		return invalidf("an order needs at least one item")
	}
	for i, it := range in.Items {
		if it.MenuID == "" || it.Quantity <= 0 || it.Price.IsNegative() {
			return invalidf("item %d needs a menuId, a positive quantity and a non-negative price", i)
		}
	}
	return nil
}

// ownsOrVisits reports whether actor may see an entity of clientID placed at
// restaurantID.
func (a Actor) ownsOrVisits(restaurantID, clientID string) error {
	if a.Role == fulfillment.RoleClient {
		if clientID != a.UserID {
			return fmt.Errorf("%w: not your order", ErrForbidden)
		}
		return nil
	}
	return a.staffOf(restaurantID)
}

func (s *Service) CreateOrder(ctx context.Context, actor Actor, in OrderInput) (*fulfillment.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	clientID := actor.UserID
	if actor.Role != fulfillment.RoleClient {
		if err := actor.staffOf(in.RestaurantID); err != nil {
			return nil, err
		}
		if in.ClientID != "" {
			clientID = in.ClientID
		}
	}

	o := fulfillment.NewOrder(newID(in.ID), in.RestaurantID, clientID, in.Items, s.now())
	o.DeliveryAddress = in.DeliveryAddress
	o.Notes = in.Notes

	release := s.router.Hold("order", o.ID)
	defer release()
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	s.router.OrderCreated(o)
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, actor Actor, id string) (*fulfillment.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.ownsOrVisits(o.RestaurantID, o.ClientID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) TransitionOrder(ctx context.Context, actor Actor, id string, to fulfillment.Status) (*fulfillment.Order, error) {
	release := s.router.Hold("order", id)
	defer release()

	var before *fulfillment.Order
	after, err := s.store.UpdateOrder(ctx, id, func(o *fulfillment.Order) error {
		if err := actor.staffOf(o.RestaurantID); err != nil {
			return err
		}
		before = o.Clone()
		return fulfillment.TransitionOrder(o, to, actor.Role, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.router.OrderUpdated(before, after)
	s.record(ctx, "order", after.ID, after.RestaurantID, actor, since(after.History, len(before.History)))
	return after, nil
}
