package service

import (
	"context"
	"fmt"

	"github.com/darkden-lab/orderflow/internal/dispatch"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// SaleInput is the payload of a new sale. Item statuses are ignored.
type SaleInput struct {
	ID           string                 `json:"id,omitempty"`
	RestaurantID string                 `json:"restaurantId"`
	TableNumber  *int                   `json:"tableNumber,omitempty"`
	CustomerName string                 `json:"customerName,omitempty"`
	Notes        string                 `json:"notes,omitempty"`
	Items        []fulfillment.SaleItem `json:"items"`
}

func (in SaleInput) validate() error {
	if in.RestaurantID == "" {
		return invalidf("restaurantId is required")
	}
	if len(in.Items) == 0 {
		return invalidf("a sale needs at least one item")
	}
	for i, it := range in.Items {
		if it.MenuID == "" || it.Quantity <= 0 || it.Price.IsNegative() {
			return invalidf("item %d needs a menuId, a positive quantity and a non-negative price", i)
		}
	}
	return nil
}

// CreateSale stores a pending sale and announces it with sale:new.
func (s *Service) CreateSale(ctx context.Context, actor Actor, in SaleInput) (*fulfillment.Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := actor.staffOf(in.RestaurantID); err != nil {
		return nil, err
	}

	sale := fulfillment.NewSale(newID(in.ID), in.RestaurantID, in.Items, s.now())
	sale.TableNumber = in.TableNumber
	sale.CustomerName = in.CustomerName
	sale.Notes = in.Notes

	release := s.router.Hold("sale", sale.ID)
	defer release()
	if err := s.store.CreateSale(ctx, sale); err != nil {
		return nil, err
	}
	s.router.SaleCreated(sale)
	return sale, nil
}

func (s *Service) GetSale(ctx context.Context, actor Actor, id string) (*fulfillment.Sale, error) {
	sale, err := s.store.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.staffOf(sale.RestaurantID); err != nil {
		return nil, err
	}
	return sale, nil
}

// ListSales returns every sale of restaurantID, for re-fetch on reconnect.
func (s *Service) ListSales(ctx context.Context, actor Actor, restaurantID string) ([]*fulfillment.Sale, error) {
	if err := actor.staffOf(restaurantID); err != nil {
		return nil, err
	}
	return s.store.ListSales(ctx, restaurantID)
}

// ListQueue returns the sales of restaurantID currently in queue q.
func (s *Service) ListQueue(ctx context.Context, actor Actor, restaurantID string, q dispatch.Queue) ([]*fulfillment.Sale, error) {
	if err := actor.staffOf(restaurantID); err != nil {
		return nil, err
	}
	if !actor.Role.IsManagement() && !dispatch.QueueRoles(actor.Role).Has(q) {
		return nil, fmt.Errorf("%w: %s does not work the %s queue", ErrForbidden, actor.Role, q)
	}
	sales, err := s.store.ListSales(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	out := []*fulfillment.Sale{}
	for _, sale := range sales {
		if dispatch.SaleQueues(sale).Has(q) {
			out = append(out, sale)
		}
	}
	return out, nil
}

// updateSale runs mutate under the store's row lock, then publishes
// sale:update with the queues before and after and records the changes.
func (s *Service) updateSale(ctx context.Context, actor Actor, id string, mutate func(*fulfillment.Sale) error) (*fulfillment.Sale, error) {
	release := s.router.Hold("sale", id)
	defer release()

	var before *fulfillment.Sale
	after, err := s.store.UpdateSale(ctx, id, func(sale *fulfillment.Sale) error {
		if err := actor.staffOf(sale.RestaurantID); err != nil {
			return err
		}
		before = sale.Clone()
		return mutate(sale)
	})
	if err != nil {
		return nil, err
	}

	s.router.SaleUpdated(before, after)

	s.record(ctx, "sale", after.ID, after.RestaurantID, actor, since(after.History, len(before.History)))
	for i := range after.Items {
		itemID := fmt.Sprintf("%s/items/%d", after.ID, i)
		s.record(ctx, "sale_item", itemID, after.RestaurantID, actor, since(after.Items[i].History, len(before.Items[i].History)))
	}
	return after, nil
}

// TransitionSale moves a sale to status to.
func (s *Service) TransitionSale(ctx context.Context, actor Actor, id string, to fulfillment.Status) (*fulfillment.Sale, error) {
	return s.updateSale(ctx, actor, id, func(sale *fulfillment.Sale) error {
		return fulfillment.TransitionSale(sale, to, actor.Role, s.now())
	})
}

// TransitionItem moves one item and lets the sale follow its items.
func (s *Service) TransitionItem(ctx context.Context, actor Actor, id string, index int, to fulfillment.ItemStatus) (*fulfillment.Sale, error) {
	return s.updateSale(ctx, actor, id, func(sale *fulfillment.Sale) error {
		return fulfillment.TransitionItem(sale, index, to, actor.Role, s.now())
	})
}
