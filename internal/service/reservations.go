package service

import (
	"context"
	"time"

	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

type ReservationInput struct {
	ID             string                      `json:"id,omitempty"`
	RestaurantID   string                      `json:"restaurantId"`
	ClientID       string                      `json:"clientId,omitempty"`
	Date           string                      `json:"date"`
	Time           string                      `json:"time,omitempty"`
	NumberOfGuests int                         `json:"numberOfGuests,omitempty"`
	Type           fulfillment.ReservationType `json:"reservationType,omitempty"`
	MenuItems      []fulfillment.OrderItem     `json:"menuItems,omitempty"`
}

func (in *ReservationInput) validate() error {
	if in.RestaurantID == "" {
		return invalidf("restaurantId is required")
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return invalidf("date must be YYYY-MM-DD")
	}
	if in.Time != "" {
		if _, err := time.Parse("15:04", in.Time); err != nil {
			return invalidf("time must be HH:MM")
		}
	}
	if in.NumberOfGuests < 0 {
		return invalidf("numberOfGuests must not be negative")
	}
	switch in.Type {
	case "":
		in.Type = fulfillment.ReservationDineIn
	case fulfillment.ReservationDineIn, fulfillment.ReservationTakeout:
	default:
		return invalidf("unknown reservationType %q", in.Type)
	}
	return nil
}

func (s *Service) CreateReservation(ctx context.Context, actor Actor, in ReservationInput) (*fulfillment.Reservation, error) {
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

	now := s.now()
	r := &fulfillment.Reservation{
		ID:             newID(in.ID),
		RestaurantID:   in.RestaurantID,
		ClientID:       clientID,
		Date:           in.Date,
		Time:           in.Time,
		NumberOfGuests: in.NumberOfGuests,
		Type:           in.Type,
		Status:         fulfillment.ReservationPending,
		MenuItems:      append([]fulfillment.OrderItem(nil), in.MenuItems...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	release := s.router.Hold("reservation", r.ID)
	defer release()
	if err := s.store.CreateReservation(ctx, r); err != nil {
		return nil, err
	}
	s.router.ReservationCreated(r)
	return r, nil
}

func (s *Service) ListReservations(ctx context.Context, actor Actor, restaurantID string) ([]*fulfillment.Reservation, error) {
	if err := actor.staffOf(restaurantID); err != nil {
		return nil, err
	}
	return s.store.ListReservations(ctx, restaurantID)
}

func (s *Service) TransitionReservation(ctx context.Context, actor Actor, id string, to fulfillment.ReservationStatus) (*fulfillment.Reservation, error) {
	release := s.router.Hold("reservation", id)
	defer release()

	var before *fulfillment.Reservation
	after, err := s.store.UpdateReservation(ctx, id, func(r *fulfillment.Reservation) error {
		if err := actor.staffOf(r.RestaurantID); err != nil {
			return err
		}
		before = r.Clone()
		return fulfillment.TransitionReservation(r, to, actor.Role, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.router.ReservationUpdated(before, after)
	s.record(ctx, "reservation", after.ID, after.RestaurantID, actor, since(after.History, len(before.History)))
	return after, nil
}
