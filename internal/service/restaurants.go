package service

import (
	"context"
	"fmt"
	"time"

	"github.com/darkden-lab/orderflow/internal/events"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// GetRestaurant returns the restaurant with isOpen derived at the current
// time. The view is public.
func (s *Service) GetRestaurant(ctx context.Context, id string) (*fulfillment.Restaurant, error) {
	r, err := s.store.GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}
	r.IsOpen = r.OpenAt(s.now())
	return r, nil
}

func (s *Service) authorizeRestaurant(actor Actor, id string) error {
	if err := fulfillment.AuthorizeRestaurantToggle(actor.Role); err != nil {
		return err
	}
	if !actor.canAccess(id) {
		return fmt.Errorf("%w: restaurant %s", ErrForbidden, id)
	}
	return nil
}

// ToggleOpen applies an explicit open/closed toggle, which wins over the
// opening hours until the next toggle or hours update. A nil open clears
// the toggle and lets the hours decide again.
func (s *Service) ToggleOpen(ctx context.Context, actor Actor, id string, open *bool, message string) (*fulfillment.Restaurant, error) {
	if err := s.authorizeRestaurant(actor, id); err != nil {
		return nil, err
	}
	release := s.router.Hold("restaurant", id)
	defer release()

	now := s.now()
	r, err := s.store.UpdateRestaurant(ctx, id, func(r *fulfillment.Restaurant) error {
		if open != nil {
			v := *open
			r.ManualOverride = &v
		} else {
			r.ManualOverride = nil
		}
		r.IsOpen = r.OpenAt(now)
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.router.RestaurantStatus(r, message)
	return r, nil
}

// UpdateHours replaces the opening hours. It clears any explicit toggle,
// publishes restaurant:hours-updated and, when the derived flag changed,
// restaurant:status.
func (s *Service) UpdateHours(ctx context.Context, actor Actor, id string, hours fulfillment.OpeningHours, timezone string) (*fulfillment.Restaurant, error) {
	if err := s.authorizeRestaurant(actor, id); err != nil {
		return nil, err
	}
	if err := hours.Validate(); err != nil {
		return nil, invalidf("%v", err)
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, invalidf("unknown timezone %q", timezone)
		}
	}

	release := s.router.Hold("restaurant", id)
	defer release()

	now := s.now()
	var wasOpen bool
	r, err := s.store.UpdateRestaurant(ctx, id, func(r *fulfillment.Restaurant) error {
		wasOpen = r.IsOpen
		r.OpeningHours = hours.Clone()
		if timezone != "" {
			r.Timezone = timezone
		}
		r.ManualOverride = nil
		r.IsOpen = r.OpenAt(now)
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.router.HoursUpdated(r)
	if r.IsOpen != wasOpen {
		s.router.RestaurantStatus(r, "opening hours changed")
	}
	return r, nil
}

// SetMenuAvailability announces that a menu item ran out or came back.
func (s *Service) SetMenuAvailability(ctx context.Context, actor Actor, restaurantID, menuID string, available bool) error {
	if err := actor.staffOf(restaurantID); err != nil {
		return err
	}
	if !actor.Role.IsManagement() && actor.Role != fulfillment.RoleKitchen {
		return fmt.Errorf("%w: %s may not change menu availability", ErrForbidden, actor.Role)
	}
	if _, err := s.store.GetRestaurant(ctx, restaurantID); err != nil {
		return err
	}
	s.router.MenuAvailability(restaurantID, menuID, available)
	return nil
}

// Announce broadcasts to every connected subscriber.
func (s *Service) Announce(actor Actor, title, message string) (events.Announcement, error) {
	if !actor.Role.IsManagement() {
		return events.Announcement{}, fmt.Errorf("%w: announcements need a management role", ErrForbidden)
	}
	if message == "" {
		return events.Announcement{}, invalidf("message is required")
	}
	a := events.NewAnnouncement(title, message)
	s.router.Announce(a)
	return a, nil
}

// Notify sends a notification to the listed users and reports how many
// live connections received it.
func (s *Service) Notify(actor Actor, message string, userIDs []string) (events.Notification, int, error) {
	if !actor.Role.IsManagement() {
		return events.Notification{}, 0, fmt.Errorf("%w: notifications need a management role", ErrForbidden)
	}
	if message == "" || len(userIDs) == 0 {
		return events.Notification{}, 0, invalidf("message and userIds are required")
	}
	n := events.NewNotification(message)
	return n, s.router.Notify(n, userIDs...), nil
}

// SaveRestaurant creates or replaces a restaurant. Administrators only.
func (s *Service) SaveRestaurant(ctx context.Context, actor Actor, r *fulfillment.Restaurant) (*fulfillment.Restaurant, error) {
	if actor.Role != fulfillment.RoleAdministrator {
		return nil, fmt.Errorf("%w: restaurants are managed by administrators", ErrForbidden)
	}
	if r.ID == "" {
		return nil, invalidf("id is required")
	}
	if err := r.OpeningHours.Validate(); err != nil {
		return nil, invalidf("%v", err)
	}
	release := s.router.Hold("restaurant", r.ID)
	defer release()

	r = r.Clone()
	r.UpdatedAt = s.now()
	r.IsOpen = r.OpenAt(r.UpdatedAt)
	if err := s.store.PutRestaurant(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}
