// Package restaurant keeps the derived open flag of restaurants current: on
// the server by reconciling stored flags against opening hours, and on the
// client by combining pushed events with a periodic recomputation.
package restaurant

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/darkden-lab/orderflow/internal/dispatch"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
)

// DefaultInterval is the longest a derived flag may stay stale.
const DefaultInterval = 30 * time.Second

// Store is the part of the collaborator store the reconciler needs.
type Store interface {
	ListRestaurants(ctx context.Context) ([]*fulfillment.Restaurant, error)
	UpdateRestaurant(ctx context.Context, id string, fn func(*fulfillment.Restaurant) error) (*fulfillment.Restaurant, error)
}

var errUnchanged = errors.New("unchanged")

// Reconciler publishes restaurant:status whenever the hours-derived flag of
// a restaurant without an explicit toggle flips.
type Reconciler struct {
	store    Store
	router   *dispatch.Router
	interval time.Duration
	now      func() time.Time
}

func NewReconciler(store Store, router *dispatch.Router, interval time.Duration) *Reconciler {
	if interval <= 0 || interval > DefaultInterval {
		interval = DefaultInterval
	}
	return &Reconciler{store: store, router: router, interval: interval, now: time.Now}
}

// Run ticks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("restaurant: reconciling opening hours every %v", r.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Tick(ctx); err != nil {
				log.Printf("restaurant: reconcile failed: %v", err)
			}
		}
	}
}

// Tick reconciles every restaurant once and returns how many flipped.
func (r *Reconciler) Tick(ctx context.Context) (int, error) {
	list, err := r.store.ListRestaurants(ctx)
	if err != nil {
		return 0, err
	}

	now := r.now()
	flipped := 0
	for _, rest := range list {
		if rest.ManualOverride != nil || rest.OpenAt(now) == rest.IsOpen {
			continue
		}
		if r.reconcile(ctx, rest.ID, now) {
			flipped++
		}
	}
	return flipped, nil
}

// reconcile flips one restaurant and publishes the change under its hold.
func (r *Reconciler) reconcile(ctx context.Context, id string, now time.Time) bool {
	release := r.router.Hold("restaurant", id)
	defer release()

	updated, err := r.store.UpdateRestaurant(ctx, id, func(cur *fulfillment.Restaurant) error {
		open := cur.OpenAt(now)
		if cur.ManualOverride != nil || open == cur.IsOpen {
			return errUnchanged
		}
		cur.IsOpen = open
		cur.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return false
	}
	if err != nil {
		log.Printf("restaurant: failed to update %s: %v", id, err)
		return false
	}
	r.router.RestaurantStatus(updated, "opening hours")
	return true
}
