package restaurant

import (
	"context"
	"sync"
	"time"

	"github.com/darkden-lab/orderflow/internal/events"
	"github.com/darkden-lab/orderflow/internal/fulfillment"
	"github.com/darkden-lab/orderflow/internal/subscription"
)

// Tracker is the client-side view of one restaurant's open flag. Pushed
// events update it immediately and a periodic recomputation from the
// opening hours covers missed events. An explicit toggle wins over the
// recomputation until another toggle or an hours update replaces it.
type Tracker struct {
	mu       sync.Mutex
	rest     *fulfillment.Restaurant
	now      func() time.Time
	onChange func(isOpen bool)
}

// NewTracker starts from a fetched restaurant. onChange, when set, is
// called with the new flag whenever it changes.
func NewTracker(rest *fulfillment.Restaurant, onChange func(isOpen bool)) *Tracker {
	return &Tracker{rest: rest.Clone(), now: time.Now, onChange: onChange}
}

func (t *Tracker) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rest.IsOpen
}

// Manual reports whether the flag currently comes from an explicit toggle.
func (t *Tracker) Manual() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rest.ManualOverride != nil
}

// set updates the flag under t.mu and returns the callback to run after
// unlocking, if any.
func (t *Tracker) set(open bool) func() {
	if t.rest.IsOpen == open {
		return func() {}
	}
	t.rest.IsOpen = open
	if t.onChange == nil {
		return func() {}
	}
	return func() { t.onChange(open) }
}

// ApplyStatus handles restaurant:status. A manual status pins the flag; an
// hours-derived one clears any pin.
func (t *Tracker) ApplyStatus(p events.RestaurantStatus) {
	t.mu.Lock()
	if p.RestaurantID != t.rest.ID {
		t.mu.Unlock()
		return
	}
	if p.Manual {
		v := p.IsOpen
		t.rest.ManualOverride = &v
	} else {
		t.rest.ManualOverride = nil
	}
	notify := t.set(p.IsOpen)
	t.mu.Unlock()
	notify()
}

// ApplyHours handles restaurant:hours-updated: replace the hours, drop any
// explicit toggle and recompute at once.
func (t *Tracker) ApplyHours(p events.HoursUpdated) {
	t.mu.Lock()
	if p.RestaurantID != t.rest.ID {
		t.mu.Unlock()
		return
	}
	t.rest.OpeningHours = p.OpeningHours.Clone()
	if p.Timezone != "" {
		t.rest.Timezone = p.Timezone
	}
	t.rest.ManualOverride = nil
	notify := t.set(t.rest.OpenAt(t.now()))
	t.mu.Unlock()
	notify()
}

// Recompute derives the flag from the hours unless an explicit toggle is
// in force, and returns the current flag.
func (t *Tracker) Recompute() bool {
	t.mu.Lock()
	notify := t.set(t.rest.OpenAt(t.now()))
	open := t.rest.IsOpen
	t.mu.Unlock()
	notify()
	return open
}

// Attach subscribes the tracker to the registry and returns a function that
// removes both subscriptions.
func (t *Tracker) Attach(reg *subscription.Registry) func() {
	offStatus := subscription.On(reg, func(p events.RestaurantStatus) error {
		t.ApplyStatus(p)
		return nil
	})
	offHours := subscription.On(reg, func(p events.HoursUpdated) error {
		t.ApplyHours(p)
		return nil
	})
	return func() {
		offStatus()
		offHours()
	}
}

// Run recomputes every interval until ctx is cancelled. Intervals above
// DefaultInterval are clamped to it.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || interval > DefaultInterval {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Recompute()
		}
	}
}
