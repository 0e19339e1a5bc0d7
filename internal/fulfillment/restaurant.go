package fulfillment

import (
	"fmt"
	"strings"
	"time"
)

// DayHours is the opening window of a single weekday. Close at or before Open
// means the window runs past midnight into the next day; "00:00"-"00:00" is
// open around the clock.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed,omitempty"`
}

// OpeningHours maps lower-case English weekday names ("monday") to the
// window of that day. A missing day is closed.
type OpeningHours map[string]DayHours

func dayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (d DayHours) span() (from, until int, err error) {
	if from, err = parseClock(d.Open); err != nil {
		return 0, 0, err
	}
	if until, err = parseClock(d.Close); err != nil {
		return 0, 0, err
	}
	return from, until, nil
}

// Validate checks day names and clock values.
func (h OpeningHours) Validate() error {
	for day, d := range h {
		known := false
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if dayKey(wd) == day {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown weekday %q", day)
		}
		if d.Closed {
			continue
		}
		if _, _, err := d.span(); err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
	}
	return nil
}

// IsOpenAt reports whether t falls inside the opening window of its own
// weekday or inside the overnight tail of the previous day. t is interpreted
// in its own location.
func (h OpeningHours) IsOpenAt(t time.Time) bool {
	mins := t.Hour()*60 + t.Minute()

	if d, ok := h[dayKey(t.Weekday())]; ok && !d.Closed {
		if from, until, err := d.span(); err == nil {
			if until > from {
				if mins >= from && mins < until {
					return true
				}
			} else if mins >= from {
				return true
			}
		}
	}

	prev := (t.Weekday() + 6) % 7
	if d, ok := h[dayKey(prev)]; ok && !d.Closed {
		if from, until, err := d.span(); err == nil && until <= from && mins < until {
			return true
		}
	}
	return false
}

// Clone returns a copy of h.
func (h OpeningHours) Clone() OpeningHours {
	if h == nil {
		return nil
	}
	c := make(OpeningHours, len(h))
	for k, v := range h {
		c[k] = v
	}
	return c
}

// Restaurant is the scoped view of a restaurant used by the pipeline.
// ManualOverride holds the explicit owner toggle; nil means isOpen follows
// the opening hours.
type Restaurant struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Timezone       string       `json:"timezone,omitempty"`
	OpeningHours   OpeningHours `json:"openingHours"`
	ManualOverride *bool        `json:"manualOverride,omitempty"`
	IsOpen         bool         `json:"isOpen"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// Location resolves the restaurant timezone, falling back to UTC.
func (r *Restaurant) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OpenAt derives isOpen at now: the explicit toggle when set, otherwise the
// opening hours evaluated in the restaurant's timezone.
func (r *Restaurant) OpenAt(now time.Time) bool {
	if r.ManualOverride != nil {
		return *r.ManualOverride
	}
	return r.OpeningHours.IsOpenAt(now.In(r.Location()))
}

// Clone returns a deep copy of r.
func (r *Restaurant) Clone() *Restaurant {
	if r == nil {
		return nil
	}
	c := *r
	c.OpeningHours = r.OpeningHours.Clone()
	if r.ManualOverride != nil {
		v := *r.ManualOverride
		c.ManualOverride = &v
	}
	return &c
}
