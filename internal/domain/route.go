package domain

import (
	"fmt"
	"strings"
	"time"
)

// RouteKey identifies a directed origin→destination pair.
type RouteKey struct {
	Origin      string // IATA airport code, e.g. "IST"
	Destination string // IATA airport code, e.g. "JFK"
}

// ParseRouteKey parses "IST-JFK" into a RouteKey.
func ParseRouteKey(s string) (RouteKey, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return RouteKey{}, fmt.Errorf("invalid route %q: want ORIGIN-DESTINATION", s)
	}
	origin := strings.ToUpper(strings.TrimSpace(parts[0]))
	dest := strings.ToUpper(strings.TrimSpace(parts[1]))
	if len(origin) != 3 || len(dest) != 3 {
		return RouteKey{}, fmt.Errorf("invalid route %q: airport codes must be 3 letters", s)
	}
	if origin == dest {
		return RouteKey{}, fmt.Errorf("invalid route %q: origin equals destination", s)
	}
	return RouteKey{Origin: origin, Destination: dest}, nil
}

// String returns the canonical "IST-JFK" form.
func (r RouteKey) String() string {
	return r.Origin + "-" + r.Destination
}

// Reverse returns the opposite direction of the route.
func (r RouteKey) Reverse() RouteKey {
	return RouteKey{Origin: r.Destination, Destination: r.Origin}
}

// DateLayout is the calendar-date wire format for departure and return dates.
const DateLayout = "2006-01-02"

// Date is a calendar date ("2025-06-10"). Fares are compared by calendar
// date, never by timestamp.
type Date string

// Parse converts the date into a time.Time at midnight UTC.
func (d Date) Parse() (time.Time, error) {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", string(d), err)
	}
	return t, nil
}

// Valid reports whether the date is well-formed.
func (d Date) Valid() bool {
	_, err := d.Parse()
	return err == nil
}

// NightsUntil returns the number of nights between d and the given return
// date. Negative when ret precedes d.
func (d Date) NightsUntil(ret Date) (int, error) {
	out, err := d.Parse()
	if err != nil {
		return 0, err
	}
	in, err := ret.Parse()
	if err != nil {
		return 0, err
	}
	return int(in.Sub(out).Hours() / 24), nil
}

// DurationCategory classifies a flight leg by its in-air duration. The stay
// window applied to a round-trip combination depends on the outbound leg's
// category.
type DurationCategory string

const (
	DurationShort DurationCategory = "short"
	DurationLong  DurationCategory = "long"
)

// CategorizeDuration maps a flight duration in minutes to a category using
// the configured long-haul threshold.
func CategorizeDuration(minutes, longHaulMinutes int) DurationCategory {
	if minutes >= longHaulMinutes {
		return DurationLong
	}
	return DurationShort
}

// StayWindow bounds the allowed nights between outbound departure and
// inbound departure for one duration category.
type StayWindow struct {
	MinNights int
	MaxNights int
}

// Contains reports whether the given stay length falls inside the window.
func (w StayWindow) Contains(nights int) bool {
	return nights >= w.MinNights && nights <= w.MaxNights
}
