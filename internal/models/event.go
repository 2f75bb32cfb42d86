package models

import (
	"time"

	"hakobite/internal/slot"
)

// Event is a calendar entry as seen by the booking core, independent of the
// provider it came from. Start and End are already normalised to the service
// zone; all-day events carry no instants.
type Event struct {
	ID          string    // Provider event identifier
	Title       string    // Summary line
	Description string    // Free-form body
	Start       time.Time // Zero for all-day events
	End         time.Time // Zero for all-day events
	AllDay      bool      // True when the provider only gave dates
	Location    string
	UID         string // iCalendar UID
	BookingID   string // Set on events created by this service
	Source      string // e.g. "google-<calendarID>"
}

// BusyPeriod returns the interval the event blocks. Events without both a
// start and an end instant (all-day or open-ended) block nothing.
func (e Event) BusyPeriod() (slot.Interval, bool) {
	if e.AllDay || e.Start.IsZero() || e.End.IsZero() || !e.Start.Before(e.End) {
		return slot.Interval{}, false
	}
	return slot.Interval{Start: e.Start, End: e.End}, true
}

// BusyPeriods collects the busy periods of events, skipping those that expose none.
func BusyPeriods(events []Event) []slot.Interval {
	out := make([]slot.Interval, 0, len(events))
	for _, e := range events {
		if p, ok := e.BusyPeriod(); ok {
			out = append(out, p)
		}
	}
	return out
}

// NewEvent is what the booking core asks a calendar to create.
type NewEvent struct {
	ID          string // Client-chosen event id; doubles as an idempotency token
	Summary     string
	Description string
	Location    string
	Interval    slot.Interval
	BookingID   string
}
