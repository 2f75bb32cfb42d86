// Package slot holds the pure time model used for availability: intervals,
// the booking grid and slot classification. Nothing here performs I/O.
package slot

import (
	"errors"
	"fmt"
	"time"
)

// DefaultOffset is the fixed UTC offset the service operates in (JST).
const DefaultOffset = 9 * time.Hour

var (
	// ErrZeroInstant is returned when an interval bound is the zero time.
	ErrZeroInstant = errors.New("instant is not set")
	// ErrEmptyInterval is returned when start is not strictly before end.
	ErrEmptyInterval = errors.New("interval start must be before end")
)

// NewZone returns a fixed zone for the given offset. The JST offset gets its
// conventional name so formatted times read naturally in logs.
func NewZone(offset time.Duration) *time.Location {
	if offset == DefaultOffset {
		return time.FixedZone("JST", int(offset.Seconds()))
	}
	return time.FixedZone(fmt.Sprintf("UTC%+03d:%02d", int(offset.Hours()), abs(int(offset.Minutes())%60)), int(offset.Seconds()))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval validates the bounds and normalises both instants to zone.
func NewInterval(start, end time.Time, zone *time.Location) (Interval, error) {
	if start.IsZero() || end.IsZero() {
		return Interval{}, ErrZeroInstant
	}
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: %s >= %s", ErrEmptyInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if zone != nil {
		start, end = start.In(zone), end.In(zone)
	}
	return Interval{Start: start, End: end}, nil
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Contains reports whether t falls inside [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// In returns the interval with both bounds expressed in loc.
func (i Interval) In(loc *time.Location) Interval {
	return Interval{Start: i.Start.In(loc), End: i.End.In(loc)}
}

func (i Interval) String() string {
	return i.Start.Format(time.RFC3339) + "/" + i.End.Format(time.RFC3339)
}

// Overlaps reports whether a and b share any instant. Touching intervals
// (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// OverlapsAny reports whether i overlaps at least one of busy.
func OverlapsAny(i Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(i, b) {
			return true
		}
	}
	return false
}
