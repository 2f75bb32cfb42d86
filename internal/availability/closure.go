package availability

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"hakobite/internal/slot"
)

// closureAnchor is the DTSTART date for closure rules. It is a Monday so
// weekly rules with INTERVAL stay aligned across windows.
var closureAnchor = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Closure is a recurring period in which the operator takes no bookings,
// e.g. every Sunday or a weekly maintenance block.
type Closure struct {
	Label    string
	rule     *rrule.RRule
	duration time.Duration
}

// NewClosure parses an RRULE such as "FREQ=WEEKLY;BYDAY=SU". Each
// occurrence starts at timeOfDay in zone and lasts duration.
func NewClosure(label, rule string, timeOfDay, duration time.Duration, zone *time.Location) (Closure, error) {
	if duration <= 0 {
		return Closure{}, fmt.Errorf("closure %q: duration must be positive", label)
	}
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return Closure{}, fmt.Errorf("closure %q: %w", label, err)
	}
	anchor := time.Date(closureAnchor.Year(), closureAnchor.Month(), closureAnchor.Day(), 0, 0, 0, 0, zone).Add(timeOfDay)
	r.DTStart(anchor)
	return Closure{Label: label, rule: r, duration: duration}, nil
}

// Periods returns the closure occurrences overlapping window.
func (c Closure) Periods(window slot.Interval) []slot.Interval {
	var out []slot.Interval
	for _, start := range c.rule.Between(window.Start.Add(-c.duration), window.End, true) {
		p := slot.Interval{Start: start, End: start.Add(c.duration)}
		if slot.Overlaps(p, window) {
			out = append(out, p)
		}
	}
	return out
}
