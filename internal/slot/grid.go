package slot

import (
	"time"
)

// Grid describes the bookable part of a day.
type Grid struct {
	StartHour int
	EndHour   int
	Step      time.Duration
}

// DefaultGrid is 08:00-19:00 in 30 minute steps.
var DefaultGrid = Grid{StartHour: 8, EndHour: 19, Step: 30 * time.Minute}

// StartOfDay returns midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Days returns n consecutive dates starting at from's date, each at midnight in loc.
func Days(from time.Time, n int, loc *time.Location) []time.Time {
	first := StartOfDay(from, loc)
	days := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, first.AddDate(0, 0, i))
	}
	return days
}

// GenerateSlots builds the candidate slots for each day in order. A slot is
// only produced when it ends at or before EndHour; a step that would overrun
// the end of the business day is dropped. Each day's slots are computed in the
// day's own location.
func GenerateSlots(days []time.Time, g Grid) []Interval {
	if g.Step <= 0 || g.EndHour <= g.StartHour {
		return nil
	}
	perDay := int(time.Duration(g.EndHour-g.StartHour) * time.Hour / g.Step)
	out := make([]Interval, 0, perDay*len(days))
	for _, d := range days {
		loc := d.Location()
		open := time.Date(d.Year(), d.Month(), d.Day(), g.StartHour, 0, 0, 0, loc)
		closing := time.Date(d.Year(), d.Month(), d.Day(), g.EndHour, 0, 0, 0, loc)
		for t := open; !t.Add(g.Step).After(closing); t = t.Add(g.Step) {
			out = append(out, Interval{Start: t, End: t.Add(g.Step)})
		}
	}
	return out
}

// Within reports whether i lies entirely inside the business hours of its start date.
func (g Grid) Within(i Interval) bool {
	s := i.Start
	open := time.Date(s.Year(), s.Month(), s.Day(), g.StartHour, 0, 0, 0, s.Location())
	closing := time.Date(s.Year(), s.Month(), s.Day(), g.EndHour, 0, 0, 0, s.Location())
	return !s.Before(open) && !i.End.After(closing)
}
