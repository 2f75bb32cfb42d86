package slot

import (
	"fmt"
	"time"
)

// Status is the classification of a candidate slot.
type Status int

const (
	Available Status = iota
	Booked
	Past
)

func (s Status) String() string {
	switch s {
	case Available:
		return "available"
	case Booked:
		return "booked"
	case Past:
		return "past"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status as its lowercase name.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case Available, Booked, Past:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("slot: unknown status %d", int(s))
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "available":
		*s = Available
	case "booked":
		*s = Booked
	case "past":
		*s = Past
	default:
		return fmt.Errorf("slot: unknown status %q", string(b))
	}
	return nil
}

// Classify returns Past when the slot starts before now, Booked when it
// overlaps any busy period and Available otherwise. Past takes precedence.
func Classify(s Interval, now time.Time, busy []Interval) Status {
	if s.Start.Before(now) {
		return Past
	}
	if OverlapsAny(s, busy) {
		return Booked
	}
	return Available
}
