package booking

import (
	"errors"
	"fmt"
	"time"

	"hakobite/internal/slot"
)

// ErrSlotConflict means the requested interval is no longer free. Callers
// should fetch availability again.
var ErrSlotConflict = errors.New("requested slot is no longer available")

// ValidationError names the first request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid booking request: %s %s", e.Field, e.Reason)
}

// FailedError is returned when the calendar write did not succeed. When
// Ambiguous is set the event may still have been created upstream; the
// write is recorded for reconciliation and must not be retried blindly.
type FailedError struct {
	Interval  slot.Interval
	EventID   string
	At        time.Time
	Ambiguous bool
	Err       error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("booking %s failed: %v", e.Interval, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }
