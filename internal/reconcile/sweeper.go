package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"hakobite/internal/models"
)

// EventGetter looks a calendar event up by ID.
type EventGetter interface {
	GetEvent(ctx context.Context, id string) (models.Event, bool, error)
}

// Result counts what one sweep did.
type Result struct {
	Committed int
	Absent    int
	Unchanged int
}

// Sweeper settles pending ledger entries against the calendar. It never
// writes to the calendar: an entry whose event is missing is marked absent
// and the customer has to book again.
type Sweeper struct {
	ledger  *Ledger
	events  EventGetter
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewSweeper creates a Sweeper bounding each lookup by timeout.
func NewSweeper(logger *slog.Logger, ledger *Ledger, events EventGetter, timeout time.Duration) *Sweeper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sweeper{ledger: ledger, events: events, logger: logger, timeout: timeout, now: time.Now}
}

// Sweep checks every pending entry once. Lookup failures leave the entry
// pending for the next run.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	pending := s.ledger.Pending()
	if len(pending) == 0 {
		s.logger.Debug("No pending calendar writes to reconcile")
		return res, nil
	}
	s.logger.Info("Starting reconciliation sweep", "pending", len(pending))

	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		found, err := s.lookup(ctx, e.EventID)
		if err != nil {
			s.logger.Error("Could not look up pending event", "eventID", e.EventID, "bookingID", e.BookingID, "error", err)
			res.Unchanged++
			continue
		}

		status := StatusAbsent
		if found {
			status = StatusCommitted
		}
		if err := s.ledger.Resolve(e.EventID, status, s.now()); err != nil {
			return res, fmt.Errorf("resolve %s: %w", e.EventID, err)
		}

		if found {
			res.Committed++
			s.logger.Info("Pending booking was committed", "eventID", e.EventID, "bookingID", e.BookingID, "interval", e.Interval.String())
		} else {
			res.Absent++
			s.logger.Warn("Pending booking never reached the calendar; customer must rebook",
				"eventID", e.EventID, "bookingID", e.BookingID, "name", e.Name, "phone", e.Phone, "interval", e.Interval.String())
		}
	}

	s.logger.Info("Reconciliation sweep finished", "committed", res.Committed, "absent", res.Absent, "unchanged", res.Unchanged)
	return res, nil
}

func (s *Sweeper) lookup(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, found, err := s.events.GetEvent(ctx, id)
	return found, err
}

// Schedule registers the sweep on c using a cron spec such as "@every 10m".
func (s *Sweeper) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("Reconciliation sweep failed", "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule reconciliation %q: %w", spec, err)
	}
	return id, nil
}
