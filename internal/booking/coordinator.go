// Package booking validates, re-checks and commits booking requests against
// the calendar, then fans the result out to notification channels.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"hakobite/internal/google"
	"hakobite/internal/models"
	"hakobite/internal/reconcile"
	"hakobite/internal/slot"
)

// Calendar is the write side of the calendar gateway.
type Calendar interface {
	CreateEvent(ctx context.Context, ev models.NewEvent) (string, error)
}

// BusyChecker reports busy periods overlapping an interval.
type BusyChecker interface {
	BusyPeriods(ctx context.Context, span slot.Interval) ([]slot.Interval, error)
}

// Notifier fans a committed booking out. Its results never affect the outcome.
type Notifier interface {
	Dispatch(ctx context.Context, record models.BookingRecord) []models.ChannelResult
}

// Ledger records calendar writes with unknown outcome.
type Ledger interface {
	Record(e reconcile.Entry) error
}

// Options configures a Coordinator.
type Options struct {
	Zone             *time.Location
	Grid             slot.Grid
	AllowedDurations []int
	HorizonDays      int
	BufferMinutes    int
	Timeout          time.Duration
	Now              func() time.Time
	NewID            func() uuid.UUID
}

// Coordinator runs the booking protocol. Re-check and commit are serialised
// so two requests cannot both see the same slot as free.
type Coordinator struct {
	calendar  Calendar
	busy      BusyChecker
	notifier  Notifier
	ledger    Ledger
	refs      *References
	validator *validator.Validate
	logger    *slog.Logger
	opts      Options

	// sem is the calendar lock. A channel lets waiters give up with ctx.
	sem chan struct{}
}

// New creates a Coordinator. notifier and ledger may be nil.
func New(logger *slog.Logger, calendar Calendar, busy BusyChecker, notifier Notifier, ledger Ledger, refs *References, opts Options) *Coordinator {
	if opts.Zone == nil {
		opts.Zone = slot.NewZone(slot.DefaultOffset)
	}
	if opts.Grid.Step <= 0 {
		opts.Grid = slot.DefaultGrid
	}
	if len(opts.AllowedDurations) == 0 {
		opts.AllowedDurations = []int{30, 60}
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 60
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.New
	}
	return &Coordinator{
		calendar:  calendar,
		busy:      busy,
		notifier:  notifier,
		ledger:    ledger,
		refs:      refs,
		validator: newValidator(),
		sem:       make(chan struct{}, 1),
		logger:    logger,
		opts:      opts,
	}
}

// Submit books req. It returns ErrSlotConflict when the interval was taken
// in the meantime, a *ValidationError for bad input and a *FailedError when
// the calendar write failed. Notification failures are reported in the
// outcome only.
func (c *Coordinator) Submit(ctx context.Context, req models.BookingRequest) (models.BookingOutcome, error) {
	now := c.opts.Now().In(c.opts.Zone)
	req = normalize(req)
	if verr := c.validate(req, now); verr != nil {
		c.logger.Info("Booking rejected", "field", verr.Field, "reason", verr.Reason)
		return models.BookingOutcome{}, verr
	}

	start := req.Start.In(c.opts.Zone)
	iv := slot.Interval{Start: start, End: start.Add(time.Duration(req.DurationMinutes) * time.Minute)}

	id := c.opts.NewID()
	bookingID := id.String()
	eventID := strings.ReplaceAll(bookingID, "-", "")
	reference := c.reference(id, now)
	desc := transcript(req, iv, reference)

	if err := c.commit(ctx, req, iv, bookingID, eventID, reference, desc, now); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			return models.BookingOutcome{Conflict: true}, err
		}
		return models.BookingOutcome{}, err
	}

	record := models.BookingRecord{
		BookingID:  bookingID,
		Reference:  reference,
		EventID:    eventID,
		Summary:    summary(req),
		Transcript: desc,
		Interval:   iv,
		Request:    req,
		CreatedAt:  now,
	}

	outcome := models.BookingOutcome{
		Committed:           true,
		BookingID:           bookingID,
		Reference:           reference,
		EventID:             eventID,
		Interval:            &iv,
		NotificationResults: []models.ChannelResult{},
	}
	if c.notifier != nil {
		// The booking stands even if the caller has gone away.
		outcome.NotificationResults = c.notifier.Dispatch(context.WithoutCancel(ctx), record)
	}

	c.logger.Info("Booking committed", "bookingID", bookingID, "reference", reference, "eventID", eventID, "interval", iv.String())
	return outcome, nil
}

// commit re-checks the interval and writes the booking while holding the
// calendar lock.
func (c *Coordinator) commit(ctx context.Context, req models.BookingRequest, iv slot.Interval, bookingID, eventID, reference, desc string, now time.Time) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		c.logger.Info("Booking abandoned while waiting for the calendar lock", "interval", iv.String())
		return fmt.Errorf("wait for calendar lock: %w", ctx.Err())
	}
	defer func() { <-c.sem }()

	busy, err := c.busy.BusyPeriods(ctx, iv)
	if err != nil {
		c.logger.Error("Availability re-check failed", "interval", iv.String(), "error", err)
		return fmt.Errorf("re-check %s: %w", iv, err)
	}
	if slot.OverlapsAny(iv, busy) {
		c.logger.Info("Booking conflicts with an existing entry", "interval", iv.String())
		return ErrSlotConflict
	}

	ev := models.NewEvent{
		ID:          eventID,
		Summary:     summary(req),
		Description: desc,
		Location:    req.PickupLocation,
		Interval:    iv,
		BookingID:   bookingID,
	}
	if err := c.create(ctx, ev); err != nil {
		return c.failed(err, req, iv, bookingID, eventID, reference, now)
	}

	if c.opts.BufferMinutes > 0 {
		c.addBuffer(ctx, req, iv, bookingID)
	}
	return nil
}

func (c *Coordinator) create(ctx context.Context, ev models.NewEvent) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	_, err := c.calendar.CreateEvent(ctx, ev)
	return err
}

// failed builds the FailedError for a calendar write and records it for
// reconciliation when the event may exist upstream anyway.
func (c *Coordinator) failed(err error, req models.BookingRequest, iv slot.Interval, bookingID, eventID, reference string, now time.Time) error {
	ambiguous := errors.Is(err, google.ErrUpstreamUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)

	f := &FailedError{Interval: iv, EventID: eventID, At: now, Ambiguous: ambiguous, Err: err}
	c.logger.Error("Calendar write failed", "interval", iv.String(), "eventID", eventID, "bookingID", bookingID,
		"at", now, "ambiguous", ambiguous, "error", err)

	if ambiguous && c.ledger != nil {
		entry := reconcile.Entry{
			EventID:   eventID,
			BookingID: bookingID,
			Reference: reference,
			Summary:   summary(req),
			Name:      req.Name,
			Phone:     req.Phone,
			Interval:  iv,
			Error:     err.Error(),
			FailedAt:  now,
		}
		if lerr := c.ledger.Record(entry); lerr != nil {
			c.logger.Error("Could not record ambiguous booking for reconciliation", "eventID", eventID, "error", lerr)
		}
	}
	return f
}

// addBuffer blocks travel time before the booking. Its failure is logged
// and leaves the booking in place.
func (c *Coordinator) addBuffer(ctx context.Context, req models.BookingRequest, iv slot.Interval, bookingID string) {
	buffer := slot.Interval{Start: iv.Start.Add(-time.Duration(c.opts.BufferMinutes) * time.Minute), End: iv.Start}
	ev := models.NewEvent{
		ID:        strings.ReplaceAll(c.opts.NewID().String(), "-", ""),
		Summary:   bufferSummary(req),
		Interval:  buffer,
		BookingID: bookingID,
	}
	if err := c.create(ctx, ev); err != nil {
		c.logger.Warn("Could not add travel buffer", "bookingID", bookingID, "interval", buffer.String(), "error", err)
	}
}

func (c *Coordinator) reference(id uuid.UUID, now time.Time) string {
	if c.refs == nil {
		return ""
	}
	code, err := c.refs.Code(id, now)
	if err != nil {
		c.logger.Warn("Could not derive booking reference", "bookingID", id.String(), "error", err)
		return ""
	}
	return code
}
