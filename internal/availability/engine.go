// Package availability classifies the booking grid against the calendar.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hakobite/internal/models"
	"hakobite/internal/slot"
)

var (
	// ErrInvalidWindow is returned when the window ends before it starts.
	ErrInvalidWindow = errors.New("window end is before window start")
	// ErrWindowOutOfRange is returned when no part of the window lies inside
	// the bookable horizon.
	ErrWindowOutOfRange = errors.New("window is outside the booking horizon")
)

// EventLister is the read side of the calendar gateway.
type EventLister interface {
	ListEvents(ctx context.Context, start, end time.Time) ([]models.Event, error)
}

// Options configures an Engine.
type Options struct {
	Zone          *time.Location
	Grid          slot.Grid
	HorizonDays   int
	MaxWindowDays int
	Timeout       time.Duration
	Closures      []Closure
	Now           func() time.Time
}

// SlotView is one classified grid slot.
type SlotView struct {
	Start  time.Time   `json:"start"`
	End    time.Time   `json:"end"`
	Status slot.Status `json:"status"`
}

// Window is the classified grid for a range of days.
type Window struct {
	Start   time.Time  `json:"window_start"`
	End     time.Time  `json:"window_end"`
	Clamped bool       `json:"clamped"`
	Slots   []SlotView `json:"slots"`
}

// Engine derives slot availability from calendar events.
type Engine struct {
	events EventLister
	logger *slog.Logger
	opts   Options
}

// New creates an Engine. Zero options fall back to the service defaults.
func New(events EventLister, logger *slog.Logger, opts Options) *Engine {
	if opts.Zone == nil {
		opts.Zone = slot.NewZone(slot.DefaultOffset)
	}
	if opts.Grid.Step <= 0 {
		opts.Grid = slot.DefaultGrid
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 60
	}
	if opts.MaxWindowDays <= 0 {
		opts.MaxWindowDays = 7
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{events: events, logger: logger, opts: opts}
}

// Horizon returns the last bookable date (midnight, service zone) as of now.
func (e *Engine) Horizon(now time.Time) time.Time {
	return slot.StartOfDay(now, e.opts.Zone).AddDate(0, 0, e.opts.HorizonDays)
}

// Resolve turns a requested inclusive date range into the days that will be
// served. The start is clamped to today, the end to the horizon and to the
// maximum window length. A window starting beyond the horizon is rejected.
func (e *Engine) Resolve(from, to, now time.Time) ([]time.Time, bool, error) {
	zone := e.opts.Zone
	from, to = slot.StartOfDay(from, zone), slot.StartOfDay(to, zone)
	if to.Before(from) {
		return nil, false, ErrInvalidWindow
	}

	today := slot.StartOfDay(now, zone)
	limit := e.Horizon(now)
	if from.After(limit) {
		return nil, false, fmt.Errorf("%w: %s is after %s", ErrWindowOutOfRange, from.Format(time.DateOnly), limit.Format(time.DateOnly))
	}
	if to.Before(today) {
		return nil, false, fmt.Errorf("%w: %s is before %s", ErrWindowOutOfRange, to.Format(time.DateOnly), today.Format(time.DateOnly))
	}

	clamped := false
	if from.Before(today) {
		from, clamped = today, true
	}
	if to.After(limit) {
		to, clamped = limit, true
	}
	if last := from.AddDate(0, 0, e.opts.MaxWindowDays-1); to.After(last) {
		to, clamped = last, true
	}

	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		n++
	}
	return slot.Days(from, n, zone), clamped, nil
}

// Availability classifies every grid slot between from and to (inclusive
// dates). The calendar is queried once for the whole window. If the calendar
// cannot be read the error is returned; slots are never reported free on
// missing data.
func (e *Engine) Availability(ctx context.Context, from, to time.Time) (Window, error) {
	now := e.opts.Now().In(e.opts.Zone)
	days, clamped, err := e.Resolve(from, to, now)
	if err != nil {
		return Window{}, err
	}

	span := slot.Interval{Start: days[0], End: days[len(days)-1].AddDate(0, 0, 1)}
	busy, err := e.BusyPeriods(ctx, span)
	if err != nil {
		return Window{}, err
	}

	grid := slot.GenerateSlots(days, e.opts.Grid)
	views := make([]SlotView, 0, len(grid))
	for _, s := range grid {
		views = append(views, SlotView{Start: s.Start, End: s.End, Status: slot.Classify(s, now, busy)})
	}

	e.logger.Debug("Computed availability", "from", span.Start, "to", span.End, "slots", len(views), "busy", len(busy))
	return Window{Start: span.Start, End: span.End, Clamped: clamped, Slots: views}, nil
}

// BusyPeriods returns every period blocking part of span: calendar events
// with both a start and an end instant plus configured closures.
func (e *Engine) BusyPeriods(ctx context.Context, span slot.Interval) ([]slot.Interval, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	events, err := e.events.ListEvents(ctx, span.Start, span.End)
	if err != nil {
		e.logger.Error("Failed to list calendar events", "start", span.Start, "end", span.End, "error", err)
		return nil, fmt.Errorf("list events: %w", err)
	}

	busy := models.BusyPeriods(events)
	for _, c := range e.opts.Closures {
		busy = append(busy, c.Periods(span)...)
	}
	return busy, nil
}
