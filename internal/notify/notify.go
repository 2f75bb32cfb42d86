// Package notify delivers a committed booking to the operator, the customer
// and downstream systems. Delivery is best effort: failures are captured
// per channel and logged, never returned to the booking flow.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hakobite/internal/models"
)

// ErrSkipped is returned by a channel that had nothing to deliver, such as
// a customer email channel when the customer left no address.
var ErrSkipped = errors.New("nothing to send")

// Channel is one notification destination.
type Channel interface {
	Name() string
	Notify(ctx context.Context, record models.BookingRecord) error
}

// Dispatcher fans a booking out to every configured channel.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. Each channel gets its own timeout.
func NewDispatcher(logger *slog.Logger, timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{channels: channels, timeout: timeout, logger: logger}
}

// Channels returns the configured channel names in dispatch order.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Dispatch runs all channels concurrently and waits for them. Results are in
// configuration order. A channel that panics or times out is recorded as
// failed; the others are unaffected.
func (d *Dispatcher) Dispatch(ctx context.Context, record models.BookingRecord) []models.ChannelResult {
	results := make([]models.ChannelResult, len(d.channels))

	var wg sync.WaitGroup
	for i, ch := range d.channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			results[i] = d.run(ctx, ch, record)
		}(i, ch)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) run(ctx context.Context, ch Channel, record models.BookingRecord) (res models.ChannelResult) {
	res.Channel = ch.Name()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res.Delivered = false
			res.Error = fmt.Sprintf("panic: %v", r)
			d.logger.Error("Notification channel panicked", "channel", res.Channel, "bookingID", record.BookingID, "panic", r)
		}
	}()

	err := ch.Notify(ctx, record)
	switch {
	case err == nil:
		res.Delivered = true
		d.logger.Info("Notification delivered", "channel", res.Channel, "bookingID", record.BookingID)
	case errors.Is(err, ErrSkipped):
		res.Skipped = true
		d.logger.Debug("Notification skipped", "channel", res.Channel, "bookingID", record.BookingID, "reason", err)
	default:
		res.Error = err.Error()
		d.logger.Error("Notification failed", "channel", res.Channel, "bookingID", record.BookingID, "error", err)
	}
	return res
}
