package models

import (
	"time"

	"hakobite/internal/slot"
)

// BookingRequest is the customer's submission from the booking form.
type BookingRequest struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`

	Name           string `json:"name" validate:"required,max=100"`
	Phone          string `json:"phone" validate:"required,max=30,phone"`
	Email          string `json:"email" validate:"omitempty,email"`
	PickupLocation string `json:"pickup_location" validate:"required,max=150"`
	Destination    string `json:"destination" validate:"max=150"`

	Service      string `json:"service" validate:"max=100"`
	Wheelchair   string `json:"wheelchair" validate:"max=100"`
	Care         string `json:"care" validate:"max=100"`
	Passengers   string `json:"passengers" validate:"max=30"`
	SameAsBooker *bool  `json:"same_as_booker,omitempty"`
	Note         string `json:"note" validate:"max=150"`
}

// ChannelResult is the captured outcome of one notification channel.
type ChannelResult struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BookingOutcome is returned to the caller of a booking submission.
type BookingOutcome struct {
	Committed           bool            `json:"committed"`
	Conflict            bool            `json:"conflict"`
	BookingID           string          `json:"booking_id,omitempty"`
	Reference           string          `json:"reference,omitempty"`
	EventID             string          `json:"event_id,omitempty"`
	Interval            *slot.Interval  `json:"interval,omitempty"`
	NotificationResults []ChannelResult `json:"notification_results"`
}

// BookingRecord is the committed booking handed to notification channels.
type BookingRecord struct {
	BookingID  string         `json:"booking_id"`
	Reference  string         `json:"reference"`
	EventID    string         `json:"event_id"`
	Summary    string         `json:"summary"`
	Transcript string         `json:"transcript"`
	Interval   slot.Interval  `json:"interval"`
	Request    BookingRequest `json:"request"`
	CreatedAt  time.Time      `json:"created_at"`
}
