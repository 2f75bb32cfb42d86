// Package api exposes availability and booking over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"hakobite/internal/availability"
	"hakobite/internal/models"
	"hakobite/internal/slot"
)

// AvailabilityService serves the slot grid for a date range.
type AvailabilityService interface {
	Availability(ctx context.Context, from, to time.Time) (availability.Window, error)
}

// BookingService commits booking requests.
type BookingService interface {
	Submit(ctx context.Context, req models.BookingRequest) (models.BookingOutcome, error)
}

// PublicConfig is what the booking form needs to render its choices.
type PublicConfig struct {
	Services         []string `json:"services"`
	Wheelchair       []string `json:"wheelchair"`
	Care             []string `json:"care"`
	Passengers       []string `json:"passengers"`
	DurationsMinutes []int    `json:"durations_minutes"`
	SlotMinutes      int      `json:"slot_minutes"`
	OpenHour         int      `json:"open_hour"`
	CloseHour        int      `json:"close_hour"`
	HorizonDays      int      `json:"horizon_days"`
	MaxWindowDays    int      `json:"max_window_days"`
	UTCOffsetMinutes int      `json:"utc_offset_minutes"`
}

// Handler holds the HTTP handlers.
type Handler struct {
	availability AvailabilityService
	bookings     BookingService
	public       PublicConfig
	zone         *time.Location
	logger       *slog.Logger
	now          func() time.Time
}

func NewHandler(logger *slog.Logger, avail AvailabilityService, bookings BookingService, public PublicConfig, zone *time.Location) *Handler {
	return &Handler{
		availability: avail,
		bookings:     bookings,
		public:       public,
		zone:         zone,
		logger:       logger,
		now:          time.Now,
	}
}

// GetAvailability serves GET /api/availability?from=YYYY-MM-DD&to=YYYY-MM-DD.
// from defaults to today and to to the end of the display window.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	from := slot.StartOfDay(h.now(), h.zone)
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, h.zone)
		if err != nil {
			h.fail(w, r, &HTTPError{Code: http.StatusBadRequest, Message: "from must be a date (YYYY-MM-DD)", Field: "from"})
			return
		}
		from = d
	}

	days := h.public.MaxWindowDays
	if days <= 0 {
		days = 7
	}
	to := from.AddDate(0, 0, days-1)
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, h.zone)
		if err != nil {
			h.fail(w, r, &HTTPError{Code: http.StatusBadRequest, Message: "to must be a date (YYYY-MM-DD)", Field: "to"})
			return
		}
		to = d
	}

	window, err := h.availability.Availability(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = jsonResponse(w, http.StatusOK, window)
}

// CreateBooking serves POST /api/bookings.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := readJSON(w, r, &req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, r, NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large"))
			return
		}
		h.fail(w, r, NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error()))
		return
	}

	outcome, err := h.bookings.Submit(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = jsonResponse(w, http.StatusCreated, outcome)
}

// GetConfig serves GET /api/config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	_ = jsonResponse(w, http.StatusOK, h.public)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	herr := toHTTPError(err)
	if herr.Code >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", herr.Code, "error", err)
	} else {
		h.logger.Info("Request rejected", "method", r.Method, "path", r.URL.Path, "status", herr.Code, "error", err)
	}
	_ = writeJSONError(w, herr)
}
