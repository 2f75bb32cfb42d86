package api

import (
	"context"
	"errors"
	"net/http"

	"hakobite/internal/availability"
	"hakobite/internal/booking"
	"hakobite/internal/google"
)

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	Code    int
	Message string
	Field   string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTPError with the given code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

const retryMessage = "The calendar could not be reached. Please try again in a few minutes."

// toHTTPError maps domain errors to responses. Validation and conflict
// messages are shown as is; upstream details stay in the logs.
func toHTTPError(err error) *HTTPError {
	var (
		herr *HTTPError
		verr *booking.ValidationError
		ferr *booking.FailedError
	)
	switch {
	case errors.As(err, &herr):
		return herr
	case errors.As(err, &verr):
		return &HTTPError{Code: http.StatusBadRequest, Message: verr.Error(), Field: verr.Field}
	case errors.Is(err, booking.ErrSlotConflict):
		return NewHTTPError(http.StatusConflict, "The selected time was just booked. Please choose another slot.")
	case errors.Is(err, availability.ErrInvalidWindow), errors.Is(err, availability.ErrWindowOutOfRange):
		return NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &ferr) && ferr.Ambiguous:
		return NewHTTPError(http.StatusServiceUnavailable, "We could not confirm your booking. Please call us before booking again.")
	case errors.Is(err, google.ErrUpstreamUnavailable):
		return NewHTTPError(http.StatusServiceUnavailable, retryMessage)
	case errors.Is(err, google.ErrUpstreamRejected):
		return NewHTTPError(http.StatusBadGateway, retryMessage)
	case errors.Is(err, context.DeadlineExceeded):
		return NewHTTPError(http.StatusServiceUnavailable, retryMessage)
	default:
		return NewHTTPError(http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}
