package booking

import (
	"errors"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/width"

	"hakobite/internal/models"
	"hakobite/internal/slot"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,}$`)

// Dash-like runes that width folding leaves alone.
var phoneDashes = strings.NewReplacer("\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-", "\u2015", "-", "\u2212", "-", "\u30fc", "-", "\uff70", "-")

// normalizePhone folds full-width digits, hyphens and parentheses to ASCII.
func normalizePhone(s string) string {
	return width.Narrow.String(phoneDashes.Replace(s))
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// normalize trims free-text fields so whitespace-only input counts as empty.
func normalize(req models.BookingRequest) models.BookingRequest {
	for _, f := range []*string{
		&req.Name, &req.Phone, &req.Email, &req.PickupLocation, &req.Destination,
		&req.Service, &req.Wheelchair, &req.Care, &req.Passengers, &req.Note,
	} {
		*f = strings.TrimSpace(*f)
	}
	req.Phone = normalizePhone(req.Phone)
	return req
}

// validate checks the request in a fixed order: start, duration, then the
// customer fields in declaration order. It makes no upstream calls.
func (c *Coordinator) validate(req models.BookingRequest, now time.Time) *ValidationError {
	if req.Start.IsZero() {
		return &ValidationError{Field: "start", Reason: "is required"}
	}
	start := req.Start.In(c.opts.Zone)
	if start.Before(now) {
		return &ValidationError{Field: "start", Reason: "is in the past"}
	}
	if limit := slot.StartOfDay(now, c.opts.Zone).AddDate(0, 0, c.opts.HorizonDays+1); !start.Before(limit) {
		return &ValidationError{Field: "start", Reason: "is beyond the booking window"}
	}

	if !slices.Contains(c.opts.AllowedDurations, req.DurationMinutes) {
		return &ValidationError{Field: "duration_minutes", Reason: "is not an offered duration"}
	}

	iv := slot.Interval{Start: start, End: start.Add(time.Duration(req.DurationMinutes) * time.Minute)}
	if !c.opts.Grid.Within(iv) || !c.onGrid(start) {
		return &ValidationError{Field: "start", Reason: "is outside business hours"}
	}

	if err := c.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Field(), Reason: reason(verrs[0])}
		}
		return &ValidationError{Field: "request", Reason: err.Error()}
	}
	return nil
}

func (c *Coordinator) onGrid(start time.Time) bool {
	open := time.Date(start.Year(), start.Month(), start.Day(), c.opts.Grid.StartHour, 0, 0, 0, start.Location())
	return start.Sub(open)%c.opts.Grid.Step == 0
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a phone number"
	default:
		return "is invalid"
	}
}
