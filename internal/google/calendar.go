package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"hakobite/internal/models"
)

const bookingIDProperty = "bookingId"

var (
	// ErrUpstreamUnavailable covers transport, auth, throttling and server
	// failures. Callers must treat availability as unknown.
	ErrUpstreamUnavailable = errors.New("calendar upstream unavailable")
	// ErrUpstreamRejected means the calendar refused the request as invalid.
	ErrUpstreamRejected = errors.New("calendar upstream rejected request")
)

// CalendarClient reads and writes events of a single Google calendar.
type CalendarClient struct {
	service    *calendar.Service
	logger     *slog.Logger
	calendarID string
	timeZone   string
	zone       *time.Location
}

// NewClient creates a calendar client over an authenticated HTTP client.
// timeZone is the IANA name written on created events; zone is the fixed
// location every timestamp read from the API is normalised to.
func NewClient(ctx context.Context, logger *slog.Logger, httpClient *http.Client, calendarID, timeZone string, zone *time.Location, opts ...option.ClientOption) (*CalendarClient, error) {
	if calendarID == "" {
		return nil, errors.New("calendar id is empty")
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarClient{
		service:    service,
		logger:     logger,
		calendarID: calendarID,
		timeZone:   timeZone,
		zone:       zone,
	}, nil
}

// ListEvents returns every event overlapping [start, end), already normalised.
func (c *CalendarClient) ListEvents(ctx context.Context, start, end time.Time) ([]models.Event, error) {
	c.logger.Debug("Fetching events", "calendarID", c.calendarID, "start", start, "end", end)

	var items []*calendar.Event
	err := c.service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		OrderBy("startTime").
		Pages(ctx, func(page *calendar.Events) error {
			items = append(items, page.Items...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", classify(err))
	}

	events, err := c.toInternalEvents(items)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Fetched events from Google Calendar", "count", len(events), "calendarID", c.calendarID)
	return events, nil
}

// CreateEvent inserts ev and returns the provider event id. ev.ID, when set,
// is sent as the client-chosen id so a duplicate insert is rejected upstream
// instead of creating a second event.
func (c *CalendarClient) CreateEvent(ctx context.Context, ev models.NewEvent) (string, error) {
	body := &calendar.Event{
		Id:          ev.ID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start: &calendar.EventDateTime{
			DateTime: ev.Interval.Start.In(c.zone).Format(time.RFC3339),
			TimeZone: c.timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: ev.Interval.End.In(c.zone).Format(time.RFC3339),
			TimeZone: c.timeZone,
		},
	}
	if ev.BookingID != "" {
		body.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{bookingIDProperty: ev.BookingID},
		}
	}

	created, err := c.service.Events.Insert(c.calendarID, body).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", classify(err))
	}
	c.logger.Info("Created calendar event", "calendarID", c.calendarID, "eventID", created.Id, "start", body.Start.DateTime)
	return created.Id, nil
}

// GetEvent looks an event up by id. A missing or cancelled event reports
// found=false with a nil error.
func (c *CalendarClient) GetEvent(ctx context.Context, id string) (models.Event, bool, error) {
	item, err := c.service.Events.Get(c.calendarID, id).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
			return models.Event{}, false, nil
		}
		return models.Event{}, false, fmt.Errorf("failed to get event %s: %w", id, classify(err))
	}
	if item.Status == "cancelled" {
		return models.Event{}, false, nil
	}
	events, err := c.toInternalEvents([]*calendar.Event{item})
	if err != nil {
		return models.Event{}, false, err
	}
	return events[0], true, nil
}

// toInternalEvents converts Google Calendar events to the internal Event
// model. This is the single place timestamps enter the service: every
// dateTime is parsed with its offset and moved into the service zone.
func (c *CalendarClient) toInternalEvents(googleEvents []*calendar.Event) ([]models.Event, error) {
	internalEvents := make([]models.Event, 0, len(googleEvents))
	for _, item := range googleEvents {
		event := models.Event{
			ID:          item.Id,
			Title:       item.Summary,
			Description: item.Description,
			Location:    item.Location,
			UID:         item.ICalUID,
			Source:      fmt.Sprintf("google-%s", c.calendarID),
		}
		if item.ExtendedProperties != nil {
			event.BookingID = item.ExtendedProperties.Private[bookingIDProperty]
		}

		start, err := c.instant(item.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: event %s start: %w", ErrUpstreamUnavailable, item.Id, err)
		}
		end, err := c.instant(item.End)
		if err != nil {
			return nil, fmt.Errorf("%w: event %s end: %w", ErrUpstreamUnavailable, item.Id, err)
		}
		event.Start, event.End = start, end
		event.AllDay = start.IsZero() && item.Start != nil && item.Start.Date != ""

		internalEvents = append(internalEvents, event)
	}
	return internalEvents, nil
}

// instant parses an EventDateTime. Date-only values yield the zero time.
func (c *CalendarClient) instant(dt *calendar.EventDateTime) (time.Time, error) {
	if dt == nil || dt.DateTime == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(c.zone), nil
}

// classify maps an API error onto the gateway error taxonomy.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized,
			gerr.Code == http.StatusForbidden,
			gerr.Code == http.StatusRequestTimeout,
			gerr.Code == http.StatusTooManyRequests,
			gerr.Code >= 500:
			return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
		default:
			return fmt.Errorf("%w: %w", ErrUpstreamRejected, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}

// ListCalendars returns the ids of all calendars visible to the credentials.
func (c *CalendarClient) ListCalendars(ctx context.Context) ([]string, error) {
	list, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", classify(err))
	}

	var calendarIDs []string
	for _, item := range list.Items {
		calendarIDs = append(calendarIDs, item.Id)
	}
	return calendarIDs, nil
}
