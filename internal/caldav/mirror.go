// Package caldav mirrors committed bookings into a secondary CalDAV calendar
// (iCloud, Nextcloud, Fastmail and the like).
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"hakobite/internal/models"
)

// basicAuthTransport adds Basic Auth and a user agent to each request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "hakobite/1.0")
	return t.Transport.RoundTrip(req)
}

// Options configures a Mirror.
type Options struct {
	Endpoint     string
	Username     string
	Password     string
	CalendarName string
	// CalendarPath skips discovery when the collection path is already known.
	CalendarPath string
	Transport    http.RoundTripper
}

// Mirror writes each committed booking as a VEVENT to a CalDAV calendar.
// The calendar is discovered on first use and cached.
type Mirror struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	calendarName string

	mu           sync.Mutex
	calendarPath string
}

// NewMirror creates a Mirror. No request is made until the first booking.
func NewMirror(logger *slog.Logger, opts Options) (*Mirror, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("caldav endpoint is required")
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := &http.Client{Transport: &basicAuthTransport{
		Username:  opts.Username,
		Password:  opts.Password,
		Transport: base,
	}}

	caldavClient, err := caldav.NewClient(httpClient, opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	return &Mirror{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		calendarName: opts.CalendarName,
		calendarPath: opts.CalendarPath,
	}, nil
}

func (m *Mirror) Name() string { return "caldav" }

// Notify puts the booking at <calendar>/<event id>.ics. Writing the same
// booking twice overwrites the same resource.
func (m *Mirror) Notify(ctx context.Context, r models.BookingRecord) error {
	calendarPath, err := m.calendar(ctx)
	if err != nil {
		return err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//hakobite//booking//EN")
	cal.Children = append(cal.Children, toICal(r, time.Now()))

	eventPath := path.Join(calendarPath, UID(r)+".ics")
	m.logger.Debug("Mirroring booking to CalDAV", "path", eventPath, "bookingID", r.BookingID)

	writer, err := m.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to store event on CalDAV server: %w", err)
	}
	return nil
}

// UID is the iCalendar UID used for a booking's mirrored event.
func UID(r models.BookingRecord) string {
	if r.EventID != "" {
		return r.EventID
	}
	return r.BookingID
}

func toICal(r models.BookingRecord, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, UID(r))
	ve.Props.SetText(ical.PropSummary, r.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, r.Interval.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, r.Interval.End.UTC())

	if r.Transcript != "" {
		ve.Props.SetText(ical.PropDescription, r.Transcript)
	}
	if r.Request.PickupLocation != "" {
		ve.Props.SetText(ical.PropLocation, r.Request.PickupLocation)
	}
	if r.Request.Email != "" {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText("mailto:" + r.Request.Email)
		ve.Props.Add(p)
	}
	return ve
}

func (m *Mirror) calendar(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calendarPath != "" {
		return m.calendarPath, nil
	}

	m.logger.Info("Finding CalDAV calendar", "calendarName", m.calendarName)
	p, err := m.findCalendar(ctx, m.calendarName)
	if err != nil {
		return "", fmt.Errorf("could not find calendar %q: %w", m.calendarName, err)
	}
	m.calendarPath = p
	m.logger.Info("Found CalDAV calendar", "path", p)
	return p, nil
}

// findCalendar walks principal, home set and collections and returns the
// path of the calendar called name.
func (m *Mirror) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := m.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := m.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := m.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return collectionPath(cal.Path), nil
		}
	}
	return "", fmt.Errorf("no calendar found with name %q", name)
}

// collectionPath strips scheme and host when a server reports absolute URLs.
func collectionPath(p string) string {
	if u, err := url.Parse(p); err == nil && u.Host != "" {
		p = u.Path
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
