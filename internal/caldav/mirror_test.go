package caldav

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hakobite/internal/models"
	"hakobite/internal/slot"
)

var jst = slot.NewZone(slot.DefaultOffset)

func record() models.BookingRecord {
	start := time.Date(2025, 6, 3, 10, 0, 0, 0, jst)
	return models.BookingRecord{
		BookingID:  "booking-1",
		EventID:    "abc123",
		Summary:    "[Booking] Sato - Care taxi",
		Transcript: "Name: Sato",
		Interval:   slot.Interval{Start: start, End: start.Add(time.Hour)},
		Request:    models.BookingRequest{Name: "Sato", PickupLocation: "Shinjuku", Email: "sato@example.com"},
	}
}

func TestMirrorPutsEvent(t *testing.T) {
	var (
		method, path, user, pass string
		decoded                  *ical.Calendar
	)
	status := http.StatusCreated
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		user, pass, _ = r.BasicAuth()
		cal, err := ical.NewDecoder(r.Body).Decode()
		assert.NoError(t, err)
		decoded = cal
		w.WriteHeader(status)
	}))
	defer srv.Close()

	m, err := NewMirror(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Endpoint:     srv.URL,
		Username:     "operator",
		Password:     "app-password",
		CalendarPath: "/calendars/operator/bookings/",
	})
	require.NoError(t, err)

	require.NoError(t, m.Notify(context.Background(), record()))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/calendars/operator/bookings/abc123.ics", path)
	assert.Equal(t, "operator", user)
	assert.Equal(t, "app-password", pass)

	require.NotNil(t, decoded)
	events := decoded.Events()
	require.Len(t, events, 1)
	uid, err := events[0].Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "abc123", uid)
	start, err := events[0].DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, start.Equal(record().Interval.Start))

	status = http.StatusInternalServerError
	require.Error(t, m.Notify(context.Background(), record()))
}

func TestNewMirrorRequiresEndpoint(t *testing.T) {
	_, err := NewMirror(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	require.Error(t, err)
}

func TestUIDFallsBackToBookingID(t *testing.T) {
	r := record()
	assert.Equal(t, "abc123", UID(r))
	r.EventID = ""
	assert.Equal(t, "booking-1", UID(r))
}

func TestCollectionPath(t *testing.T) {
	assert.Equal(t, "/123/calendars/work/", collectionPath("https://p01-caldav.icloud.com/123/calendars/work/"))
	assert.Equal(t, "/cal/", collectionPath("/cal/"))
	assert.Equal(t, "/cal/", collectionPath("cal/"))
}
