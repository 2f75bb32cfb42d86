package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"hakobite/internal/models"
	"hakobite/internal/slot"
)

var jst = slot.NewZone(slot.DefaultOffset)

func newTestClient(t *testing.T, handler http.HandlerFunc) *CalendarClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(context.Background(), logger, srv.Client(), "primary", "Asia/Tokyo", jst, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListEventsNormalisesAndPaginates(t *testing.T) {
	var queries []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		queries = append(queries, r.URL.RawQuery)
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "startTime", q.Get("orderBy"))

		if q.Get("pageToken") == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"items": []map[string]any{{
					"id":      "a",
					"summary": "existing",
					"start":   map[string]string{"dateTime": "2025-06-02T01:00:00Z"},
					"end":     map[string]string{"dateTime": "2025-06-02T01:15:00Z"},
					"extendedProperties": map[string]any{
						"private": map[string]string{"bookingId": "b-1"},
					},
				}},
				"nextPageToken": "p2",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{{
				"id":    "holiday",
				"start": map[string]string{"date": "2025-06-03"},
				"end":   map[string]string{"date": "2025-06-04"},
			}},
		})
	})

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, jst)
	events, err := c.ListEvents(context.Background(), start, start.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Len(t, queries, 2)

	first := events[0]
	assert.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, jst), first.Start)
	assert.Equal(t, jst, first.Start.Location())
	assert.Equal(t, "b-1", first.BookingID)
	assert.False(t, first.AllDay)

	assert.True(t, events[1].AllDay)
	_, busy := events[1].BusyPeriod()
	assert.False(t, busy)

	assert.Len(t, models.BusyPeriods(events), 1)
}

func TestListEventsErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, ErrUpstreamUnavailable},
		{http.StatusUnauthorized, ErrUpstreamUnavailable},
		{http.StatusBadRequest, ErrUpstreamRejected},
		{http.StatusNotFound, ErrUpstreamRejected},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{"error": map[string]any{"code": tt.status, "message": "nope"}})
			})
			_, err := c.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestListEventsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(context.Background(), logger, http.DefaultClient, "primary", "Asia/Tokyo", jst, option.WithEndpoint(url+"/"))
	require.NoError(t, err)

	_, err = c.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestListEventsMalformedTimestamp(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{{
				"id":    "bad",
				"start": map[string]string{"dateTime": "2025-06-02 10:00"},
				"end":   map[string]string{"dateTime": "2025-06-02T10:30:00+09:00"},
			}},
		})
	})
	_, err := c.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestCreateEvent(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{"id": got["id"]})
	})

	start := time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC)
	id, err := c.CreateEvent(context.Background(), models.NewEvent{
		ID:          "0123456789abcdef",
		Summary:     "[Booking] Sato - Care taxi",
		Description: "transcript",
		Interval:    slot.Interval{Start: start, End: start.Add(30 * time.Minute)},
		BookingID:   "b-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", id)

	startBody := got["start"].(map[string]any)
	assert.Equal(t, "2025-06-02T10:00:00+09:00", startBody["dateTime"])
	assert.Equal(t, "Asia/Tokyo", startBody["timeZone"])
	ext := got["extendedProperties"].(map[string]any)["private"].(map[string]any)
	assert.Equal(t, "b-1", ext["bookingId"])
}

func TestCreateEventDuplicateIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": map[string]any{"code": 409, "message": "The requested identifier already exists."}})
	})
	start := time.Now()
	_, err := c.CreateEvent(context.Background(), models.NewEvent{ID: "abcde", Interval: slot.Interval{Start: start, End: start.Add(time.Hour)}})
	require.ErrorIs(t, err, ErrUpstreamRejected)
}

func TestGetEvent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/calendars/primary/events/present":
			writeJSON(w, http.StatusOK, map[string]any{
				"id":     "present",
				"status": "confirmed",
				"start":  map[string]string{"dateTime": "2025-06-02T10:00:00+09:00"},
				"end":    map[string]string{"dateTime": "2025-06-02T10:30:00+09:00"},
			})
		case "/calendars/primary/events/cancelled":
			writeJSON(w, http.StatusOK, map[string]any{"id": "cancelled", "status": "cancelled"})
		case "/calendars/primary/events/broken":
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"code": 500, "message": "boom"}})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": 404, "message": "Not Found"}})
		}
	})

	ev, found, err := c.GetEvent(context.Background(), "present")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "present", ev.ID)

	_, found, err = c.GetEvent(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = c.GetEvent(context.Background(), "cancelled")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = c.GetEvent(context.Background(), "broken")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}
