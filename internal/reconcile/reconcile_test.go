package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hakobite/internal/models"
	"hakobite/internal/slot"
)

var jst = slot.NewZone(slot.DefaultOffset)

func entry(id string, minute int) Entry {
	start := time.Date(2025, 6, 3, 10, 0, 0, 0, jst)
	return Entry{
		EventID:   id,
		BookingID: "booking-" + id,
		Summary:   "[Booking] Sato - Care taxi",
		Name:      "Sato",
		Phone:     "090-0000-0000",
		Interval:  slot.Interval{Start: start, End: start.Add(time.Hour)},
		Error:     "calendar unavailable",
		FailedAt:  time.Date(2025, 6, 2, 9, minute, 0, 0, jst),
	}
}

func TestOpenLedgerMissingFile(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.Empty(t, l.Entries())
}

func TestOpenLedgerCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := OpenLedger(path)
	require.Error(t, err)
}

func TestLedgerPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	l, err := OpenLedger(path)
	require.NoError(t, err)

	require.NoError(t, l.Record(entry("b", 5)))
	require.NoError(t, l.Record(entry("a", 1)))
	require.NoError(t, l.Resolve("b", StatusCommitted, time.Date(2025, 6, 2, 10, 0, 0, 0, jst)))

	reopened, err := OpenLedger(path)
	require.NoError(t, err)

	all := reopened.Entries()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].EventID, "oldest first")
	assert.Equal(t, StatusCommitted, all[1].Status)
	require.NotNil(t, all[1].ResolvedAt)

	pending := reopened.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].EventID)
	assert.True(t, pending[0].Interval.Start.Equal(entry("a", 1).Interval.Start))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".reconcile-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files are renamed away")
}

func TestLedgerRejectsUnknownAndEmpty(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	require.Error(t, l.Record(Entry{}))
	require.Error(t, l.Resolve("missing", StatusAbsent, time.Now()))
}

type fakeEvents struct {
	found map[string]bool
	fail  map[string]bool
	calls []string
}

func (f *fakeEvents) GetEvent(_ context.Context, id string) (models.Event, bool, error) {
	f.calls = append(f.calls, id)
	if f.fail[id] {
		return models.Event{}, false, errors.New("calendar unavailable")
	}
	if f.found[id] {
		return models.Event{ID: id}, true, nil
	}
	return models.Event{}, false, nil
}

func TestSweepResolvesEntries(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	require.NoError(t, l.Record(entry("here", 1)))
	require.NoError(t, l.Record(entry("gone", 2)))
	require.NoError(t, l.Record(entry("flaky", 3)))

	events := &fakeEvents{
		found: map[string]bool{"here": true},
		fail:  map[string]bool{"flaky": true},
	}
	s := NewSweeper(slog.New(slog.NewTextHandler(io.Discard, nil)), l, events, time.Second)

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Committed: 1, Absent: 1, Unchanged: 1}, res)
	assert.Equal(t, []string{"here", "gone", "flaky"}, events.calls)

	pending := l.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "flaky", pending[0].EventID)

	// A second sweep only retries what is still pending.
	events.fail = nil
	res, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Absent: 1}, res)
	assert.Empty(t, l.Pending())
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	require.NoError(t, l.Record(entry("a", 1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := &fakeEvents{}
	_, err = NewSweeper(slog.New(slog.NewTextHandler(io.Discard, nil)), l, events, time.Second).Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, events.calls)
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	s := NewSweeper(slog.New(slog.NewTextHandler(io.Discard, nil)), l, &fakeEvents{}, time.Second)

	c := cron.New()
	_, err = s.Schedule(context.Background(), c, "every now and then")
	require.Error(t, err)

	id, err := s.Schedule(context.Background(), c, "@every 10m")
	require.NoError(t, err)
	assert.NotZero(t, id)
}
