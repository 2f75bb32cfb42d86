package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jst = NewZone(DefaultOffset)

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 2, hour, min, 0, 0, jst)
}

func iv(sh, sm, eh, em int) Interval {
	return Interval{Start: at(sh, sm), End: at(eh, em)}
}

func TestOverlapsHalfOpen(t *testing.T) {
	assert.False(t, Overlaps(iv(10, 0, 10, 30), iv(10, 30, 11, 0)))
	assert.True(t, Overlaps(iv(10, 0, 10, 30), iv(10, 29, 11, 0)))
}

func TestOverlapsSymmetric(t *testing.T) {
	cases := []Interval{
		iv(8, 0, 9, 0),
		iv(8, 30, 8, 45),
		iv(9, 0, 10, 0),
		iv(7, 0, 12, 0),
		iv(11, 59, 12, 0),
	}
	for _, a := range cases {
		for _, b := range cases {
			assert.Equal(t, Overlaps(a, b), Overlaps(b, a), "%s vs %s", a, b)
		}
	}
}

func TestOverlapsAcrossZones(t *testing.T) {
	a := iv(10, 0, 10, 30)
	// 01:15Z is 10:15 JST.
	b := Interval{Start: time.Date(2025, 6, 2, 1, 15, 0, 0, time.UTC), End: time.Date(2025, 6, 2, 1, 45, 0, 0, time.UTC)}
	assert.True(t, Overlaps(a, b))
}

func TestNewInterval(t *testing.T) {
	_, err := NewInterval(at(10, 0), at(10, 0), jst)
	require.ErrorIs(t, err, ErrEmptyInterval)

	_, err = NewInterval(time.Time{}, at(10, 0), jst)
	require.ErrorIs(t, err, ErrZeroInstant)

	got, err := NewInterval(time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC), time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC), jst)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Start.Hour())
	assert.Equal(t, jst, got.Start.Location())
	assert.Equal(t, time.Hour, got.Duration())
}

func TestGenerateSlotsDefaultGrid(t *testing.T) {
	days := Days(at(0, 0), 2, jst)
	slots := GenerateSlots(days, DefaultGrid)

	require.Len(t, slots, 44)
	assert.Equal(t, at(8, 0), slots[0].Start)
	assert.Equal(t, at(8, 30), slots[0].End)
	assert.Equal(t, at(18, 30), slots[21].Start)
	assert.Equal(t, at(19, 0), slots[21].End)
	assert.Equal(t, at(8, 0).AddDate(0, 0, 1), slots[22].Start)

	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Start.Before(slots[i].Start))
	}
}

func TestGenerateSlotsDropsOverrun(t *testing.T) {
	g := Grid{StartHour: 8, EndHour: 10, Step: 45 * time.Minute}
	slots := GenerateSlots([]time.Time{at(0, 0)}, g)
	require.Len(t, slots, 2)
	assert.Equal(t, at(9, 30), slots[1].End)
}

func TestGenerateSlotsDeterministic(t *testing.T) {
	days := Days(at(0, 0), 7, jst)
	assert.Equal(t, GenerateSlots(days, DefaultGrid), GenerateSlots(days, DefaultGrid))
}

func TestGenerateSlotsInvalidGrid(t *testing.T) {
	assert.Empty(t, GenerateSlots(Days(at(0, 0), 1, jst), Grid{StartHour: 19, EndHour: 8, Step: time.Hour}))
	assert.Empty(t, GenerateSlots(Days(at(0, 0), 1, jst), Grid{StartHour: 8, EndHour: 19}))
}

func TestGridWithin(t *testing.T) {
	assert.True(t, DefaultGrid.Within(iv(8, 0, 9, 0)))
	assert.True(t, DefaultGrid.Within(iv(18, 0, 19, 0)))
	assert.False(t, DefaultGrid.Within(iv(18, 30, 19, 30)))
	assert.False(t, DefaultGrid.Within(iv(7, 30, 8, 30)))
}

func TestClassify(t *testing.T) {
	busy := []Interval{iv(10, 0, 10, 15)}

	tests := []struct {
		name string
		slot Interval
		now  time.Time
		want Status
	}{
		{"free", iv(11, 0, 11, 30), at(9, 0), Available},
		{"busy", iv(10, 0, 10, 30), at(9, 0), Booked},
		{"starts where busy ends", iv(10, 15, 10, 45), at(9, 0), Available},
		{"ends where busy starts", iv(9, 30, 10, 0), at(9, 0), Available},
		{"past", iv(8, 0, 8, 30), at(9, 0), Past},
		{"started a minute ago", iv(8, 30, 9, 0), at(8, 31), Past},
		{"past and busy", iv(10, 0, 10, 30), at(12, 0), Past},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.slot, tt.now, busy))
		})
	}
}

func TestClassifyDoesNotMutate(t *testing.T) {
	busy := []Interval{iv(10, 0, 10, 15), iv(12, 0, 13, 0)}
	snapshot := append([]Interval(nil), busy...)
	s := iv(12, 30, 13, 0)

	first := Classify(s, at(9, 0), busy)
	second := Classify(s, at(9, 0), busy)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, busy)
}

func TestStatusText(t *testing.T) {
	for _, s := range []Status{Available, Booked, Past} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	_, err := Status(7).MarshalText()
	assert.Error(t, err)
}
