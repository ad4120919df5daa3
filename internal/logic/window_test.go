package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowNormal(t *testing.T) {
	w := OperatingWindow{BeginHour: 10, EndHour: 23}
	assert.False(t, w.Wrapped())

	cases := []struct {
		hour, minute int
		want         bool
	}{
		{2, 0, false},
		{9, 59, false},
		{10, 0, true},
		{15, 30, true},
		{22, 59, true},
		{23, 0, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, w.Contains(at(c.hour, c.minute)), "%02d:%02d", c.hour, c.minute)
	}
}

func TestWindowWrapped(t *testing.T) {
	w := OperatingWindow{BeginHour: 18, BeginMinute: 30, EndHour: 6}
	assert.True(t, w.Wrapped())

	assert.True(t, w.Contains(at(18, 30)))
	assert.True(t, w.Contains(at(23, 59)))
	assert.True(t, w.Contains(at(0, 0)))
	assert.True(t, w.Contains(at(5, 59)))
	assert.False(t, w.Contains(at(6, 0)))
	assert.False(t, w.Contains(at(12, 0)))
	assert.False(t, w.Contains(at(18, 29)))
}

func TestWindowWholeDay(t *testing.T) {
	for h := 0; h < 24; h++ {
		assert.True(t, AlwaysOpen.Contains(at(h, 17)))
	}
}

func TestWindowUsesTimeZoneOfTime(t *testing.T) {
	w := OperatingWindow{BeginHour: 10, EndHour: 23}
	loc := time.FixedZone("UTC-5", -5*3600)
	// 04:00 UTC is 23:00 the previous evening in UTC-5.
	ts := time.Date(2026, 1, 10, 4, 0, 0, 0, time.UTC)
	assert.False(t, w.Contains(ts))
	assert.False(t, w.Contains(ts.In(loc)))
	assert.True(t, w.Contains(ts.Add(-2*time.Hour).In(loc)))
}

func TestClockSynced(t *testing.T) {
	assert.False(t, ClockSynced(time.Time{}))
	assert.False(t, ClockSynced(time.Unix(0, 0)))
	assert.True(t, ClockSynced(at(1, 0)))
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("22:15", "06:45")
	require.NoError(t, err)
	assert.Equal(t, OperatingWindow{BeginHour: 22, BeginMinute: 15, EndHour: 6, EndMinute: 45}, w)
	assert.Equal(t, "22:15-06:45", w.String())
	assert.NoError(t, w.Validate())

	_, err = ParseWindow("25:00", "06:00")
	assert.Error(t, err)
	_, err = ParseWindow("10:00", "noon")
	assert.Error(t, err)
}

func TestWindowValidate(t *testing.T) {
	assert.Error(t, OperatingWindow{BeginHour: 24}.Validate())
	assert.Error(t, OperatingWindow{EndMinute: 60}.Validate())
	assert.Error(t, OperatingWindow{BeginMinute: -1}.Validate())
	assert.NoError(t, OperatingWindow{BeginHour: 23, BeginMinute: 59}.Validate())
}
