package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 20:00 UTC on the 1st is 01:30 on the 2nd in Kolkata.
	ts := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	start, end := DayBounds(ts, loc)

	assert.Equal(t, time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 2, 18, 30, 0, 0, time.UTC), end)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestDayBounds_NilLocation(t *testing.T) {
	ts := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	start, end := DayBounds(ts, nil)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), end)
}

func TestParseDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	d, err := ParseDay("2024-03-01", loc)
	require.NoError(t, err)
	assert.Equal(t, loc, d.Location())
	assert.Equal(t, 1, d.Day())

	d, err = ParseDay("2024-03-01T20:00:00Z", loc)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Day())

	_, err = ParseDay("yesterday", loc)
	assert.Error(t, err)
}

func TestFixed(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, ts, Fixed{T: ts}.Now())
}
