package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse(t *testing.T) {
	t.Run("both layouts yield the same date", func(t *testing.T) {
		us, ok := Parse("03/14/2021")
		require.True(t, ok)
		iso, ok := Parse("2021-03-14")
		require.True(t, ok)
		assert.Equal(t, day(2021, time.March, 14), us)
		assert.Equal(t, us, iso)
	})

	t.Run("surrounding whitespace is ignored", func(t *testing.T) {
		parsed, ok := Parse("  2020-01-31 ")
		require.True(t, ok)
		assert.Equal(t, day(2020, time.January, 31), parsed)
	})

	for _, literal := range []string{"not-a-date", "", "   ", "2021/03/14", "14/03/2021", "2021-02-30", "3/14/2021"} {
		t.Run("rejects "+literal, func(t *testing.T) {
			_, ok := Parse(literal)
			assert.False(t, ok)
		})
	}
}

func TestParsePtr(t *testing.T) {
	assert.Nil(t, ParsePtr(nil))

	bad := "not-a-date"
	assert.NotPanics(t, func() { assert.Nil(t, ParsePtr(&bad)) })

	good := "12/01/2019"
	parsed := ParsePtr(&good)
	require.NotNil(t, parsed)
	assert.Equal(t, day(2019, time.December, 1), *parsed)
}

func TestTruncate(t *testing.T) {
	sast := time.FixedZone("SAST", 2*60*60)
	ts := time.Date(2024, time.June, 3, 23, 30, 0, 0, sast)
	assert.Equal(t, day(2024, time.June, 3), Truncate(ts))

	t.Run("same instant under different offsets", func(t *testing.T) {
		feed, err := time.Parse(time.RFC3339, "2026-10-01T22:00:00-04:00")
		require.NoError(t, err)
		stored := feed.UTC()

		assert.Equal(t, day(2026, time.October, 2), Truncate(feed))
		assert.Equal(t, Truncate(feed), Truncate(stored))
		assert.Equal(t, Key(Truncate(feed)), Key(Truncate(stored)))
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, 20210314, Key(day(2021, time.March, 14)))
	assert.Equal(t, 20150101, Key(day(2015, time.January, 1)))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(day(2021, 3, 14), day(2021, 3, 14)))
	assert.Equal(t, 366, DaysBetween(day(2020, 1, 1), day(2021, 1, 1)))
	assert.Equal(t, -5, DaysBetween(day(2021, 3, 14), day(2021, 3, 9)))

	t.Run("spans longer than a duration can hold", func(t *testing.T) {
		open, ok := Parse("0201-03-14")
		require.True(t, ok)
		closed, ok := Parse("2021-03-14")
		require.True(t, ok)
		assert.Equal(t, 664742, DaysBetween(open, closed))
		assert.Equal(t, -664742, DaysBetween(closed, open))
	})

	t.Run("offsets do not shift the count", func(t *testing.T) {
		start := time.Date(2021, 3, 14, 23, 0, 0, 0, time.FixedZone("EDT", -4*60*60))
		assert.Equal(t, 1, DaysBetween(day(2021, 3, 14), start))
	})
}

func TestISOWeekdayAndQuarter(t *testing.T) {
	assert.Equal(t, 1, ISOWeekday(day(2024, time.January, 1)))
	assert.Equal(t, 7, ISOWeekday(day(2024, time.January, 7)))
	assert.Equal(t, 1, Quarter(day(2024, time.March, 31)))
	assert.Equal(t, 2, Quarter(day(2024, time.April, 1)))
	assert.Equal(t, 4, Quarter(day(2024, time.December, 31)))
}
