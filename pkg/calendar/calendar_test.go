package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerate(t *testing.T) {
	anchor := date(2015, time.January, 1)
	runDate := time.Date(2026, time.October, 16, 6, 0, 0, 0, time.UTC)

	spine := Generate(anchor, runDate, 2)

	require.NotEmpty(t, spine.Days)
	first := spine.Days[0]
	last := spine.Days[len(spine.Days)-1]
	assert.Equal(t, 20150101, first.DateKey)
	assert.Equal(t, 20281016, last.DateKey)
	assert.Equal(t, int(date(2028, time.October, 16).Sub(anchor).Hours()/24)+1, spine.Len())

	for i := 1; i < len(spine.Days); i++ {
		assert.Equal(t, spine.Days[i-1].Date.AddDate(0, 0, 1), spine.Days[i].Date, "gap at %d", i)
	}
}

func TestGenerate_HorizonAdvances(t *testing.T) {
	anchor := date(2020, time.January, 1)
	earlier := Generate(anchor, date(2024, time.March, 1), 2)
	later := Generate(anchor, date(2024, time.March, 2), 2)

	assert.Equal(t, earlier.Len()+1, later.Len())
	assert.Equal(t, earlier.Days, later.Days[:earlier.Len()])
}

func TestGenerate_EndBeforeAnchor(t *testing.T) {
	spine := Generate(date(2030, time.January, 1), date(2020, time.January, 1), 0)
	assert.Empty(t, spine.Days)
	assert.Nil(t, spine.Lookup(&time.Time{}))
}

func TestDay(t *testing.T) {
	tests := []struct {
		name      string
		date      time.Time
		quarter   int
		monthName string
		dayOfWeek int
		weekend   bool
	}{
		{name: "monday", date: date(2021, time.March, 15), quarter: 1, monthName: "March", dayOfWeek: 1, weekend: false},
		{name: "saturday", date: date(2021, time.July, 3), quarter: 3, monthName: "July", dayOfWeek: 6, weekend: true},
		{name: "sunday", date: date(2021, time.December, 26), quarter: 4, monthName: "December", dayOfWeek: 7, weekend: true},
		{name: "leap day", date: date(2024, time.February, 29), quarter: 1, monthName: "February", dayOfWeek: 4, weekend: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := Day(tt.date)
			assert.Equal(t, tt.quarter, day.Quarter)
			assert.Equal(t, tt.monthName, day.MonthName)
			assert.Equal(t, tt.dayOfWeek, day.DayOfWeek)
			assert.Equal(t, tt.weekend, day.IsWeekend)
			assert.Equal(t, tt.date.Year(), day.Year)
		})
	}
}

func TestSpine_Lookup(t *testing.T) {
	spine := Generate(date(2021, time.January, 1), date(2021, time.January, 10), 0)

	inside := date(2021, time.January, 5)
	outside := date(2020, time.December, 31)

	key := spine.Lookup(&inside)
	require.NotNil(t, key)
	assert.Equal(t, 20210105, *key)
	assert.Nil(t, spine.Lookup(&outside))
	assert.Nil(t, spine.Lookup(nil))

	assert.True(t, spine.Covers(&inside, nil))
	assert.False(t, spine.Covers(&inside, &outside))
}
