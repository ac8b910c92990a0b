package facts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/calendar"
	"github.com/Ramsey-B/fern/pkg/dimensions"
	"github.com/Ramsey-B/fern/pkg/models"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestBuild(t *testing.T) {
	jobs := []models.Job{
		{JobID: 1, Title: "Open role", Department: "Sales", Location: "Remote", OpenDate: datePtr(2021, time.March, 1), Source: models.SourceAPI},
		{JobID: 2, Title: "Filled role", Department: "Engineering", Location: "Cape Town", OpenDate: datePtr(2021, time.March, 1), CloseDate: datePtr(2021, time.March, 31), Source: models.SourceHistory},
		{JobID: 3, Title: "Backwards role", Department: "Sales", Location: "Remote", OpenDate: datePtr(2021, time.March, 10), CloseDate: datePtr(2021, time.March, 5), Source: models.SourceHistory},
		{JobID: 4, Title: "Ancient role", Department: "Sales", Location: "Remote", OpenDate: datePtr(2001, time.January, 1), Source: models.SourceHistory},
		{JobID: 5, Title: "No dates", Department: "Unknown", Location: "Unknown", Source: models.SourceHistory},
	}
	departments := dimensions.Departments(jobs)
	locations := dimensions.Locations(jobs)
	spine := calendar.Generate(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC), 0)

	facts, unresolved := Build(jobs, departments, locations, spine)

	require.Len(t, facts, len(jobs))
	for i, fact := range facts {
		assert.Equal(t, int64(i+1), fact.FactKey)
		assert.Equal(t, jobs[i].JobID, fact.JobID)
		assert.Equal(t, fact.IsOpen, fact.CloseDateKey == nil)
		assert.NotNil(t, fact.DepartmentKey)
		assert.NotNil(t, fact.LocationKey)
	}

	t.Run("open job", func(t *testing.T) {
		assert.True(t, facts[0].IsOpen)
		assert.Nil(t, facts[0].DaysToFill)
		require.NotNil(t, facts[0].OpenDateKey)
		assert.Equal(t, 20210301, *facts[0].OpenDateKey)
	})

	t.Run("filled job", func(t *testing.T) {
		assert.False(t, facts[1].IsOpen)
		require.NotNil(t, facts[1].DaysToFill)
		assert.Equal(t, 30, *facts[1].DaysToFill)
		assert.Equal(t, 20210331, *facts[1].CloseDateKey)
	})

	t.Run("negative fill time is not clamped", func(t *testing.T) {
		require.NotNil(t, facts[2].DaysToFill)
		assert.Equal(t, -5, *facts[2].DaysToFill)
	})

	t.Run("date outside the spine leaves a null key", func(t *testing.T) {
		assert.Nil(t, facts[3].OpenDateKey)
		assert.Equal(t, 1, unresolved.OpenDate)
		assert.Equal(t, 1, unresolved.Total())
	})

	t.Run("missing dates are not counted as unresolved", func(t *testing.T) {
		assert.Nil(t, facts[4].OpenDateKey)
		assert.Nil(t, facts[4].CloseDateKey)
		assert.True(t, facts[4].IsOpen)
	})
}

func TestBuild_UnknownDimensionValue(t *testing.T) {
	jobs := []models.Job{{JobID: 1, Department: "Sales", Location: "Remote"}}
	facts, unresolved := Build(jobs, dimensions.Build(models.DimensionDepartment, nil), dimensions.Locations(jobs), calendar.Spine{})

	require.Len(t, facts, 1)
	assert.Nil(t, facts[0].DepartmentKey)
	assert.NotNil(t, facts[0].LocationKey)
	assert.Equal(t, 1, unresolved.Department)
}
