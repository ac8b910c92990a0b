package dimensions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		values   []string
		expected []models.Dimension
	}{
		{
			name:   "sorted and keyed from one",
			values: []string{"Sales", "Engineering", "Unknown", "Sales", "Engineering"},
			expected: []models.Dimension{
				{Key: 1, Name: "Engineering"},
				{Key: 2, Name: "Sales"},
				{Key: 3, Name: "Unknown"},
			},
		},
		{
			name:     "blank values are excluded",
			values:   []string{"", "  ", "Remote"},
			expected: []models.Dimension{{Key: 1, Name: "Remote"}},
		},
		{
			name:     "empty input",
			values:   nil,
			expected: []models.Dimension{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := Build(models.DimensionDepartment, tt.values)
			assert.Equal(t, tt.expected, set.Rows)
			assert.Equal(t, len(tt.expected), set.Len())
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a := Build(models.DimensionLocation, []string{"Cape Town", "Remote", "Johannesburg"})
	b := Build(models.DimensionLocation, []string{"Johannesburg", "Cape Town", "Remote", "Remote"})
	assert.Equal(t, a.Rows, b.Rows)
}

func TestSet_Lookup(t *testing.T) {
	jobs := []models.Job{
		{Department: "Sales", Location: "Remote"},
		{Department: "Unknown", Location: "Cape Town"},
	}
	departments := Departments(jobs)
	locations := Locations(jobs)

	key := departments.Lookup("Unknown")
	require.NotNil(t, key)
	assert.Equal(t, 2, *key)
	assert.Nil(t, departments.Lookup("unknown"))

	assert.Equal(t, []string{"Cape Town", "Remote"}, locations.Names())
	assert.Equal(t, models.DimensionLocation, locations.Kind)
}

func TestFromRows(t *testing.T) {
	set := FromRows(models.DimensionDepartment, []models.Dimension{{Key: 7, Name: "Sales"}})
	key := set.Lookup("Sales")
	require.NotNil(t, key)
	assert.Equal(t, 7, *key)
}
