package models

// Star is the full content of the dimensional layer for one run.
type Star struct {
	Departments []Dimension
	Locations   []Dimension
	Calendar    []CalendarDay
	Facts       []Fact
}
