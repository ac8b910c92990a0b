// Package dimensions derives the department and location dimensions from the
// canonical stream.
package dimensions

import (
	"sort"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// Set is one built dimension: rows in key order plus a name index.
type Set struct {
	Kind  models.DimensionKind
	Rows  []models.Dimension
	index map[string]int
}

// Build collects the distinct values, sorts them in ascending byte order and
// numbers them from 1. Blank values are skipped so every row carries a name.
func Build(kind models.DimensionKind, values []string) Set {
	seen := make(map[string]struct{}, len(values))
	distinct := make([]string, 0)
	for _, value := range values {
		if normalizers.IsBlank(value) {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		distinct = append(distinct, value)
	}
	sort.Strings(distinct)

	set := Set{
		Kind:  kind,
		Rows:  make([]models.Dimension, len(distinct)),
		index: make(map[string]int, len(distinct)),
	}
	for i, name := range distinct {
		set.Rows[i] = models.Dimension{Key: i + 1, Name: name}
		set.index[name] = i + 1
	}
	return set
}

// Departments builds the department dimension of a canonical stream.
func Departments(jobs []models.Job) Set {
	return Build(models.DimensionDepartment, ectolinq.Map(jobs, func(job models.Job) string { return job.Department }))
}

// Locations builds the location dimension of a canonical stream.
func Locations(jobs []models.Job) Set {
	return Build(models.DimensionLocation, ectolinq.Map(jobs, func(job models.Job) string { return job.Location }))
}

// Lookup resolves a name by exact match. It returns nil when the name is not
// part of the dimension.
func (s Set) Lookup(name string) *int {
	key, ok := s.index[name]
	if !ok {
		return nil
	}
	return &key
}

func (s Set) Len() int {
	return len(s.Rows)
}

// Names returns the natural names in key order.
func (s Set) Names() []string {
	return ectolinq.Map(s.Rows, func(row models.Dimension) string { return row.Name })
}

// FromRows rebuilds a Set from stored rows, e.g. when validating persisted tables.
func FromRows(kind models.DimensionKind, rows []models.Dimension) Set {
	set := Set{Kind: kind, Rows: rows, index: make(map[string]int, len(rows))}
	for _, row := range rows {
		set.index[row.Name] = row.Key
	}
	return set
}
