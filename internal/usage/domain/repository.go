package domain

import (
	"context"
	"sort"
)

// Filter restricts a fetch to a set of years and/or institution names.
// Empty sets mean no restriction. Institution matching is exact and
// case-sensitive, as the reporting layer has always behaved.
type Filter struct {
	Years        map[int]struct{}
	Institutions map[string]struct{}
}

// YearList returns the filtered years in ascending order.
func (f Filter) YearList() []int {
	out := make([]int, 0, len(f.Years))
	for y := range f.Years {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// InstitutionList returns the filtered institution names sorted.
func (f Filter) InstitutionList() []string {
	out := make([]string, 0, len(f.Institutions))
	for n := range f.Institutions {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Source fetches raw usage rows as a complete, materialized snapshot.
type Source interface {
	FetchUsage(ctx context.Context, filter Filter) ([]RawUsageRow, error)
}
