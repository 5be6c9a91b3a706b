package rollup

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/smallbiznis/usagestats/internal/taxonomy"
	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
)

// UnknownInstitutionError is returned when a caller asks for an institution
// name absent from the joined dataset. Matching is exact and case-sensitive;
// "iae lille" does not find "IAE Lille".
type UnknownInstitutionError struct {
	Name string
}

func (e *UnknownInstitutionError) Error() string {
	return fmt.Sprintf("unknown institution %q (names are case-sensitive)", e.Name)
}

// Dataset wraps the joined records of one run for per-entity lookups.
type Dataset struct {
	joined       []usagedomain.JoinedRecord
	institutions map[string]struct{}
}

// NewDataset indexes the joined records of one snapshot.
func NewDataset(joined []usagedomain.JoinedRecord) *Dataset {
	institutions := make(map[string]struct{})
	for _, rec := range joined {
		institutions[rec.InstitutionName] = struct{}{}
	}
	return &Dataset{joined: joined, institutions: institutions}
}

// Institutions lists every institution present in the dataset, sorted.
func (d *Dataset) Institutions() []string {
	names := lo.Keys(d.institutions)
	sort.Strings(names)
	return names
}

// Institution resolves an institution view by exact name.
func (d *Dataset) Institution(name string) (*InstitutionView, error) {
	if _, ok := d.institutions[name]; !ok {
		return nil, &UnknownInstitutionError{Name: name}
	}
	records := lo.Filter(d.joined, func(rec usagedomain.JoinedRecord, _ int) bool {
		return rec.InstitutionName == name
	})
	return &InstitutionView{Name: name, records: records}, nil
}

// UserDatabases lists the database categories a user has queried.
func (d *Dataset) UserDatabases(userID int64) []taxonomy.Category {
	return uniqueCategories(lo.Filter(d.joined, func(rec usagedomain.JoinedRecord, _ int) bool {
		return rec.UserID == userID
	}))
}

// DatabaseUsers lists the distinct user names that queried a category.
func (d *Dataset) DatabaseUsers(category taxonomy.Category) []string {
	users := lo.FilterMap(d.joined, func(rec usagedomain.JoinedRecord, _ int) (string, bool) {
		if rec.DatabaseCategory == nil || *rec.DatabaseCategory != category {
			return "", false
		}
		return rec.UserName, true
	})
	return sortedUnique(users)
}

// InstitutionView exposes the per-institution lookups of the reporting layer.
type InstitutionView struct {
	Name    string
	records []usagedomain.JoinedRecord
}

// Users lists the distinct user names of the institution.
func (v *InstitutionView) Users() []string {
	return sortedUnique(lo.Map(v.records, func(rec usagedomain.JoinedRecord, _ int) string {
		return rec.UserName
	}))
}

// Databases lists the distinct database categories the institution queried.
func (v *InstitutionView) Databases() []taxonomy.Category {
	return uniqueCategories(v.records)
}

// Years lists the years with any activity, ascending.
func (v *InstitutionView) Years() []int {
	years := lo.Uniq(lo.Map(v.records, func(rec usagedomain.JoinedRecord, _ int) int {
		return rec.Year
	}))
	sort.Ints(years)
	return years
}

func uniqueCategories(records []usagedomain.JoinedRecord) []taxonomy.Category {
	cats := lo.FilterMap(records, func(rec usagedomain.JoinedRecord, _ int) (taxonomy.Category, bool) {
		if rec.DatabaseCategory == nil {
			return "", false
		}
		return *rec.DatabaseCategory, true
	})
	cats = lo.Uniq(cats)
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

func sortedUnique(values []string) []string {
	values = lo.Uniq(values)
	sort.Strings(values)
	return values
}
