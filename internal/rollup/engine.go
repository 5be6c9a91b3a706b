package rollup

import (
	"sort"

	subscriberdomain "github.com/smallbiznis/usagestats/internal/subscriber/domain"
	"github.com/smallbiznis/usagestats/internal/taxonomy"
	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
)

// Compute derives every table from one immutable snapshot. Pure and
// deterministic: identical inputs produce byte-identical tables.
func Compute(joined []usagedomain.JoinedRecord, subscribers []subscriberdomain.SubscriberRecord) Set {
	return Set{
		GlobalMonthlyUsers:          GlobalMonthlyUsers(joined),
		InstitutionMonthlyCodes:     InstitutionMonthlyCodes(joined),
		InstitutionMonthlyUsers:     InstitutionMonthlyUsers(joined),
		InstitutionDatabaseYearly:   InstitutionDatabaseYearly(joined),
		SubscribersByStatus:         SubscriberStatusCounts(subscribers),
		SubscribersByYearCreated:    SubscriberStatusByYearCreated(subscribers),
		SubscribersByYearLastAccess: SubscriberStatusByYearLastAccess(subscribers),
	}
}

// activeUserKey is the dedup key for "distinct user active in a month": a user
// who queried five databases that month still counts once.
type activeUserKey struct {
	Institution string
	UserName    string
	Year        int
	Month       int
	MonthName   string
}

// GlobalMonthlyUsers counts distinct (institution, user) pairs per month
// across all institutions.
func GlobalMonthlyUsers(joined []usagedomain.JoinedRecord) []MonthlyUsersRow {
	type monthKey struct {
		Year      int
		Month     int
		MonthName string
	}
	seen := map[activeUserKey]struct{}{}
	counts := map[monthKey]int64{}
	for _, rec := range joined {
		k := activeUserKey{rec.InstitutionName, rec.UserName, rec.Year, rec.Month, rec.MonthName}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		counts[monthKey{rec.Year, rec.Month, rec.MonthName}]++
	}

	rows := make([]MonthlyUsersRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, MonthlyUsersRow{Year: k.Year, Month: k.Month, MonthName: k.MonthName, NbUsers: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Month != rows[j].Month {
			return rows[i].Month < rows[j].Month
		}
		return rows[i].Year < rows[j].Year
	})
	return rows
}

// InstitutionMonthlyCodes sums code counts per institution per month.
func InstitutionMonthlyCodes(joined []usagedomain.JoinedRecord) []InstitutionMonthlyCodesRow {
	type key struct {
		Institution string
		Year        int
		Month       int
	}
	sums := map[key]*InstitutionMonthlyCodesRow{}
	for _, rec := range joined {
		k := key{rec.InstitutionName, rec.Year, rec.Month}
		row, ok := sums[k]
		if !ok {
			row = &InstitutionMonthlyCodesRow{
				InstitutionName: rec.InstitutionName,
				Year:            rec.Year,
				Month:           rec.Month,
				MonthName:       rec.MonthName,
				Date:            rec.Date,
				MonthAbbrev:     rec.MonthAbbrev,
			}
			sums[k] = row
		}
		row.SumCodes += rec.CodeCount
	}

	rows := make([]InstitutionMonthlyCodesRow, 0, len(sums))
	for _, row := range sums {
		rows = append(rows, *row)
	}
	sortByInstitutionYearMonth(rows, func(r InstitutionMonthlyCodesRow) (string, int, int) {
		return r.InstitutionName, r.Year, r.Month
	})
	return rows
}

// InstitutionMonthlyUsers counts distinct active users per institution per month.
func InstitutionMonthlyUsers(joined []usagedomain.JoinedRecord) []InstitutionMonthlyUsersRow {
	type key struct {
		Institution string
		Year        int
		Month       int
		MonthName   string
	}
	seen := map[activeUserKey]struct{}{}
	counts := map[key]int64{}
	for _, rec := range joined {
		uk := activeUserKey{rec.InstitutionName, rec.UserName, rec.Year, rec.Month, rec.MonthName}
		if _, dup := seen[uk]; dup {
			continue
		}
		seen[uk] = struct{}{}
		counts[key{rec.InstitutionName, rec.Year, rec.Month, rec.MonthName}]++
	}

	rows := make([]InstitutionMonthlyUsersRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, InstitutionMonthlyUsersRow{
			InstitutionName: k.Institution,
			Year:            k.Year,
			Month:           k.Month,
			MonthName:       k.MonthName,
			NbActiveUsers:   n,
		})
	}
	sortByInstitutionYearMonth(rows, func(r InstitutionMonthlyUsersRow) (string, int, int) {
		return r.InstitutionName, r.Year, r.Month
	})
	return rows
}

// InstitutionDatabaseYearly sums code counts per institution, category and
// year; month granularity is discarded. Rows with no category are excluded
// from this breakdown only — they still count in the monthly code sums.
func InstitutionDatabaseYearly(joined []usagedomain.JoinedRecord) []InstitutionDatabaseYearRow {
	type key struct {
		Institution string
		Category    taxonomy.Category
		Year        int
	}
	sums := map[key]int64{}
	for _, rec := range joined {
		if rec.DatabaseCategory == nil {
			continue
		}
		sums[key{rec.InstitutionName, *rec.DatabaseCategory, rec.Year}] += rec.CodeCount
	}

	rows := make([]InstitutionDatabaseYearRow, 0, len(sums))
	for k, sum := range sums {
		rows = append(rows, InstitutionDatabaseYearRow{
			InstitutionName:  k.Institution,
			DatabaseCategory: k.Category,
			Year:             k.Year,
			SumCodes:         sum,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.InstitutionName != b.InstitutionName {
			return a.InstitutionName < b.InstitutionName
		}
		if a.DatabaseCategory != b.DatabaseCategory {
			return a.DatabaseCategory < b.DatabaseCategory
		}
		return a.Year < b.Year
	})
	return rows
}

// SubscriberStatusCounts counts subscriber rows per (institution, status).
func SubscriberStatusCounts(subscribers []subscriberdomain.SubscriberRecord) []SubscriberStatusRow {
	type key struct {
		Institution string
		Status      string
		HasStatus   bool
	}
	counts := map[key]int64{}
	for _, sub := range subscribers {
		if sub.InstitutionName == "" {
			continue
		}
		k := key{Institution: sub.InstitutionName}
		if sub.Status != nil {
			k.Status, k.HasStatus = *sub.Status, true
		}
		counts[k]++
	}

	rows := make([]SubscriberStatusRow, 0, len(counts))
	for k, n := range counts {
		row := SubscriberStatusRow{InstitutionName: k.Institution, NbSubscribers: n}
		if k.HasStatus {
			s := k.Status
			row.Status = &s
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.InstitutionName != b.InstitutionName {
			return a.InstitutionName < b.InstitutionName
		}
		return lessNullableString(a.Status, b.Status)
	})
	return rows
}

// SubscriberStatusByYearCreated counts subscriber rows per institution, status
// and creation year.
func SubscriberStatusByYearCreated(subscribers []subscriberdomain.SubscriberRecord) []SubscriberStatusYearRow {
	return subscriberStatusByYear(subscribers, subscriberdomain.SubscriberRecord.YearCreated)
}

// SubscriberStatusByYearLastAccess counts subscriber rows per institution,
// status and last-access year.
func SubscriberStatusByYearLastAccess(subscribers []subscriberdomain.SubscriberRecord) []SubscriberStatusYearRow {
	return subscriberStatusByYear(subscribers, subscriberdomain.SubscriberRecord.YearLastAccess)
}

func subscriberStatusByYear(subscribers []subscriberdomain.SubscriberRecord, yearOf func(subscriberdomain.SubscriberRecord) *int) []SubscriberStatusYearRow {
	type key struct {
		Institution string
		Status      string
		HasStatus   bool
		Year        int
		HasYear     bool
	}
	counts := map[key]int64{}
	for _, sub := range subscribers {
		if sub.InstitutionName == "" {
			continue
		}
		k := key{Institution: sub.InstitutionName}
		if sub.Status != nil {
			k.Status, k.HasStatus = *sub.Status, true
		}
		if y := yearOf(sub); y != nil {
			k.Year, k.HasYear = *y, true
		}
		counts[k]++
	}

	rows := make([]SubscriberStatusYearRow, 0, len(counts))
	for k, n := range counts {
		row := SubscriberStatusYearRow{InstitutionName: k.Institution, NbSubscribers: n}
		if k.HasStatus {
			s := k.Status
			row.Status = &s
		}
		if k.HasYear {
			y := k.Year
			row.Year = &y
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.InstitutionName != b.InstitutionName {
			return a.InstitutionName < b.InstitutionName
		}
		if !equalNullableInt(a.Year, b.Year) {
			return lessNullableInt(a.Year, b.Year)
		}
		return lessNullableString(a.Status, b.Status)
	})
	return rows
}

func sortByInstitutionYearMonth[T any](rows []T, key func(T) (string, int, int)) {
	sort.Slice(rows, func(i, j int) bool {
		ai, ay, am := key(rows[i])
		bi, by, bm := key(rows[j])
		if ai != bi {
			return ai < bi
		}
		if ay != by {
			return ay < by
		}
		return am < bm
	})
}

// Nullable ordering: nil sorts before any value, so null buckets lead.
func lessNullableString(a, b *string) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return true
	case b == nil:
		return false
	default:
		return *a < *b
	}
}

func lessNullableInt(a, b *int) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return true
	case b == nil:
		return false
	default:
		return *a < *b
	}
}

func equalNullableInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
