package rollup

import (
	"testing"
	"time"

	subscriberdomain "github.com/smallbiznis/usagestats/internal/subscriber/domain"
	"github.com/smallbiznis/usagestats/internal/taxonomy"
	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinedRecord(user, institution, database string, year, month int, codes int64) usagedomain.JoinedRecord {
	date := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	tax := taxonomy.NewDefault()
	return usagedomain.JoinedRecord{
		UsageRecord: usagedomain.UsageRecord{
			UserID:           int64(len(user)), // not meaningful for these tables
			UserName:         user,
			InstitutionName:  institution,
			Year:             year,
			Month:            month,
			DatabaseName:     database,
			CodeCount:        codes,
			EventTimestamp:   date,
			MonthName:        taxonomy.MonthName(month),
			MonthKey:         taxonomy.MonthKey(year, month),
			MonthAbbrev:      taxonomy.MonthAbbrev(date),
			Date:             date,
			DatabaseCategory: tax.ClassifyDatabase(database),
			LookupMode:       taxonomy.ClassifyLookupMode(database),
		},
	}
}

func strPtr(s string) *string { return &s }

// A user who queried three databases in one month counts once in that month,
// both globally and per institution.
func TestDistinctActiveUserDedup(t *testing.T) {
	joined := []usagedomain.JoinedRecord{
		joinedRecord("a.martin", "IAE Lille", "actions_fr", 2024, 3, 10),
		joinedRecord("a.martin", "IAE Lille", "esg_scores", 2024, 3, 5),
		joinedRecord("a.martin", "IAE Lille", "taux_de_change", 2024, 3, 1),
		joinedRecord("b.durand", "IAE Lille", "actions_fr", 2024, 3, 2),
	}

	global := GlobalMonthlyUsers(joined)
	require.Len(t, global, 1)
	assert.Equal(t, int64(2), global[0].NbUsers)
	assert.Equal(t, "March", global[0].MonthName)

	perInst := InstitutionMonthlyUsers(joined)
	require.Len(t, perInst, 1)
	assert.Equal(t, int64(2), perInst[0].NbActiveUsers)
}

func TestGlobalMonthlyUsersCountsAcrossInstitutions(t *testing.T) {
	// The same user name at two institutions is two (institution, user) pairs.
	joined := []usagedomain.JoinedRecord{
		joinedRecord("a.martin", "IAE Lille", "actions_fr", 2024, 3, 10),
		joinedRecord("a.martin", "Universite de Grenoble", "actions_fr", 2024, 3, 10),
	}

	global := GlobalMonthlyUsers(joined)
	require.Len(t, global, 1)
	assert.Equal(t, int64(2), global[0].NbUsers)
}

func TestInstitutionMonthlyCodesSums(t *testing.T) {
	joined := []usagedomain.JoinedRecord{
		joinedRecord("a.martin", "IAE Lille", "actions_fr", 2024, 3, 10),
		joinedRecord("b.durand", "IAE Lille", "esg_scores", 2024, 3, 7),
		joinedRecord("a.martin", "IAE Lille", "actions_fr", 2024, 4, 3),
		joinedRecord("c.petit", "Universite de Grenoble", "actions_fr", 2024, 3, 100),
	}

	rows := InstitutionMonthlyCodes(joined)
	require.Len(t, rows, 3)

	assert.Equal(t, "IAE Lille", rows[0].InstitutionName)
	assert.Equal(t, 3, rows[0].Month)
	assert.Equal(t, int64(17), rows[0].SumCodes)
	assert.Equal(t, "Mar'24", rows[0].MonthAbbrev)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rows[0].Date)

	assert.Equal(t, 4, rows[1].Month)
	assert.Equal(t, int64(3), rows[1].SumCodes)

	assert.Equal(t, "Universite de Grenoble", rows[2].InstitutionName)
	assert.Equal(t, int64(100), rows[2].SumCodes)
}

// The sum of a category breakdown never exceeds the monthly total: rows that
// classify to no category are excluded from the yearly table only.
func TestInstitutionDatabaseYearlySkipsUnclassified(t *testing.T) {
	joined := []usagedomain.JoinedRecord{
		joinedRecord("a.martin", "IAE Lille", "actions_fr", 2024, 3, 10),
		joinedRecord("a.martin", "IAE Lille", "table_inconnue", 2024, 3, 99),
		joinedRecord("a.martin", "IAE Lille", "histo_actions_fr", 2024, 7, 5),
	}

	rows := InstitutionDatabaseYearly(joined)
	require.Len(t, rows, 1)
	assert.Equal(t, taxonomy.CategoryStocks, rows[0].DatabaseCategory)
	assert.Equal(t, 2024, rows[0].Year)
	assert.Equal(t, int64(15), rows[0].SumCodes)

	monthly := InstitutionMonthlyCodes(joined)
	var monthlySum int64
	for _, r := range monthly {
		monthlySum += r.SumCodes
	}
	assert.Equal(t, int64(114), monthlySum)
}

func TestSubscriberStatusCounts(t *testing.T) {
	subs := []subscriberdomain.SubscriberRecord{
		{UserID: 1, InstitutionName: "IAE Lille", Status: strPtr("actif")},
		{UserID: 2, InstitutionName: "IAE Lille", Status: strPtr("actif")},
		{UserID: 3, InstitutionName: "IAE Lille", Status: strPtr("bloque")},
		{UserID: 4, InstitutionName: "IAE Lille"},
		{UserID: 5, InstitutionName: ""},
	}

	rows := SubscriberStatusCounts(subs)
	require.Len(t, rows, 3)

	// Null status sorts first within the institution.
	assert.Nil(t, rows[0].Status)
	assert.Equal(t, int64(1), rows[0].NbSubscribers)

	require.NotNil(t, rows[1].Status)
	assert.Equal(t, "actif", *rows[1].Status)
	assert.Equal(t, int64(2), rows[1].NbSubscribers)

	require.NotNil(t, rows[2].Status)
	assert.Equal(t, "bloque", *rows[2].Status)
	assert.Equal(t, int64(1), rows[2].NbSubscribers)
}

func TestSubscriberStatusByYearKeepsNullBuckets(t *testing.T) {
	created := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	subs := []subscriberdomain.SubscriberRecord{
		{UserID: 1, InstitutionName: "IAE Lille", Status: strPtr("actif"), DateCreated: &created},
		{UserID: 2, InstitutionName: "IAE Lille", Status: strPtr("actif"), DateCreated: &created},
		{UserID: 3, InstitutionName: "IAE Lille", Status: strPtr("actif")},
	}

	rows := SubscriberStatusByYearCreated(subs)
	require.Len(t, rows, 2)

	// Null year leads.
	assert.Nil(t, rows[0].Year)
	assert.Equal(t, int64(1), rows[0].NbSubscribers)

	require.NotNil(t, rows[1].Year)
	assert.Equal(t, 2021, *rows[1].Year)
	assert.Equal(t, int64(2), rows[1].NbSubscribers)
}

func TestSubscriberStatusByYearLastAccess(t *testing.T) {
	access := time.Date(2023, 11, 20, 0, 0, 0, 0, time.UTC)
	subs := []subscriberdomain.SubscriberRecord{
		{UserID: 1, InstitutionName: "IAE Lille", Status: strPtr("actif"), DateLastAccess: &access},
	}

	rows := SubscriberStatusByYearLastAccess(subs)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Year)
	assert.Equal(t, 2023, *rows[0].Year)
}

func TestComputeOnEmptyInput(t *testing.T) {
	set := Compute(nil, nil)
	assert.Empty(t, set.GlobalMonthlyUsers)
	assert.Empty(t, set.InstitutionMonthlyCodes)
	assert.Empty(t, set.InstitutionMonthlyUsers)
	assert.Empty(t, set.InstitutionDatabaseYearly)
	assert.Empty(t, set.SubscribersByStatus)
	assert.Empty(t, set.SubscribersByYearCreated)
	assert.Empty(t, set.SubscribersByYearLastAccess)
}

func TestComputeIsDeterministic(t *testing.T) {
	joined := []usagedomain.JoinedRecord{
		joinedRecord("b.durand", "Universite de Grenoble", "esg_scores", 2023, 12, 4),
		joinedRecord("a.martin", "IAE Lille", "actions_fr", 2024, 3, 10),
		joinedRecord("a.martin", "IAE Lille", "histo_ost_fr", 2024, 3, 2),
	}
	subs := []subscriberdomain.SubscriberRecord{
		{UserID: 1, InstitutionName: "IAE Lille", Status: strPtr("actif")},
		{UserID: 2, InstitutionName: "Universite de Grenoble"},
	}

	assert.Equal(t, Compute(joined, subs), Compute(joined, subs))
}
