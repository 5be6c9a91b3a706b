// Package rollup derives the canonical aggregate tables from joined usage
// records and subscriber rows. Every table is an immutable snapshot rebuilt in
// full on each pipeline run.
package rollup

import (
	"time"

	"github.com/smallbiznis/usagestats/internal/taxonomy"
)

// MonthlyUsersRow counts distinct active (institution, user) pairs per month,
// across all institutions.
type MonthlyUsersRow struct {
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	MonthName string `json:"month_name"`
	NbUsers   int64  `json:"nb_users"`
}

// InstitutionMonthlyCodesRow sums extracted codes per institution per month.
type InstitutionMonthlyCodesRow struct {
	InstitutionName string    `json:"institution_name"`
	Year            int       `json:"year"`
	Month           int       `json:"month"`
	MonthName       string    `json:"month_name"`
	Date            time.Time `json:"date"`
	MonthAbbrev     string    `json:"month_abbrev"`
	SumCodes        int64     `json:"sum_codes"`
}

// InstitutionMonthlyUsersRow counts distinct active users per institution per
// month; same dedup key as MonthlyUsersRow, scoped per institution.
type InstitutionMonthlyUsersRow struct {
	InstitutionName string `json:"institution_name"`
	Year            int    `json:"year"`
	Month           int    `json:"month"`
	MonthName       string `json:"month_name"`
	NbActiveUsers   int64  `json:"nb_active_users"`
}

// InstitutionDatabaseYearRow sums extracted codes per institution, database
// category and year. Unclassified rows do not appear in this breakdown.
type InstitutionDatabaseYearRow struct {
	InstitutionName  string            `json:"institution_name"`
	DatabaseCategory taxonomy.Category `json:"database_category"`
	Year             int               `json:"year"`
	SumCodes         int64             `json:"sum_codes"`
}

// SubscriberStatusRow counts subscriber rows per institution and status.
// A nil status is its own bucket, never dropped.
type SubscriberStatusRow struct {
	InstitutionName string  `json:"institution_name"`
	Status          *string `json:"status"`
	NbSubscribers   int64   `json:"nb_subscribers"`
}

// SubscriberStatusYearRow counts subscriber rows per institution, status and
// year (creation or last access, depending on the table). Nil years are kept
// as their own bucket.
type SubscriberStatusYearRow struct {
	InstitutionName string  `json:"institution_name"`
	Status          *string `json:"status"`
	Year            *int    `json:"year"`
	NbSubscribers   int64   `json:"nb_subscribers"`
}

// Set bundles every derived table of one pipeline run.
type Set struct {
	GlobalMonthlyUsers          []MonthlyUsersRow            `json:"global_monthly_users"`
	InstitutionMonthlyCodes     []InstitutionMonthlyCodesRow `json:"institution_monthly_codes"`
	InstitutionMonthlyUsers     []InstitutionMonthlyUsersRow `json:"institution_monthly_users"`
	InstitutionDatabaseYearly   []InstitutionDatabaseYearRow `json:"institution_database_yearly"`
	SubscribersByStatus         []SubscriberStatusRow        `json:"subscribers_by_status"`
	SubscribersByYearCreated    []SubscriberStatusYearRow    `json:"subscribers_by_year_created"`
	SubscribersByYearLastAccess []SubscriberStatusYearRow    `json:"subscribers_by_year_last_access"`
}
