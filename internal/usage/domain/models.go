// Package domain contains the usage-log row types flowing through the pipeline.
package domain

import (
	"time"

	"github.com/smallbiznis/usagestats/internal/taxonomy"
)

// RawUsageRow is one query event exactly as fetched from the platform store.
// Year, month and code count stay source-typed until the normalizer casts and
// validates them; the store occasionally yields garbage in all three.
type RawUsageRow struct {
	UserID          int64     `gorm:"column:id_user"`
	UserName        string    `gorm:"column:user_name"`
	InstitutionID   int64     `gorm:"column:id_labo"`
	InstitutionName string    `gorm:"column:institution_name"`
	Year            string    `gorm:"column:year"`
	Month           string    `gorm:"column:month"`
	DatabaseName    string    `gorm:"column:database_name"`
	InteractionType int       `gorm:"column:type_interrogation"`
	CodeCount       string    `gorm:"column:nb_codes"`
	EventTimestamp  time.Time `gorm:"column:date_heure_extraction"`
}

// Ref identifies the row in error reports.
func (r RawUsageRow) Ref() RowRef {
	return RowRef{
		UserID:         r.UserID,
		DatabaseName:   r.DatabaseName,
		EventTimestamp: r.EventTimestamp,
	}
}

// UsageRecord is a validated, normalized query event. Created once by the
// normalizer and never mutated afterwards.
type UsageRecord struct {
	UserID          int64
	UserName        string
	InstitutionID   int64
	InstitutionName string
	Year            int
	Month           int
	DatabaseName    string
	InteractionType int
	CodeCount       int64
	EventTimestamp  time.Time

	MonthName        string
	MonthKey         string
	MonthAbbrev      string
	Date             time.Time
	InteractionLabel *taxonomy.InteractionLabel
	DatabaseCategory *taxonomy.Category
	LookupMode       taxonomy.LookupMode
}

// Ref identifies the record in error reports.
func (r UsageRecord) Ref() RowRef {
	return RowRef{
		UserID:         r.UserID,
		DatabaseName:   r.DatabaseName,
		EventTimestamp: r.EventTimestamp,
	}
}

// SubscriberFacts carries the subscription lifecycle columns attached by the
// joiner. All fields are nullable: a usage row survives the join without a
// subscriber match.
type SubscriberFacts struct {
	InstitutionName *string
	DateCreated     *time.Time
	DateLastAccess  *time.Time
	YearCreated     *int
	YearLastAccess  *int
	Status          *string
}

// JoinedRecord is a UsageRecord enriched with subscriber lifecycle facts.
// Every JoinedRecord handed to the rollup engine has a non-empty institution.
type JoinedRecord struct {
	UsageRecord
	Subscriber SubscriberFacts
}
