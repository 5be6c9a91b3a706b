// Package domain contains subscriber lifecycle rows.
package domain

import (
	"context"
	"time"
)

// SubscriberRecord is one user/institution association with its lifecycle
// facts. A user appears once per institution association; duplicates coming
// out of the source join are the joiner's problem, not assumed away here.
type SubscriberRecord struct {
	UserID          int64
	InstitutionName string
	DateCreated     *time.Time
	DateLastAccess  *time.Time
	Status          *string
}

// YearCreated returns the account creation year, nil when unknown.
func (s SubscriberRecord) YearCreated() *int {
	return yearOf(s.DateCreated)
}

// YearLastAccess returns the last-access year, nil when unknown.
func (s SubscriberRecord) YearLastAccess() *int {
	return yearOf(s.DateLastAccess)
}

func yearOf(t *time.Time) *int {
	if t == nil {
		return nil
	}
	y := t.Year()
	return &y
}

// Filter restricts a subscriber fetch to institution names (exact match).
type Filter struct {
	Institutions map[string]struct{}
}

// Source fetches subscriber rows as a complete, materialized snapshot.
type Source interface {
	FetchSubscribers(ctx context.Context, filter Filter) ([]SubscriberRecord, error)
}
