package pipeline

import (
	"fmt"
	"time"

	subscriberdomain "github.com/smallbiznis/usagestats/internal/subscriber/domain"
	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
)

// usageKey covers every source-typed field of a usage record; the derived
// fields are functions of these, so equality here is exact-duplicate equality.
type usageKey struct {
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
}

func keyOfUsage(rec usagedomain.UsageRecord) usageKey {
	return usageKey{
		UserID:          rec.UserID,
		UserName:        rec.UserName,
		InstitutionID:   rec.InstitutionID,
		InstitutionName: rec.InstitutionName,
		Year:            rec.Year,
		Month:           rec.Month,
		DatabaseName:    rec.DatabaseName,
		InteractionType: rec.InteractionType,
		CodeCount:       rec.CodeCount,
		EventTimestamp:  rec.EventTimestamp,
	}
}

type joinedKey struct {
	usageKey
	SubInstitution string
	HasSub         bool
	Status         string
	HasStatus      bool
	Created        time.Time
	HasCreated     bool
	Access         time.Time
	HasAccess      bool
}

func keyOfJoined(rec usagedomain.JoinedRecord) joinedKey {
	k := joinedKey{usageKey: keyOfUsage(rec.UsageRecord)}
	if rec.Subscriber.InstitutionName != nil {
		k.SubInstitution, k.HasSub = *rec.Subscriber.InstitutionName, true
	}
	if rec.Subscriber.Status != nil {
		k.Status, k.HasStatus = *rec.Subscriber.Status, true
	}
	if rec.Subscriber.DateCreated != nil {
		k.Created, k.HasCreated = *rec.Subscriber.DateCreated, true
	}
	if rec.Subscriber.DateLastAccess != nil {
		k.Access, k.HasAccess = *rec.Subscriber.DateLastAccess, true
	}
	return k
}

// Join merges normalized usage records with subscriber rows: left outer on
// user id, usage rows surviving with nil subscriber facts when unmatched.
// Records without an institution are dropped — everything downstream assumes
// a non-empty institution. Exact duplicates are removed on both sides of the
// join, and the output order is the usage input order with ties broken by
// subscriber row order, so identical inputs reproduce identical output.
func Join(usage []usagedomain.UsageRecord, subscribers []subscriberdomain.SubscriberRecord) ([]usagedomain.JoinedRecord, []usagedomain.IntegrityWarning) {
	var warnings []usagedomain.IntegrityWarning

	// One logical subscriber row per (user, institution); first occurrence
	// wins. A second row with a different status is an anomaly worth
	// surfacing, not a failure.
	type subKey struct {
		UserID      int64
		Institution string
	}
	byUser := map[int64][]subscriberdomain.SubscriberRecord{}
	firstStatus := map[subKey]*string{}
	for _, sub := range subscribers {
		k := subKey{sub.UserID, sub.InstitutionName}
		if status, seen := firstStatus[k]; seen {
			if !equalNullable(status, sub.Status) {
				warnings = append(warnings, usagedomain.IntegrityWarning{
					Kind: usagedomain.WarnDuplicateStatus,
					Detail: fmt.Sprintf("user %d at %q has conflicting statuses %s and %s; keeping the first",
						sub.UserID, sub.InstitutionName, renderStatus(status), renderStatus(sub.Status)),
					Row: usagedomain.RowRef{UserID: sub.UserID},
				})
			}
			continue
		}
		firstStatus[k] = sub.Status
		byUser[sub.UserID] = append(byUser[sub.UserID], sub)
	}

	seenUsage := map[usageKey]struct{}{}
	seenJoined := map[joinedKey]struct{}{}
	out := make([]usagedomain.JoinedRecord, 0, len(usage))

	for _, rec := range usage {
		uk := keyOfUsage(rec)
		if _, dup := seenUsage[uk]; dup {
			continue
		}
		seenUsage[uk] = struct{}{}

		if rec.InstitutionName == "" {
			continue
		}

		matches := byUser[rec.UserID]
		if len(matches) == 0 {
			joined := usagedomain.JoinedRecord{UsageRecord: rec}
			if appendUnique(seenJoined, keyOfJoined(joined)) {
				out = append(out, joined)
			}
			continue
		}
		for _, sub := range matches {
			joined := usagedomain.JoinedRecord{
				UsageRecord: rec,
				Subscriber: usagedomain.SubscriberFacts{
					InstitutionName: ptr(sub.InstitutionName),
					DateCreated:     sub.DateCreated,
					DateLastAccess:  sub.DateLastAccess,
					YearCreated:     sub.YearCreated(),
					YearLastAccess:  sub.YearLastAccess(),
					Status:          sub.Status,
				},
			}
			if appendUnique(seenJoined, keyOfJoined(joined)) {
				out = append(out, joined)
			}
		}
	}
	return out, warnings
}

func appendUnique(seen map[joinedKey]struct{}, k joinedKey) bool {
	if _, dup := seen[k]; dup {
		return false
	}
	seen[k] = struct{}{}
	return true
}

func equalNullable(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func renderStatus(s *string) string {
	if s == nil {
		return "<null>"
	}
	return fmt.Sprintf("%q", *s)
}

func ptr[T any](v T) *T { return &v }
