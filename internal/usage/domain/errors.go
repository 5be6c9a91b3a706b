package domain

import (
	"fmt"
	"time"
)

// RowRef locates a source row for error and warning reports.
type RowRef struct {
	UserID         int64     `json:"user_id"`
	DatabaseName   string    `json:"database_name,omitempty"`
	EventTimestamp time.Time `json:"event_timestamp,omitempty"`
}

func (r RowRef) String() string {
	return fmt.Sprintf("user=%d db=%q at=%s", r.UserID, r.DatabaseName, r.EventTimestamp.Format(time.RFC3339))
}

// ValidationError reports a malformed field in one raw row. The row is
// rejected; the batch keeps going and the error is returned with the run.
type ValidationError struct {
	Row    RowRef `json:"row"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q (%s): %s", e.Field, e.Value, e.Reason, e.Row)
}

// Warning kinds for non-fatal data anomalies.
const (
	WarnUnclassifiedDatabase = "unclassified_database"
	WarnDuplicateStatus      = "duplicate_subscriber_status"
	WarnUnknownInteraction   = "unknown_interaction_type"
)

// IntegrityWarning reports a non-fatal anomaly. The affected row is retained
// with a deterministic choice (first occurrence wins).
type IntegrityWarning struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
	Row    RowRef `json:"row,omitempty"`
}

func (w IntegrityWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Detail)
}
