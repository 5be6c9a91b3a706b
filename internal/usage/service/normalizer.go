// Package service cleans and types raw usage rows.
package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/usagestats/internal/taxonomy"
	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
	"go.uber.org/zap"
)

// Normalizer turns RawUsageRows into UsageRecords. Normalization is pure per
// row; a malformed row yields a ValidationError and is dropped from the batch
// without aborting it.
type Normalizer struct {
	tax *taxonomy.Taxonomy
	log *zap.Logger
}

func NewNormalizer(tax *taxonomy.Taxonomy, log *zap.Logger) *Normalizer {
	return &Normalizer{tax: tax, log: log.Named("usage.normalizer")}
}

// Normalize validates and types one raw row.
func (n *Normalizer) Normalize(raw usagedomain.RawUsageRow) (usagedomain.UsageRecord, *usagedomain.ValidationError) {
	year, err := parseIntField(raw.Year)
	if err != nil {
		return usagedomain.UsageRecord{}, &usagedomain.ValidationError{
			Row: raw.Ref(), Field: "year", Value: raw.Year, Reason: "not an integer",
		}
	}
	month, err := parseIntField(raw.Month)
	if err != nil {
		return usagedomain.UsageRecord{}, &usagedomain.ValidationError{
			Row: raw.Ref(), Field: "month", Value: raw.Month, Reason: "not an integer",
		}
	}
	if month < 1 || month > 12 {
		return usagedomain.UsageRecord{}, &usagedomain.ValidationError{
			Row: raw.Ref(), Field: "month", Value: raw.Month, Reason: "outside 1..12",
		}
	}
	codes, err := parseInt64Field(raw.CodeCount)
	if err != nil {
		return usagedomain.UsageRecord{}, &usagedomain.ValidationError{
			Row: raw.Ref(), Field: "code_count", Value: raw.CodeCount, Reason: "not an integer",
		}
	}
	if codes < 0 {
		return usagedomain.UsageRecord{}, &usagedomain.ValidationError{
			Row: raw.Ref(), Field: "code_count", Value: raw.CodeCount, Reason: "negative",
		}
	}

	date := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	rec := usagedomain.UsageRecord{
		UserID:          raw.UserID,
		UserName:        raw.UserName,
		InstitutionID:   raw.InstitutionID,
		InstitutionName: raw.InstitutionName,
		Year:            year,
		Month:           month,
		DatabaseName:    raw.DatabaseName,
		InteractionType: raw.InteractionType,
		CodeCount:       codes,
		EventTimestamp:  raw.EventTimestamp,

		MonthName:        taxonomy.MonthName(month),
		MonthKey:         taxonomy.MonthKey(year, month),
		MonthAbbrev:      taxonomy.MonthAbbrev(date),
		Date:             date,
		InteractionLabel: taxonomy.ClassifyInteraction(raw.InteractionType),
		DatabaseCategory: n.tax.ClassifyDatabase(raw.DatabaseName),
		LookupMode:       taxonomy.ClassifyLookupMode(raw.DatabaseName),
	}
	return rec, nil
}

// NormalizeAll normalizes a batch, accumulating per-row errors and warnings.
// The returned slices preserve input order.
func (n *Normalizer) NormalizeAll(rows []usagedomain.RawUsageRow) ([]usagedomain.UsageRecord, []usagedomain.ValidationError, []usagedomain.IntegrityWarning) {
	records := make([]usagedomain.UsageRecord, 0, len(rows))
	var errs []usagedomain.ValidationError
	var warns []usagedomain.IntegrityWarning

	for _, raw := range rows {
		rec, verr := n.Normalize(raw)
		if verr != nil {
			errs = append(errs, *verr)
			n.log.Warn("rejected usage row", zap.String("field", verr.Field), zap.String("row", verr.Row.String()))
			continue
		}
		if rec.DatabaseCategory == nil {
			warns = append(warns, usagedomain.IntegrityWarning{
				Kind:   usagedomain.WarnUnclassifiedDatabase,
				Detail: fmt.Sprintf("database %q matches no taxonomy pattern", rec.DatabaseName),
				Row:    rec.Ref(),
			})
		}
		if rec.InteractionLabel == nil {
			warns = append(warns, usagedomain.IntegrityWarning{
				Kind:   usagedomain.WarnUnknownInteraction,
				Detail: fmt.Sprintf("interaction type %d has no label", rec.InteractionType),
				Row:    rec.Ref(),
			})
		}
		records = append(records, rec)
	}
	return records, errs, warns
}

// parseIntField accepts plain integers plus the float renderings some drivers
// produce for date_part (e.g. "2024", "2024.0").
func parseIntField(raw string) (int, error) {
	v, err := parseInt64Field(raw)
	return int(v), err
}

func parseInt64Field(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	v := int64(f)
	if float64(v) != f {
		return 0, fmt.Errorf("not integral: %s", s)
	}
	return v, nil
}
