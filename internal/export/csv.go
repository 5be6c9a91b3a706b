// Package export writes the rollup tables as pipe-delimited CSV files, the
// format the downstream reporting sheets ingest.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/smallbiznis/usagestats/internal/pipeline"
	"github.com/smallbiznis/usagestats/internal/rollup"
	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
	"go.uber.org/zap"
)

const (
	FileGlobalMonthlyUsers          = "nb_users_per_month.csv"
	FileInstitutionMonthlyCodes     = "nb_codes_per_institution_month.csv"
	FileInstitutionMonthlyUsers     = "nb_active_users_per_institution_month.csv"
	FileInstitutionDatabaseYearly   = "nb_codes_per_institution_database_year.csv"
	FileSubscribersByStatus         = "subscribers_per_status.csv"
	FileSubscribersByYearCreated    = "subscribers_per_status_year_created.csv"
	FileSubscribersByYearLastAccess = "subscribers_per_status_year_last_access.csv"
	FileJoinedDataset               = "clean_dataset.csv"
)

// Exporter writes one snapshot's tables under a target directory.
type Exporter struct {
	dir string
	log *zap.Logger
}

func New(dir string, log *zap.Logger) *Exporter {
	return &Exporter{dir: dir, log: log.Named("export")}
}

// WriteAll writes every table of the run. Files are replaced wholesale; a
// rerun over the same data produces byte-identical output.
func (e *Exporter) WriteAll(result *pipeline.Result) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	writers := []struct {
		file  string
		write func(*csv.Writer) error
	}{
		{FileGlobalMonthlyUsers, func(w *csv.Writer) error { return writeGlobalMonthlyUsers(w, result.Tables.GlobalMonthlyUsers) }},
		{FileInstitutionMonthlyCodes, func(w *csv.Writer) error {
			return writeInstitutionMonthlyCodes(w, result.Tables.InstitutionMonthlyCodes)
		}},
		{FileInstitutionMonthlyUsers, func(w *csv.Writer) error {
			return writeInstitutionMonthlyUsers(w, result.Tables.InstitutionMonthlyUsers)
		}},
		{FileInstitutionDatabaseYearly, func(w *csv.Writer) error {
			return writeInstitutionDatabaseYearly(w, result.Tables.InstitutionDatabaseYearly)
		}},
		{FileSubscribersByStatus, func(w *csv.Writer) error { return writeSubscribersByStatus(w, result.Tables.SubscribersByStatus) }},
		{FileSubscribersByYearCreated, func(w *csv.Writer) error {
			return writeSubscribersByYear(w, "year_created", result.Tables.SubscribersByYearCreated)
		}},
		{FileSubscribersByYearLastAccess, func(w *csv.Writer) error {
			return writeSubscribersByYear(w, "year_last_access", result.Tables.SubscribersByYearLastAccess)
		}},
		{FileJoinedDataset, func(w *csv.Writer) error { return writeJoinedDataset(w, result.Joined) }},
	}

	for _, table := range writers {
		if err := e.writeFile(table.file, table.write); err != nil {
			return err
		}
	}

	e.log.Info("exported rollup tables",
		zap.String("dir", e.dir),
		zap.String("run_id", result.RunID.String()),
	)
	return nil
}

func (e *Exporter) writeFile(name string, write func(*csv.Writer) error) error {
	path := filepath.Join(e.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '|'
	if err := write(w); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

func writeGlobalMonthlyUsers(w *csv.Writer, rows []rollup.MonthlyUsersRow) error {
	if err := w.Write([]string{"year", "month", "month_name", "nb_users"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Month),
			r.MonthName,
			strconv.FormatInt(r.NbUsers, 10),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeInstitutionMonthlyCodes(w *csv.Writer, rows []rollup.InstitutionMonthlyCodesRow) error {
	if err := w.Write([]string{"institution_name", "year", "month", "month_name", "date", "month_abbrev", "sum_codes"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.InstitutionName,
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Month),
			r.MonthName,
			r.Date.Format(time.DateOnly),
			r.MonthAbbrev,
			strconv.FormatInt(r.SumCodes, 10),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeInstitutionMonthlyUsers(w *csv.Writer, rows []rollup.InstitutionMonthlyUsersRow) error {
	if err := w.Write([]string{"institution_name", "year", "month", "month_name", "nb_active_users"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.InstitutionName,
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Month),
			r.MonthName,
			strconv.FormatInt(r.NbActiveUsers, 10),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeInstitutionDatabaseYearly(w *csv.Writer, rows []rollup.InstitutionDatabaseYearRow) error {
	if err := w.Write([]string{"institution_name", "database_category", "year", "sum_codes"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.InstitutionName,
			string(r.DatabaseCategory),
			strconv.Itoa(r.Year),
			strconv.FormatInt(r.SumCodes, 10),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeSubscribersByStatus(w *csv.Writer, rows []rollup.SubscriberStatusRow) error {
	if err := w.Write([]string{"institution_name", "status", "nb_subscribers"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.InstitutionName,
			nullableString(r.Status),
			strconv.FormatInt(r.NbSubscribers, 10),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeSubscribersByYear(w *csv.Writer, yearColumn string, rows []rollup.SubscriberStatusYearRow) error {
	if err := w.Write([]string{"institution_name", "status", yearColumn, "nb_subscribers"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.InstitutionName,
			nullableString(r.Status),
			nullableInt(r.Year),
			strconv.FormatInt(r.NbSubscribers, 10),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeJoinedDataset(w *csv.Writer, records []usagedomain.JoinedRecord) error {
	header := []string{
		"user_id", "user_name", "institution_name",
		"year", "month", "month_name", "month_key", "month_abbrev", "date",
		"database_name", "database_category", "lookup_mode",
		"interaction_type", "interaction_label", "nb_codes", "event_timestamp",
		"status", "date_created", "date_last_access", "year_created", "year_last_access",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		var category, label *string
		if r.DatabaseCategory != nil {
			c := string(*r.DatabaseCategory)
			category = &c
		}
		if r.InteractionLabel != nil {
			l := string(*r.InteractionLabel)
			label = &l
		}
		record := []string{
			strconv.FormatInt(r.UserID, 10),
			r.UserName,
			r.InstitutionName,
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Month),
			r.MonthName,
			r.MonthKey,
			r.MonthAbbrev,
			r.Date.Format(time.DateOnly),
			r.DatabaseName,
			nullableString(category),
			string(r.LookupMode),
			strconv.Itoa(r.InteractionType),
			nullableString(label),
			strconv.FormatInt(r.CodeCount, 10),
			r.EventTimestamp.Format(time.RFC3339),
			nullableString(r.Subscriber.Status),
			nullableDate(r.Subscriber.DateCreated),
			nullableDate(r.Subscriber.DateLastAccess),
			nullableInt(r.Subscriber.YearCreated),
			nullableInt(r.Subscriber.YearLastAccess),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// Null buckets render as empty cells, matching how the legacy sheets read them.
func nullableString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func nullableDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
