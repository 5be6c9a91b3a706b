// Package repository implements the subscriber Source over the platform's
// user tables (users_field_data plus its field attachments).
package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	subscriberdomain "github.com/smallbiznis/usagestats/internal/subscriber/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

// Provide builds the gorm-backed subscriber source.
func Provide(db *gorm.DB) subscriberdomain.Source {
	return &repo{db: db}
}

// subscriberRow scans dates as text so every dialect's epoch-to-date rendering
// lands the same way; conversion to time.Time happens below.
type subscriberRow struct {
	UserID         int64   `gorm:"column:id_user"`
	InstitutionRaw string  `gorm:"column:labo_name"`
	DateCreated    *string `gorm:"column:date_created"`
	DateLastAccess *string `gorm:"column:date_last_access"`
	Status         *string `gorm:"column:statut"`
}

// epochDateExpr renders the unix-epoch column as a YYYY-MM-DD date string.
func epochDateExpr(db *gorm.DB, col string) string {
	switch strings.ToLower(db.Dialector.Name()) {
	case "mysql":
		return fmt.Sprintf("DATE_FORMAT(FROM_UNIXTIME(%s), '%%Y-%%m-%%d')", col)
	case "sqlite":
		return fmt.Sprintf("date(%s, 'unixepoch')", col)
	default:
		return fmt.Sprintf("to_char(to_timestamp(%s), 'YYYY-MM-DD')", col)
	}
}

func (r *repo) FetchSubscribers(ctx context.Context, filter subscriberdomain.Filter) ([]subscriberdomain.SubscriberRecord, error) {
	createdExpr := epochDateExpr(r.db, "ufd.created")
	accessExpr := epochDateExpr(r.db, "ufd.access")

	var sb strings.Builder
	args := make([]any, 0, 1)

	fmt.Fprintf(&sb, `SELECT DISTINCT
		ufd.uid AS id_user,
		ie.name AS labo_name,
		%s AS date_created,
		%s AS date_last_access,
		ufs.field_statut_value AS statut
	FROM users_field_data AS ufd
	LEFT JOIN user__field_institution AS ufi ON ufi.entity_id = ufd.uid
	LEFT JOIN institution_entity AS ie ON ie.id = ufi.field_institution_target_id
	LEFT JOIN user__field_statut AS ufs ON ufs.entity_id = ufd.uid
	WHERE ie.name IS NOT NULL`, createdExpr, accessExpr)

	if labos := institutionList(filter); len(labos) > 0 {
		sb.WriteString(" AND ie.name IN ?")
		args = append(args, labos)
	}
	sb.WriteString(" ORDER BY ie.name, ufd.uid")

	var rows []subscriberRow
	if err := r.db.WithContext(ctx).Raw(sb.String(), args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch subscriber rows: %w", err)
	}

	out := make([]subscriberdomain.SubscriberRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, subscriberdomain.SubscriberRecord{
			UserID:          row.UserID,
			InstitutionName: row.InstitutionRaw,
			DateCreated:     parseDate(row.DateCreated),
			DateLastAccess:  parseDate(row.DateLastAccess),
			Status:          row.Status,
		})
	}
	return out, nil
}

func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", *s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func institutionList(filter subscriberdomain.Filter) []string {
	out := make([]string, 0, len(filter.Institutions))
	for n := range filter.Institutions {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
