// Package repository implements the usage Source over the platform's
// relational store. The schema (statistique_requete, institution_entity) is
// owned by the data platform; this layer only reads it.
package repository

import (
	"context"
	"fmt"
	"strings"

	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

// Provide builds the gorm-backed usage source.
func Provide(db *gorm.DB) usagedomain.Source {
	return &repo{db: db}
}

// yearMonthExprs returns the dialect-specific expressions extracting the event
// year and month from date_heure_extraction.
func yearMonthExprs(db *gorm.DB) (string, string) {
	switch strings.ToLower(db.Dialector.Name()) {
	case "mysql":
		return "YEAR(sr.date_heure_extraction)", "MONTH(sr.date_heure_extraction)"
	case "sqlite":
		return "CAST(strftime('%Y', sr.date_heure_extraction) AS INTEGER)",
			"CAST(strftime('%m', sr.date_heure_extraction) AS INTEGER)"
	default:
		return "date_part('year', sr.date_heure_extraction)", "date_part('month', sr.date_heure_extraction)"
	}
}

func (r *repo) FetchUsage(ctx context.Context, filter usagedomain.Filter) ([]usagedomain.RawUsageRow, error) {
	yearExpr, monthExpr := yearMonthExprs(r.db)

	var sb strings.Builder
	args := make([]any, 0, 4)

	fmt.Fprintf(&sb, `SELECT DISTINCT
		sr.id_utilisateur_drupal AS id_user,
		sr.nom_utilisateur AS user_name,
		sr.id_groupe_labo AS id_labo,
		node.name AS institution_name,
		%s AS year,
		%s AS month,
		sr.nom_base_interrogee AS database_name,
		sr.type_interrogation AS type_interrogation,
		sr.nb_codes_en_entree AS nb_codes,
		sr.date_heure_extraction AS date_heure_extraction
	FROM statistique_requete AS sr
	LEFT JOIN institution_entity AS node ON sr.id_groupe_labo = node.id
	WHERE node.name IS NOT NULL`, yearExpr, monthExpr)

	if years := filter.YearList(); len(years) > 0 {
		fmt.Fprintf(&sb, " AND %s IN ?", yearExpr)
		args = append(args, years)
	}
	if labos := filter.InstitutionList(); len(labos) > 0 {
		sb.WriteString(" AND node.name IN ?")
		args = append(args, labos)
	}
	sb.WriteString(" ORDER BY year, month, sr.date_heure_extraction, sr.id_utilisateur_drupal, node.name")

	var rows []usagedomain.RawUsageRow
	if err := r.db.WithContext(ctx).Raw(sb.String(), args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch usage rows: %w", err)
	}
	return rows, nil
}
