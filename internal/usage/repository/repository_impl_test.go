package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Test doubles for the platform-owned schema. Only the columns this layer
// reads are modelled.
type statistiqueRequete struct {
	ID                  int64     `gorm:"column:id;primaryKey"`
	IDUtilisateurDrupal int64     `gorm:"column:id_utilisateur_drupal"`
	NomUtilisateur      string    `gorm:"column:nom_utilisateur"`
	IDGroupeLabo        int64     `gorm:"column:id_groupe_labo"`
	NomBaseInterrogee   string    `gorm:"column:nom_base_interrogee"`
	TypeInterrogation   int       `gorm:"column:type_interrogation"`
	NbCodesEnEntree     string    `gorm:"column:nb_codes_en_entree"`
	DateHeureExtraction time.Time `gorm:"column:date_heure_extraction"`
}

func (statistiqueRequete) TableName() string { return "statistique_requete" }

type institutionEntity struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
}

func (institutionEntity) TableName() string { return "institution_entity" }

func openTestDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&statistiqueRequete{}, &institutionEntity{}))
	return db
}

func seedEvent(t *testing.T, db *gorm.DB, id, userID, laboID int64, database string, at time.Time, codes string) {
	t.Helper()
	require.NoError(t, db.Create(&statistiqueRequete{
		ID:                  id,
		IDUtilisateurDrupal: userID,
		NomUtilisateur:      "user",
		IDGroupeLabo:        laboID,
		NomBaseInterrogee:   database,
		TypeInterrogation:   2,
		NbCodesEnEntree:     codes,
		DateHeureExtraction: at,
	}).Error)
}

func TestFetchUsage(t *testing.T) {
	db := openTestDB(t, "file:usage_fetch?mode=memory&cache=shared")
	require.NoError(t, db.Create(&institutionEntity{ID: 1, Name: "IAE Lille"}).Error)
	require.NoError(t, db.Create(&institutionEntity{ID: 2, Name: "Universite de Grenoble"}).Error)

	seedEvent(t, db, 1, 10, 1, "actions_fr", time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), "150")
	seedEvent(t, db, 2, 11, 2, "esg_scores", time.Date(2023, 11, 2, 8, 0, 0, 0, time.UTC), "7")
	// Orphan labo id: joined institution is null, row dropped by the query.
	seedEvent(t, db, 3, 12, 99, "actions_fr", time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), "1")

	rows, err := Provide(db).FetchUsage(context.Background(), usagedomain.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Ordered by year, month.
	assert.Equal(t, int64(11), rows[0].UserID)
	assert.Equal(t, "Universite de Grenoble", rows[0].InstitutionName)
	assert.Equal(t, "2023", rows[0].Year)
	assert.Equal(t, "11", rows[0].Month)

	assert.Equal(t, int64(10), rows[1].UserID)
	assert.Equal(t, "IAE Lille", rows[1].InstitutionName)
	assert.Equal(t, "2024", rows[1].Year)
	assert.Equal(t, "3", rows[1].Month)
	assert.Equal(t, "actions_fr", rows[1].DatabaseName)
	assert.Equal(t, "150", rows[1].CodeCount)
	assert.Equal(t, 2, rows[1].InteractionType)
}

func TestFetchUsageYearFilter(t *testing.T) {
	db := openTestDB(t, "file:usage_year?mode=memory&cache=shared")
	require.NoError(t, db.Create(&institutionEntity{ID: 1, Name: "IAE Lille"}).Error)

	seedEvent(t, db, 1, 10, 1, "actions_fr", time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), "5")
	seedEvent(t, db, 2, 10, 1, "actions_fr", time.Date(2023, 3, 14, 9, 0, 0, 0, time.UTC), "5")

	filter := usagedomain.Filter{Years: map[int]struct{}{2024: {}}}
	rows, err := Provide(db).FetchUsage(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024", rows[0].Year)
}

func TestFetchUsageInstitutionFilter(t *testing.T) {
	db := openTestDB(t, "file:usage_inst?mode=memory&cache=shared")
	require.NoError(t, db.Create(&institutionEntity{ID: 1, Name: "IAE Lille"}).Error)
	require.NoError(t, db.Create(&institutionEntity{ID: 2, Name: "Universite de Grenoble"}).Error)

	seedEvent(t, db, 1, 10, 1, "actions_fr", time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), "5")
	seedEvent(t, db, 2, 11, 2, "actions_fr", time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), "5")

	// Matching is exact and case-sensitive: the lowercase name finds nothing.
	filter := usagedomain.Filter{Institutions: map[string]struct{}{"iae lille": {}}}
	rows, err := Provide(db).FetchUsage(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, rows)

	filter = usagedomain.Filter{Institutions: map[string]struct{}{"IAE Lille": {}}}
	rows, err = Provide(db).FetchUsage(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "IAE Lille", rows[0].InstitutionName)
}

func TestFetchUsageEmptyStore(t *testing.T) {
	db := openTestDB(t, "file:usage_empty?mode=memory&cache=shared")

	rows, err := Provide(db).FetchUsage(context.Background(), usagedomain.Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
