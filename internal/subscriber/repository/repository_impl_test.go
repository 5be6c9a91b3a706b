package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	subscriberdomain "github.com/smallbiznis/usagestats/internal/subscriber/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type usersFieldData struct {
	UID     int64 `gorm:"column:uid;primaryKey"`
	Created int64 `gorm:"column:created"`
	Access  int64 `gorm:"column:access"`
}

func (usersFieldData) TableName() string { return "users_field_data" }

type userFieldInstitution struct {
	EntityID               int64 `gorm:"column:entity_id;primaryKey"`
	FieldInstitutionTarget int64 `gorm:"column:field_institution_target_id"`
}

func (userFieldInstitution) TableName() string { return "user__field_institution" }

type institutionEntity struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
}

func (institutionEntity) TableName() string { return "institution_entity" }

type userFieldStatut struct {
	EntityID    int64  `gorm:"column:entity_id;primaryKey"`
	StatutValue string `gorm:"column:field_statut_value"`
}

func (userFieldStatut) TableName() string { return "user__field_statut" }

func openTestDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&usersFieldData{},
		&userFieldInstitution{},
		&institutionEntity{},
		&userFieldStatut{},
	))
	return db
}

func TestFetchSubscribers(t *testing.T) {
	db := openTestDB(t, "file:sub_fetch?mode=memory&cache=shared")

	created := time.Date(2020, 1, 15, 10, 0, 0, 0, time.UTC)
	access := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

	require.NoError(t, db.Create(&institutionEntity{ID: 1, Name: "IAE Lille"}).Error)
	require.NoError(t, db.Create(&usersFieldData{UID: 10, Created: created.Unix(), Access: access.Unix()}).Error)
	require.NoError(t, db.Create(&userFieldInstitution{EntityID: 10, FieldInstitutionTarget: 1}).Error)
	require.NoError(t, db.Create(&userFieldStatut{EntityID: 10, StatutValue: "actif"}).Error)

	// User without an institution association: dropped by the query.
	require.NoError(t, db.Create(&usersFieldData{UID: 11, Created: created.Unix(), Access: 0}).Error)

	rows, err := Provide(db).FetchSubscribers(context.Background(), subscriberdomain.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	sub := rows[0]
	assert.Equal(t, int64(10), sub.UserID)
	assert.Equal(t, "IAE Lille", sub.InstitutionName)
	require.NotNil(t, sub.Status)
	assert.Equal(t, "actif", *sub.Status)
	require.NotNil(t, sub.DateCreated)
	assert.Equal(t, time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC), *sub.DateCreated)
	require.NotNil(t, sub.DateLastAccess)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *sub.DateLastAccess)
	require.NotNil(t, sub.YearCreated())
	assert.Equal(t, 2020, *sub.YearCreated())
	require.NotNil(t, sub.YearLastAccess())
	assert.Equal(t, 2024, *sub.YearLastAccess())
}

func TestFetchSubscribersMissingStatus(t *testing.T) {
	db := openTestDB(t, "file:sub_status?mode=memory&cache=shared")

	require.NoError(t, db.Create(&institutionEntity{ID: 1, Name: "IAE Lille"}).Error)
	require.NoError(t, db.Create(&usersFieldData{UID: 10, Created: 0, Access: 0}).Error)
	require.NoError(t, db.Create(&userFieldInstitution{EntityID: 10, FieldInstitutionTarget: 1}).Error)

	rows, err := Provide(db).FetchSubscribers(context.Background(), subscriberdomain.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Status)
}

func TestFetchSubscribersInstitutionFilter(t *testing.T) {
	db := openTestDB(t, "file:sub_filter?mode=memory&cache=shared")

	require.NoError(t, db.Create(&institutionEntity{ID: 1, Name: "IAE Lille"}).Error)
	require.NoError(t, db.Create(&institutionEntity{ID: 2, Name: "Universite de Grenoble"}).Error)
	for _, seed := range []struct {
		uid  int64
		inst int64
	}{{10, 1}, {11, 2}} {
		require.NoError(t, db.Create(&usersFieldData{UID: seed.uid, Created: 1600000000, Access: 1700000000}).Error)
		require.NoError(t, db.Create(&userFieldInstitution{EntityID: seed.uid, FieldInstitutionTarget: seed.inst}).Error)
	}

	filter := subscriberdomain.Filter{Institutions: map[string]struct{}{"IAE Lille": {}}}
	rows, err := Provide(db).FetchSubscribers(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10), rows[0].UserID)
}

func TestFetchSubscribersOrderedByInstitutionThenUser(t *testing.T) {
	db := openTestDB(t, "file:sub_order?mode=memory&cache=shared")

	require.NoError(t, db.Create(&institutionEntity{ID: 1, Name: "Zebra Institute"}).Error)
	require.NoError(t, db.Create(&institutionEntity{ID: 2, Name: "Alpha Institute"}).Error)
	for _, seed := range []struct {
		uid  int64
		inst int64
	}{{20, 1}, {10, 2}, {11, 2}} {
		require.NoError(t, db.Create(&usersFieldData{UID: seed.uid, Created: 0, Access: 0}).Error)
		require.NoError(t, db.Create(&userFieldInstitution{EntityID: seed.uid, FieldInstitutionTarget: seed.inst}).Error)
	}

	rows, err := Provide(db).FetchSubscribers(context.Background(), subscriberdomain.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Alpha Institute", rows[0].InstitutionName)
	assert.Equal(t, int64(10), rows[0].UserID)
	assert.Equal(t, int64(11), rows[1].UserID)
	assert.Equal(t, "Zebra Institute", rows[2].InstitutionName)
}
