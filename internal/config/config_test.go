package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "usagestats", cfg.AppName)
	assert.Equal(t, ModeBatch, cfg.Mode)
	assert.Equal(t, time.Hour, cfg.RefreshInterval)

	// The internal test accounts are excluded out of the box.
	assert.Equal(t, []int64{1178, 1922, 367, 274, 594, 896, 904}, cfg.ExcludedUserIDs)
	assert.Equal(t, []string{"EUROFIDAI", "administrateur Drupal", "probesys2 probesys"}, cfg.ExcludedInstitutions)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_MODE", "SERVE")
	t.Setenv("REFRESH_INTERVAL", "15m")
	t.Setenv("FILTER_YEARS", "2023, 2024")
	t.Setenv("FILTER_INSTITUTIONS", "IAE Lille; Universite de Grenoble")
	t.Setenv("EXCLUDED_USER_IDS", "1,2,3")
	t.Setenv("EXCLUDED_INSTITUTIONS", "Interne")

	cfg := Load()
	assert.Equal(t, ModeServe, cfg.Mode)
	assert.True(t, cfg.IsServe())
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, []int{2023, 2024}, cfg.Years)
	assert.Equal(t, []string{"IAE Lille", "Universite de Grenoble"}, cfg.Institutions)
	assert.Equal(t, []int64{1, 2, 3}, cfg.ExcludedUserIDs)
	assert.Equal(t, []string{"Interne"}, cfg.ExcludedInstitutions)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	base := Load()

	cfg := base
	cfg.Mode = "daemon"
	assert.Error(t, cfg.Validate())

	cfg = base
	cfg.ExcludedUserIDs = nil
	assert.Error(t, cfg.Validate())

	cfg = base
	cfg.ExcludedInstitutions = nil
	assert.Error(t, cfg.Validate())

	cfg = base
	cfg.RefreshInterval = 0
	assert.Error(t, cfg.Validate())
}
