package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/region"
)

var fixedNow = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

func runDefaults() *Config {
	cfg := validDefaults()
	cfg.TBA.Key = "cfg-key"
	cfg.TBA.RequestDelayMS = 200
	cfg.TBA.CacheTTLHours = 24
	cfg.Run.Year = 2025
	cfg.Run.State = "MI"
	cfg.Gazetteer.Path = "data/US.txt"
	cfg.Geometry.Path = "Michigan_County.geojson"
	cfg.Output.Dir = "out"
	cfg.Output.XLSX = true
	cfg.Metrics.Enabled = true
	return cfg
}

func TestNewRunConfig_FromConfig(t *testing.T) {
	rc, err := NewRunConfig(runDefaults(), region.Default(), RunOverrides{}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "cfg-key", rc.APIKey)
	assert.Equal(t, 2025, rc.Year)
	assert.Equal(t, "MI", rc.State.Code)
	assert.Equal(t, "Michigan", rc.State.Name)
	assert.Equal(t, "26", rc.State.FIPS)
	assert.Equal(t, 200*time.Millisecond, rc.RequestDelay)
	assert.Equal(t, 24*time.Hour, rc.CacheTTL)
	assert.Equal(t, DefaultNameFields, rc.NameFields)
}

func TestNewRunConfig_OverridesWin(t *testing.T) {
	rc, err := NewRunConfig(runDefaults(), region.Default(), RunOverrides{
		APIKey: " flag-key ",
		Year:   2024,
		State:  "Ohio",
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "flag-key", rc.APIKey)
	assert.Equal(t, 2024, rc.Year)
	assert.Equal(t, "OH", rc.State.Code)
}

func TestNewRunConfig_MissingKey(t *testing.T) {
	cfg := runDefaults()
	cfg.TBA.Key = ""

	_, err := NewRunConfig(cfg, region.Default(), RunOverrides{}, fixedNow)
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))
	assert.Contains(t, err.Error(), "API key is required")
}

func TestNewRunConfig_OfflineNeedsNoKey(t *testing.T) {
	cfg := runDefaults()
	cfg.TBA.Key = ""

	rc, err := NewRunConfig(cfg, region.Default(), RunOverrides{Offline: true}, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, rc.APIKey)
	assert.Equal(t, "MI", rc.State.Code)
}

func TestNewRunConfig_BadYear(t *testing.T) {
	for _, year := range []int{1991, 2027} {
		_, err := NewRunConfig(runDefaults(), region.Default(), RunOverrides{Year: year}, fixedNow)
		require.Error(t, err, "year %d", year)
		assert.True(t, apperr.IsConfig(err))
	}

	_, err := NewRunConfig(runDefaults(), region.Default(), RunOverrides{Year: 2026}, fixedNow)
	assert.NoError(t, err)
}

func TestNewRunConfig_UnknownState(t *testing.T) {
	_, err := NewRunConfig(runDefaults(), region.Default(), RunOverrides{State: "Atlantis"}, fixedNow)
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))
	assert.Contains(t, err.Error(), "unknown state")
}

func TestNewRunConfig_NameFieldsAreCopied(t *testing.T) {
	cfg := runDefaults()
	cfg.Geometry.NameFields = []string{"NAME"}

	rc, err := NewRunConfig(cfg, region.Default(), RunOverrides{}, fixedNow)
	require.NoError(t, err)

	cfg.Geometry.NameFields[0] = "MUTATED"
	assert.Equal(t, []string{"NAME"}, rc.NameFields)
}

func TestRunConfig_Outputs(t *testing.T) {
	rc, err := NewRunConfig(runDefaults(), region.Default(), RunOverrides{}, fixedNow)
	require.NoError(t, err)

	out := rc.Outputs()
	assert.Equal(t, filepath.Join("out", "all_teams_2025.csv"), out.Roster)
	assert.Equal(t, filepath.Join("out", "all_teams_2025_with_zip_guesses.csv"), out.Review)
	assert.Equal(t, filepath.Join("out", "all_teams_2025_with_zip_guesses.xlsx"), out.ReviewXLSX)
	assert.Equal(t, filepath.Join("out", "mi_frc_teams_by_county_2025_counts.csv"), out.Counts)
	assert.Equal(t, filepath.Join("out", "mi_frc_teams_by_county_2025.svg"), out.MapSVG)
	assert.Equal(t, filepath.Join("out", "mi_frc_teams_by_county_2025.geojson"), out.MapGeoJSON)
	assert.Equal(t, filepath.Join("out", "frc_county_map_2025.prom"), out.Metrics)
	assert.Len(t, out.All(), 7)
}

func TestRunConfig_OutputsOptionalDisabled(t *testing.T) {
	cfg := runDefaults()
	cfg.Output.XLSX = false
	cfg.Metrics.Enabled = false

	rc, err := NewRunConfig(cfg, region.Default(), RunOverrides{}, fixedNow)
	require.NoError(t, err)

	out := rc.Outputs()
	assert.Empty(t, out.ReviewXLSX)
	assert.Empty(t, out.Metrics)
	assert.Len(t, out.All(), 5)
}

func TestRunConfig_MapTitle(t *testing.T) {
	rc, err := NewRunConfig(runDefaults(), region.Default(), RunOverrides{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "Number of FRC teams by Michigan county, 2025 season", rc.MapTitle())
}
