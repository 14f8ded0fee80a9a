package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/region"
)

// firstSeason is the first FRC season the provider has data for.
const firstSeason = 1992

// RunOverrides carries per-invocation values from flags, prompts, or forms.
// Zero values fall back to the loaded Config.
type RunOverrides struct {
	APIKey string
	Year   int
	State  string

	// Offline runs start from a review file and need no API key.
	Offline bool
}

// RunConfig is the immutable configuration for one pipeline run. It is built
// once by NewRunConfig and passed by value to every stage.
type RunConfig struct {
	APIKey        string
	Year          int
	State         region.State
	OutputDir     string
	GazetteerPath string
	GeometryPath  string
	NameFields    []string
	RequestDelay  time.Duration
	CacheTTL      time.Duration
	WriteXLSX     bool
	WriteMetrics  bool
}

// OutputFiles lists the file paths a run writes, derived from year and state.
type OutputFiles struct {
	Roster     string
	Review     string
	ReviewXLSX string
	Counts     string
	MapSVG     string
	MapGeoJSON string
	Metrics    string
}

// All returns every enabled output path in write order.
func (o OutputFiles) All() []string {
	var paths []string
	for _, p := range []string{o.Roster, o.Review, o.ReviewXLSX, o.Counts, o.MapSVG, o.MapGeoJSON, o.Metrics} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// NewRunConfig validates the inputs for a run and freezes them into a
// RunConfig. Missing or invalid inputs are configuration errors.
func NewRunConfig(cfg *Config, regions *region.Table, o RunOverrides, now time.Time) (RunConfig, error) {
	key := strings.TrimSpace(o.APIKey)
	if key == "" {
		key = strings.TrimSpace(cfg.TBA.Key)
	}
	if key == "" && !o.Offline {
		return RunConfig{}, apperr.NewConfigError(eris.New("config: TBA API key is required (--key, FRCMAP_TBA_KEY or TBA_KEY)"))
	}

	year := o.Year
	if year == 0 {
		year = cfg.Run.Year
	}
	if err := ValidateYear(year, now); err != nil {
		return RunConfig{}, err
	}

	stateInput := o.State
	if stateInput == "" {
		stateInput = cfg.Run.State
	}
	state, ok := regions.Lookup(stateInput)
	if !ok {
		return RunConfig{}, apperr.NewConfigError(eris.Errorf("config: unknown state %q", stateInput))
	}

	nameFields := cfg.Geometry.NameFields
	if len(nameFields) == 0 {
		nameFields = DefaultNameFields
	}

	outDir := cfg.Output.Dir
	if outDir == "" {
		outDir = "."
	}

	return RunConfig{
		APIKey:        key,
		Year:          year,
		State:         state,
		OutputDir:     outDir,
		GazetteerPath: cfg.Gazetteer.Path,
		GeometryPath:  cfg.Geometry.Path,
		NameFields:    append([]string(nil), nameFields...),
		RequestDelay:  time.Duration(cfg.TBA.RequestDelayMS) * time.Millisecond,
		CacheTTL:      time.Duration(cfg.TBA.CacheTTLHours) * time.Hour,
		WriteXLSX:     cfg.Output.XLSX,
		WriteMetrics:  cfg.Metrics.Enabled,
	}, nil
}

// ValidateYear checks that year is a season the provider can know about.
func ValidateYear(year int, now time.Time) error {
	if year < firstSeason || year > now.Year()+1 {
		return apperr.NewConfigError(eris.Errorf("config: season year %d out of range %d-%d", year, firstSeason, now.Year()+1))
	}
	return nil
}

// Outputs returns the paths this run writes.
func (r RunConfig) Outputs() OutputFiles {
	state := strings.ToLower(r.State.Code)
	base := fmt.Sprintf("%s_frc_teams_by_county_%d", state, r.Year)
	join := func(name string) string { return filepath.Join(r.OutputDir, name) }

	out := OutputFiles{
		Roster:     join(fmt.Sprintf("all_teams_%d.csv", r.Year)),
		Review:     join(fmt.Sprintf("all_teams_%d_with_zip_guesses.csv", r.Year)),
		Counts:     join(base + "_counts.csv"),
		MapSVG:     join(base + ".svg"),
		MapGeoJSON: join(base + ".geojson"),
	}
	if r.WriteXLSX {
		out.ReviewXLSX = join(fmt.Sprintf("all_teams_%d_with_zip_guesses.xlsx", r.Year))
	}
	if r.WriteMetrics {
		out.Metrics = join(fmt.Sprintf("frc_county_map_%d.prom", r.Year))
	}
	return out
}

// MapTitle returns the title drawn on the rendered map.
func (r RunConfig) MapTitle() string {
	return fmt.Sprintf("Number of FRC teams by %s county, %d season", r.State.Name, r.Year)
}
