package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/config"
	"github.com/sells-group/frc-county-map/internal/metrics"
	"github.com/sells-group/frc-county-map/internal/model"
	"github.com/sells-group/frc-county-map/internal/progress"
	"github.com/sells-group/frc-county-map/internal/region"
	"github.com/sells-group/frc-county-map/internal/store"
	"github.com/sells-group/frc-county-map/pkg/tba"
	"github.com/sells-group/frc-county-map/pkg/tba/mocks"
)

const countiesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"NAME": "Oakland"},
     "geometry": {"type": "Polygon", "coordinates": [[[-83.7,42.4],[-83.1,42.4],[-83.1,42.9],[-83.7,42.9],[-83.7,42.4]]]}},
    {"type": "Feature", "properties": {"NAME": "Wayne"},
     "geometry": {"type": "Polygon", "coordinates": [[[-83.5,42.0],[-82.9,42.0],[-82.9,42.4],[-83.5,42.4],[-83.5,42.0]]]}},
    {"type": "Feature", "properties": {"NAME": "Washtenaw"},
     "geometry": {"type": "Polygon", "coordinates": [[[-84.2,42.0],[-83.5,42.0],[-83.5,42.4],[-84.2,42.4],[-84.2,42.0]]]}}
  ]
}`

func newStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func newRunConfig(t *testing.T) config.RunConfig {
	t.Helper()
	dir := t.TempDir()
	geo := filepath.Join(dir, "counties.geojson")
	require.NoError(t, os.WriteFile(geo, []byte(countiesGeoJSON), 0o644))

	mi, ok := region.Default().Lookup("MI")
	require.True(t, ok)
	return config.RunConfig{
		APIKey:        "test-key",
		Year:          2025,
		State:         mi,
		OutputDir:     filepath.Join(dir, "out"),
		GazetteerPath: filepath.Join("..", "gazetteer", "testdata", "US.txt"),
		GeometryPath:  geo,
		NameFields:    config.DefaultNameFields,
		WriteXLSX:     true,
		WriteMetrics:  true,
	}
}

func mockProvider(t *testing.T) *mocks.MockClient {
	t.Helper()
	client := mocks.NewMockClient(t)
	client.On("Events", mock.Anything, 2025).Return([]tba.Event{
		{Key: "2025miket", StateProv: "MI"},
		{Key: "2025ohcl", StateProv: "OH"},
	}, nil)
	client.On("EventTeamKeys", mock.Anything, "2025miket").Return([]string{"frc33", "frc1", "frc2", "frc3", "frc67", "frc254"}, nil)

	teams := map[string]*tba.Team{
		"frc33":  {Key: "frc33", TeamNumber: 33, Nickname: "Killer Bees", City: "Auburn Hills", StateProv: "Michigan", PostalCode: "48326"},
		"frc1":   {Key: "frc1", TeamNumber: 1, Nickname: "The Juggernauts", City: "Detroit", StateProv: "Michigan"},
		"frc2":   {Key: "frc2", TeamNumber: 2, Nickname: "Arbor Bots", City: "Arbor", StateProv: "MI"},
		"frc3":   {Key: "frc3", TeamNumber: 3, Nickname: "Rapids", City: "Grand Rapids", StateProv: "MI", PostalCode: "49503"},
		"frc67":  {Key: "frc67", TeamNumber: 67, Nickname: "HOT", City: "Milford", StateProv: "MI"},
		"frc254": {Key: "frc254", TeamNumber: 254, Nickname: "The Cheesy Poofs", City: "San Jose", StateProv: "California", PostalCode: "95126"},
	}
	for key, team := range teams {
		client.On("Team", mock.Anything, key).Return(team, nil)
	}
	return client
}

func TestRun_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := newRunConfig(t)
	st := newStore(t)
	m := metrics.New()
	q := progress.NewQueue()

	p := New(cfg, st, mockProvider(t), region.Default(), WithMetrics(m), WithClock(clockwork.NewFakeClock()))
	res, err := p.Run(ctx, q)
	require.NoError(t, err)

	assert.Len(t, res.Teams, 5)
	assert.Equal(t, 5, res.CollectStats.Teams)
	assert.Equal(t, 1, res.CollectStats.OutOfState)

	assert.Equal(t, 1, res.ResolveStats.GuessExact)
	assert.Equal(t, 1, res.ResolveStats.GuessSubstring)
	assert.Equal(t, 1, res.ResolveStats.NoPostal)
	assert.Equal(t, 4, res.ResolveStats.Resolved)

	assert.Equal(t, []model.CountyCount{
		{County: "Kent", TeamCount: 1},
		{County: "Oakland", TeamCount: 1},
		{County: "Washtenaw", TeamCount: 1},
		{County: "Wayne", TeamCount: 1},
	}, res.Counts)
	assert.Len(t, res.Features, 3)
	assert.Equal(t, []string{"Kent"}, res.Dropped)

	var names []string
	for _, ph := range res.Phases {
		names = append(names, ph.Name)
		assert.Equal(t, model.PhaseStatusComplete, ph.Status, ph.Name)
	}
	assert.Equal(t, []string{
		PhaseLoadInputs, PhaseCollect, PhaseExportRoster, PhaseResolve,
		PhaseExportReview, PhaseAggregate, PhaseJoin, PhaseRender, PhaseExportCounts,
	}, names)

	out := cfg.Outputs()
	assert.ElementsMatch(t, out.All(), res.Outputs)
	for _, path := range out.All() {
		assert.FileExists(t, path)
	}

	svg, err := os.ReadFile(out.MapSVG)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "Number of FRC teams by Michigan county, 2025 season")
	assert.Contains(t, string(svg), "<title>Oakland: 1</title>")

	counts, err := os.ReadFile(out.Counts)
	require.NoError(t, err)
	assert.Equal(t, "county,team_count\nKent,1\nOakland,1\nWashtenaw,1\nWayne,1\n", string(counts))

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 5, run.Result.TeamsCollected)
	assert.Equal(t, 1, run.Result.TeamsUnresolved)
	assert.Equal(t, 2, run.Result.ZipGuesses)
	assert.Equal(t, []string{"Kent"}, run.Result.DroppedCounties)

	phases, err := st.ListPhases(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, phases, 9)

	saved, err := st.GetCountyCounts(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Counts, saved)

	assert.Equal(t, float64(5), testutil.ToFloat64(m.TeamsCollected))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ZipGuesses.WithLabelValues("substring")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DroppedCounties))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LastRunSuccess))

	var texts []string
	for _, msg := range q.Drain() {
		texts = append(texts, msg.Text)
	}
	joined := strings.Join(texts, "\n")
	assert.Contains(t, joined, "Resolved 4 of 5 teams to a county")
	assert.Contains(t, joined, "1 teams without a county")
	assert.Contains(t, joined, "counties have teams but no shape: [Kent]")
}

func TestRun_CollectFailureMarksRunFailed(t *testing.T) {
	ctx := context.Background()
	cfg := newRunConfig(t)
	st := newStore(t)

	client := mocks.NewMockClient(t)
	client.On("Events", mock.Anything, 2025).Return(nil, apperr.NewProviderError(errors.New("tba: status 401"), "events", 401))

	res, err := New(cfg, st, client, region.Default()).Run(ctx, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsProvider(err))
	assert.Contains(t, err.Error(), "pipeline: collect")

	require.Len(t, res.Phases, 2)
	assert.Equal(t, PhaseCollect, res.Phases[1].Name)
	assert.Equal(t, model.PhaseStatusFailed, res.Phases[1].Status)

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "status 401")

	assert.NoFileExists(t, cfg.Outputs().Roster)
}

func TestRun_BadInputsAbortBeforeOutput(t *testing.T) {
	tests := []struct {
		name   string
		modify func(t *testing.T, cfg *config.RunConfig)
	}{
		{"missing geometry", func(t *testing.T, cfg *config.RunConfig) {
			cfg.GeometryPath = filepath.Join(t.TempDir(), "missing.geojson")
		}},
		{"missing gazetteer", func(t *testing.T, cfg *config.RunConfig) {
			cfg.GazetteerPath = filepath.Join(t.TempDir(), "US.txt")
		}},
		{"no name field", func(t *testing.T, cfg *config.RunConfig) {
			cfg.NameFields = []string{"COUNTYNAME"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := newRunConfig(t)
			cfg.WriteMetrics = false
			tt.modify(t, &cfg)
			st := newStore(t)

			// No expectations: the provider must not be called.
			client := mocks.NewMockClient(t)

			res, err := New(cfg, st, client, region.Default()).Run(ctx, nil)
			require.Error(t, err)
			assert.True(t, apperr.IsConfig(err))

			out := cfg.Outputs()
			assert.NoFileExists(t, out.Roster)
			assert.NoFileExists(t, out.Review)
			assert.NoFileExists(t, out.ReviewXLSX)
			assert.NoFileExists(t, out.MapSVG)
			assert.NoFileExists(t, out.Counts)
			assert.Empty(t, res.Outputs)
			require.Len(t, res.Phases, 1)
			assert.Equal(t, PhaseLoadInputs, res.Phases[0].Name)

			run, err := st.GetRun(ctx, res.RunID)
			require.NoError(t, err)
			assert.Equal(t, model.RunStatusFailed, run.Status)
		})
	}
}

func TestRerun_MissingGeometrySkipsReviewFile(t *testing.T) {
	cfg := newRunConfig(t)
	cfg.WriteMetrics = false
	cfg.GeometryPath = filepath.Join(t.TempDir(), "missing.geojson")

	// The review file does not exist either; the geometry error must win.
	res, err := New(cfg, newStore(t), nil, region.Default()).Rerun(context.Background(), "nope.csv", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))
	assert.Contains(t, err.Error(), PhaseLoadInputs)
	assert.NoFileExists(t, cfg.Outputs().Review)
	require.Len(t, res.Phases, 1)
}

func TestRun_NoClient(t *testing.T) {
	_, err := New(newRunConfig(t), newStore(t), nil, region.Default()).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRerun_KeepsReviewedCounties(t *testing.T) {
	ctx := context.Background()
	cfg := newRunConfig(t)
	cfg.WriteXLSX = false
	st := newStore(t)

	review := filepath.Join(t.TempDir(), "reviewed.csv")
	require.NoError(t, os.WriteFile(review, []byte(
		"team_key,team_number,name,city,state,postal_code,zip_source,county\n"+
			"frc33,33,Killer Bees,Auburn Hills,Michigan,48326,provider,\n"+
			"frc67,67,HOT,Milford,MI,,none,oakland county\n"+
			"frc1,1,The Juggernauts,Detroit,Michigan,,none,\n",
	), 0o644))

	res, err := New(cfg, st, nil, region.Default()).Rerun(ctx, review, progress.Nop{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ResolveStats.Preassigned)
	assert.Equal(t, 3, res.ResolveStats.Resolved)
	assert.Equal(t, []model.CountyCount{
		{County: "Oakland", TeamCount: 2},
		{County: "Wayne", TeamCount: 1},
	}, res.Counts)
	assert.Empty(t, res.Dropped)
	assert.Equal(t, PhaseLoadInputs, res.Phases[0].Name)
	assert.Equal(t, PhaseResolve, res.Phases[1].Name)
	assert.NoFileExists(t, cfg.Outputs().Roster)

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, review, run.Params.Source)
	assert.Equal(t, model.RunStatusComplete, run.Status)
}

func TestRerun_MissingReviewFile(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	res, err := New(newRunConfig(t), st, nil, region.Default()).Rerun(ctx, "nope.csv", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
}

func TestElapsed(t *testing.T) {
	assert.Equal(t, "1.5s", Elapsed(1500))
	assert.Equal(t, "0s", Elapsed(0))
}
