// Package pipeline runs the collect, resolve, aggregate, join, and render
// stages in order, tracking each phase in the run store.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/frc-county-map/internal/collect"
	"github.com/sells-group/frc-county-map/internal/config"
	"github.com/sells-group/frc-county-map/internal/county"
	"github.com/sells-group/frc-county-map/internal/export"
	"github.com/sells-group/frc-county-map/internal/gazetteer"
	"github.com/sells-group/frc-county-map/internal/geometry"
	"github.com/sells-group/frc-county-map/internal/metrics"
	"github.com/sells-group/frc-county-map/internal/model"
	"github.com/sells-group/frc-county-map/internal/progress"
	"github.com/sells-group/frc-county-map/internal/region"
	"github.com/sells-group/frc-county-map/internal/render"
	"github.com/sells-group/frc-county-map/internal/resolve"
	"github.com/sells-group/frc-county-map/internal/store"
	"github.com/sells-group/frc-county-map/pkg/tba"
)

// Phase names, in execution order.
const (
	PhaseLoadInputs   = "load_inputs"
	PhaseCollect      = "collect"
	PhaseExportRoster = "export_roster"
	PhaseResolve      = "resolve"
	PhaseExportReview = "export_review"
	PhaseAggregate    = "aggregate"
	PhaseJoin         = "join"
	PhaseRender       = "render"
	PhaseExportCounts = "export_counts"
)

// SourceProvider marks runs that collected teams from the provider.
const SourceProvider = "provider"

// Result is the outcome of a pipeline run.
type Result struct {
	RunID        string
	Teams        []model.TeamRecord
	Counts       []model.CountyCount
	Features     []model.CountyFeature
	Dropped      []string
	CollectStats collect.Stats
	ResolveStats resolve.Stats
	Outputs      []string
	Phases       []model.PhaseResult
}

// Pipeline turns one season's team roster into a county map.
type Pipeline struct {
	cfg     config.RunConfig
	store   store.Store
	client  tba.Client
	regions *region.Table
	metrics *metrics.Metrics
	clock   clockwork.Clock
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records run metrics in m and writes them as a textfile when
// the run configuration enables it.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock overrides the clock used for phase timing.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline. client may be nil for pipelines that only rerun
// from a review file.
func New(cfg config.RunConfig, st store.Store, client tba.Client, regions *region.Table, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		store:   st,
		client:  client,
		regions: regions,
		clock:   clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// run carries the per-invocation state shared by the phase helpers.
type run struct {
	id       string
	log      *zap.Logger
	reporter progress.Reporter
	result   *Result
	outputs  config.OutputFiles

	gaz   *gazetteer.Gazetteer
	geoms []model.CountyGeometry
}

// Run collects teams from the provider and runs every stage.
func (p *Pipeline) Run(ctx context.Context, reporter progress.Reporter) (*Result, error) {
	if p.client == nil {
		return nil, eris.New("pipeline: no provider client configured")
	}

	r, err := p.start(ctx, SourceProvider, reporter)
	if err != nil {
		return nil, err
	}
	if err := p.loadInputs(ctx, r); err != nil {
		return p.fail(ctx, r, err)
	}

	var records []model.TeamRecord
	err = p.phase(ctx, r, PhaseCollect, model.RunStatusCollecting, func() (map[string]any, error) {
		c := collect.New(p.client, p.regions, collect.WithReporter(r.reporter))
		var stats collect.Stats
		var cerr error
		records, stats, cerr = c.Collect(ctx, p.cfg.Year, p.cfg.State.Code)
		if cerr != nil {
			return nil, cerr
		}
		r.result.CollectStats = stats
		if p.metrics != nil {
			p.metrics.TeamsCollected.Set(float64(len(records)))
		}
		return map[string]any{
			"events":       stats.Events,
			"state_events": stats.StateEvents,
			"team_keys":    stats.TeamKeys,
			"teams":        stats.Teams,
			"out_of_state": stats.OutOfState,
		}, nil
	})
	if err != nil {
		return p.fail(ctx, r, err)
	}

	err = p.phase(ctx, r, PhaseExportRoster, "", func() (map[string]any, error) {
		if werr := export.WriteRoster(r.outputs.Roster, records); werr != nil {
			return nil, werr
		}
		p.written(r, r.outputs.Roster)
		return map[string]any{"rows": len(records)}, nil
	})
	if err != nil {
		return p.fail(ctx, r, err)
	}

	return p.finish(ctx, r, records)
}

// Rerun skips collection and runs the remaining stages on an edited review
// file. Counties already present in the file are kept.
func (p *Pipeline) Rerun(ctx context.Context, reviewPath string, reporter progress.Reporter) (*Result, error) {
	r, err := p.start(ctx, reviewPath, reporter)
	if err != nil {
		return nil, err
	}
	if err := p.loadInputs(ctx, r); err != nil {
		return p.fail(ctx, r, err)
	}

	records, err := export.ReadReview(ctx, reviewPath)
	if err != nil {
		return p.fail(ctx, r, err)
	}
	progress.Reportf(r.reporter, PhaseResolve, "Loaded %d teams from %s", len(records), reviewPath)

	return p.finish(ctx, r, records)
}

func (p *Pipeline) start(ctx context.Context, source string, reporter progress.Reporter) (*run, error) {
	if reporter == nil {
		reporter = progress.Nop{}
	}

	rec, err := p.store.CreateRun(ctx, model.RunParams{Year: p.cfg.Year, State: p.cfg.State.Code, Source: source})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("run_id", rec.ID),
		zap.Int("year", p.cfg.Year),
		zap.String("state", p.cfg.State.Code),
	)
	log.Info("pipeline: starting run", zap.String("source", source))

	return &run{
		id:       rec.ID,
		log:      log,
		reporter: reporter,
		result:   &Result{RunID: rec.ID},
		outputs:  p.cfg.Outputs(),
	}, nil
}

// loadInputs reads the gazetteer and the county boundaries before any
// provider call or file write, so a bad path or name field fails the run
// with no output on disk.
func (p *Pipeline) loadInputs(ctx context.Context, r *run) error {
	return p.phase(ctx, r, PhaseLoadInputs, "", func() (map[string]any, error) {
		progress.Reportf(r.reporter, PhaseLoadInputs, "Loading gazetteer %s", p.cfg.GazetteerPath)
		gaz, err := gazetteer.Load(ctx, p.cfg.GazetteerPath)
		if err != nil {
			return nil, err
		}

		geoms, err := geometry.Load(p.cfg.GeometryPath, geometry.Options{
			NameFields: p.cfg.NameFields,
			StateFIPS:  p.cfg.State.FIPS,
		})
		if err != nil {
			return nil, err
		}
		progress.Reportf(r.reporter, PhaseLoadInputs, "Loaded %d county shapes from %s", len(geoms), p.cfg.GeometryPath)

		r.gaz = gaz
		r.geoms = geoms
		return map[string]any{"postal_codes": gaz.Len(), "counties": len(geoms)}, nil
	})
}

// finish runs every stage after collection.
func (p *Pipeline) finish(ctx context.Context, r *run, records []model.TeamRecord) (*Result, error) {
	var resolved []model.TeamRecord
	err := p.phase(ctx, r, PhaseResolve, model.RunStatusResolving, func() (map[string]any, error) {
		var stats resolve.Stats
		resolved, stats = resolve.New(r.gaz, p.regions).Resolve(records)
		r.result.Teams = resolved
		r.result.ResolveStats = stats
		p.observeResolve(stats)

		progress.Reportf(r.reporter, PhaseResolve, "Resolved %d of %d teams to a county (%d postal codes guessed, %d by partial match)",
			stats.Resolved, len(records), stats.Guesses(), stats.GuessSubstring)
		if n := stats.Unresolved(); n > 0 {
			progress.Reportf(r.reporter, PhaseResolve, "%d teams without a county; see the review export", n)
		}
		return map[string]any{
			"provider":        stats.Provider,
			"guess_exact":     stats.GuessExact,
			"guess_substring": stats.GuessSubstring,
			"no_postal":       stats.NoPostal,
			"no_county":       stats.NoCounty,
			"preassigned":     stats.Preassigned,
			"resolved":        stats.Resolved,
		}, nil
	})
	if err != nil {
		return p.fail(ctx, r, err)
	}

	err = p.phase(ctx, r, PhaseExportReview, "", func() (map[string]any, error) {
		if werr := export.WriteReview(r.outputs.Review, resolved); werr != nil {
			return nil, werr
		}
		p.written(r, r.outputs.Review)
		if r.outputs.ReviewXLSX != "" {
			if werr := export.WriteReviewXLSX(r.outputs.ReviewXLSX, resolved); werr != nil {
				return nil, werr
			}
			p.written(r, r.outputs.ReviewXLSX)
		}
		return map[string]any{"rows": len(resolved)}, nil
	})
	if err != nil {
		return p.fail(ctx, r, err)
	}

	var counts []model.CountyCount
	err = p.phase(ctx, r, PhaseAggregate, model.RunStatusAggregating, func() (map[string]any, error) {
		counts = county.Aggregate(resolved)
		r.result.Counts = counts
		if p.metrics != nil {
			p.metrics.CountiesCounted.Set(float64(len(counts)))
		}
		if serr := p.store.SaveCountyCounts(ctx, r.id, counts); serr != nil {
			r.log.Warn("pipeline: failed to save county counts", zap.Error(serr))
		}
		progress.Reportf(r.reporter, PhaseAggregate, "%d teams in %d counties", county.Total(counts), len(counts))
		return map[string]any{"counties": len(counts), "teams": county.Total(counts)}, nil
	})
	if err != nil {
		return p.fail(ctx, r, err)
	}

	err = p.phase(ctx, r, PhaseJoin, "", func() (map[string]any, error) {
		features, dropped := county.Join(r.geoms, counts)
		r.result.Features = features
		r.result.Dropped = dropped
		if p.metrics != nil {
			p.metrics.DroppedCounties.Add(float64(len(dropped)))
		}
		if len(dropped) > 0 {
			progress.Reportf(r.reporter, PhaseJoin, "Warning: %d counties have teams but no shape: %v", len(dropped), dropped)
		}
		return map[string]any{"features": len(features), "dropped": len(dropped)}, nil
	})
	if err != nil {
		return p.fail(ctx, r, err)
	}

	err = p.phase(ctx, r, PhaseRender, model.RunStatusRendering, func() (map[string]any, error) {
		opts := render.Options{
			Title:       p.cfg.MapTitle(),
			LegendLabel: "FRC teams (" + p.cfg.State.Name + ")",
		}
		if werr := export.WriteFile(r.outputs.MapSVG, func(w io.Writer) error {
			return render.SVG(w, r.result.Features, opts)
		}); werr != nil {
			return nil, werr
		}
		p.written(r, r.outputs.MapSVG)

		if werr := export.WriteFile(r.outputs.MapGeoJSON, func(w io.Writer) error {
			return render.GeoJSON(w, r.result.Features)
		}); werr != nil {
			return nil, werr
		}
		p.written(r, r.outputs.MapGeoJSON)
		return nil, nil
	})
	if err != nil {
		return p.fail(ctx, r, err)
	}

	err = p.phase(ctx, r, PhaseExportCounts, "", func() (map[string]any, error) {
		if werr := export.WriteCounts(r.outputs.Counts, counts); werr != nil {
			return nil, werr
		}
		p.written(r, r.outputs.Counts)
		return map[string]any{"rows": len(counts)}, nil
	})
	if err != nil {
		return p.fail(ctx, r, err)
	}

	p.writeMetrics(r, true)

	stats := r.result.ResolveStats
	runResult := &model.RunResult{
		TeamsCollected:  len(records),
		TeamsResolved:   stats.Resolved,
		TeamsUnresolved: stats.Unresolved(),
		ZipGuesses:      stats.Guesses(),
		SubstringGuess:  stats.GuessSubstring,
		Counties:        len(counts),
		DroppedCounties: r.result.Dropped,
		Outputs:         r.result.Outputs,
		Phases:          r.result.Phases,
	}
	if err := p.store.UpdateRunResult(ctx, r.id, runResult); err != nil {
		r.log.Warn("pipeline: failed to save run result", zap.Error(err))
	}

	r.log.Info("pipeline: run complete",
		zap.Int("teams", len(records)),
		zap.Int("resolved", stats.Resolved),
		zap.Int("counties", len(counts)),
		zap.Strings("dropped", r.result.Dropped),
	)
	progress.Reportf(r.reporter, "done", "Map written to %s", r.outputs.MapSVG)
	return r.result, nil
}

// phase runs fn as a named phase: it updates run status when status is set,
// records timing in the store, log, and metrics, and appends the result.
func (p *Pipeline) phase(ctx context.Context, r *run, name string, status model.RunStatus, fn func() (map[string]any, error)) error {
	if status != "" {
		if err := p.store.UpdateRunStatus(ctx, r.id, status); err != nil {
			r.log.Warn("pipeline: failed to update status", zap.Error(err))
		}
	}

	rec, err := p.store.CreatePhase(ctx, r.id, name)
	if err != nil {
		r.log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(err))
	}

	start := p.clock.Now()
	metadata, fnErr := fn()
	elapsed := p.clock.Since(start)

	result := &model.PhaseResult{
		Name:     name,
		Duration: elapsed.Milliseconds(),
		Metadata: metadata,
	}
	if fnErr != nil {
		result.Status = model.PhaseStatusFailed
		result.Error = fnErr.Error()
		r.log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", result.Duration),
			zap.Error(fnErr),
		)
	} else {
		result.Status = model.PhaseStatusComplete
		r.log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", result.Duration),
		)
	}

	if rec != nil {
		if cerr := p.store.CompletePhase(ctx, rec.ID, result); cerr != nil {
			r.log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(cerr))
		}
	}
	if p.metrics != nil {
		p.metrics.ObservePhase(name, elapsed)
	}
	r.result.Phases = append(r.result.Phases, *result)

	if fnErr != nil {
		return eris.Wrapf(fnErr, "pipeline: %s", name)
	}
	return nil
}

// fail records err on the run and returns it with the partial result.
func (p *Pipeline) fail(ctx context.Context, r *run, err error) (*Result, error) {
	if ferr := p.store.FailRun(ctx, r.id, err.Error()); ferr != nil {
		r.log.Warn("pipeline: failed to mark run failed", zap.Error(ferr))
	}
	p.writeMetrics(r, false)
	progress.Reportf(r.reporter, "error", "Run failed: %v", err)
	return r.result, err
}

func (p *Pipeline) written(r *run, path string) {
	r.result.Outputs = append(r.result.Outputs, path)
	progress.Reportf(r.reporter, "output", "Wrote %s", path)
}

func (p *Pipeline) observeResolve(s resolve.Stats) {
	if p.metrics == nil {
		return
	}
	p.metrics.ZipGuesses.WithLabelValues("exact").Add(float64(s.GuessExact))
	p.metrics.ZipGuesses.WithLabelValues("substring").Add(float64(s.GuessSubstring))
	p.metrics.ResolutionMisses.WithLabelValues("no_postal").Add(float64(s.NoPostal))
	p.metrics.ResolutionMisses.WithLabelValues("no_county").Add(float64(s.NoCounty))
}

func (p *Pipeline) writeMetrics(r *run, success bool) {
	if p.metrics == nil {
		return
	}
	p.metrics.Finish(success, p.clock.Now())
	if r.outputs.Metrics == "" {
		return
	}
	if err := p.metrics.WriteTextfile(r.outputs.Metrics); err != nil {
		r.log.Warn("pipeline: failed to write metrics", zap.Error(err))
		return
	}
	if success {
		p.written(r, r.outputs.Metrics)
	}
}

// Elapsed formats a phase duration for status lines.
func Elapsed(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
