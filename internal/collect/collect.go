// Package collect builds the roster of teams in one state for one season.
package collect

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/frc-county-map/internal/model"
	"github.com/sells-group/frc-county-map/internal/progress"
	"github.com/sells-group/frc-county-map/internal/region"
	"github.com/sells-group/frc-county-map/pkg/tba"
)

// Stage is the progress label used by the collector.
const Stage = "collect"

// Stats summarizes one collection.
type Stats struct {
	Events      int // events in the season
	StateEvents int // events held in the selected state
	TeamKeys    int // unique teams seen at those events
	Teams       int // teams whose own address is in the state
	OutOfState  int // visitors dropped by the address filter
}

// Collector discovers teams through the events they attend.
type Collector struct {
	client   tba.Client
	regions  *region.Table
	reporter progress.Reporter
	log      *zap.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithReporter sends human-readable progress to r.
func WithReporter(r progress.Reporter) Option {
	return func(c *Collector) { c.reporter = r }
}

// New creates a Collector.
func New(client tba.Client, regions *region.Table, opts ...Option) *Collector {
	c := &Collector{
		client:   client,
		regions:  regions,
		reporter: progress.Nop{},
		log:      zap.L().With(zap.String("component", "collect")),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Collect returns every team that attended an event in state during year and
// whose own address is in state, ordered by team key. Each team appears once.
// Teams in the state that attended no in-state event are not discovered.
// Any provider failure aborts the collection.
func (c *Collector) Collect(ctx context.Context, year int, state string) ([]model.TeamRecord, Stats, error) {
	var stats Stats

	events, err := c.client.Events(ctx, year)
	if err != nil {
		return nil, stats, eris.Wrapf(err, "collect: list %d events", year)
	}
	stats.Events = len(events)

	var eventKeys []string
	for _, e := range events {
		if c.regions.Matches(e.StateProv, state) {
			eventKeys = append(eventKeys, e.Key)
		}
	}
	stats.StateEvents = len(eventKeys)
	c.log.Info("collect: found events",
		zap.Int("year", year),
		zap.String("state", state),
		zap.Int("season_events", stats.Events),
		zap.Int("state_events", stats.StateEvents),
	)
	progress.Reportf(c.reporter, Stage, "Found %d %s events in %d", stats.StateEvents, state, year)

	seen := make(map[string]struct{})
	for _, ek := range eventKeys {
		keys, err := c.client.EventTeamKeys(ctx, ek)
		if err != nil {
			return nil, stats, eris.Wrapf(err, "collect: roster for %s", ek)
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}
	teamKeys := make([]string, 0, len(seen))
	for k := range seen {
		teamKeys = append(teamKeys, k)
	}
	sort.Strings(teamKeys)
	stats.TeamKeys = len(teamKeys)
	progress.Reportf(c.reporter, Stage, "Collected %d unique team keys from %s events", stats.TeamKeys, state)

	records := make([]model.TeamRecord, 0, len(teamKeys))
	for i, tk := range teamKeys {
		team, err := c.client.Team(ctx, tk)
		if err != nil {
			return nil, stats, eris.Wrapf(err, "collect: team %s", tk)
		}
		if !c.regions.Matches(team.StateProv, state) {
			stats.OutOfState++
			continue
		}
		records = append(records, recordFromTeam(tk, team))

		if (i+1)%50 == 0 {
			progress.Reportf(c.reporter, Stage, "Fetched %d/%d teams", i+1, len(teamKeys))
		}
	}
	stats.Teams = len(records)

	c.log.Info("collect: teams collected",
		zap.Int("team_keys", stats.TeamKeys),
		zap.Int("in_state", stats.Teams),
		zap.Int("out_of_state", stats.OutOfState),
	)
	progress.Reportf(c.reporter, Stage, "%d teams with %s address in %d events", stats.Teams, state, year)

	return records, stats, nil
}

// recordFromTeam maps a provider team onto a roster record. The key from the
// roster wins over the record's own key so dedup stays on one identity.
func recordFromTeam(key string, t *tba.Team) model.TeamRecord {
	rec := model.TeamRecord{
		TeamKey:    key,
		TeamNumber: t.TeamNumber,
		Name:       t.DisplayName(),
		City:       strings.TrimSpace(t.City),
		State:      strings.TrimSpace(t.StateProv),
		PostalCode: strings.TrimSpace(t.PostalCode),
	}
	if rec.PostalCode != "" {
		rec.ZipSource = model.ZipSourceProvider
	}
	return rec
}
