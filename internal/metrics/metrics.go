// Package metrics holds the Prometheus counters for a pipeline run. Each run
// gets its own registry, written out as a node-exporter textfile when the run
// finishes.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

const namespace = "frc_county_map"

// Metrics holds the Prometheus counters, histograms, and gauges for one run.
type Metrics struct {
	registry *prometheus.Registry

	ProviderRequests *prometheus.CounterVec // labels: endpoint={events,event_teams,team}, outcome={ok,cached,error}
	TeamsCollected   prometheus.Gauge
	ZipGuesses       *prometheus.CounterVec // labels: match={exact,substring}
	ResolutionMisses *prometheus.CounterVec // labels: reason={no_postal,no_county}
	CountiesCounted  prometheus.Gauge
	DroppedCounties  prometheus.Counter
	PhaseDuration    *prometheus.GaugeVec // labels: phase
	LastRunSuccess   prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// New creates Metrics registered with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Team data provider requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		TeamsCollected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "teams_collected",
			Help:      "Teams with an address in the selected state.",
		}),
		ZipGuesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zip_guesses_total",
			Help:      "Postal codes inferred from city and state, by match kind.",
		}, []string{"match"}),
		ResolutionMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_misses_total",
			Help:      "Teams that could not be assigned a county, by reason.",
		}, []string{"reason"}),
		CountiesCounted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "counties_with_teams",
			Help:      "Distinct counties with at least one team.",
		}),
		DroppedCounties: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_counties_total",
			Help:      "Counted counties with no matching boundary geometry.",
		}),
		PhaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time of each pipeline phase in the last run.",
		}, []string{"phase"}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run completed, 0 if it failed.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	m.registry.MustRegister(
		m.ProviderRequests,
		m.TeamsCollected,
		m.ZipGuesses,
		m.ResolutionMisses,
		m.CountiesCounted,
		m.DroppedCounties,
		m.PhaseDuration,
		m.LastRunSuccess,
		m.LastRunTimestamp,
	)

	return m
}

// Registry exposes the underlying registry, for gathering in tests or
// serving over HTTP.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest counts one provider call. It matches the tba.Observer
// signature.
func (m *Metrics) ObserveRequest(endpoint, outcome string) {
	m.ProviderRequests.WithLabelValues(endpoint, outcome).Inc()
}

// ObservePhase records the duration of a finished phase.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

// Finish stamps the run outcome.
func (m *Metrics) Finish(success bool, at time.Time) {
	if success {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
	m.LastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The write is atomic, so a node-exporter collector never sees a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "metrics: create dir for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return eris.Wrapf(err, "metrics: write %s", path)
	}
	return nil
}
