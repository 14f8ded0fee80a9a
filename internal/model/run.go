package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusCollecting  RunStatus = "collecting"
	RunStatusResolving   RunStatus = "resolving"
	RunStatusAggregating RunStatus = "aggregating"
	RunStatusRendering   RunStatus = "rendering"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// RunParams identifies what a run was asked to produce.
type RunParams struct {
	Year   int    `json:"year"`
	State  string `json:"state"`
	Source string `json:"source"` // "provider" or the review file path
}

// Run represents a single pipeline run.
type Run struct {
	ID        string     `json:"id"`
	Params    RunParams  `json:"params"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	TeamsCollected  int           `json:"teams_collected"`
	TeamsResolved   int           `json:"teams_resolved"`
	TeamsUnresolved int           `json:"teams_unresolved"`
	ZipGuesses      int           `json:"zip_guesses"`
	SubstringGuess  int           `json:"substring_guesses"`
	Counties        int           `json:"counties"`
	DroppedCounties []string      `json:"dropped_counties,omitempty"`
	Outputs         []string      `json:"outputs"`
	Phases          []PhaseResult `json:"phases"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
