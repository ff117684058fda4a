package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus tracks a discovery run through its lifecycle.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// DiscoveryRun is the catalog record of one discovery invocation.
type DiscoveryRun struct {
	ID                uuid.UUID      `json:"id"`
	DatasourceType    string         `json:"datasource_type"`
	Kind              DependencyKind `json:"kind"`
	Strategy          string         `json:"strategy"`
	CompatibilityMode string         `json:"compatibility_mode"`
	Status            RunStatus      `json:"status"`
	Error             string         `json:"error,omitempty"`

	GraphNodes        int `json:"graph_nodes"`
	CandidatesEmitted int `json:"candidates_emitted"`
	DependenciesFound int `json:"dependencies_found"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// DiscoveredDependency is the catalog record of one emitted dependency.
// Every family is flattened into the same row shape; Display carries the
// human-readable statement.
type DiscoveredDependency struct {
	ID         uuid.UUID      `json:"id"`
	RunID      uuid.UUID      `json:"run_id"`
	Kind       DependencyKind `json:"kind"`
	Display    string         `json:"display"`
	Body       []string       `json:"body"`
	Head       []string       `json:"head"`
	Support    float64        `json:"support"`
	Confidence float64        `json:"confidence"`
	CreatedAt  time.Time      `json:"created_at"`
}
