package search

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sievedata/sieve-engine/pkg/apperrors"
	"github.com/sievedata/sieve-engine/pkg/graph"
)

// checkpointVersion is bumped whenever the serialized layout changes.
// A loaded checkpoint with a different version is rejected rather than
// reinterpreted.
const checkpointVersion = 1

// Checkpoint is the resumable state of a long-running search. Walks are
// stored as node-id sequences; node ids are only meaningful against the
// graph the search was started with, so RestoreFrontier re-validates
// every id.
type Checkpoint struct {
	Version    int                   `json:"version"`
	Strategy   string                `json:"strategy"`
	GraphNodes int                   `json:"graph_nodes"`
	Level      int                   `json:"level"`
	Processed  int64                 `json:"processed"`
	Frontier   [][]graph.NodeID      `json:"frontier"`
	Visited    []string              `json:"visited"`
	Cache      map[string]Evaluation `json:"cache,omitempty"`
	SavedAt    time.Time             `json:"saved_at"`
}

// SaveCheckpoint writes the checkpoint atomically: a temp file in the
// same directory, then a rename. A crash mid-write leaves the previous
// checkpoint intact.
func SaveCheckpoint(path string, cp *Checkpoint) error {
	cp.Version = checkpointVersion
	cp.SavedAt = time.Now().UTC()

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads and version-checks a checkpoint file.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if cp.Version != checkpointVersion {
		return nil, fmt.Errorf("checkpoint version %d, want %d: %w",
			cp.Version, checkpointVersion, apperrors.ErrCheckpointVersion)
	}
	return &cp, nil
}

// validateResume checks a checkpoint against the search it is resuming.
func validateResume(cp *Checkpoint, strategy string, g *graph.ConstraintGraph) error {
	if cp.Strategy != strategy {
		return fmt.Errorf("checkpoint from strategy %q, resuming %q: %w",
			cp.Strategy, strategy, apperrors.ErrCheckpointStrategy)
	}
	if cp.GraphNodes != g.NodeCount() {
		return fmt.Errorf("checkpoint built on %d-node graph, current graph has %d: %w",
			cp.GraphNodes, g.NodeCount(), apperrors.ErrCheckpointVersion)
	}
	return nil
}

// restoreFrontier rebuilds candidate rules from checkpointed walks,
// dropping any walk that no longer fits the graph or limits.
func restoreFrontier(cp *Checkpoint, g *graph.ConstraintGraph, limits graph.Limits) []*graph.CandidateRule {
	frontier := make([]*graph.CandidateRule, 0, len(cp.Frontier))
walks:
	for _, walk := range cp.Frontier {
		if len(walk) == 0 {
			continue
		}
		for _, id := range walk {
			if id < 0 || int(id) >= g.NodeCount() {
				continue walks
			}
		}
		rule := graph.NewCandidateRule(walk[0])
		for _, id := range walk[1:] {
			rule = rule.Extend(id)
		}
		if !rule.WithinLimits(g, limits) {
			continue
		}
		frontier = append(frontier, rule)
	}
	return frontier
}
