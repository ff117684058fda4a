package discovery

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sievedata/sieve-engine/pkg/models"
)

// EmitYAML writes a run's dependency set to
// <dir>/dependencies-<kind>-<run id>.yaml and returns the file path.
// The directory is created if missing.
func EmitYAML(dir string, runID uuid.UUID, set *models.DependencySet) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	data, err := yaml.Marshal(set)
	if err != nil {
		return "", fmt.Errorf("marshal dependency set: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("dependencies-%s-%s.yaml", set.Kind, runID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
