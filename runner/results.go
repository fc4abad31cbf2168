package runner

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteResults persists a pipeline result to a JSON file so callers can
// inspect the per-step outcomes after the run.
func WriteResults(path string, result *PipelineResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}

	return nil
}
