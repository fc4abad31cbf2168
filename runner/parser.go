package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Schedule triggers automatic runs of a pipeline, either at a fixed time of
// day or on an interval.
type Schedule struct {
	At    string `yaml:"at,omitempty"`    // "HH:MM"
	Every string `yaml:"every,omitempty"` // "1h", "30m", "1h30m"
}

// Pipeline is a parsed pipeline definition file.
type Pipeline struct {
	Name      string     `yaml:"name,omitempty"`
	Steps     []StepSpec `yaml:"steps"`
	Schedules []Schedule `yaml:"schedules,omitempty"`
}

// LoadPipeline reads and validates a pipeline definition from a YAML file.
// A missing name defaults to the file's base name.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}

	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline file: %w", err)
	}

	if p.Name == "" {
		base := filepath.Base(path)
		p.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Validate checks the step definitions. An empty step list is allowed.
func (p *Pipeline) Validate() error {
	seen := make(map[string]int)
	for i, step := range p.Steps {
		if strings.TrimSpace(step.AgentID) == "" {
			return fmt.Errorf("step %d: missing agent", i)
		}
		if strings.TrimSpace(step.Task) == "" {
			return fmt.Errorf("step %d (%s): missing task", i, step.AgentID)
		}
		if prev, dup := seen[step.AgentID]; dup {
			return fmt.Errorf("step %d: agent %q already used at step %d", i, step.AgentID, prev)
		}
		seen[step.AgentID] = i
	}
	return nil
}
