package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RegisteredPipeline names a pipeline definition file managed by the server.
type RegisteredPipeline struct {
	Name        string `yaml:"name" json:"name"`
	Path        string `yaml:"path" json:"path"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Registry holds the list of all registered pipelines
type Registry struct {
	Pipelines []RegisteredPipeline `yaml:"pipelines" json:"pipelines"`
}

// LoadRegistry loads the pipeline registry from a YAML file
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}

	return &reg, nil
}

// Get returns a registered pipeline by name
func (r *Registry) Get(name string) (*RegisteredPipeline, error) {
	for _, p := range r.Pipelines {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("pipeline '%s' not found", name)
}

// FilePath returns the absolute path to the pipeline definition file.
func (p *RegisteredPipeline) FilePath(baseDir string) string {
	if filepath.IsAbs(p.Path) {
		return p.Path
	}
	return filepath.Join(baseDir, p.Path)
}

// Validate checks that the pipeline definition file exists and parses.
func (p *RegisteredPipeline) Validate(baseDir string) error {
	path := p.FilePath(baseDir)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("pipeline file does not exist: %w", err)
	}
	if _, err := LoadPipeline(path); err != nil {
		return err
	}
	return nil
}
