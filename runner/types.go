package runner

import (
	"time"
)

// StepSpec defines one pipeline step. Boolean flags default to false when
// omitted from YAML or JSON input.
type StepSpec struct {
	AgentID         string `yaml:"agent" json:"agent"`
	Role            string `yaml:"role,omitempty" json:"role,omitempty"`
	Task            string `yaml:"task" json:"task"`
	UsePrevious     bool   `yaml:"use_previous,omitempty" json:"use_previous,omitempty"`
	ContinueOnError bool   `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
	Model           string `yaml:"model,omitempty" json:"model,omitempty"`
}

// StepResult represents the outcome of executing a single step
type StepResult struct {
	AgentID   string        `json:"agent"`
	StepIndex int           `json:"step_index"`
	Success   bool          `json:"success"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// PipelineResult represents the result of running a pipeline
type PipelineResult struct {
	RunUID   string        `json:"run_uid"`
	RunID    int           `json:"run_id,omitempty"`
	Pipeline string        `json:"pipeline,omitempty"`
	Status   string        `json:"status"` // "success" or "failed"
	Steps    []StepResult  `json:"steps"`
	HaltedAt *int          `json:"halted_at,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Halted reports whether the run stopped early on a non-continuable failure.
func (r *PipelineResult) Halted() bool {
	return r.HaltedAt != nil
}
