package storage

import "time"

// Run represents a pipeline execution
type Run struct {
	ID         int        `json:"id"`
	UID        string     `json:"uid"`
	Status     string     `json:"status"` // "running", "success", "failed"
	Pipeline   string     `json:"pipeline"`
	HaltedAt   *int       `json:"halted_at,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Duration   *string    `json:"duration,omitempty"`
}

// StepExecution represents execution of a single step
type StepExecution struct {
	ID         int        `json:"id"`
	RunID      int        `json:"run_id"`
	StepIndex  int        `json:"step_index"`
	AgentID    string     `json:"agent"`
	Role       string     `json:"role,omitempty"`
	Model      string     `json:"model,omitempty"`
	Task       string     `json:"task"`
	Status     string     `json:"status"` // "running", "success", "failed"
	Output     string     `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Duration   *string    `json:"duration,omitempty"`
}
