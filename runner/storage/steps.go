package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateStepExecution creates a new step execution record
func (s *Storage) CreateStepExecution(runID, stepIndex int, agentID, role, model, task string) (*StepExecution, error) {
	now := time.Now()
	result, err := s.db.Exec(
		"INSERT INTO step_executions (run_id, step_index, agent_id, role, model, task, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		runID, stepIndex, agentID, role, model, task, "running", now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create step execution: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get step execution ID: %w", err)
	}

	return &StepExecution{
		ID:        int(id),
		RunID:     runID,
		StepIndex: stepIndex,
		AgentID:   agentID,
		Role:      role,
		Model:     model,
		Task:      task,
		Status:    "running",
		StartedAt: now,
	}, nil
}

// UpdateStepExecution updates step execution with outcome, status, and finish time
func (s *Storage) UpdateStepExecution(stepID int, status, output, errorMsg string, duration time.Duration) error {
	now := time.Now()
	durationStr := duration.String()
	_, err := s.db.Exec(
		"UPDATE step_executions SET status = ?, output = ?, error = ?, finished_at = ?, duration = ? WHERE id = ?",
		status, output, errorMsg, now, durationStr, stepID,
	)
	if err != nil {
		return fmt.Errorf("failed to update step execution: %w", err)
	}
	return nil
}

// GetStepExecutions retrieves all step executions for a run, in step order
func (s *Storage) GetStepExecutions(runID int) ([]*StepExecution, error) {
	rows, err := s.db.Query(
		"SELECT id, run_id, step_index, agent_id, role, model, task, status, output, error, started_at, finished_at, duration FROM step_executions WHERE run_id = ? ORDER BY step_index ASC",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query step executions: %w", err)
	}
	defer rows.Close()

	var steps []*StepExecution
	for rows.Next() {
		var step StepExecution
		var output sql.NullString
		var errorMsg sql.NullString
		var finishedAt sql.NullTime
		var duration sql.NullString

		err := rows.Scan(&step.ID, &step.RunID, &step.StepIndex, &step.AgentID, &step.Role, &step.Model, &step.Task, &step.Status, &output, &errorMsg, &step.StartedAt, &finishedAt, &duration)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step execution: %w", err)
		}

		if output.Valid {
			step.Output = output.String
		}
		if errorMsg.Valid {
			step.Error = errorMsg.String
		}
		if finishedAt.Valid {
			step.FinishedAt = &finishedAt.Time
		}
		if duration.Valid {
			durationStr := duration.String
			step.Duration = &durationStr
		}

		steps = append(steps, &step)
	}

	return steps, rows.Err()
}
