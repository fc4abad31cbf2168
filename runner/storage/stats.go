package storage

import (
	"database/sql"
	"fmt"
)

// AgentStats aggregates step outcomes per agent within a pipeline
type AgentStats struct {
	AgentID   string `json:"agent"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// PipelineRunStats summarizes one recent run of a pipeline
type PipelineRunStats struct {
	RunID     int     `json:"run_id"`
	Status    string  `json:"status"`
	HaltedAt  *int    `json:"halted_at,omitempty"`
	Duration  *string `json:"duration,omitempty"`
	StartedAt string  `json:"started_at"`
	StepCount int     `json:"step_count"`
}

// GetAgentStats returns per-agent success and failure counts for a pipeline
func (s *Storage) GetAgentStats(pipeline string) ([]AgentStats, error) {
	query := `
		SELECT
			se.agent_id,
			COUNT(se.id) as total,
			SUM(CASE WHEN se.status = 'success' THEN 1 ELSE 0 END) as succeeded,
			SUM(CASE WHEN se.status = 'failed' THEN 1 ELSE 0 END) as failed
		FROM step_executions se
		JOIN runs r ON r.id = se.run_id
		WHERE r.pipeline = ?
		GROUP BY se.agent_id
		ORDER BY se.agent_id
	`

	rows, err := s.db.Query(query, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent stats: %w", err)
	}
	defer rows.Close()

	stats := make([]AgentStats, 0)
	for rows.Next() {
		var stat AgentStats
		if err := rows.Scan(&stat.AgentID, &stat.Total, &stat.Succeeded, &stat.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan agent stats: %w", err)
		}
		stats = append(stats, stat)
	}

	return stats, rows.Err()
}

// GetLatestRuns returns the most recent runs for a pipeline
func (s *Storage) GetLatestRuns(pipeline string, limit int) ([]PipelineRunStats, error) {
	query := `
		SELECT
			r.id,
			r.status,
			r.halted_at,
			r.duration,
			r.started_at,
			COUNT(se.id) as step_count
		FROM runs r
		LEFT JOIN step_executions se ON r.id = se.run_id
		WHERE r.pipeline = ?
		GROUP BY r.id, r.status, r.halted_at, r.duration, r.started_at
		ORDER BY r.started_at DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, pipeline, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest runs: %w", err)
	}
	defer rows.Close()

	stats := make([]PipelineRunStats, 0)
	for rows.Next() {
		var stat PipelineRunStats
		var haltedAt sql.NullInt64
		var duration sql.NullString

		err := rows.Scan(&stat.RunID, &stat.Status, &haltedAt, &duration, &stat.StartedAt, &stat.StepCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run stats: %w", err)
		}

		if haltedAt.Valid {
			idx := int(haltedAt.Int64)
			stat.HaltedAt = &idx
		}
		if duration.Valid {
			durationStr := duration.String
			stat.Duration = &durationStr
		}

		stats = append(stats, stat)
	}

	return stats, rows.Err()
}
