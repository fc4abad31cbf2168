package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateRun creates a new run record
func (s *Storage) CreateRun(uid, pipeline string) (*Run, error) {
	now := time.Now()
	result, err := s.db.Exec(
		"INSERT INTO runs (uid, status, pipeline, started_at) VALUES (?, ?, ?, ?)",
		uid, "running", pipeline, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get run ID: %w", err)
	}

	return &Run{
		ID:        int(id),
		UID:       uid,
		Status:    "running",
		Pipeline:  pipeline,
		StartedAt: now,
	}, nil
}

// UpdateRunStatus updates the status, halt index, and finish time of a run
func (s *Storage) UpdateRunStatus(runID int, status string, haltedAt *int, duration time.Duration) error {
	now := time.Now()
	durationStr := duration.String()

	var halted sql.NullInt64
	if haltedAt != nil {
		halted = sql.NullInt64{Int64: int64(*haltedAt), Valid: true}
	}

	_, err := s.db.Exec(
		"UPDATE runs SET status = ?, halted_at = ?, finished_at = ?, duration = ? WHERE id = ?",
		status, halted, now, durationStr, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

// GetRuns retrieves all runs, ordered by most recent first
func (s *Storage) GetRuns(limit int) ([]*Run, error) {
	query := "SELECT id, uid, status, pipeline, halted_at, started_at, finished_at, duration FROM runs ORDER BY started_at DESC LIMIT ?"
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRun retrieves a single run by ID
func (s *Storage) GetRun(runID int) (*Run, error) {
	row := s.db.QueryRow(
		"SELECT id, uid, status, pipeline, halted_at, started_at, finished_at, duration FROM runs WHERE id = ?",
		runID,
	)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// scanRun reads one run row using the given scan function.
func scanRun(scan func(dest ...any) error) (*Run, error) {
	var r Run
	var haltedAt sql.NullInt64
	var finishedAt sql.NullTime
	var duration sql.NullString

	err := scan(&r.ID, &r.UID, &r.Status, &r.Pipeline, &haltedAt, &r.StartedAt, &finishedAt, &duration)
	if err != nil {
		return nil, err
	}

	if haltedAt.Valid {
		idx := int(haltedAt.Int64)
		r.HaltedAt = &idx
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	if duration.Valid {
		durationStr := duration.String
		r.Duration = &durationStr
	}

	return &r, nil
}
