package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one invocation of the decision core.
type Run struct {
	RunID           string     `json:"run_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Source          string     `json:"source"`
	InitialSpeedMps float64    `json:"initial_speed_mps"`
	ConfigJSON      string     `json:"config_json"`
}

// StartRun inserts a new run row and returns its generated ID.
func (db *DB) StartRun(startedAt time.Time, source string, initialSpeed float64, configJSON []byte) (string, error) {
	runID := uuid.NewString()
	if len(configJSON) == 0 {
		configJSON = []byte("{}")
	}
	_, err := db.Exec(
		`INSERT INTO runs (run_id, started_unix_nanos, source, initial_speed_mps, config_json)
		 VALUES (?, ?, ?, ?, ?)`,
		runID, startedAt.UnixNano(), source, initialSpeed, string(configJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// FinishRun stamps the end time of a run.
func (db *DB) FinishRun(runID string, endedAt time.Time) error {
	res, err := db.Exec(`UPDATE runs SET ended_unix_nanos = ? WHERE run_id = ?`, endedAt.UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (db *DB) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT run_id, started_unix_nanos, ended_unix_nanos, source, initial_speed_mps, config_json
		 FROM runs ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&r.RunID, &started, &ended, &r.Source, &r.InitialSpeedMps, &r.ConfigJSON); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			r.EndedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
