package db

import (
	"database/sql"
	"fmt"
	"time"
)

// CycleRow is the persisted summary of one control cycle.
type CycleRow struct {
	Seq              uint64    `json:"seq"`
	Timestamp        time.Time `json:"timestamp"`
	SpeedMps         float64   `json:"speed_mps"`
	TargetSpeedMps   float64   `json:"target_speed_mps"`
	BrakeActive      bool      `json:"brake_active"`
	ACCState         string    `json:"acc_state"`
	FCWState         string    `json:"fcw_state"`
	ThreatLabel      string    `json:"threat_label,omitempty"`
	ThreatDistanceM  *float64  `json:"threat_distance_m,omitempty"`
	ThreatTTC        *float64  `json:"threat_ttc_s,omitempty"`
	ProximityWarning bool      `json:"proximity_warning"`
	Throttle         float64   `json:"throttle"`
	Brake            float64   `json:"brake"`
	ObjectCount      int       `json:"object_count"`
	DroppedFrames    uint64    `json:"dropped_frames"`
}

// BrakeEvent is an emergency brake issued by the FCW law.
type BrakeEvent struct {
	Seq             uint64    `json:"seq"`
	Timestamp       time.Time `json:"timestamp"`
	SpeedBeforeMps  float64   `json:"speed_before_mps"`
	SpeedAfterMps   float64   `json:"speed_after_mps"`
	ThreatLabel     string    `json:"threat_label"`
	ThreatDistanceM float64   `json:"threat_distance_m"`
	ThreatTTC       float64   `json:"threat_ttc_s"`
}

func (db *DB) RecordCycle(runID string, c CycleRow) error {
	var label sql.NullString
	if c.ThreatLabel != "" {
		label = sql.NullString{String: c.ThreatLabel, Valid: true}
	}
	_, err := db.Exec(
		`INSERT INTO cycles (
			run_id, seq, ts_unix_nanos, speed_mps, target_speed_mps, brake_active,
			acc_state, fcw_state, threat_label, threat_distance_m, threat_ttc_s,
			proximity_warning, throttle, brake, object_count, dropped_frames
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, int64(c.Seq), c.Timestamp.UnixNano(), c.SpeedMps, c.TargetSpeedMps, c.BrakeActive,
		c.ACCState, c.FCWState, label, nullFloat(c.ThreatDistanceM), nullFloat(c.ThreatTTC),
		c.ProximityWarning, c.Throttle, c.Brake, c.ObjectCount, int64(c.DroppedFrames),
	)
	if err != nil {
		return fmt.Errorf("insert cycle %d: %w", c.Seq, err)
	}
	return nil
}

func (db *DB) RecordBrakeEvent(runID string, e BrakeEvent) error {
	_, err := db.Exec(
		`INSERT INTO brake_events (
			run_id, seq, ts_unix_nanos, speed_before_mps, speed_after_mps,
			threat_label, threat_distance_m, threat_ttc_s
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, int64(e.Seq), e.Timestamp.UnixNano(), e.SpeedBeforeMps, e.SpeedAfterMps,
		e.ThreatLabel, e.ThreatDistanceM, e.ThreatTTC,
	)
	if err != nil {
		return fmt.Errorf("insert brake event %d: %w", e.Seq, err)
	}
	return nil
}

// Cycles returns the cycles of a run in sequence order. limit <= 0 returns all.
func (db *DB) Cycles(runID string, limit int) ([]CycleRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT seq, ts_unix_nanos, speed_mps, target_speed_mps, brake_active,
			acc_state, fcw_state, threat_label, threat_distance_m, threat_ttc_s,
			proximity_warning, throttle, brake, object_count, dropped_frames
		 FROM cycles WHERE run_id = ? ORDER BY seq ASC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []CycleRow
	for rows.Next() {
		var (
			c              CycleRow
			seq, ts, drops int64
			label          sql.NullString
			dist, ttc      sql.NullFloat64
		)
		if err := rows.Scan(&seq, &ts, &c.SpeedMps, &c.TargetSpeedMps, &c.BrakeActive,
			&c.ACCState, &c.FCWState, &label, &dist, &ttc,
			&c.ProximityWarning, &c.Throttle, &c.Brake, &c.ObjectCount, &drops); err != nil {
			return nil, err
		}
		c.Seq = uint64(seq)
		c.Timestamp = time.Unix(0, ts).UTC()
		c.DroppedFrames = uint64(drops)
		c.ThreatLabel = label.String
		c.ThreatDistanceM = floatPtr(dist)
		c.ThreatTTC = floatPtr(ttc)
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cycles, nil
}

// BrakeEvents returns the brake events of a run in sequence order.
func (db *DB) BrakeEvents(runID string, limit int) ([]BrakeEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT seq, ts_unix_nanos, speed_before_mps, speed_after_mps,
			threat_label, threat_distance_m, threat_ttc_s
		 FROM brake_events WHERE run_id = ? ORDER BY seq ASC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []BrakeEvent
	for rows.Next() {
		var (
			e       BrakeEvent
			seq, ts int64
		)
		if err := rows.Scan(&seq, &ts, &e.SpeedBeforeMps, &e.SpeedAfterMps,
			&e.ThreatLabel, &e.ThreatDistanceM, &e.ThreatTTC); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.Timestamp = time.Unix(0, ts).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
