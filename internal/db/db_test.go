package db

import (
	"compress/gzip"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fcw/internal/testutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "fcw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(f float64) *float64 { return &f }

// ---- schema ----

func TestOpenDB_Pragmas(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var synchronous int
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	assert.Equal(t, 1, synchronous, "synchronous should be NORMAL")

	var tempStore int
	require.NoError(t, db.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	assert.Equal(t, 2, tempStore, "temp_store should be MEMORY")
}

func TestOpenDB_MigratesToLatest(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Reopening an existing file is a no-op migration.
	db2, err := OpenDB(db.Path())
	require.NoError(t, err)
	defer db2.Close()
	version, _, err = db2.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestMigrateDown(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='cycles'`).Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

// ---- runs ----

func TestRuns(t *testing.T) {
	db := setupTestDB(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := db.StartRun(t0, "replay", 10, []byte(`{"max_speed_mps":30}`))
	require.NoError(t, err)
	second, err := db.StartRun(t0.Add(time.Minute), "camera", 0, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, db.FinishRun(first, t0.Add(30*time.Second)))

	runs, err := db.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, second, runs[0].RunID, "newest first")
	assert.Nil(t, runs[0].EndedAt)
	assert.Equal(t, "{}", runs[0].ConfigJSON)

	assert.Equal(t, first, runs[1].RunID)
	assert.Equal(t, "replay", runs[1].Source)
	assert.Equal(t, 10.0, runs[1].InitialSpeedMps)
	assert.True(t, runs[1].StartedAt.Equal(t0))
	require.NotNil(t, runs[1].EndedAt)
	assert.True(t, runs[1].EndedAt.Equal(t0.Add(30*time.Second)))

	limited, err := db.Runs(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFinishRun_Unknown(t *testing.T) {
	db := setupTestDB(t)
	assert.Error(t, db.FinishRun("no-such-run", time.Now()))
}

// ---- cycles ----

func TestRecordCycle_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runID, err := db.StartRun(t0, "replay", 0, nil)
	require.NoError(t, err)

	rows := []CycleRow{
		{
			Seq: 1, Timestamp: t0, SpeedMps: 1.5, TargetSpeedMps: 30,
			ACCState: "CRUISE", FCWState: "NORMAL", Throttle: 1,
		},
		{
			Seq: 2, Timestamp: t0.Add(100 * time.Millisecond), SpeedMps: 0, TargetSpeedMps: 0,
			BrakeActive: true, ACCState: "FOLLOWING", FCWState: "WARNING",
			ThreatLabel: "car", ThreatDistanceM: ptr(10), ThreatTTC: ptr(2),
			ProximityWarning: true, Brake: 1, ObjectCount: 2, DroppedFrames: 3,
		},
	}
	// Insert out of order; reads come back by seq.
	require.NoError(t, db.RecordCycle(runID, rows[1]))
	require.NoError(t, db.RecordCycle(runID, rows[0]))

	got, err := db.Cycles(runID, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rows[0], got[0])
	assert.Equal(t, rows[1], got[1])

	limited, err := db.Cycles(runID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, uint64(1), limited[0].Seq)

	other, err := db.Cycles("other-run", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecordCycle_DuplicateSeq(t *testing.T) {
	db := setupTestDB(t)
	runID, err := db.StartRun(time.Now(), "replay", 0, nil)
	require.NoError(t, err)

	row := CycleRow{Seq: 7, Timestamp: time.Now(), ACCState: "CRUISE", FCWState: "NORMAL"}
	require.NoError(t, db.RecordCycle(runID, row))
	assert.Error(t, db.RecordCycle(runID, row))
}

func TestRecordCycle_UnknownRun(t *testing.T) {
	db := setupTestDB(t)
	row := CycleRow{Seq: 1, Timestamp: time.Now(), ACCState: "CRUISE", FCWState: "NORMAL"}
	assert.Error(t, db.RecordCycle("missing", row), "foreign key should reject cycles without a run")
}

func TestBrakeEvents(t *testing.T) {
	db := setupTestDB(t)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runID, err := db.StartRun(t0, "replay", 10, nil)
	require.NoError(t, err)

	ev := BrakeEvent{
		Seq: 4, Timestamp: t0, SpeedBeforeMps: 10, SpeedAfterMps: 5,
		ThreatLabel: "car", ThreatDistanceM: 20, ThreatTTC: 1.33,
	}
	require.NoError(t, db.RecordBrakeEvent(runID, ev))

	got, err := db.BrakeEvents(runID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev, got[0])
}

// ---- admin routes ----

func TestAttachAdminRoutes_TailSQL(t *testing.T) {
	db := setupTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	w := testutil.ServeDebug(t, mux, http.MethodGet, "/debug/tailsql/")
	assert.NotEqual(t, http.StatusNotFound, w.Code)
}

func TestAttachAdminRoutes_Backup(t *testing.T) {
	db := setupTestDB(t)
	runID, err := db.StartRun(time.Now(), "replay", 0, nil)
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	w := testutil.ServeDebug(t, mux, http.MethodGet, "/debug/backup")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "fcw-backup-")

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	restored := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, os.WriteFile(restored, data, 0o644))
	rdb, err := OpenDB(restored)
	require.NoError(t, err)
	defer rdb.Close()

	runs, err := rdb.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)
}
