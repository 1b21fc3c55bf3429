package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/mapping"
	"github.com/banshee-data/gridmap/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "gridmap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func builtMap(t *testing.T) (*mapping.FrequencyMap, mapping.BuildSummary) {
	t.Helper()
	scans := []scan.LaserScan{{
		RobotPose: geom.NewPose(0, 0, 0),
		Params: scan.LaserParams{
			SensorOffset:   geom.Identity(),
			FirstBeamAngle: -0.5,
			AngularStep:    0.25,
			MaxRange:       10,
		},
		Ranges: []float32{2, 2, 2, 2, 2},
	}}
	cfg := &mapping.Config{Resolution: 0.1, MaxRange: 10, UsableRange: 10, Border: 0.5, Gain: 1}
	mc := mapping.NewMapCreator(cfg)
	fm, err := mc.Build(scans)
	require.NoError(t, err)
	return fm, mc.Summary()
}

func TestPragmasApplied(t *testing.T) {
	db := openTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout, synchronous, tempStore, foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	require.NoError(t, db.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 5000, busyTimeout)
	assert.Equal(t, 1, synchronous) // NORMAL
	assert.Equal(t, 2, tempStore)   // MEMORY
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations(t *testing.T) {
	db, err := OpenNoMigrate(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateUp(), "second up is a no-op")
	v, dirty, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateDown())
	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='build_runs'`).Scan(&n))
	assert.Zero(t, n)
}

func TestRunStore_InsertGetList(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunStore(db)
	_, sum := builtMap(t)

	cfg := &mapping.Config{Resolution: 0.1, MaxRange: 10, UsableRange: 10, Border: 0.5, Gain: 1}
	first, err := NewBuildRun("intel.log", sum, cfg)
	require.NoError(t, err)
	first.CreatedAt = time.Unix(100, 0).UnixNano()
	require.NoError(t, runs.InsertRun(first))
	assert.NotEmpty(t, first.RunID)

	second := &BuildRun{SourcePath: "fr079.log", Summary: sum, CreatedAt: time.Unix(200, 0).UnixNano()}
	require.NoError(t, runs.InsertRun(second))
	assert.NotEqual(t, first.RunID, second.RunID)

	got, err := runs.GetRun(first.RunID)
	require.NoError(t, err)
	assert.Equal(t, "intel.log", got.SourcePath)
	assert.Equal(t, sum.Width, got.Summary.Width)
	assert.Equal(t, sum.Height, got.Summary.Height)
	assert.Equal(t, sum.Stats, got.Summary.Stats)
	assert.Equal(t, sum.Origin, got.Summary.Origin)
	assert.Equal(t, sum.Elapsed, got.Summary.Elapsed)
	assert.JSONEq(t, string(first.ParamsJSON), string(got.ParamsJSON))

	list, err := runs.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.RunID, list[0].RunID, "newest first")

	list, err = runs.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRunStore_NotFound(t *testing.T) {
	runs := NewRunStore(openTestDB(t))

	_, err := runs.GetRun("missing")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	assert.True(t, errors.Is(runs.DeleteRun("missing"), ErrNotFound))
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunStore(db)
	snaps := NewSnapshotStore(db)
	fm, sum := builtMap(t)

	run := &BuildRun{SourcePath: "intel.log", Summary: sum}
	require.NoError(t, runs.InsertRun(run))

	_, err := snaps.LatestSnapshot(run.RunID)
	assert.True(t, errors.Is(err, ErrNotFound))

	id, err := snaps.InsertSnapshot(run.RunID, fm)
	require.NoError(t, err)
	assert.Positive(t, id)

	fm.SetExcludeOrigin(true)
	id2, err := snaps.InsertSnapshot(run.RunID, fm)
	require.NoError(t, err)

	got, err := snaps.LatestSnapshot(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, id2, got.SnapshotID)
	assert.True(t, got.Map.ExcludeOrigin())
	assert.Equal(t, fm.Width, got.Map.Width)
	assert.Equal(t, fm.Height, got.Map.Height)
	assert.Equal(t, fm.Resolution, got.Map.Resolution)
	assert.Equal(t, fm.Origin, got.Map.Origin)
	assert.Equal(t, fm.Cells(), got.Map.Cells())

	hits, misses := fm.Totals()
	assert.Equal(t, hits, got.HitsTotal)
	assert.Equal(t, misses, got.MissesTotal)
}

func TestSnapshotStore_CascadeDelete(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunStore(db)
	snaps := NewSnapshotStore(db)
	fm, sum := builtMap(t)

	run := &BuildRun{SourcePath: "intel.log", Summary: sum}
	require.NoError(t, runs.InsertRun(run))
	_, err := snaps.InsertSnapshot(run.RunID, fm)
	require.NoError(t, err)

	require.NoError(t, runs.DeleteRun(run.RunID))
	_, err = snaps.LatestSnapshot(run.RunID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSnapshotStore_UnknownRun(t *testing.T) {
	snaps := NewSnapshotStore(openTestDB(t))
	fm := mapping.NewFrequencyMap(2, 2, 1, r2.Vec{})
	_, err := snaps.InsertSnapshot("no-such-run", fm)
	assert.Error(t, err, "foreign key should reject orphan snapshots")
}

func TestGridBlob(t *testing.T) {
	cells := []mapping.FrequencyCell{{}, {Hits: 1, Misses: 3}, {}, {Misses: 7}}
	blob, err := serializeGrid(cells)
	require.NoError(t, err)
	got, err := deserializeGrid(blob)
	require.NoError(t, err)
	assert.Equal(t, cells, got)

	_, err = deserializeGrid(nil)
	assert.Error(t, err)
	_, err = deserializeGrid([]byte("not gzip"))
	assert.Error(t, err)
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (SQLITE_BUSY)")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	plain := errors.New("constraint failed")
	err = retryOnBusy(func() error {
		calls++
		return plain
	})
	assert.Same(t, plain, err)
	assert.Equal(t, 1, calls)
}
