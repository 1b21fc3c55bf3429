package store

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/gridmap/internal/logger"
	"github.com/banshee-data/gridmap/internal/mapping"
	"gonum.org/v1/gonum/spatial/r2"
)

// Snapshot is a stored frequency map.
type Snapshot struct {
	SnapshotID     int64
	RunID          string
	TakenUnixNanos int64
	HitsTotal      int64
	MissesTotal    int64
	Map            *mapping.FrequencyMap
}

// SnapshotStore persists frequency-map snapshots.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore creates a SnapshotStore over db.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db.DB}
}

// serializeGrid compresses the cells using gob encoding and gzip compression.
func serializeGrid(cells []mapping.FrequencyCell) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(cells); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeGrid decompresses and decodes cells from a gob+gzip blob.
func deserializeGrid(blob []byte) ([]mapping.FrequencyCell, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty grid blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var cells []mapping.FrequencyCell
	if err := gob.NewDecoder(gz).Decode(&cells); err != nil {
		return nil, fmt.Errorf("failed to decode grid cells: %w", err)
	}
	return cells, nil
}

// InsertSnapshot stores fm under runID and returns the snapshot id.
func (s *SnapshotStore) InsertSnapshot(runID string, fm *mapping.FrequencyMap) (int64, error) {
	blob, err := serializeGrid(fm.Cells())
	if err != nil {
		return 0, fmt.Errorf("serialize grid: %w", err)
	}
	hits, misses := fm.Totals()

	var id int64
	err = retryOnBusy(func() error {
		res, err := s.db.Exec(`INSERT INTO grid_snapshots (
				run_id, taken_unix_nanos, width, height, resolution, origin_x, origin_y,
				exclude_origin, hits_total, misses_total, grid_blob
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, time.Now().UnixNano(), fm.Width, fm.Height, fm.Resolution, fm.Origin.X, fm.Origin.Y,
			fm.ExcludeOrigin(), hits, misses, blob,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	logger.Named("store").Infof("persisted snapshot %d for run %s: %dx%d cells, hits=%d misses=%d, grid_blob_size=%d bytes",
		id, runID, fm.Width, fm.Height, hits, misses, len(blob))
	return id, nil
}

// LatestSnapshot returns the most recent snapshot of runID with its map
// restored.
func (s *SnapshotStore) LatestSnapshot(runID string) (*Snapshot, error) {
	var (
		snap          Snapshot
		width, height int
		res, ox, oy   float64
		excludeOrigin bool
		blob          []byte
	)
	err := s.db.QueryRow(`SELECT snapshot_id, run_id, taken_unix_nanos, width, height, resolution,
			origin_x, origin_y, exclude_origin, hits_total, misses_total, grid_blob
		FROM grid_snapshots WHERE run_id = ?
		ORDER BY taken_unix_nanos DESC, snapshot_id DESC LIMIT 1`, runID).Scan(
		&snap.SnapshotID, &snap.RunID, &snap.TakenUnixNanos, &width, &height, &res,
		&ox, &oy, &excludeOrigin, &snap.HitsTotal, &snap.MissesTotal, &blob,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot for run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	cells, err := deserializeGrid(blob)
	if err != nil {
		return nil, err
	}
	fm, err := mapping.FrequencyMapFromCells(width, height, res, r2.Vec{X: ox, Y: oy}, cells)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot %d: %w", snap.SnapshotID, err)
	}
	fm.SetExcludeOrigin(excludeOrigin)
	snap.Map = fm
	return &snap, nil
}
