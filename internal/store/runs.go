package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/mapping"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"
)

// BuildRun is the record of one map build.
type BuildRun struct {
	RunID      string               `json:"run_id"`
	SourcePath string               `json:"source_path"`
	CreatedAt  int64                `json:"created_at"` // unix nanos
	Summary    mapping.BuildSummary `json:"summary"`
	ParamsJSON json.RawMessage      `json:"params_json,omitempty"`
}

// NewBuildRun describes a finished build of source with cfg.
func NewBuildRun(source string, sum mapping.BuildSummary, cfg *mapping.Config) (*BuildRun, error) {
	run := &BuildRun{SourcePath: source, Summary: sum}
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal build params: %w", err)
		}
		run.ParamsJSON = b
	}
	return run, nil
}

// RunStore persists BuildRun records.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore over db.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db.DB}
}

const runColumns = `run_id, source_path, created_at, scans, width, height, resolution,
	origin_x, origin_y, offset_x, offset_y, offset_theta,
	beams, discarded, clipped, hits, out_of_grid, elapsed_ns, params_json`

// InsertRun stores run. A UUID is generated when RunID is empty and the
// creation time is filled in when zero.
func (s *RunStore) InsertRun(run *BuildRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	var params interface{}
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}
	sum := run.Summary
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`INSERT INTO build_runs (`+runColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.SourcePath, run.CreatedAt, sum.Scans, sum.Width, sum.Height, sum.Resolution,
			sum.Origin.X, sum.Origin.Y, sum.Offset.X, sum.Offset.Y, sum.Offset.Theta,
			sum.Stats.Beams, sum.Stats.Discarded, sum.Stats.Clipped, sum.Stats.Hits, sum.Stats.OutOfGrid,
			int64(sum.Elapsed), params,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

// GetRun returns the run with the given id.
func (s *RunStore) GetRun(runID string) (*BuildRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM build_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first. limit <= 0 lists all.
func (s *RunStore) ListRuns(limit int) ([]*BuildRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM build_runs
		ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*BuildRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its snapshots.
func (s *RunStore) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM build_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*BuildRun, error) {
	var (
		run       BuildRun
		sum       mapping.BuildSummary
		ox, oy    float64
		px, py    float64
		theta     float64
		elapsedNs int64
		params    sql.NullString
	)
	err := row.Scan(
		&run.RunID, &run.SourcePath, &run.CreatedAt, &sum.Scans, &sum.Width, &sum.Height, &sum.Resolution,
		&ox, &oy, &px, &py, &theta,
		&sum.Stats.Beams, &sum.Stats.Discarded, &sum.Stats.Clipped, &sum.Stats.Hits, &sum.Stats.OutOfGrid,
		&elapsedNs, &params,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	sum.Origin = r2.Vec{X: ox, Y: oy}
	sum.Offset = geom.NewPose(px, py, theta)
	sum.Elapsed = time.Duration(elapsedNs)
	run.Summary = sum
	if params.Valid {
		run.ParamsJSON = json.RawMessage(params.String)
	}
	return &run, nil
}
