package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/gridmap/internal/config"
	"github.com/banshee-data/gridmap/internal/grid"
	"github.com/banshee-data/gridmap/internal/logger"
	"github.com/banshee-data/gridmap/internal/mapping"
	"github.com/banshee-data/gridmap/internal/monitor"
	"github.com/banshee-data/gridmap/internal/plot"
	"github.com/banshee-data/gridmap/internal/render"
	"github.com/banshee-data/gridmap/internal/scan"
	"github.com/banshee-data/gridmap/internal/scan/carmen"
	"github.com/banshee-data/gridmap/internal/store"
)

// options is everything one invocation needs. Nil override fields leave
// the tuning config untouched.
type options struct {
	LogPath      string
	ConfigPath   string
	Strict       bool
	OutPNG       string
	PGMDir       string
	OverlayPath  bool
	OverlayScans int
	PlotsDir     string
	DBPath       string
	ServeAddr    string

	Workers       *int
	Resolution    *float64
	MaxRange      *float64
	UsableRange   *float64
	Border        *float64
	ZeroFirstPose *bool
}

// tuning loads the config file (or the defaults) and applies overrides.
func (o options) tuning() (*config.TuningConfig, error) {
	cfg := config.DefaultTuningConfig()
	if o.ConfigPath != "" {
		loaded, err := config.LoadTuningConfig(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.Workers != nil {
		cfg.Workers = o.Workers
	}
	if o.Resolution != nil {
		cfg.Resolution = o.Resolution
	}
	if o.MaxRange != nil {
		cfg.MaxRange = o.MaxRange
	}
	if o.UsableRange != nil {
		cfg.UsableRange = o.UsableRange
	}
	if o.Border != nil {
		cfg.Border = o.Border
	}
	if o.ZeroFirstPose != nil {
		cfg.ZeroFirstPose = o.ZeroFirstPose
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning config: %w", err)
	}
	return cfg, nil
}

// result is what a build produced.
type result struct {
	Scans     []scan.LaserScan
	Creator   *mapping.MapCreator
	Occupancy *grid.Map[mapping.Occupancy]
	Stats     mapping.OccupancyStats
	RunID     string
	Plots     int
}

func run(ctx context.Context, o options) error {
	res, err := build(ctx, o)
	if err != nil {
		return err
	}
	if o.ServeAddr == "" {
		return nil
	}

	mcfg := monitor.Config{Address: o.ServeAddr}
	if o.DBPath != "" {
		db, err := store.Open(o.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		mcfg.Runs = store.NewRunStore(db)
		mcfg.Snapshots = store.NewSnapshotStore(db)
	}
	srv := monitor.NewServer(mcfg)
	srv.SetMap(&monitor.MapState{
		Source:    o.LogPath,
		RunID:     res.RunID,
		Summary:   res.Creator.Summary(),
		Occupancy: res.Occupancy,
		Stats:     res.Stats,
	})
	return srv.Start(ctx)
}

// build reads the log, builds the map and writes every requested output.
func build(ctx context.Context, o options) (*result, error) {
	log := logger.Named("gridmap")

	tuning, err := o.tuning()
	if err != nil {
		return nil, err
	}
	cfg := mapping.ConfigFromTuning(tuning)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid map config: %w", err)
	}
	thresholds := render.Thresholds{Occupied: tuning.GetOccupiedThresh(), Free: tuning.GetFreeThresh()}

	src := &carmen.File{Path: o.LogPath, Strict: o.Strict}
	scans, dropped, err := scan.Collect(src)
	if err != nil {
		return nil, err
	}
	pstats := src.Stats()
	log.Infof("read %s: %d lines, %d laser records, %d skipped, %d invalid",
		o.LogPath, pstats.Lines, pstats.Records, pstats.Skipped, dropped)

	mc := mapping.NewMapCreator(cfg)
	var bp *plot.BuildPlotter
	if o.PlotsDir != "" {
		bp = plot.NewBuildPlotter()
		if err := bp.Start(plot.MakePlotOutputDir(o.PlotsDir, o.LogPath, time.Now())); err != nil {
			return nil, err
		}
		mc.SetObserver(bp.Sample)
	}

	fm, err := mc.BuildContext(ctx, scans)
	if err != nil {
		return nil, fmt.Errorf("build map: %w", err)
	}
	res := &result{Scans: scans, Creator: mc, Occupancy: mc.Resolve()}
	res.Stats = mapping.Summarize(res.Occupancy, thresholds.Occupied, thresholds.Free)

	sum := mc.Summary()
	log.Infof("built %dx%d map at %.3fm from %d scans in %v: %d known cells (%d occupied, %d free)",
		sum.Width, sum.Height, sum.Resolution, sum.Scans, sum.Elapsed,
		res.Stats.Known, res.Stats.Occupied, res.Stats.Free)

	if o.OutPNG != "" {
		if err := writePNG(o, cfg, res); err != nil {
			return nil, err
		}
		log.Infof("wrote %s", o.OutPNG)
	}

	if o.PGMDir != "" {
		yamlPath, err := render.WriteROSMap(o.PGMDir, mapName(o.LogPath), res.Occupancy, thresholds)
		if err != nil {
			return nil, err
		}
		log.Infof("wrote %s", yamlPath)
	}

	if bp != nil {
		bp.Stop()
		n, err := bp.GeneratePlots(fm)
		if err != nil {
			// Plots are diagnostics; the map itself is already written.
			log.Warnf("plot generation stopped after %d plots: %v", n, err)
		}
		res.Plots = n
		log.Infof("wrote %d plots to %s", n, bp.OutputDir())
	}

	if o.DBPath != "" {
		id, err := record(o, cfg, sum, fm)
		if err != nil {
			return nil, err
		}
		res.RunID = id
		log.Infof("recorded run %s in %s", id, o.DBPath)
	}
	return res, nil
}

func writePNG(o options, cfg *mapping.Config, res *result) error {
	if !o.OverlayPath && o.OverlayScans <= 0 {
		f, err := os.Create(o.OutPNG)
		if err != nil {
			return fmt.Errorf("create png: %w", err)
		}
		if err := png.Encode(f, render.OccupancyImage(res.Occupancy)); err != nil {
			f.Close()
			return fmt.Errorf("encode png: %w", err)
		}
		return f.Close()
	}

	ov := render.NewOverlay(res.Occupancy)
	defer ov.Close()
	offset := res.Creator.Offset()
	if o.OverlayScans > 0 {
		for i := 0; i < len(res.Scans); i += o.OverlayScans {
			s := &res.Scans[i]
			maxR, usable := cfg.EffectiveRanges(s.Params.MaxRange)
			if err := ov.DrawScan(s, offset, maxR, usable); err != nil {
				return err
			}
		}
	}
	if o.OverlayPath {
		if err := ov.DrawPath(res.Scans, offset); err != nil {
			return err
		}
	}
	return ov.SavePNG(o.OutPNG)
}

func record(o options, cfg *mapping.Config, sum mapping.BuildSummary, fm *mapping.FrequencyMap) (string, error) {
	db, err := store.Open(o.DBPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	run, err := store.NewBuildRun(o.LogPath, sum, cfg)
	if err != nil {
		return "", err
	}
	if err := store.NewRunStore(db).InsertRun(run); err != nil {
		return "", err
	}
	if _, err := store.NewSnapshotStore(db).InsertSnapshot(run.RunID, fm); err != nil {
		return "", err
	}
	return run.RunID, nil
}

// mapName derives the export basename from the log path.
func mapName(logPath string) string {
	base := filepath.Base(logPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "map"
	}
	return name
}
