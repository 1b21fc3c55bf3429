// Command gridmap builds an occupancy grid map from a CARMEN laser log and
// writes it as a PNG, a ROS map_server PGM/YAML pair, diagnostic plots and
// an optional SQLite run record. With -serve it keeps serving the map over
// HTTP until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/gridmap/internal/logger"
	"github.com/banshee-data/gridmap/internal/mapping"
	"github.com/banshee-data/gridmap/internal/version"
)

var (
	logPath      = flag.String("log", "", "CARMEN log to read (may also be given as the first argument)")
	configPath   = flag.String("config", "", "Tuning config (.json, .yaml); built-in defaults when empty")
	strict       = flag.Bool("strict", false, "Fail on malformed log records instead of skipping them")
	outPNG       = flag.String("out", "", "Write the rendered map PNG to this path")
	pgmDir       = flag.String("pgm", "", "Write a ROS map_server PGM+YAML pair into this directory")
	overlayPath  = flag.Bool("overlay-path", false, "Draw the robot trajectory on the PNG")
	overlayScans = flag.Int("overlay-scans", 0, "Draw the beams of every Nth scan on the PNG (0 disables)")
	plotsDir     = flag.String("plots", "", "Write diagnostic plots under this directory")
	dbFile       = flag.String("db", "", "Record the build in this SQLite database")
	serveAddr    = flag.String("serve", "", "Serve the map over HTTP on this address after building")
	workers      = flag.Int("workers", 1, "Integration workers (overrides config)")
	resolution   = flag.Float64("resolution", 0.1, "Cell size in metres (overrides config)")
	maxRange     = flag.Float64("max-range", 20, "Discard readings at or beyond this range (overrides config)")
	usableRange  = flag.Float64("usable-range", 20, "Shorten readings beyond this range (overrides config)")
	border       = flag.Float64("border", 2, "Padding around the data in metres (overrides config)")
	zeroFirst    = flag.Bool("zero-first-pose", false, "Anchor the map at the first robot pose (overrides config)")
	logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFile      = flag.String("log-file", "", "Also write logs to this file (rotated)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := logger.Init(*logLevel, *logFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	mapping.SetLogger(logger.Sugar)

	opts := optionsFromFlags()
	if opts.LogPath == "" {
		fmt.Fprintln(os.Stderr, "usage: gridmap [flags] <carmen.log>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, opts)
	stop()
	if err != nil {
		logger.Sugar.Errorf("gridmap: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

// optionsFromFlags collects the parsed flags. Tuning overrides are only
// recorded for flags given explicitly on the command line.
func optionsFromFlags() options {
	o := options{
		LogPath:      *logPath,
		ConfigPath:   *configPath,
		Strict:       *strict,
		OutPNG:       *outPNG,
		PGMDir:       *pgmDir,
		OverlayPath:  *overlayPath,
		OverlayScans: *overlayScans,
		PlotsDir:     *plotsDir,
		DBPath:       *dbFile,
		ServeAddr:    *serveAddr,
	}
	if o.LogPath == "" && flag.NArg() > 0 {
		o.LogPath = flag.Arg(0)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			o.Workers = workers
		case "resolution":
			o.Resolution = resolution
		case "max-range":
			o.MaxRange = maxRange
		case "usable-range":
			o.UsableRange = usableRange
		case "border":
			o.Border = border
		case "zero-first-pose":
			o.ZeroFirstPose = zeroFirst
		}
	})
	return o
}
