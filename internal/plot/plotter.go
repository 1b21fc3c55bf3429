// Package plot writes diagnostic PNG plots for a map build: the robot
// trajectory, per-scan integration counters, and the distribution of
// per-cell counts and occupancy.
package plot

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/grid"
	"github.com/banshee-data/gridmap/internal/mapping"
	"github.com/banshee-data/gridmap/internal/scan"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ScanSample is the integration outcome of one scan.
type ScanSample struct {
	Index int
	Pose  geom.Pose // robot pose in the map frame
	Stats mapping.IntegrationStats
}

// BuildPlotter records per-scan integration results during a build and
// renders them afterwards. Sample is safe to call from several goroutines.
type BuildPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	samples   []ScanSample
}

// NewBuildPlotter returns an idle plotter; call Start to begin recording.
func NewBuildPlotter() *BuildPlotter {
	return &BuildPlotter{}
}

// Start creates outputDir and begins recording.
func (bp *BuildPlotter) Start(outputDir string) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	bp.outputDir = outputDir
	bp.enabled = true
	bp.samples = nil
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (bp *BuildPlotter) Stop() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (bp *BuildPlotter) IsEnabled() bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.enabled
}

// Sample records one integrated scan. It matches mapping.ScanObserver.
func (bp *BuildPlotter) Sample(index int, s *scan.LaserScan, pose geom.Pose, st mapping.IntegrationStats) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if !bp.enabled {
		return
	}
	bp.samples = append(bp.samples, ScanSample{Index: index, Pose: pose, Stats: st})
}

// SampleCount returns the number of recorded scans.
func (bp *BuildPlotter) SampleCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.samples)
}

// OutputDir returns the current output directory for plots.
func (bp *BuildPlotter) OutputDir() string {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.outputDir
}

// GeneratePlots writes trajectory.png and integration.png from the recorded
// samples, plus counts_hist.png and occupancy_hist.png when fm is not nil.
// Returns the number of plots generated.
func (bp *BuildPlotter) GeneratePlots(fm *mapping.FrequencyMap) (int, error) {
	bp.mu.Lock()
	samples := append([]ScanSample(nil), bp.samples...)
	dir := bp.outputDir
	bp.mu.Unlock()

	if dir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}

	sort.Slice(samples, func(a, b int) bool {
		return samples[a].Index < samples[b].Index
	})

	count := 0
	if len(samples) > 0 {
		if err := trajectoryPlot(samples, filepath.Join(dir, "trajectory.png")); err != nil {
			return count, err
		}
		count++
		if err := integrationPlot(samples, filepath.Join(dir, "integration.png")); err != nil {
			return count, err
		}
		count++
	}
	if fm != nil {
		if err := CountHistogram(fm, filepath.Join(dir, "counts_hist.png")); err != nil {
			return count, err
		}
		count++
		if err := OccupancyHistogram(mapping.Resolve(fm), filepath.Join(dir, "occupancy_hist.png")); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// TrajectoryPlot writes the robot path of scans in the frame given by offset.
func TrajectoryPlot(scans []scan.LaserScan, offset geom.Pose, path string) error {
	samples := make([]ScanSample, len(scans))
	for i := range scans {
		samples[i] = ScanSample{Index: i, Pose: offset.Compose(scans[i].RobotPose)}
	}
	return trajectoryPlot(samples, path)
}

func trajectoryPlot(samples []ScanSample, path string) error {
	if len(samples) == 0 {
		return fmt.Errorf("no poses to plot")
	}
	p := plot.New()
	p.Title.Text = "Robot Trajectory"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i] = plotter.XY{X: s.Pose.X, Y: s.Pose.Y}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 231, G: 130, B: 132, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)

	start, err := plotter.NewScatter(pts[:1])
	if err != nil {
		return err
	}
	start.Color = color.RGBA{G: 128, A: 255}
	start.Radius = vg.Points(4)
	p.Add(start)
	p.Legend.Add("path", line)
	p.Legend.Add("start", start)
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	return nil
}

// integrationPlot draws one line per counter against scan index.
func integrationPlot(samples []ScanSample, path string) error {
	p := plot.New()
	p.Title.Text = "Integration per Scan"
	p.X.Label.Text = "Scan"
	p.Y.Label.Text = "Beams"

	series := []struct {
		name string
		get  func(mapping.IntegrationStats) int
	}{
		{"hits", func(s mapping.IntegrationStats) int { return s.Hits }},
		{"discarded", func(s mapping.IntegrationStats) int { return s.Discarded }},
		{"clipped", func(s mapping.IntegrationStats) int { return s.Clipped }},
		{"out of grid", func(s mapping.IntegrationStats) int { return s.OutOfGrid }},
	}
	colors := generateColors(len(series))

	for i, ser := range series {
		pts := make(plotter.XYs, len(samples))
		for j, s := range samples {
			pts[j] = plotter.XY{X: float64(s.Index), Y: float64(ser.get(s.Stats))}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(ser.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save integration plot: %w", err)
	}
	return nil
}

// CountHistogram writes the distribution of per-cell visit counts over
// visited cells.
func CountHistogram(fm *mapping.FrequencyMap, path string) error {
	var vals plotter.Values
	for _, c := range fm.Cells() {
		if c.Misses > 0 {
			vals = append(vals, float64(c.Misses))
		}
	}
	return histogram(vals, "Visits per Observed Cell", "Visits", path)
}

// OccupancyHistogram writes the distribution of known occupancy values.
func OccupancyHistogram(m *grid.Map[mapping.Occupancy], path string) error {
	var vals plotter.Values
	for _, o := range m.Cells() {
		if o.IsKnown() {
			vals = append(vals, float64(o))
		}
	}
	return histogram(vals, "Occupancy of Known Cells", "Occupancy", path)
}

func histogram(vals plotter.Values, title, xLabel, path string) error {
	if len(vals) == 0 {
		return fmt.Errorf("%s: no data", title)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Cells"

	h, err := plotter.NewHist(vals, 40)
	if err != nil {
		return err
	}
	h.FillColor = color.RGBA{R: 140, G: 170, B: 238, A: 255}
	p.Add(h)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}

// generateColors creates a palette of distinct colors for series lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// MakePlotOutputDir returns a timestamped output directory for plots:
// <baseDir>/<log basename>/<timestamp>.
func MakePlotOutputDir(baseDir, logFile string, now time.Time) string {
	ts := now.Format("20060102_150405")
	base := filepath.Base(logFile)
	name := base[:len(base)-len(filepath.Ext(base))]
	if name == "" || name == "." {
		name = "run"
	}
	return filepath.Join(baseDir, name, ts)
}
