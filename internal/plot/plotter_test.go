package plot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/mapping"
	"github.com/banshee-data/gridmap/internal/scan"
)

func testScans() []scan.LaserScan {
	var scans []scan.LaserScan
	for i := 0; i < 6; i++ {
		scans = append(scans, scan.LaserScan{
			RobotPose: geom.NewPose(float64(i)*0.5, 0.2*float64(i), 0),
			Params: scan.LaserParams{
				SensorOffset:   geom.Identity(),
				FirstBeamAngle: -1.5,
				AngularStep:    0.5,
				MaxRange:       10,
			},
			Ranges: []float32{2, 2.5, 3, 3.5, 4, 4.5, 5},
		})
	}
	return scans
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Errorf("%s is empty", path)
	}
}

func TestBuildPlotter_Lifecycle(t *testing.T) {
	bp := NewBuildPlotter()
	if bp.IsEnabled() {
		t.Fatal("new plotter should be idle")
	}

	// Samples before Start are dropped.
	bp.Sample(0, nil, geom.Identity(), mapping.IntegrationStats{})
	if bp.SampleCount() != 0 {
		t.Errorf("SampleCount = %d, want 0", bp.SampleCount())
	}

	dir := filepath.Join(t.TempDir(), "plots")
	if err := bp.Start(dir); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !bp.IsEnabled() || bp.OutputDir() != dir {
		t.Fatalf("plotter not started: enabled=%v dir=%q", bp.IsEnabled(), bp.OutputDir())
	}

	scans := testScans()
	mc := mapping.NewMapCreator(mapping.DefaultConfig().WithWorkers(2))
	mc.SetObserver(bp.Sample)
	fm, err := mc.Build(scans)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	bp.Stop()

	if bp.SampleCount() != len(scans) {
		t.Errorf("SampleCount = %d, want %d", bp.SampleCount(), len(scans))
	}
	bp.Sample(99, nil, geom.Identity(), mapping.IntegrationStats{})
	if bp.SampleCount() != len(scans) {
		t.Error("sample recorded after Stop")
	}

	n, err := bp.GeneratePlots(fm)
	if err != nil {
		t.Fatalf("GeneratePlots: %v", err)
	}
	if n != 4 {
		t.Errorf("generated %d plots, want 4", n)
	}
	for _, name := range []string{"trajectory.png", "integration.png", "counts_hist.png", "occupancy_hist.png"} {
		assertFile(t, filepath.Join(dir, name))
	}
}

func TestBuildPlotter_NoOutputDir(t *testing.T) {
	bp := NewBuildPlotter()
	if _, err := bp.GeneratePlots(nil); err == nil {
		t.Error("expected error without an output dir")
	}
}

func TestBuildPlotter_NothingRecorded(t *testing.T) {
	bp := NewBuildPlotter()
	if err := bp.Start(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	n, err := bp.GeneratePlots(nil)
	if err != nil {
		t.Fatalf("GeneratePlots: %v", err)
	}
	if n != 0 {
		t.Errorf("generated %d plots, want 0", n)
	}
}

func TestTrajectoryPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "path.png")
	if err := TrajectoryPlot(testScans(), geom.NewPose(1, 1, 0), path); err != nil {
		t.Fatalf("TrajectoryPlot: %v", err)
	}
	assertFile(t, path)

	if err := TrajectoryPlot(nil, geom.Identity(), path); err == nil {
		t.Error("expected error for empty trajectory")
	}
}

func TestHistograms_NoData(t *testing.T) {
	fm := mapping.NewFrequencyMap(4, 4, 0.1, testScans()[0].RobotPose.Translation())
	dir := t.TempDir()
	if err := CountHistogram(fm, filepath.Join(dir, "c.png")); err == nil {
		t.Error("expected no-data error for an empty count map")
	}
	if err := OccupancyHistogram(mapping.Resolve(fm), filepath.Join(dir, "o.png")); err == nil {
		t.Error("expected no-data error for an all-unknown map")
	}
}

func TestMakePlotOutputDir(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	tests := []struct {
		logFile string
		want    string
	}{
		{"/data/intel.gfs.log", filepath.Join("out", "intel.gfs", "20240309_140507")},
		{"fr079", filepath.Join("out", "fr079", "20240309_140507")},
		{"", filepath.Join("out", "run", "20240309_140507")},
	}
	for _, tt := range tests {
		if got := MakePlotOutputDir("out", tt.logFile, now); got != tt.want {
			t.Errorf("MakePlotOutputDir(%q) = %q, want %q", tt.logFile, got, tt.want)
		}
	}
}

func TestGenerateColors(t *testing.T) {
	if generateColors(0) != nil {
		t.Error("expected nil palette for n=0")
	}
	colors := generateColors(4)
	if len(colors) != 4 {
		t.Fatalf("len = %d, want 4", len(colors))
	}
	seen := map[[3]uint32]bool{}
	for _, c := range colors {
		r, g, b, a := c.RGBA()
		if a != 0xffff {
			t.Errorf("colour %v not opaque", c)
		}
		seen[[3]uint32{r, g, b}] = true
	}
	if len(seen) != 4 {
		t.Errorf("palette has %d distinct colours, want 4", len(seen))
	}
}
