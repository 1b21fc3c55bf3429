package render

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/grid"
	"github.com/banshee-data/gridmap/internal/mapping"
	"github.com/banshee-data/gridmap/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// 3x2 grid: bottom row (y=0) is free, unknown, occupied; top row is 0.5.
func smallGrid() *grid.Map[mapping.Occupancy] {
	m := grid.New(3, 2, 0.5, r2.Vec{X: -1, Y: 2}, mapping.Occupancy(0.5))
	m.Set(0, 0, 0)
	m.Set(1, 0, mapping.Unknown)
	m.Set(2, 0, 1)
	return m
}

func TestColorForOccupancy(t *testing.T) {
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, ColorForOccupancy(0))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, ColorForOccupancy(1))
	assert.Equal(t, UnknownColor, ColorForOccupancy(mapping.Unknown))
	assert.Equal(t, uint8(127), ColorForOccupancy(0.5).R)
}

func TestOccupancyImage_FlipsRows(t *testing.T) {
	img := OccupancyImage(smallGrid())
	require.Equal(t, 3, img.Bounds().Dx())
	require.Equal(t, 2, img.Bounds().Dy())

	// Grid row 0 lands on the bottom image row.
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 1))
	assert.Equal(t, UnknownColor, img.RGBAAt(1, 1))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(2, 1))
	assert.Equal(t, uint8(127), img.RGBAAt(0, 0).R)
}

func TestWritePGM(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePGM(&buf, smallGrid(), DefaultThresholds))

	out := buf.Bytes()
	header := "P5\n# gridmap 0.500 m/pix\n3 2\n255\n"
	require.True(t, bytes.HasPrefix(out, []byte(header)), "header: %q", out)
	pixels := out[len(header):]
	assert.Equal(t, []byte{
		PGMUnknown, PGMUnknown, PGMUnknown, // top row: 0.5 is between thresholds
		PGMFree, PGMUnknown, PGMOccupied,
	}, pixels)
}

func TestWriteROSMap(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "maps")
	yamlPath, err := WriteROSMap(dir, "intel", smallGrid(), DefaultThresholds)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "intel.yaml"), yamlPath)

	meta, err := ReadROSMapMeta(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "intel.pgm", meta.Image)
	assert.Equal(t, 0.5, meta.Resolution)
	assert.Equal(t, [3]float64{-1, 2, 0}, meta.Origin)
	assert.Equal(t, 0.65, meta.OccupiedThresh)
	assert.Equal(t, 0.196, meta.FreeThresh)
	assert.Zero(t, meta.Negate)

	raw, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "origin: [-1, 2, 0]"), "yaml:\n%s", raw)

	_, err = os.Stat(filepath.Join(dir, "intel.pgm"))
	assert.NoError(t, err)
}

func TestOverlay_WorldToPixel(t *testing.T) {
	m := grid.New(100, 50, 0.1, r2.Vec{X: -5, Y: -2.5}, mapping.Unknown)
	o := NewOverlay(m)
	defer o.Close()

	x, y := o.WorldToPixel(r2.Vec{X: 0, Y: 0})
	assert.InDelta(t, 50, x, 1e-9)
	assert.InDelta(t, 25, y, 1e-9)

	x, y = o.WorldToPixel(r2.Vec{X: -5, Y: 2.5})
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)
}

func columnChanged(t *testing.T, o *Overlay, x, y0, y1 int) bool {
	t.Helper()
	img := o.Image()
	for y := y0; y <= y1; y++ {
		r, g, b, _ := img.At(x, y).RGBA()
		if uint8(r>>8) != UnknownColor.R || uint8(g>>8) != UnknownColor.G || uint8(b>>8) != UnknownColor.B {
			return true
		}
	}
	return false
}

func TestOverlay_DrawPathAndScan(t *testing.T) {
	m := grid.New(60, 60, 0.1, r2.Vec{X: -3, Y: -3}, mapping.Unknown)

	scans := []scan.LaserScan{
		{RobotPose: geom.NewPose(-2, 0.05, 0), Params: scan.LaserParams{MaxRange: 10}},
		{RobotPose: geom.NewPose(2, 0.05, 0), Params: scan.LaserParams{MaxRange: 10}},
	}

	path := NewOverlay(m)
	defer path.Close()
	require.NoError(t, path.DrawPath(scans, geom.Identity()))
	assert.True(t, columnChanged(t, path, 30, 27, 31), "path not drawn")
	assert.False(t, columnChanged(t, path, 5, 0, 59), "path drawn outside its extent")

	beam := scan.LaserScan{
		RobotPose: geom.NewPose(0.05, -2, 0),
		Params:    scan.LaserParams{FirstBeamAngle: 1.5707963, MaxRange: 10},
		Ranges:    []float32{4},
	}
	scanOverlay := NewOverlay(m)
	defer scanOverlay.Close()
	require.NoError(t, scanOverlay.DrawScan(&beam, geom.Identity(), 10, 10))
	assert.True(t, columnChanged(t, scanOverlay, 30, 28, 32) || columnChanged(t, scanOverlay, 31, 28, 32), "beam not drawn")

	var buf bytes.Buffer
	require.NoError(t, scanOverlay.EncodePNG(&buf))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 60, decoded.Bounds().Dx())
}

func TestOverlay_NothingToDraw(t *testing.T) {
	m := grid.New(10, 10, 1, r2.Vec{}, mapping.Unknown)
	o := NewOverlay(m)
	defer o.Close()

	assert.NoError(t, o.DrawPath(nil, geom.Identity()))
	s := scan.LaserScan{Params: scan.LaserParams{MaxRange: 5}, Ranges: []float32{9}}
	assert.NoError(t, o.DrawScan(&s, geom.Identity(), 5, 5))

	path := filepath.Join(t.TempDir(), "blank.png")
	require.NoError(t, o.SavePNG(path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
