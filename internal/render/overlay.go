package render

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/grid"
	"github.com/banshee-data/gridmap/internal/mapping"
	"github.com/banshee-data/gridmap/internal/scan"
	"github.com/gogpu/gg"
	"gonum.org/v1/gonum/spatial/r2"
)

// Overlay colours, as 0-255 RGBA.
var (
	PathColor = [4]float64{231, 130, 132, 255}
	BeamColor = [4]float64{242, 213, 207, 100}
)

// Overlay draws world-space geometry on top of a rendered occupancy grid.
type Overlay struct {
	dc         *gg.Context
	origin     r2.Vec
	resolution float64
	height     int
}

// NewOverlay renders m and prepares to draw on it. Close releases the
// drawing context.
func NewOverlay(m *grid.Map[mapping.Occupancy]) *Overlay {
	return &Overlay{
		dc:         gg.NewContextForImage(OccupancyImage(m)),
		origin:     m.Origin,
		resolution: m.Resolution,
		height:     m.Height,
	}
}

// WorldToPixel converts a world point to image coordinates (y down).
func (o *Overlay) WorldToPixel(p r2.Vec) (x, y float64) {
	x = (p.X - o.origin.X) / o.resolution
	y = float64(o.height) - (p.Y-o.origin.Y)/o.resolution
	return x, y
}

func (o *Overlay) setColor(c [4]float64) {
	o.dc.SetRGBA(c[0]/255, c[1]/255, c[2]/255, c[3]/255)
}

// DrawPath strokes the robot trajectory through every scan's robot pose.
func (o *Overlay) DrawPath(scans []scan.LaserScan, offset geom.Pose) error {
	if len(scans) < 2 {
		return nil
	}
	o.setColor(PathColor)
	o.dc.SetLineWidth(1)
	for i := range scans {
		x, y := o.WorldToPixel(offset.Compose(scans[i].RobotPose).Translation())
		if i == 0 {
			o.dc.MoveTo(x, y)
		} else {
			o.dc.LineTo(x, y)
		}
	}
	if err := o.dc.Stroke(); err != nil {
		return fmt.Errorf("stroke path: %w", err)
	}
	return nil
}

// DrawScan strokes every usable beam of s, shortened to usableRange.
func (o *Overlay) DrawScan(s *scan.LaserScan, offset geom.Pose, maxRange, usableRange float64) error {
	laser := offset.Compose(s.LaserPose())
	effMax := min(s.Params.MaxRange, maxRange)
	lx, ly := o.WorldToPixel(laser.Translation())

	o.setColor(BeamColor)
	o.dc.SetLineWidth(1)
	drawn := 0
	for i, r32 := range s.Ranges {
		r := float64(r32)
		if math.IsNaN(r) || r < 0 || r >= effMax {
			continue
		}
		end := laser.Apply(s.Params.BeamEndpoint(i, min(r, usableRange)))
		ex, ey := o.WorldToPixel(end)
		o.dc.DrawLine(lx, ly, ex, ey)
		drawn++
	}
	if drawn == 0 {
		return nil
	}
	if err := o.dc.Stroke(); err != nil {
		return fmt.Errorf("stroke scan: %w", err)
	}
	return nil
}

// Image returns the current drawing.
func (o *Overlay) Image() image.Image {
	return o.dc.Image()
}

// SavePNG writes the drawing to path.
func (o *Overlay) SavePNG(path string) error {
	if err := o.dc.SavePNG(path); err != nil {
		return fmt.Errorf("save overlay %s: %w", path, err)
	}
	return nil
}

// EncodePNG writes the drawing to w.
func (o *Overlay) EncodePNG(w io.Writer) error {
	return o.dc.EncodePNG(w)
}

// Close releases the drawing context.
func (o *Overlay) Close() error {
	return o.dc.Close()
}
