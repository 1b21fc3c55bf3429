// Package render turns occupancy grids into images: a colour PNG with optional
// trajectory and scan overlays, and ROS map_server style PGM+YAML exports.
//
// Grid row 0 is the minimum world Y while image row 0 is the top, so every
// exporter here flips rows.
package render

import (
	"image"
	"image/color"

	"github.com/banshee-data/gridmap/internal/grid"
	"github.com/banshee-data/gridmap/internal/mapping"
)

// UnknownColor paints cells no beam reached.
var UnknownColor = color.RGBA{R: 140, G: 170, B: 238, A: 255}

// ColorForOccupancy maps free to white and occupied to black.
func ColorForOccupancy(o mapping.Occupancy) color.RGBA {
	if !o.IsKnown() {
		return UnknownColor
	}
	v := float32(o)
	if v > 1 {
		v = 1
	}
	c := uint8(255 - 255*v)
	return color.RGBA{R: c, G: c, B: c, A: 255}
}

// OccupancyImage renders m one pixel per cell.
func OccupancyImage(m *grid.Map[mapping.Occupancy]) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	m.Each(func(x, y int, o *mapping.Occupancy) {
		img.SetRGBA(x, m.Height-1-y, ColorForOccupancy(*o))
	})
	return img
}
