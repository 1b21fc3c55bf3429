package mapping

import (
	"fmt"
	"math"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/grid"
	"github.com/banshee-data/gridmap/internal/scan"
	"gonum.org/v1/gonum/spatial/r2"
)

// FrequencyCell counts observations of one cell. Misses counts every beam
// that visited the cell, including beams that ended in it; Hits counts the
// beams that ended in it with an unclipped reading. Hits <= Misses always
// holds for counts produced by IntegrateScan.
type FrequencyCell struct {
	Hits   int32
	Misses int32
}

// FrequencyMap accumulates hit/miss counts over a fixed grid.
type FrequencyMap struct {
	*grid.Map[FrequencyCell]
}

// NewFrequencyMap allocates a zeroed width×height map.
func NewFrequencyMap(width, height int, resolution float64, origin r2.Vec) *FrequencyMap {
	return &FrequencyMap{Map: grid.New(width, height, resolution, origin, FrequencyCell{})}
}

// FrequencyMapFromCells wraps previously recorded counts, for example a
// restored snapshot. cells must hold width*height entries in row-major order.
func FrequencyMapFromCells(width, height int, resolution float64, origin r2.Vec, cells []FrequencyCell) (*FrequencyMap, error) {
	m, err := grid.FromCells(width, height, resolution, origin, cells)
	if err != nil {
		return nil, err
	}
	return &FrequencyMap{Map: m}, nil
}

// NewEmptyLike allocates a zeroed map with the geometry of fm.
func (fm *FrequencyMap) NewEmptyLike() *FrequencyMap {
	out := NewFrequencyMap(fm.Width, fm.Height, fm.Resolution, fm.Origin)
	out.SetExcludeOrigin(fm.ExcludeOrigin())
	return out
}

// IntegrationStats summarises one IntegrateScan call.
type IntegrationStats struct {
	Beams     int // readings examined
	Discarded int // readings at or beyond the max range, negative or NaN
	Clipped   int // readings shortened to the usable range
	Hits      int // endpoints counted as hits
	OutOfGrid int // used beams whose endpoint fell outside the grid
}

// Add accumulates o into s.
func (s *IntegrationStats) Add(o IntegrationStats) {
	s.Beams += o.Beams
	s.Discarded += o.Discarded
	s.Clipped += o.Clipped
	s.Hits += o.Hits
	s.OutOfGrid += o.OutOfGrid
}

// IntegrateScan traces every usable beam of s through the map.
//
// The laser pose in the map frame is offset ∘ robot pose ∘ sensor offset.
// A reading r is discarded unless 0 <= r < min(sensor max, maxRange); a NaN
// reading or range fails that test. Otherwise it is shortened to the usable
// range, every cell on the line from the laser to the endpoint gains `gain`
// misses, and the endpoint also gains `gain` hits when the reading was not
// shortened. Cells outside the grid are skipped.
func (fm *FrequencyMap) IntegrateScan(s *scan.LaserScan, offset geom.Pose, maxRange, usableRange float64, gain int32) IntegrationStats {
	var st IntegrationStats

	laserPose := offset.Compose(s.LaserPose())
	effMax := math.Min(s.Params.MaxRange, maxRange)
	effUsable := math.Min(usableRange, effMax)
	start := fm.WorldToGrid(laserPose.Translation())

	for i, r32 := range s.Ranges {
		st.Beams++
		r := float64(r32)
		if !(r >= 0 && r < effMax) {
			st.Discarded++
			continue
		}
		clipped := false
		if r > effUsable {
			r = effUsable
			clipped = true
			st.Clipped++
		}

		end := fm.WorldToGrid(laserPose.Apply(s.Params.BeamEndpoint(i, r)))
		for c := range grid.Line(start, end) {
			if cell := fm.CellPtr(c.X, c.Y); cell != nil {
				cell.Misses += gain
			}
		}

		cell := fm.CellPtr(end.X, end.Y)
		if cell == nil {
			st.OutOfGrid++
			continue
		}
		if !clipped {
			cell.Hits += gain
			st.Hits++
		}
	}
	return st
}

// Merge adds other's counts into fm cell by cell. Both maps must share the
// same geometry.
func (fm *FrequencyMap) Merge(other *FrequencyMap) error {
	if !fm.SameGeometry(other.Width, other.Height, other.Resolution, other.Origin) {
		return fmt.Errorf("merge %dx%d@%v into %dx%d@%v: %w",
			other.Width, other.Height, other.Origin, fm.Width, fm.Height, fm.Origin, ErrGeometryMismatch)
	}
	dst := fm.Cells()
	for i, c := range other.Cells() {
		dst[i].Hits += c.Hits
		dst[i].Misses += c.Misses
	}
	return nil
}

// Totals returns the summed hit and miss counts.
func (fm *FrequencyMap) Totals() (hits, misses int64) {
	for _, c := range fm.Cells() {
		hits += int64(c.Hits)
		misses += int64(c.Misses)
	}
	return hits, misses
}
