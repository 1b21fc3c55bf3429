package mapping

import (
	"github.com/banshee-data/gridmap/internal/grid"
	"gonum.org/v1/gonum/stat"
)

// Occupancy is the estimated probability that a cell is occupied, in [0,1],
// or Unknown for cells no beam ever reached.
type Occupancy float32

// Unknown marks a never-observed cell.
const Unknown Occupancy = -1

// IsKnown reports whether o is a probability rather than Unknown.
func (o Occupancy) IsKnown() bool {
	return o >= 0
}

// Occupancy resolves one cell: hits over beams that visited the cell, or
// Unknown when no beam did. Because Misses already includes the beams that
// ended in the cell, this is hits / (hits + pass-throughs).
func (c FrequencyCell) Occupancy() Occupancy {
	if c.Misses <= 0 {
		return Unknown
	}
	if c.Hits >= c.Misses {
		return 1
	}
	return Occupancy(float32(c.Hits) / float32(c.Misses))
}

// Resolve converts accumulated counts into an occupancy grid with identical
// geometry.
func Resolve(fm *FrequencyMap) *grid.Map[Occupancy] {
	return grid.MapOf(fm.Map, FrequencyCell.Occupancy)
}

// OccupancyStats summarises a resolved grid.
type OccupancyStats struct {
	Cells         int     `json:"cells"`
	Known         int     `json:"known"`
	Unknown       int     `json:"unknown"`
	Occupied      int     `json:"occupied"` // known cells at or above the occupied threshold
	Free          int     `json:"free"`     // known cells at or below the free threshold
	MeanOccupancy float64 `json:"mean_occupancy"`
	StdOccupancy  float64 `json:"std_occupancy"`
}

// Summarize computes OccupancyStats for m. Cells strictly between the two
// thresholds count as neither occupied nor free.
func Summarize(m *grid.Map[Occupancy], occupiedThresh, freeThresh float64) OccupancyStats {
	st := OccupancyStats{Cells: m.Len()}
	known := make([]float64, 0, m.Len())
	for _, o := range m.Cells() {
		if !o.IsKnown() {
			st.Unknown++
			continue
		}
		v := float64(o)
		known = append(known, v)
		switch {
		case v >= occupiedThresh:
			st.Occupied++
		case v <= freeThresh:
			st.Free++
		}
	}
	st.Known = len(known)
	if len(known) > 0 {
		st.MeanOccupancy = stat.Mean(known, nil)
	}
	if len(known) > 1 {
		st.StdOccupancy = stat.StdDev(known, nil)
	}
	return st
}
