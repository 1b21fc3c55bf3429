package mapping

import (
	"testing"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestFrequencyCell_Occupancy(t *testing.T) {
	tests := []struct {
		name string
		cell FrequencyCell
		want Occupancy
	}{
		{"never observed", FrequencyCell{}, Unknown},
		{"hits without visits", FrequencyCell{Hits: 3}, Unknown},
		{"free", FrequencyCell{Misses: 4}, 0},
		{"always ends here", FrequencyCell{Hits: 2, Misses: 2}, 1},
		{"half", FrequencyCell{Hits: 1, Misses: 2}, 0.5},
		{"over-counted hits clamp", FrequencyCell{Hits: 5, Misses: 2}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, float64(tc.want), float64(tc.cell.Occupancy()), 1e-6)
		})
	}
}

func TestResolve_HitOnceMissedTwice(t *testing.T) {
	fm := newTestMap()

	// One beam ends in the target cell, two longer beams pass through it.
	short := singleBeam(geom.NewPose(0.1, 0.1, 0), 2, 20)
	long := singleBeam(geom.NewPose(0.1, 0.1, 0), 4, 20)
	fm.IntegrateScan(&short, geom.Identity(), 20, 20, 1)
	fm.IntegrateScan(&long, geom.Identity(), 20, 20, 1)
	fm.IntegrateScan(&long, geom.Identity(), 20, 20, 1)

	target := fm.WorldToGrid(r2.Vec{X: 2.1, Y: 0.1})
	occ := Resolve(fm)
	v, ok := occ.Cell(target.X, target.Y)
	require.True(t, ok)
	assert.InDelta(t, 1.0/3.0, float64(v), 1e-6)

	// A cell no beam reached stays unknown.
	v, ok = occ.Cell(0, 0)
	require.True(t, ok)
	assert.Equal(t, Unknown, v)
	assert.False(t, v.IsKnown())
}

func TestResolve_PreservesGeometry(t *testing.T) {
	fm := NewFrequencyMap(7, 3, 0.25, r2.Vec{X: 1, Y: -2})
	occ := Resolve(fm)

	assert.True(t, occ.SameGeometry(7, 3, 0.25, r2.Vec{X: 1, Y: -2}))
	assert.Equal(t, fm.Len(), occ.Len())
	for _, o := range occ.Cells() {
		assert.Equal(t, Unknown, o)
	}
}

func TestSummarize(t *testing.T) {
	fm := NewFrequencyMap(2, 2, 1, r2.Vec{})
	fm.Set(0, 0, FrequencyCell{Hits: 1, Misses: 1}) // 1.0
	fm.Set(1, 0, FrequencyCell{Misses: 3})          // 0.0
	fm.Set(0, 1, FrequencyCell{Hits: 1, Misses: 2}) // 0.5

	st := Summarize(Resolve(fm), 0.65, 0.196)
	assert.Equal(t, 4, st.Cells)
	assert.Equal(t, 3, st.Known)
	assert.Equal(t, 1, st.Unknown)
	assert.Equal(t, 1, st.Occupied)
	assert.Equal(t, 1, st.Free)
	assert.InDelta(t, 0.5, st.MeanOccupancy, 1e-9)
	assert.InDelta(t, 0.5, st.StdOccupancy, 1e-9)
}

func TestSummarize_AllUnknown(t *testing.T) {
	st := Summarize(Resolve(NewFrequencyMap(3, 3, 1, r2.Vec{})), 0.65, 0.196)
	assert.Equal(t, 9, st.Unknown)
	assert.Zero(t, st.Known)
	assert.Zero(t, st.MeanOccupancy)
}
