package mapping

import (
	"math"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/scan"
	"gonum.org/v1/gonum/spatial/r2"
)

// Bounds is a running axis-aligned box in world coordinates. The zero value
// is not empty-safe; start from NewBounds.
type Bounds struct {
	Min r2.Vec
	Max r2.Vec
}

// NewBounds returns an empty box (Min at +Inf, Max at -Inf).
func NewBounds() Bounds {
	return Bounds{
		Min: r2.Vec{X: math.Inf(1), Y: math.Inf(1)},
		Max: r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)},
	}
}

// Empty reports whether no point has been added.
func (b Bounds) Empty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y
}

// Add grows the box to include p. Non-finite points are ignored.
func (b *Bounds) Add(p r2.Vec) {
	if !finite(p) {
		return
	}
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
}

// Union grows the box to include o.
func (b *Bounds) Union(o Bounds) {
	if o.Empty() {
		return
	}
	b.Add(o.Min)
	b.Add(o.Max)
}

// Expand returns the box grown by margin on every side.
func (b Bounds) Expand(margin float64) Bounds {
	m := r2.Vec{X: margin, Y: margin}
	return Bounds{Min: r2.Sub(b.Min, m), Max: r2.Add(b.Max, m)}
}

// Size returns the box extent. An empty box has zero size.
func (b Bounds) Size() r2.Vec {
	if b.Empty() {
		return r2.Vec{}
	}
	return r2.Sub(b.Max, b.Min)
}

// AddScan grows the box to cover one scan: the robot and laser positions,
// and the endpoint of every beam that would be integrated, shortened to the
// usable range exactly as integration shortens it.
func (b *Bounds) AddScan(offset geom.Pose, s *scan.LaserScan, maxRange, usableRange float64) {
	robot := offset.Compose(s.RobotPose)
	laser := robot.Compose(s.Params.SensorOffset)
	b.Add(robot.Translation())
	b.Add(laser.Translation())

	effMax := math.Min(s.Params.MaxRange, maxRange)
	effUsable := math.Min(usableRange, effMax)
	for i, r32 := range s.Ranges {
		r := float64(r32)
		if !(r >= 0 && r < effMax) {
			continue
		}
		r = math.Min(r, effUsable)
		b.Add(laser.Apply(s.Params.BeamEndpoint(i, r)))
	}
}

// ResolveWorldOffset returns the world frame correction for a build: the
// inverse of the first scan's robot pose when ZeroFirstPose is set, otherwise
// cfg.Offset. The result is computed once per build and passed explicitly.
func ResolveWorldOffset(scans []scan.LaserScan, cfg *Config) geom.Pose {
	if cfg.ZeroFirstPose && len(scans) > 0 {
		return scans[0].RobotPose.Inverse()
	}
	return cfg.Offset
}

func finite(p r2.Vec) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
