package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Pose is a rigid transform in the plane: rotate by Theta (radians), then
// translate by (X, Y).
type Pose struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Theta float64 `json:"theta" yaml:"theta"`
}

// NewPose returns a pose with its heading wrapped into (-π, π].
func NewPose(x, y, theta float64) Pose {
	return Pose{X: x, Y: y, Theta: NormalizeAngle(theta)}
}

// Identity returns the transform that leaves every point unchanged.
func Identity() Pose {
	return Pose{}
}

// Translation returns the translational part of the pose.
func (p Pose) Translation() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Compose returns p∘q: the transform that applies q first and then p.
func (p Pose) Compose(q Pose) Pose {
	sin, cos := math.Sincos(p.Theta)
	return Pose{
		X:     p.X + cos*q.X - sin*q.Y,
		Y:     p.Y + sin*q.X + cos*q.Y,
		Theta: NormalizeAngle(p.Theta + q.Theta),
	}
}

// Inverse returns the transform such that p.Inverse().Compose(p) is the
// identity.
func (p Pose) Inverse() Pose {
	sin, cos := math.Sincos(p.Theta)
	return Pose{
		X:     -(cos*p.X + sin*p.Y),
		Y:     -(-sin*p.X + cos*p.Y),
		Theta: NormalizeAngle(-p.Theta),
	}
}

// Apply maps v from the pose's local frame into its parent frame.
func (p Pose) Apply(v r2.Vec) r2.Vec {
	sin, cos := math.Sincos(p.Theta)
	return r2.Vec{
		X: p.X + cos*v.X - sin*v.Y,
		Y: p.Y + sin*v.X + cos*v.Y,
	}
}

// IsIdentity reports whether p leaves points unchanged.
func (p Pose) IsIdentity() bool {
	return p.X == 0 && p.Y == 0 && NormalizeAngle(p.Theta) == 0
}

// IsFinite reports whether every component of p is a finite number.
func (p Pose) IsFinite() bool {
	return finite(p.X) && finite(p.Y) && finite(p.Theta)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ApproxEqual compares two poses component-wise within tol. Headings are
// compared on the circle so that -π and π are equal.
func (p Pose) ApproxEqual(q Pose, tol float64) bool {
	if math.Abs(p.X-q.X) > tol || math.Abs(p.Y-q.Y) > tol {
		return false
	}
	return math.Abs(NormalizeAngle(p.Theta-q.Theta)) <= tol
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.4f)", p.X, p.Y, p.Theta)
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	if a > -math.Pi && a <= math.Pi {
		return a
	}
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
