package grid

import (
	"iter"
	"math"
)

// Line yields the cells of the integer line from a to b, both endpoints
// included, with no duplicates. Consecutive cells are 8-connected.
//
// The walk is always computed in one canonical direction so that Line(b, a)
// is exactly Line(a, b) reversed, including on error-term ties.
func Line(a, b Coord) iter.Seq[Coord] {
	return func(yield func(Coord) bool) {
		if !canonical(a, b) {
			walkReverse(b, a, yield)
			return
		}
		walk(a, b, yield)
	}
}

// LinePoints is Line collected into a slice.
func LinePoints(a, b Coord) []Coord {
	pts := make([]Coord, 0, lineLen(a, b))
	for c := range Line(a, b) {
		pts = append(pts, c)
	}
	return pts
}

// canonical orders endpoints by x, then y.
func canonical(a, b Coord) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y <= b.Y
}

// stepper is the state of an all-octant integer Bresenham walk.
type stepper struct {
	x, y   int
	bx, by int
	dx, dy int
	sx, sy int
	e      int
}

func newStepper(a, b Coord) stepper {
	s := stepper{x: a.X, y: a.Y, bx: b.X, by: b.Y, dx: abs(b.X - a.X), dy: abs(b.Y - a.Y), sx: 1, sy: 1}
	if a.X > b.X {
		s.sx = -1
	}
	if a.Y > b.Y {
		s.sy = -1
	}
	s.e = -s.dy / 2
	if s.dx > s.dy {
		s.e = s.dx / 2
	}
	return s
}

func (s *stepper) cur() Coord { return Coord{s.x, s.y} }

func (s *stepper) done() bool { return s.x == s.bx && s.y == s.by }

func (s *stepper) step() {
	e2 := s.e
	if e2 > -s.dx {
		s.e -= s.dy
		s.x += s.sx
	}
	if e2 < s.dy {
		s.e += s.dx
		s.y += s.sy
	}
}

// walk yields the cells from a to b.
func walk(a, b Coord, yield func(Coord) bool) {
	s := newStepper(a, b)
	for {
		if !yield(s.cur()) || s.done() {
			return
		}
		s.step()
	}
}

// walkReverse yields the cells of walk(a, b) from b back to a. A first pass
// checkpoints the stepper every k cells; each chunk is then replayed into a
// k-cell buffer and yielded backwards, so memory grows with the square root
// of the line length.
func walkReverse(a, b Coord, yield func(Coord) bool) {
	k := chunkLen(lineLen(a, b))

	var markBuf [8]stepper
	marks := markBuf[:0]
	s := newStepper(a, b)
	for i := 0; ; i++ {
		if i%k == 0 {
			marks = append(marks, s)
		}
		if s.done() {
			break
		}
		s.step()
	}

	var cellBuf [minChunk]Coord
	buf := cellBuf[:0]
	for j := len(marks) - 1; j >= 0; j-- {
		s := marks[j]
		buf = buf[:0]
		for n := 0; n < k; n++ {
			buf = append(buf, s.cur())
			if s.done() {
				break
			}
			s.step()
		}
		for i := len(buf) - 1; i >= 0; i-- {
			if !yield(buf[i]) {
				return
			}
		}
	}
}

const minChunk = 64

func chunkLen(n int) int {
	k := int(math.Sqrt(float64(n)))
	if k < minChunk {
		return minChunk
	}
	return k
}

func lineLen(a, b Coord) int {
	return max(abs(b.X-a.X), abs(b.Y-a.Y)) + 1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
