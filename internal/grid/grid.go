// Package grid provides a dense, fixed-size 2D grid anchored in world space and
// the integer line rasterizer used to walk it.
//
// Cells are stored row-major in a single slice indexed y*Width+x. Cell (0,0)
// covers the square whose minimum corner is Origin; row 0 is the minimum-Y row.
package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Coord addresses a cell. It is valid when 0 <= X < Width and 0 <= Y < Height.
type Coord struct {
	X, Y int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Map is a width×height grid of T covering a rectangle of world space.
// Geometry is fixed at construction.
type Map[T any] struct {
	Resolution float64 // world units per cell side, > 0
	Origin     r2.Vec  // world position of the minimum corner of cell (0,0)
	Width      int
	Height     int

	cells         []T
	excludeOrigin bool
}

// New allocates a grid with every cell set to fill. It panics on non-positive
// resolution or negative dimensions.
func New[T any](width, height int, resolution float64, origin r2.Vec, fill T) *Map[T] {
	if !(resolution > 0) {
		panic(fmt.Sprintf("grid: resolution must be positive, got %v", resolution))
	}
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("grid: negative size %dx%d", width, height))
	}
	cells := make([]T, width*height)
	for i := range cells {
		cells[i] = fill
	}
	return &Map[T]{
		Resolution: resolution,
		Origin:     origin,
		Width:      width,
		Height:     height,
		cells:      cells,
	}
}

// FromCells builds a grid around an existing row-major buffer. The buffer is
// used directly, not copied.
func FromCells[T any](width, height int, resolution float64, origin r2.Vec, cells []T) (*Map[T], error) {
	if !(resolution > 0) {
		return nil, fmt.Errorf("resolution must be positive, got %v", resolution)
	}
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("negative size %dx%d", width, height)
	}
	if len(cells) != width*height {
		return nil, fmt.Errorf("buffer holds %d cells, want %d", len(cells), width*height)
	}
	return &Map[T]{
		Resolution: resolution,
		Origin:     origin,
		Width:      width,
		Height:     height,
		cells:      cells,
	}, nil
}

// SetExcludeOrigin reproduces the historical bounds check that also rejected
// column 0 and row 0. Off by default.
func (m *Map[T]) SetExcludeOrigin(on bool) {
	m.excludeOrigin = on
}

// ExcludeOrigin reports whether the historical bounds check is active.
func (m *Map[T]) ExcludeOrigin() bool {
	return m.excludeOrigin
}

// IsInside reports whether (x, y) addresses a cell of the grid.
func (m *Map[T]) IsInside(x, y int) bool {
	if m.excludeOrigin && (x == 0 || y == 0) {
		return false
	}
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// Contains is IsInside for a Coord.
func (m *Map[T]) Contains(c Coord) bool {
	return m.IsInside(c.X, c.Y)
}

// Cell returns the value at (x, y) and whether it was inside the grid.
func (m *Map[T]) Cell(x, y int) (T, bool) {
	if !m.IsInside(x, y) {
		var zero T
		return zero, false
	}
	return m.cells[y*m.Width+x], true
}

// CellPtr returns a pointer to the cell at (x, y), or nil when outside.
func (m *Map[T]) CellPtr(x, y int) *T {
	if !m.IsInside(x, y) {
		return nil
	}
	return &m.cells[y*m.Width+x]
}

// Set stores v at (x, y). It reports false and does nothing when outside.
func (m *Map[T]) Set(x, y int, v T) bool {
	p := m.CellPtr(x, y)
	if p == nil {
		return false
	}
	*p = v
	return true
}

// WorldToGrid returns the cell containing p. The result may lie outside the
// grid; callers check with Contains. Non-finite input saturates to the int
// range so it can never alias a real cell.
func (m *Map[T]) WorldToGrid(p r2.Vec) Coord {
	return Coord{
		X: toIndex((p.X - m.Origin.X) / m.Resolution),
		Y: toIndex((p.Y - m.Origin.Y) / m.Resolution),
	}
}

// GridToWorld returns the world position of the centre of cell c.
func (m *Map[T]) GridToWorld(c Coord) r2.Vec {
	return r2.Vec{
		X: m.Origin.X + (float64(c.X)+0.5)*m.Resolution,
		Y: m.Origin.Y + (float64(c.Y)+0.5)*m.Resolution,
	}
}

// Size returns the grid dimensions in cells.
func (m *Map[T]) Size() (width, height int) {
	return m.Width, m.Height
}

// Len returns the number of cells.
func (m *Map[T]) Len() int {
	return len(m.cells)
}

// Bounds returns the world-space rectangle covered by the grid.
func (m *Map[T]) Bounds() (lo, hi r2.Vec) {
	lo = m.Origin
	hi = r2.Vec{
		X: m.Origin.X + float64(m.Width)*m.Resolution,
		Y: m.Origin.Y + float64(m.Height)*m.Resolution,
	}
	return lo, hi
}

// Cells exposes the row-major buffer. Callers must not change its length.
func (m *Map[T]) Cells() []T {
	return m.cells
}

// Each calls fn for every cell in row-major order.
func (m *Map[T]) Each(fn func(x, y int, c *T)) {
	for y := 0; y < m.Height; y++ {
		row := m.cells[y*m.Width : (y+1)*m.Width]
		for x := range row {
			fn(x, y, &row[x])
		}
	}
}

// SameGeometry reports whether the grid has the given size, resolution and origin.
func (m *Map[T]) SameGeometry(w, h int, resolution float64, origin r2.Vec) bool {
	return m.Width == w && m.Height == h && m.Resolution == resolution && m.Origin == origin
}

// Clone returns a deep copy.
func (m *Map[T]) Clone() *Map[T] {
	c := *m
	c.cells = make([]T, len(m.cells))
	copy(c.cells, m.cells)
	return &c
}

// MapOf converts every cell of src with f into a grid of identical geometry.
func MapOf[T, U any](src *Map[T], f func(T) U) *Map[U] {
	out := &Map[U]{
		Resolution:    src.Resolution,
		Origin:        src.Origin,
		Width:         src.Width,
		Height:        src.Height,
		cells:         make([]U, len(src.cells)),
		excludeOrigin: src.excludeOrigin,
	}
	for i, c := range src.cells {
		out.cells[i] = f(c)
	}
	return out
}

func toIndex(v float64) int {
	switch {
	case math.IsNaN(v):
		return math.MinInt32
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int(math.Floor(v))
}
