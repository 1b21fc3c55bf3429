package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/gridmap/internal/grid"
	"github.com/banshee-data/gridmap/internal/mapping"
	"gopkg.in/yaml.v3"
)

// map_server trinary pixel values.
const (
	PGMOccupied uint8 = 0
	PGMFree     uint8 = 254
	PGMUnknown  uint8 = 205
)

// Thresholds classify occupancy for trinary export.
type Thresholds struct {
	Occupied float64 // at or above: occupied
	Free     float64 // at or below: free
}

// DefaultThresholds are map_server's defaults.
var DefaultThresholds = Thresholds{Occupied: 0.65, Free: 0.196}

// PGMValue classifies one cell.
func (t Thresholds) PGMValue(o mapping.Occupancy) uint8 {
	switch {
	case !o.IsKnown():
		return PGMUnknown
	case float64(o) >= t.Occupied:
		return PGMOccupied
	case float64(o) <= t.Free:
		return PGMFree
	default:
		return PGMUnknown
	}
}

// WritePGM writes m as a binary (P5) greyscale PGM, top row first.
func WritePGM(w io.Writer, m *grid.Map[mapping.Occupancy], t Thresholds) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P5\n# gridmap %.3f m/pix\n%d %d\n255\n", m.Resolution, m.Width, m.Height); err != nil {
		return fmt.Errorf("write pgm header: %w", err)
	}
	row := make([]byte, m.Width)
	cells := m.Cells()
	for y := m.Height - 1; y >= 0; y-- {
		for x := 0; x < m.Width; x++ {
			row[x] = t.PGMValue(cells[y*m.Width+x])
		}
		if _, err := bw.Write(row); err != nil {
			return fmt.Errorf("write pgm row: %w", err)
		}
	}
	return bw.Flush()
}

// ROSMapMeta is the map_server YAML sidecar.
type ROSMapMeta struct {
	Image          string     `yaml:"image"`
	Resolution     float64    `yaml:"resolution"`
	Origin         [3]float64 `yaml:"origin,flow"`
	Negate         int        `yaml:"negate"`
	OccupiedThresh float64    `yaml:"occupied_thresh"`
	FreeThresh     float64    `yaml:"free_thresh"`
}

// WriteROSMap writes <dir>/<name>.pgm and <dir>/<name>.yaml and returns the
// YAML path.
func WriteROSMap(dir, name string, m *grid.Map[mapping.Occupancy], t Thresholds) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create map dir: %w", err)
	}

	pgmPath := filepath.Join(dir, name+".pgm")
	f, err := os.Create(pgmPath)
	if err != nil {
		return "", fmt.Errorf("create pgm: %w", err)
	}
	if err := WritePGM(f, m, t); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close pgm: %w", err)
	}

	meta := ROSMapMeta{
		Image:          name + ".pgm",
		Resolution:     m.Resolution,
		Origin:         [3]float64{m.Origin.X, m.Origin.Y, 0},
		OccupiedThresh: t.Occupied,
		FreeThresh:     t.Free,
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return "", fmt.Errorf("marshal map yaml: %w", err)
	}
	yamlPath := filepath.Join(dir, name+".yaml")
	if err := os.WriteFile(yamlPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write map yaml: %w", err)
	}
	return yamlPath, nil
}

// ReadROSMapMeta loads a map_server YAML sidecar.
func ReadROSMapMeta(path string) (*ROSMapMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map yaml: %w", err)
	}
	var meta ROSMapMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse map yaml: %w", err)
	}
	return &meta, nil
}
