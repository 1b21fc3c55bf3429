// Package carmen reads CARMEN-style text logs and returns the ROBOTLASER
// records as scans. Every other record type in the log is ignored.
//
// A ROBOTLASER1 line is laid out as:
//
//	ROBOTLASER1 laser_type start_angle fov angular_res max_range accuracy
//	    remission_mode num_readings [range]... num_remissions [remission]...
//	    laser_x laser_y laser_theta robot_x robot_y robot_theta
//	    tv rv forward_safety_dist side_safety_dist turn_axis
//	    timestamp hostname logger_timestamp
//
// Laser and robot poses are both global; the sensor offset stored on the scan
// is the laser pose expressed in the robot frame.
package carmen

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/scan"
)

// RecordPrefix selects the lines that carry laser scans.
const RecordPrefix = "ROBOTLASER"

// maxLineBytes bounds a single log line; dense scanners emit long records.
const maxLineBytes = 4 * 1024 * 1024

// Stats summarises one parse.
type Stats struct {
	Lines   int // lines read
	Records int // ROBOTLASER records decoded
	Skipped int // ROBOTLASER records that failed to decode
}

// File is a CARMEN log on disk. It implements scan.Source.
type File struct {
	Path string
	// Strict turns a malformed record into an error instead of skipping it.
	Strict bool

	stats Stats
}

var _ scan.Source = (*File)(nil)

// Scans reads and decodes the whole log.
func (f *File) Scans() ([]scan.LaserScan, error) {
	scans, stats, err := ParseFile(f.Path, f.Strict)
	f.stats = stats
	return scans, err
}

// Stats returns the counters of the last Scans call.
func (f *File) Stats() Stats { return f.stats }

// ParseFile opens path and decodes it with Parse.
func ParseFile(path string, strict bool) ([]scan.LaserScan, Stats, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open carmen log: %w", err)
	}
	defer fh.Close()
	return Parse(fh, strict)
}

// Parse decodes every ROBOTLASER record in r, in file order.
func Parse(r io.Reader, strict bool) ([]scan.LaserScan, Stats, error) {
	var stats Stats
	var scans []scan.LaserScan

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		stats.Lines++
		line := sc.Text()
		if !strings.HasPrefix(line, RecordPrefix) {
			continue
		}
		s, err := parseRobotLaser(line)
		if err != nil {
			if strict {
				return nil, stats, fmt.Errorf("line %d: %w", stats.Lines, err)
			}
			stats.Skipped++
			continue
		}
		stats.Records++
		scans = append(scans, s)
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("read carmen log: %w", err)
	}
	return scans, stats, nil
}

// tokens walks the whitespace-separated fields of one record. The first
// failure is kept and every later read returns a zero value.
type tokens struct {
	fields []string
	pos    int
	err    error
}

func (t *tokens) next(name string) string {
	if t.err != nil {
		return ""
	}
	if t.pos >= len(t.fields) {
		t.err = fmt.Errorf("record truncated before %s", name)
		return ""
	}
	tok := t.fields[t.pos]
	t.pos++
	return tok
}

func (t *tokens) float(name string) float64 {
	tok := t.next(name)
	if t.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		t.err = fmt.Errorf("parse %s %q: %w", name, tok, err)
		return 0
	}
	return v
}

// finite is float for fields that must be a real number.
func (t *tokens) finite(name string) float64 {
	v := t.float(name)
	if t.err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		t.err = fmt.Errorf("%s is not finite", name)
		return 0
	}
	return v
}

// reading is float for range values: +Inf marks "no return", NaN is rejected.
func (t *tokens) reading(name string) float64 {
	v := t.float(name)
	if t.err == nil && math.IsNaN(v) {
		t.err = fmt.Errorf("%s is NaN", name)
		return 0
	}
	return v
}

func (t *tokens) int(name string) int {
	tok := t.next(name)
	if t.err != nil {
		return 0
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		t.err = fmt.Errorf("parse %s %q: %w", name, tok, err)
		return 0
	}
	return v
}

func (t *tokens) count(name string) int {
	n := t.int(name)
	if t.err == nil && (n < 0 || n > len(t.fields)-t.pos) {
		t.err = fmt.Errorf("%s %d exceeds remaining fields", name, n)
		return 0
	}
	return n
}

func (t *tokens) skip(n int, name string) {
	for i := 0; i < n && t.err == nil; i++ {
		t.next(name)
	}
}

func parseRobotLaser(line string) (scan.LaserScan, error) {
	t := &tokens{fields: strings.Fields(line)}

	tag := t.next("tag")
	params := scan.LaserParams{
		LaserType:      t.int("laser_type"),
		FirstBeamAngle: t.finite("start_angle"),
	}
	_ = t.finite("fov")
	params.AngularStep = t.finite("angular_res")
	params.MaxRange = t.finite("max_range")
	params.Accuracy = t.float("accuracy")
	params.RemissionMode = t.int("remission_mode")

	numReadings := t.count("num_readings")
	ranges := make([]float32, 0, numReadings)
	for i := 0; i < numReadings && t.err == nil; i++ {
		ranges = append(ranges, float32(t.reading("range")))
	}

	numRemissions := t.count("num_remissions")
	t.skip(numRemissions, "remission")

	laserGlobal := geom.NewPose(t.finite("laser_x"), t.finite("laser_y"), t.finite("laser_theta"))
	robotGlobal := geom.NewPose(t.finite("robot_x"), t.finite("robot_y"), t.finite("robot_theta"))

	// tv rv forward_safety_dist side_safety_dist turn_axis
	t.skip(5, "velocity")

	meta := scan.Packet{Tag: tag}
	meta.Timestamp = t.float("timestamp")
	meta.Hostname = t.next("hostname")
	meta.LoggerTimestamp = t.float("logger_timestamp")

	if t.err != nil {
		return scan.LaserScan{}, t.err
	}

	params.SensorOffset = robotGlobal.Inverse().Compose(laserGlobal)
	s := scan.LaserScan{
		Meta:      meta,
		Params:    params,
		RobotPose: robotGlobal,
		Ranges:    ranges,
	}
	if err := s.Validate(); err != nil {
		return scan.LaserScan{}, err
	}
	return s, nil
}
