// Package testutil provides shared test helpers and scan fixtures.
package testutil

import (
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/scan"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// RoomScan returns a 181-beam scan taken from robot inside an axis-aligned
// square room of the given half-width centred on the origin. The laser
// sits at the robot pose with a 30 m maximum range.
func RoomScan(robot geom.Pose, halfWidth float64) scan.LaserScan {
	const beams = 181
	params := scan.LaserParams{
		SensorOffset:   geom.Identity(),
		FirstBeamAngle: -math.Pi / 2,
		AngularStep:    math.Pi / (beams - 1),
		MaxRange:       30,
	}
	ranges := make([]float32, beams)
	for i := range ranges {
		a := robot.Theta + params.BeamAngle(i)
		ranges[i] = float32(wallDistance(robot.X, robot.Y, a, halfWidth))
	}
	return scan.LaserScan{RobotPose: robot, Params: params, Ranges: ranges}
}

// wallDistance is the distance from (x, y) along heading a to the walls of
// the square [-h, h]².
func wallDistance(x, y, a, h float64) float64 {
	best := math.Inf(1)
	sin, cos := math.Sincos(a)
	if cos > 1e-12 {
		best = min(best, (h-x)/cos)
	} else if cos < -1e-12 {
		best = min(best, (-h-x)/cos)
	}
	if sin > 1e-12 {
		best = min(best, (h-y)/sin)
	} else if sin < -1e-12 {
		best = min(best, (-h-y)/sin)
	}
	return best
}

// RoomTour returns n RoomScans along a line through the room.
func RoomTour(n int, halfWidth float64) []scan.LaserScan {
	scans := make([]scan.LaserScan, n)
	for i := range scans {
		f := float64(i)/float64(max(n-1, 1)) - 0.5
		scans[i] = RoomScan(geom.NewPose(f*halfWidth, 0.2*f*halfWidth, 0.1*f), halfWidth)
	}
	return scans
}

// CarmenLine formats s as a ROBOTLASER1 log record with the laser mounted
// at the robot pose.
func CarmenLine(s scan.LaserScan, timestamp float64) string {
	var b strings.Builder
	p := s.Params
	fmt.Fprintf(&b, "ROBOTLASER1 0 %g %g %g %g 0.01 0 %d", p.FirstBeamAngle, p.AngularStep*float64(len(s.Ranges)),
		p.AngularStep, p.MaxRange, len(s.Ranges))
	for _, r := range s.Ranges {
		fmt.Fprintf(&b, " %.3f", r)
	}
	laser := s.LaserPose()
	fmt.Fprintf(&b, " 0 %g %g %g %g %g %g 0 0 0.3 0.3 1000000 %f host %f",
		laser.X, laser.Y, laser.Theta, s.RobotPose.X, s.RobotPose.Y, s.RobotPose.Theta, timestamp, timestamp)
	return b.String()
}

// WriteCarmenLog writes scans as a CARMEN log under dir and returns its path.
func WriteCarmenLog(t *testing.T, dir, name string, scans []scan.LaserScan) string {
	t.Helper()
	lines := []string{"# synthetic log", "PARAM robot_front_laser_max 30"}
	for i, s := range scans {
		lines = append(lines, CarmenLine(s, float64(i)*0.1))
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}
