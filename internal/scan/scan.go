// Package scan holds the laser scan records consumed by the mapping core and
// the Source capability that produces them.
//
// A LaserScan is treated as immutable once a Source has produced it. Range
// readings at or beyond the sensor's max range mark invalid beams.
package scan

import (
	"fmt"
	"math"

	"github.com/banshee-data/gridmap/internal/geom"
	"gonum.org/v1/gonum/spatial/r2"
)

// Packet carries the log bookkeeping attached to every record.
type Packet struct {
	Tag             string  // record tag, e.g. "ROBOTLASER1"
	Timestamp       float64 // sensor timestamp (seconds)
	LoggerTimestamp float64 // time the logger wrote the record (seconds)
	Hostname        string
}

// LaserParams describes the beam geometry of one scan.
type LaserParams struct {
	SensorOffset   geom.Pose // sensor pose in the robot frame
	LaserType      int
	FirstBeamAngle float64 // radians, sensor frame
	AngularStep    float64 // radians between consecutive beams
	MaxRange       float64 // metres
	Accuracy       float64
	RemissionMode  int
}

// BeamAngle returns the direction of beam i in the sensor frame.
func (lp LaserParams) BeamAngle(i int) float64 {
	return lp.FirstBeamAngle + float64(i)*lp.AngularStep
}

// BeamPose returns the pure rotation that turns the sensor x-axis onto beam i.
func (lp LaserParams) BeamPose(i int) geom.Pose {
	return geom.Pose{Theta: lp.BeamAngle(i)}
}

// BeamEndpoint returns the sensor-frame point at distance r along beam i.
func (lp LaserParams) BeamEndpoint(i int, r float64) r2.Vec {
	return lp.BeamPose(i).Apply(r2.Vec{X: r})
}

// LaserScan is one range scan together with the robot pose it was taken at.
type LaserScan struct {
	Meta      Packet
	Params    LaserParams
	RobotPose geom.Pose // robot pose in the log's world frame
	Ranges    []float32 // one reading per beam, metres
}

// LaserPose returns the sensor pose in the log's world frame.
func (s *LaserScan) LaserPose() geom.Pose {
	return s.RobotPose.Compose(s.Params.SensorOffset)
}

// NumBeams returns the number of range readings.
func (s *LaserScan) NumBeams() int {
	return len(s.Ranges)
}

// Validate checks the invariants the mapping core relies on.
func (s *LaserScan) Validate() error {
	if !(s.Params.MaxRange > 0) || math.IsInf(s.Params.MaxRange, 0) {
		return fmt.Errorf("max range must be positive and finite, got %f", s.Params.MaxRange)
	}
	if !finite(s.Params.FirstBeamAngle) || !finite(s.Params.AngularStep) {
		return fmt.Errorf("beam geometry is not finite: start %f step %f", s.Params.FirstBeamAngle, s.Params.AngularStep)
	}
	if !s.RobotPose.IsFinite() {
		return fmt.Errorf("robot pose is not finite: %v", s.RobotPose)
	}
	if !s.Params.SensorOffset.IsFinite() {
		return fmt.Errorf("sensor offset is not finite: %v", s.Params.SensorOffset)
	}
	for i, r := range s.Ranges {
		if math.IsNaN(float64(r)) {
			return fmt.Errorf("range %d is NaN", i)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
