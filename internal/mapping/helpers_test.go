package mapping

import (
	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/scan"
)

// singleBeam returns a scan with one beam along the laser's x-axis.
func singleBeam(robot geom.Pose, r, sensorMax float64) scan.LaserScan {
	return scan.LaserScan{
		RobotPose: robot,
		Params: scan.LaserParams{
			SensorOffset: geom.Identity(),
			MaxRange:     sensorMax,
		},
		Ranges: []float32{float32(r)},
	}
}

// fan returns a scan with n beams spread over a half circle.
func fan(robot geom.Pose, r float64, n int) scan.LaserScan {
	ranges := make([]float32, n)
	for i := range ranges {
		ranges[i] = float32(r)
	}
	step := 0.0
	if n > 1 {
		step = 3.14159 / float64(n-1)
	}
	return scan.LaserScan{
		RobotPose: robot,
		Params: scan.LaserParams{
			SensorOffset:   geom.NewPose(0.1, 0, 0),
			FirstBeamAngle: -3.14159 / 2,
			AngularStep:    step,
			MaxRange:       30,
		},
		Ranges: ranges,
	}
}

func testConfig() *Config {
	return &Config{
		Resolution:  0.1,
		MaxRange:    10,
		UsableRange: 10,
		Border:      1,
		Gain:        1,
	}
}
