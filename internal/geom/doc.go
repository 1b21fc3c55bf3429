// Package geom provides the planar rigid transforms used to move between
// sensor, robot and world frames.
//
// Points and vectors are gonum r2.Vec values. A Pose is a rotation by Theta
// followed by a translation by (X, Y); composition reads right to left, so
// world.Compose(robot).Compose(sensor) maps sensor-frame points into the
// world frame.
package geom
