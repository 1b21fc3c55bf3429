package mapping

import "errors"

var (
	// ErrGeometryMismatch is returned when two grids that must line up do not.
	ErrGeometryMismatch = errors.New("grid geometry mismatch")
	// ErrEmptyScanSet is returned when a build has no usable scans or points.
	ErrEmptyScanSet = errors.New("no scans to map")
)
