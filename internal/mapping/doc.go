// Package mapping turns a batch of posed laser scans into an occupancy grid.
//
// Responsibilities: bounds estimation, hit/miss accumulation, parallel
// sharded integration, and occupancy resolution.
// Key types: Config, MapCreator, FrequencyMap, Bounds, Occupancy.
//
// Poses are taken as ground truth. No SQL, HTTP or image code is allowed in
// this package; those live in store, monitor and render.
package mapping
