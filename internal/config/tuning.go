package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// maxFileSize bounds tuning files (1MB).
const maxFileSize = 1 * 1024 * 1024

// PoseConfig is a world offset in a tuning file.
type PoseConfig struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Theta float64 `json:"theta" yaml:"theta"`
}

// TuningConfig represents the root configuration for map building.
// Every field is optional; the Get* methods supply defaults for anything
// left out, so partial files are safe.
type TuningConfig struct {
	// Grid geometry
	Resolution *float64 `json:"resolution,omitempty" yaml:"resolution,omitempty"` // metres per cell
	Border     *float64 `json:"border,omitempty" yaml:"border,omitempty"`         // metres of padding around the data

	// Beam handling
	MaxRange    *float64 `json:"max_range,omitempty" yaml:"max_range,omitempty"`
	UsableRange *float64 `json:"usable_range,omitempty" yaml:"usable_range,omitempty"`
	Gain        *int     `json:"gain,omitempty" yaml:"gain,omitempty"`

	// World frame
	ZeroFirstPose *bool       `json:"zero_first_pose,omitempty" yaml:"zero_first_pose,omitempty"`
	Offset        *PoseConfig `json:"offset,omitempty" yaml:"offset,omitempty"`

	// Execution
	Workers        *int  `json:"workers,omitempty" yaml:"workers,omitempty"`
	LegacyBoundary *bool `json:"legacy_boundary,omitempty" yaml:"legacy_boundary,omitempty"`

	// Export thresholds for ROS map files
	OccupiedThresh *float64 `json:"occupied_thresh,omitempty" yaml:"occupied_thresh,omitempty"`
	FreeThresh     *float64 `json:"free_thresh,omitempty" yaml:"free_thresh,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated with
// its default. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		Resolution:     ptrFloat64(0.1),
		Border:         ptrFloat64(2.0),
		MaxRange:       ptrFloat64(20.0),
		UsableRange:    ptrFloat64(20.0),
		Gain:           ptrInt(1),
		ZeroFirstPose:  ptrBool(false),
		Offset:         &PoseConfig{},
		Workers:        ptrInt(1),
		LegacyBoundary: ptrBool(false),
		OccupiedThresh: ptrFloat64(0.65),
		FreeThresh:     ptrFloat64(0.196),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The extension selects the decoder (.json, .yaml, .yml) and the file must be
// under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/scan/carmen/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.Resolution != nil && !positiveFinite(*c.Resolution) {
		return fmt.Errorf("resolution must be positive and finite, got %f", *c.Resolution)
	}
	if c.Border != nil && (!(*c.Border >= 0) || math.IsInf(*c.Border, 0)) {
		return fmt.Errorf("border must be non-negative and finite, got %f", *c.Border)
	}
	if c.MaxRange != nil && !positiveFinite(*c.MaxRange) {
		return fmt.Errorf("max_range must be positive and finite, got %f", *c.MaxRange)
	}
	if c.UsableRange != nil && !positiveFinite(*c.UsableRange) {
		return fmt.Errorf("usable_range must be positive and finite, got %f", *c.UsableRange)
	}
	if c.Offset != nil && !(finite(c.Offset.X) && finite(c.Offset.Y) && finite(c.Offset.Theta)) {
		return fmt.Errorf("offset must be finite, got %+v", *c.Offset)
	}
	if c.Gain != nil && *c.Gain < 1 {
		return fmt.Errorf("gain must be at least 1, got %d", *c.Gain)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	occ, free := c.GetOccupiedThresh(), c.GetFreeThresh()
	if !(occ >= 0 && occ <= 1) {
		return fmt.Errorf("occupied_thresh must be between 0 and 1, got %f", occ)
	}
	if !(free >= 0 && free <= 1) {
		return fmt.Errorf("free_thresh must be between 0 and 1, got %f", free)
	}
	if free >= occ {
		return fmt.Errorf("free_thresh (%f) must be below occupied_thresh (%f)", free, occ)
	}

	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// GetResolution returns the resolution value or the default.
func (c *TuningConfig) GetResolution() float64 {
	if c.Resolution == nil {
		return 0.1 // default
	}
	return *c.Resolution
}

// GetBorder returns the border value or the default.
func (c *TuningConfig) GetBorder() float64 {
	if c.Border == nil {
		return 2.0 // default
	}
	return *c.Border
}

// GetMaxRange returns the max_range value or the default.
func (c *TuningConfig) GetMaxRange() float64 {
	if c.MaxRange == nil {
		return 20.0 // default
	}
	return *c.MaxRange
}

// GetUsableRange returns the usable_range value or the default.
func (c *TuningConfig) GetUsableRange() float64 {
	if c.UsableRange == nil {
		return 20.0 // default
	}
	return *c.UsableRange
}

// GetGain returns the gain value or the default.
func (c *TuningConfig) GetGain() int {
	if c.Gain == nil {
		return 1 // default
	}
	return *c.Gain
}

// GetZeroFirstPose returns the zero_first_pose value or the default.
func (c *TuningConfig) GetZeroFirstPose() bool {
	if c.ZeroFirstPose == nil {
		return false // default
	}
	return *c.ZeroFirstPose
}

// GetOffset returns the world offset or the identity.
func (c *TuningConfig) GetOffset() PoseConfig {
	if c.Offset == nil {
		return PoseConfig{}
	}
	return *c.Offset
}

// GetWorkers returns the integration worker count or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1 // default
	}
	return *c.Workers
}

// GetLegacyBoundary returns the legacy_boundary value or the default.
func (c *TuningConfig) GetLegacyBoundary() bool {
	if c.LegacyBoundary == nil {
		return false // default
	}
	return *c.LegacyBoundary
}

// GetOccupiedThresh returns the occupied_thresh value or the default.
func (c *TuningConfig) GetOccupiedThresh() float64 {
	if c.OccupiedThresh == nil {
		return 0.65 // default
	}
	return *c.OccupiedThresh
}

// GetFreeThresh returns the free_thresh value or the default.
func (c *TuningConfig) GetFreeThresh() float64 {
	if c.FreeThresh == nil {
		return 0.196 // default
	}
	return *c.FreeThresh
}
