package mapping

import (
	"fmt"
	"math"

	"github.com/banshee-data/gridmap/internal/config"
	"github.com/banshee-data/gridmap/internal/geom"
)

// Config is the parameter bundle for one map build.
type Config struct {
	Resolution  float64 // metres per cell (default: 0.1)
	MaxRange    float64 // readings at or beyond this are discarded (default: 20)
	UsableRange float64 // readings beyond this are shortened and not counted as hits (default: 20)
	Border      float64 // metres of padding on every side (default: 2.0)

	// ZeroFirstPose re-anchors the world frame at the first scan's robot
	// pose. When set, Offset is ignored.
	ZeroFirstPose bool
	Offset        geom.Pose // world frame correction applied to every pose

	Gain    int32 // count added per hit or visit (default: 1)
	Workers int   // integration workers; 0 or 1 integrates sequentially

	// LegacyBoundary also rejects column 0 and row 0 during integration.
	LegacyBoundary bool
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults
// file (config/tuning.defaults.json).
// Panics if the file cannot be found; intended for tests and binaries
// that have already validated config availability.
func DefaultConfig() *Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) *Config {
	off := cfg.GetOffset()
	return &Config{
		Resolution:     cfg.GetResolution(),
		MaxRange:       cfg.GetMaxRange(),
		UsableRange:    cfg.GetUsableRange(),
		Border:         cfg.GetBorder(),
		ZeroFirstPose:  cfg.GetZeroFirstPose(),
		Offset:         geom.NewPose(off.X, off.Y, off.Theta),
		Gain:           int32(cfg.GetGain()),
		Workers:        cfg.GetWorkers(),
		LegacyBoundary: cfg.GetLegacyBoundary(),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !positiveFinite(c.Resolution) {
		return fmt.Errorf("Resolution must be positive and finite, got %f", c.Resolution)
	}
	if !positiveFinite(c.MaxRange) {
		return fmt.Errorf("MaxRange must be positive and finite, got %f", c.MaxRange)
	}
	if !positiveFinite(c.UsableRange) {
		return fmt.Errorf("UsableRange must be positive and finite, got %f", c.UsableRange)
	}
	if !(c.Border >= 0) || math.IsInf(c.Border, 0) {
		return fmt.Errorf("Border must be non-negative and finite, got %f", c.Border)
	}
	if !c.Offset.IsFinite() {
		return fmt.Errorf("Offset must be finite, got %v", c.Offset)
	}
	if c.Gain < 1 {
		return fmt.Errorf("Gain must be at least 1, got %d", c.Gain)
	}
	if c.Workers < 0 {
		return fmt.Errorf("Workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// EffectiveRanges clips the configured ranges against a sensor's max range.
func (c *Config) EffectiveRanges(sensorMax float64) (maxRange, usable float64) {
	maxRange = math.Min(sensorMax, c.MaxRange)
	usable = math.Min(c.UsableRange, maxRange)
	return maxRange, usable
}

// WithResolution sets the cell size in metres.
func (c *Config) WithResolution(r float64) *Config {
	c.Resolution = r
	return c
}

// WithMaxRange sets the range at which readings are discarded.
func (c *Config) WithMaxRange(r float64) *Config {
	c.MaxRange = r
	return c
}

// WithUsableRange sets the range beyond which readings are shortened.
func (c *Config) WithUsableRange(r float64) *Config {
	c.UsableRange = r
	return c
}

// WithBorder sets the padding added around the data.
func (c *Config) WithBorder(b float64) *Config {
	c.Border = b
	return c
}

// WithZeroFirstPose enables or disables anchoring at the first scan.
func (c *Config) WithZeroFirstPose(enabled bool) *Config {
	c.ZeroFirstPose = enabled
	return c
}

// WithOffset sets the world frame correction.
func (c *Config) WithOffset(p geom.Pose) *Config {
	c.Offset = p
	return c
}

// WithGain sets the per-observation count.
func (c *Config) WithGain(g int32) *Config {
	c.Gain = g
	return c
}

// WithWorkers sets the integration worker count.
func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}

// WithLegacyBoundary enables the historical row/column 0 exclusion.
func (c *Config) WithLegacyBoundary(enabled bool) *Config {
	c.LegacyBoundary = enabled
	return c
}
