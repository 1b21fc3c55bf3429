package mapping

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/gridmap/internal/geom"
	"github.com/banshee-data/gridmap/internal/grid"
	"github.com/banshee-data/gridmap/internal/scan"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"
)

// MapCreator drives one batch build: bounds, allocation, integration,
// resolution. It owns the frequency map exclusively until Resolve.
type MapCreator struct {
	cfg     Config
	offset  geom.Pose
	bounds  Bounds
	fmap    *FrequencyMap
	stats   IntegrationStats
	scans   int
	elapsed time.Duration
	observe ScanObserver
}

// ScanObserver is told about every integrated scan. index is the scan's
// position in the input and pose its robot pose in the map frame. With
// parallel integration it is called from several goroutines.
type ScanObserver func(index int, s *scan.LaserScan, pose geom.Pose, st IntegrationStats)

// NewMapCreator returns a creator for cfg. cfg is copied.
func NewMapCreator(cfg *Config) *MapCreator {
	return &MapCreator{
		cfg:    *cfg,
		offset: cfg.Offset,
		bounds: NewBounds(),
	}
}

// Config returns the creator's parameters.
func (mc *MapCreator) Config() Config { return mc.cfg }

// Offset returns the world frame correction in use.
func (mc *MapCreator) Offset() geom.Pose { return mc.offset }

// Bounds returns the unpadded data bounds accumulated so far.
func (mc *MapCreator) Bounds() Bounds { return mc.bounds }

// Frequency returns the accumulated counts, or nil before Allocate.
func (mc *MapCreator) Frequency() *FrequencyMap { return mc.fmap }

// SetObserver installs fn as the per-scan observer. nil removes it.
func (mc *MapCreator) SetObserver(fn ScanObserver) { mc.observe = fn }

// Stats returns the integration totals so far.
func (mc *MapCreator) Stats() IntegrationStats { return mc.stats }

// ComputeBounds resolves the world offset and grows the bounds over every
// scan. It may be called several times to cover several batches; the offset
// is fixed by the first call.
func (mc *MapCreator) ComputeBounds(scans []scan.LaserScan) error {
	if mc.bounds.Empty() && len(scans) > 0 {
		mc.offset = ResolveWorldOffset(scans, &mc.cfg)
	}
	for i := range scans {
		s := &scans[i]
		maxRange, usable := mc.cfg.EffectiveRanges(s.Params.MaxRange)
		mc.bounds.AddScan(mc.offset, s, maxRange, usable)
	}
	if mc.bounds.Empty() {
		return fmt.Errorf("compute bounds over %d scans: %w", len(scans), ErrEmptyScanSet)
	}
	diagf("bounds over %d scans: min=(%.3f, %.3f) max=(%.3f, %.3f)",
		len(scans), mc.bounds.Min.X, mc.bounds.Min.Y, mc.bounds.Max.X, mc.bounds.Max.Y)
	return nil
}

// Allocate pads the bounds by the configured border and creates the zeroed
// frequency map covering them.
func (mc *MapCreator) Allocate() error {
	if mc.bounds.Empty() {
		return fmt.Errorf("allocate before bounds: %w", ErrEmptyScanSet)
	}
	padded := mc.bounds.Expand(mc.cfg.Border)
	w, h := gridSize(padded, mc.cfg.Resolution)
	mc.fmap = NewFrequencyMap(w, h, mc.cfg.Resolution, padded.Min)
	mc.fmap.SetExcludeOrigin(mc.cfg.LegacyBoundary)
	diagf("allocated %dx%d cells at %.3fm, origin=(%.3f, %.3f)",
		w, h, mc.cfg.Resolution, padded.Min.X, padded.Min.Y)
	return nil
}

func gridSize(b Bounds, resolution float64) (w, h int) {
	size := b.Size()
	w = max(1, int(math.Ceil(size.X/resolution)))
	h = max(1, int(math.Ceil(size.Y/resolution)))
	return w, h
}

func (mc *MapCreator) mustBeAllocated(op string) {
	if mc.fmap == nil {
		panic("mapping: " + op + " called before Allocate")
	}
}

func (mc *MapCreator) integrateInto(fm *FrequencyMap, index int, s *scan.LaserScan) IntegrationStats {
	maxRange, usable := mc.cfg.EffectiveRanges(s.Params.MaxRange)
	st := fm.IntegrateScan(s, mc.offset, maxRange, usable, mc.gain())
	if mc.observe != nil {
		mc.observe(index, s, mc.offset.Compose(s.RobotPose), st)
	}
	return st
}

func (mc *MapCreator) gain() int32 {
	if mc.cfg.Gain < 1 {
		return 1
	}
	return mc.cfg.Gain
}

// IntegrateAll integrates scans in input order. It panics if called before
// Allocate.
func (mc *MapCreator) IntegrateAll(scans []scan.LaserScan) IntegrationStats {
	mc.mustBeAllocated("IntegrateAll")
	var total IntegrationStats
	for i := range scans {
		st := mc.integrateInto(mc.fmap, i, &scans[i])
		tracef("scan %d: beams=%d discarded=%d clipped=%d hits=%d out=%d",
			i, st.Beams, st.Discarded, st.Clipped, st.Hits, st.OutOfGrid)
		total.Add(st)
	}
	mc.record(len(scans), total)
	return total
}

// IntegrateParallel splits scans into contiguous shards, integrates each
// shard into a private map on its own goroutine, then merges the private
// maps. Counts are identical to IntegrateAll. It panics if called before
// Allocate.
func (mc *MapCreator) IntegrateParallel(ctx context.Context, scans []scan.LaserScan, workers int) (IntegrationStats, error) {
	mc.mustBeAllocated("IntegrateParallel")
	if workers > len(scans) {
		workers = len(scans)
	}
	if workers <= 1 {
		if err := ctx.Err(); err != nil {
			return IntegrationStats{}, err
		}
		return mc.IntegrateAll(scans), nil
	}

	parts := make([]*FrequencyMap, workers)
	stats := make([]IntegrationStats, workers)
	chunk := (len(scans) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(scans))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			local := mc.fmap.NewEmptyLike()
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				stats[w].Add(mc.integrateInto(local, i, &scans[i]))
			}
			parts[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IntegrationStats{}, fmt.Errorf("parallel integration: %w", err)
	}

	var total IntegrationStats
	for w, part := range parts {
		if part == nil {
			continue
		}
		if err := mc.fmap.Merge(part); err != nil {
			return IntegrationStats{}, err
		}
		total.Add(stats[w])
	}
	diagf("merged %d shards of up to %d scans", workers, chunk)
	mc.record(len(scans), total)
	return total, nil
}

func (mc *MapCreator) record(n int, st IntegrationStats) {
	mc.scans += n
	mc.stats.Add(st)
	if st.Discarded > 0 && st.Discarded == st.Beams {
		opsf("all %d beams of %d scans were discarded; check max_range", st.Beams, n)
	}
}

// BuildSummary describes a finished build.
type BuildSummary struct {
	Scans      int
	Width      int
	Height     int
	Resolution float64
	Origin     r2.Vec
	Offset     geom.Pose
	Stats      IntegrationStats
	Elapsed    time.Duration
}

// Summary reports the current state of the build.
func (mc *MapCreator) Summary() BuildSummary {
	s := BuildSummary{
		Scans:      mc.scans,
		Resolution: mc.cfg.Resolution,
		Offset:     mc.offset,
		Stats:      mc.stats,
		Elapsed:    mc.elapsed,
	}
	if mc.fmap != nil {
		s.Width, s.Height = mc.fmap.Size()
		s.Origin = mc.fmap.Origin
	}
	return s
}

// Build computes bounds, allocates and integrates every scan. Scans are
// integrated in parallel when the config asks for more than one worker.
func (mc *MapCreator) Build(scans []scan.LaserScan) (*FrequencyMap, error) {
	return mc.BuildContext(context.Background(), scans)
}

// BuildContext is Build with cancellation for the parallel path.
func (mc *MapCreator) BuildContext(ctx context.Context, scans []scan.LaserScan) (*FrequencyMap, error) {
	if len(scans) == 0 {
		return nil, ErrEmptyScanSet
	}
	if err := mc.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid map config: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	if err := mc.ComputeBounds(scans); err != nil {
		return nil, err
	}
	if err := mc.Allocate(); err != nil {
		return nil, err
	}
	if mc.cfg.Workers > 1 {
		if _, err := mc.IntegrateParallel(ctx, scans, mc.cfg.Workers); err != nil {
			return nil, err
		}
	} else {
		mc.IntegrateAll(scans)
	}
	mc.elapsed = time.Since(start)
	diagf("built %dx%d map from %d scans in %v (hits=%d discarded=%d clipped=%d)",
		mc.fmap.Width, mc.fmap.Height, len(scans), mc.elapsed.Round(time.Millisecond),
		mc.stats.Hits, mc.stats.Discarded, mc.stats.Clipped)
	return mc.fmap, nil
}

// Resolve converts the accumulated counts into occupancy. It panics if
// called before Allocate.
func (mc *MapCreator) Resolve() *grid.Map[Occupancy] {
	mc.mustBeAllocated("Resolve")
	return Resolve(mc.fmap)
}
