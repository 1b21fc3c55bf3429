package scan

// Source produces a finite, ordered sequence of scans. Each log format is a
// separate implementation; the mapping core only sees this interface.
// Implementations filter malformed records before returning.
type Source interface {
	Scans() ([]LaserScan, error)
}

// SliceSource serves scans that are already in memory.
type SliceSource []LaserScan

// Scans returns the slice unchanged.
func (s SliceSource) Scans() ([]LaserScan, error) {
	return s, nil
}

// Collect drains src and drops scans that fail Validate. It returns the kept
// scans and the number dropped.
func Collect(src Source) ([]LaserScan, int, error) {
	all, err := src.Scans()
	if err != nil {
		return nil, 0, err
	}
	kept := make([]LaserScan, 0, len(all))
	dropped := 0
	for i := range all {
		if err := all[i].Validate(); err != nil {
			dropped++
			continue
		}
		kept = append(kept, all[i])
	}
	return kept, dropped, nil
}
