package difficulty

import "sort"

// MedianTimePast returns the median of the given block timestamps, the
// value a new header's time must strictly exceed. Callers pass the trailing
// MedianTimeSpan timestamps (fewer near genesis); an empty slice returns 0.
func MedianTimePast(timestamps []uint64) uint64 {
	if len(timestamps) == 0 {
		return 0
	}

	sorted := make([]uint64, len(timestamps))
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return sorted[len(sorted)/2]
}
