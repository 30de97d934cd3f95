package spindle

// CongressionRun returns the length, in samples, of the longest run of
// consecutive samples whose distance is under threshold.
//
// times holds the frames at which both tracks of a pair were detected, in
// ascending order; dists holds the corresponding inter-track distances. The
// two slices are parallel. Sampling gaps are implicit: consecutive entries
// may be more than one frame apart, and such a gap always terminates the
// current run even when the distances on both sides are under threshold. A
// sample at or above threshold likewise terminates the run; runs separated
// by an excursion are never merged.
//
// The result is a bare sample count. Multiply by the frame interval at the
// call site to report a physical duration.
func CongressionRun(times []int, dists []float64, threshold float64) int {
	best := 0
	run := 0
	for k, t := range times {
		if k > 0 && times[k-1]+1 != t {
			run = 0
		}
		if dists[k] < threshold {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}
