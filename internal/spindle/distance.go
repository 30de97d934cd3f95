package spindle

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoOverlap reports that two tracks' temporal windows do not intersect at
// all. It is distinct from an overlap window that happens to contain no
// frame where both tracks were detected; that case returns an empty series.
var ErrNoOverlap = errors.New("tracks do not overlap in time")

// PairSeries holds the aligned time series for one track pair over its
// temporal overlap. The four slices are parallel: for each frame Times[k]
// where both tracks have a detection, Dists[k] is the inter-spot Euclidean
// distance, Centers[k] the midpoint of the two positions, and Normals[k] the
// unit vector from track j's spot toward track i's spot (zero vector when
// the two spots coincide).
type PairSeries struct {
	Times   []int
	Dists   []float64
	Centers []Vec3
	Normals []Vec3
}

// Len returns the number of valid samples in the series.
func (s *PairSeries) Len() int { return len(s.Times) }

// TrackDistances walks the overlap window [max(startI, startJ),
// min(stopI, stopJ)) one frame at a time and collects a sample for every
// frame where both tracks have a mapped spot. Frames with a detection gap on
// either side are skipped without appending, so the series is shorter than
// the nominal window whenever detections are missing.
//
// A non-positive overlap window returns ErrNoOverlap.
func TrackDistances(a *Arena, idI, idJ int) (*PairSeries, error) {
	trkI, ok := a.Tracks[idI]
	if !ok {
		return nil, fmt.Errorf("unknown track %d", idI)
	}
	trkJ, ok := a.Tracks[idJ]
	if !ok {
		return nil, fmt.Errorf("unknown track %d", idJ)
	}

	start := math.Max(trkI.Start, trkJ.Start)
	stop := math.Min(trkI.Stop, trkJ.Stop)
	if stop-start <= 0 {
		return nil, ErrNoOverlap
	}

	s := &PairSeries{}
	for t := int(math.Round(start)); float64(t) < stop; t++ {
		spotI, ok := a.SpotAt(idI, t)
		if !ok {
			continue
		}
		spotJ, ok := a.SpotAt(idJ, t)
		if !ok {
			continue
		}
		s.Times = append(s.Times, t)
		s.Dists = append(s.Dists, spotI.Pos.Dist(spotJ.Pos))
		s.Centers = append(s.Centers, spotI.Pos.Mid(spotJ.Pos))
		s.Normals = append(s.Normals, spotI.Pos.Sub(spotJ.Pos).Normalize())
	}
	return s, nil
}
