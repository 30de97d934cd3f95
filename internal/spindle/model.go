package spindle

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Spot is one detected object at one frame, as exported by the tracking
// tool. Positions and diameter are in physical units. Spots are immutable
// once parsed.
type Spot struct {
	ID           int
	Pos          Vec3
	Diameter     float64
	MaxIntensity float64
	Contrast     float64
}

// Track is one object's trajectory across frames. X/Y/Z is the tool's mean
// track position, used for border testing. Start and Stop are in frames;
// Duration is Stop - Start. The photometric summaries are means over the
// spots visited along the track and are filled in by SummarizeTracks.
type Track struct {
	ID       int
	Pos      Vec3
	Start    float64
	Stop     float64
	Duration float64

	Diameter  float64
	Contrast  float64
	Intensity float64
}

// TimeIndex maps integer frame -> spot ID for one track. Frames at which the
// tracking tool has no detection (gaps) are simply absent; every lookup must
// tolerate missing frames.
type TimeIndex map[int]int

// Arena holds one movie's parsed tracking data, indexed by integer id. It is
// built once by the parser and treated as immutable by the pairing engine;
// concurrent readers need no locking.
type Arena struct {
	Spots  map[int]*Spot
	Tracks map[int]*Track
	Index  map[int]TimeIndex // track ID -> frame -> spot ID
}

func NewArena() *Arena {
	return &Arena{
		Spots:  make(map[int]*Spot),
		Tracks: make(map[int]*Track),
		Index:  make(map[int]TimeIndex),
	}
}

// SpotAt returns the spot occupied by track id at frame t, or false when the
// track has no detection there.
func (a *Arena) SpotAt(id, t int) (*Spot, bool) {
	idx, ok := a.Index[id]
	if !ok {
		return nil, false
	}
	spotID, ok := idx[t]
	if !ok {
		return nil, false
	}
	s, ok := a.Spots[spotID]
	return s, ok
}

// Validate checks referential integrity: every track has a time index and
// every indexed spot id resolves.
func (a *Arena) Validate() error {
	for id := range a.Tracks {
		idx, ok := a.Index[id]
		if !ok {
			return fmt.Errorf("track %d has no time index", id)
		}
		for t, spotID := range idx {
			if _, ok := a.Spots[spotID]; !ok {
				return fmt.Errorf("track %d frame %d references unknown spot %d", id, t, spotID)
			}
		}
	}
	return nil
}

// SummarizeTracks fills in each track's mean diameter, contrast and
// intensity by walking the spots it visits over [Start, Stop]. Tracks whose
// index resolves no spots at all get zeros.
func (a *Arena) SummarizeTracks() {
	for id, trk := range a.Tracks {
		var diam, contrast, maxInt []float64
		for t := int(trk.Start); float64(t) <= trk.Stop; t++ {
			s, ok := a.SpotAt(id, t)
			if !ok {
				continue
			}
			diam = append(diam, s.Diameter)
			contrast = append(contrast, s.Contrast)
			maxInt = append(maxInt, s.MaxIntensity)
		}
		if len(diam) == 0 {
			trk.Diameter, trk.Contrast, trk.Intensity = 0, 0, 0
			continue
		}
		trk.Diameter = stat.Mean(diam, nil)
		trk.Contrast = stat.Mean(contrast, nil)
		trk.Intensity = stat.Mean(maxInt, nil)
	}
}

// Bounds is the movie's valid-pixel bounding box in the same physical units
// as spot positions. Image coordinates: y grows downward, so Top < Bottom
// and Left < Right.
type Bounds struct {
	Top    float64
	Bottom float64
	Left   float64
	Right  float64
}

// Validate rejects an empty or inverted box.
func (b Bounds) Validate() error {
	if b.Top >= b.Bottom {
		return fmt.Errorf("bounds: top (%g) must be less than bottom (%g)", b.Top, b.Bottom)
	}
	if b.Left >= b.Right {
		return fmt.Errorf("bounds: left (%g) must be less than right (%g)", b.Left, b.Right)
	}
	return nil
}

// DistToBorder returns the distance from (x, y) to the nearest of the four
// borders. Zero or negative means the point lies on or outside the box.
func (b Bounds) DistToBorder(x, y float64) float64 {
	d := y - b.Top
	if v := b.Bottom - y; v < d {
		d = v
	}
	if v := x - b.Left; v < d {
		d = v
	}
	if v := b.Right - x; v < d {
		d = v
	}
	return d
}
