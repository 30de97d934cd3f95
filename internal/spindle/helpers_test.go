package spindle_test

import (
	"github.com/mitosis-data/spindle.report/internal/spindle"
)

// addTrack registers a track plus one spot per listed frame. Spot ids are
// derived as trackID*1000+frame so fixtures stay readable. The track's mean
// position (used by the border filter) is the mean of the given positions.
func addTrack(a *spindle.Arena, id int, start, stop float64, pos map[int]spindle.Vec3) {
	idx := spindle.TimeIndex{}
	var sum spindle.Vec3
	for t, p := range pos {
		sid := id*1000 + t
		a.Spots[sid] = &spindle.Spot{
			ID:           sid,
			Pos:          p,
			Diameter:     2,
			MaxIntensity: 100,
			Contrast:     0.5,
		}
		idx[t] = sid
		sum.X += p.X
		sum.Y += p.Y
		sum.Z += p.Z
	}
	mean := spindle.Vec3{}
	if n := float64(len(pos)); n > 0 {
		mean = spindle.Vec3{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
	}
	a.Tracks[id] = &spindle.Track{
		ID:       id,
		Pos:      mean,
		Start:    start,
		Stop:     stop,
		Duration: stop - start,
	}
	a.Index[id] = idx
}

// straightTrack places a track at a fixed x offset, one spot per frame in
// [start, stop), all at y=50 z=0 so pairs sit well inside testBounds.
func straightTrack(a *spindle.Arena, id int, start, stop float64, x float64) {
	pos := map[int]spindle.Vec3{}
	for t := int(start); float64(t) < stop; t++ {
		pos[t] = spindle.Vec3{X: x, Y: 50}
	}
	addTrack(a, id, start, stop, pos)
}

var testBounds = spindle.Bounds{Top: 0, Bottom: 100, Left: 0, Right: 100}

func testConfig() spindle.PairerConfig {
	return spindle.PairerConfig{
		MaxDist:       11,
		MinDist:       4,
		MaxCongDist:   4,
		MinOverlap:    10,
		FrameInterval: 1,
	}
}
