package spindle

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PairerConfig holds the thresholds for candidate detection. All values are
// required; Validate rejects anything that would make a filter meaningless
// before any pair processing begins.
type PairerConfig struct {
	MaxDist       float64 // mean-distance acceptance threshold (microns)
	MinDist       float64 // min-distance acceptance threshold (microns)
	MaxCongDist   float64 // congression proximity threshold (microns)
	MinOverlap    float64 // minimum temporal overlap (frames)
	FrameInterval float64 // seconds per frame, scales the congression count

	// Workers bounds the parallel fan-out over track pairs. Zero or one
	// means sequential. Output is identical either way.
	Workers int
}

// Validate returns an error for any out-of-range threshold.
func (c PairerConfig) Validate() error {
	if c.MinOverlap <= 0 {
		return fmt.Errorf("pairer config: min overlap must be positive, got %g", c.MinOverlap)
	}
	if c.MaxDist <= 0 {
		return fmt.Errorf("pairer config: max distance must be positive, got %g", c.MaxDist)
	}
	if c.MinDist <= 0 {
		return fmt.Errorf("pairer config: min distance must be positive, got %g", c.MinDist)
	}
	if c.MaxCongDist <= 0 {
		return fmt.Errorf("pairer config: congression distance must be positive, got %g", c.MaxCongDist)
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("pairer config: frame interval must be positive, got %g", c.FrameInterval)
	}
	return nil
}

// Cell is a provisional spindle hypothesis between two tracks. It is built
// once by FindPairs and never mutated afterwards.
type Cell struct {
	CentIDI  int     // lower track id
	CentIDJ  int     // higher track id
	TOverlap float64 // overlap window length (frames)

	SLI   float64 // spindle length at first overlap sample
	SLF   float64 // spindle length at last overlap sample
	SLMin float64
	SLMax float64

	Center       Vec3    // mean center of mass over the overlap
	CenterStdev  float64 // root-sum-square of per-axis center stdevs
	NormalStdev  float64 // same, over the unit normal vector
	TCong        float64 // longest congression run, in seconds
	DistToBorder float64 // cell center to nearest valid-pixel border

	// Photometrics averaged from the two parent tracks.
	Contrast  float64
	Intensity float64
	Diameter  float64
}

// SelectTracks applies the whole-track exclusions that run once before pair
// enumeration: a track is discarded when its mean position lies on or
// outside the valid-pixel border (distance <= 0) or when its duration is
// shorter than the minimum overlap. Survivor ids are returned in ascending
// order so enumeration is deterministic.
func SelectTracks(a *Arena, bounds Bounds, cfg PairerConfig, log zerolog.Logger) []int {
	ids := make([]int, 0, len(a.Tracks))
	for id, trk := range a.Tracks {
		if d := bounds.DistToBorder(trk.Pos.X, trk.Pos.Y); d <= 0 {
			log.Info().Int("track", id).Float64("dist_to_border", d).
				Str("reason", "outside border").Msg("track excluded")
			continue
		}
		if trk.Duration < cfg.MinOverlap {
			log.Info().Int("track", id).Float64("duration", trk.Duration).
				Str("reason", "duration less than min overlap").Msg("track excluded")
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// FindPairs enumerates the cross-product of surviving tracks, runs each
// ordered pair through the filter cascade, and returns one Cell per
// surviving unordered pair, in ascending (i, j) order. Every rejection is
// recorded on the logger with both ids and the stage-specific reason.
//
// The arena is read-only here; with cfg.Workers > 1 the enumeration fans out
// across goroutines that each own their result slot, and the merge is
// single-threaded, so the output order never changes.
func FindPairs(a *Arena, bounds Bounds, cfg PairerConfig, log zerolog.Logger) ([]Cell, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("border bounds: %w", err)
	}

	ids := SelectTracks(a, bounds, cfg, log)
	log.Info().Int("tracks", len(ids)).Msg("pairing tracks")

	if cfg.Workers <= 1 {
		var cells []Cell
		for _, idI := range ids {
			cells = append(cells, pairRow(a, bounds, cfg, log, idI, ids)...)
		}
		return cells, nil
	}

	// Parallel rows: each worker fills its own slot, merge preserves order.
	rows := make([][]Cell, len(ids))
	sem := make(chan struct{}, cfg.Workers)
	var wg sync.WaitGroup
	for n, idI := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(n, idI int) {
			defer wg.Done()
			defer func() { <-sem }()
			rows[n] = pairRow(a, bounds, cfg, log, idI, ids)
		}(n, idI)
	}
	wg.Wait()

	var cells []Cell
	for _, row := range rows {
		cells = append(cells, row...)
	}
	return cells, nil
}

// pairRow runs the cascade for one fixed first track against all candidates.
func pairRow(a *Arena, bounds Bounds, cfg PairerConfig, log zerolog.Logger, idI int, ids []int) []Cell {
	trkI := a.Tracks[idI]
	var cells []Cell
	for _, idJ := range ids {
		trkJ := a.Tracks[idJ]

		// 1) candidate track too short to ever satisfy the overlap.
		if trkJ.Duration < cfg.MinOverlap {
			continue
		}
		// 2) same track.
		if idI == idJ {
			continue
		}
		// Canonical order: the (j, i) iteration handles the other half, so
		// each unordered pair is evaluated and emitted exactly once.
		if idJ < idI {
			continue
		}
		// 3) overlap window too short.
		overlap := min(trkI.Stop, trkJ.Stop) - max(trkI.Start, trkJ.Start)
		if overlap < cfg.MinOverlap {
			log.Info().Int("track_i", idI).Int("track_j", idJ).
				Str("reason", "overlap time too short").Msg("pair rejected")
			continue
		}
		// 4) too few valid samples for variance statistics.
		series, err := TrackDistances(a, idI, idJ)
		if err != nil {
			log.Info().Int("track_i", idI).Int("track_j", idJ).
				Str("reason", err.Error()).Msg("pair rejected")
			continue
		}
		if series.Len() < 2 {
			log.Info().Int("track_i", idI).Int("track_j", idJ).
				Str("reason", "fewer than 2 overlapping samples").Msg("pair rejected")
			continue
		}
		// 5) on average too far apart.
		if mean := stat.Mean(series.Dists, nil); mean > cfg.MaxDist {
			log.Info().Int("track_i", idI).Int("track_j", idJ).Float64("mean_dist", mean).
				Str("reason", "too far away").Msg("pair rejected")
			continue
		}
		// 6) never transiently close enough to be plausible.
		if closest := floats.Min(series.Dists); closest > cfg.MinDist {
			log.Info().Int("track_i", idI).Int("track_j", idJ).Float64("min_dist", closest).
				Str("reason", "too far away (min distance filter)").Msg("pair rejected")
			continue
		}

		cells = append(cells, buildCell(trkI, trkJ, series, bounds, cfg, overlap))
	}
	return cells
}

// buildCell aggregates a surviving pair's series into an immutable Cell.
func buildCell(trkI, trkJ *Track, s *PairSeries, bounds Bounds, cfg PairerConfig, overlap float64) Cell {
	center := meanVec(s.Centers)
	return Cell{
		CentIDI:      trkI.ID,
		CentIDJ:      trkJ.ID,
		TOverlap:     overlap,
		SLI:          s.Dists[0],
		SLF:          s.Dists[len(s.Dists)-1],
		SLMin:        floats.Min(s.Dists),
		SLMax:        floats.Max(s.Dists),
		Center:       center,
		CenterStdev:  spreadVec(s.Centers),
		NormalStdev:  spreadVec(s.Normals),
		TCong:        float64(CongressionRun(s.Times, s.Dists, cfg.MaxCongDist)) * cfg.FrameInterval,
		DistToBorder: bounds.DistToBorder(center.X, center.Y),
		Contrast:     (trkI.Contrast + trkJ.Contrast) / 2,
		Intensity:    (trkI.Intensity + trkJ.Intensity) / 2,
		Diameter:     (trkI.Diameter + trkJ.Diameter) / 2,
	}
}

func meanVec(vs []Vec3) Vec3 {
	var m Vec3
	for _, v := range vs {
		m.X += v.X
		m.Y += v.Y
		m.Z += v.Z
	}
	n := float64(len(vs))
	return Vec3{X: m.X / n, Y: m.Y / n, Z: m.Z / n}
}

// spreadVec collapses the per-axis sample stdevs of a vector series into one
// scalar: sqrt(sx^2 + sy^2 + sz^2).
func spreadVec(vs []Vec3) float64 {
	xs := make([]float64, len(vs))
	ys := make([]float64, len(vs))
	zs := make([]float64, len(vs))
	for k, v := range vs {
		xs[k], ys[k], zs[k] = v.X, v.Y, v.Z
	}
	sx := stat.StdDev(xs, nil)
	sy := stat.StdDev(ys, nil)
	sz := stat.StdDev(zs, nil)
	return Vec3{X: sx, Y: sy, Z: sz}.Length()
}
